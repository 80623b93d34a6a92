package courserag

import (
	"context"
	"errors"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/courserag/courserag/index"
	"github.com/courserag/courserag/vector"
)

// bagEmbedder hashes words into a fixed number of buckets, which makes the
// tests' similarity ranking track actual word overlap.
type bagEmbedder struct{}

func (bagEmbedder) embed(text string) []float32 {
	vec := make([]float32, 64)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(word))
		vec[h.Sum32()%64]++
	}
	return vec
}

func (b bagEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return b.embed(text), nil
}

func (b bagEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = b.embed(text)
	}
	return out, nil
}

// scriptedModel replays responses in order and records what it was asked.
type scriptedModel struct {
	responses []*llms.ContentResponse

	calls    [][]llms.MessageContent
	optsSeen []llms.CallOptions
}

func (m *scriptedModel) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	var opts llms.CallOptions
	for _, opt := range options {
		opt(&opts)
	}
	m.calls = append(m.calls, messages)
	m.optsSeen = append(m.optsSeen, opts)

	if len(m.calls) > len(m.responses) {
		return nil, errors.New("unexpected extra model call")
	}
	return m.responses[len(m.calls)-1], nil
}

func (m *scriptedModel) Call(context.Context, string, ...llms.CallOption) (string, error) {
	return "", errors.New("not implemented")
}

func textReply(content string) *llms.ContentResponse {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: content}}}
}

func toolCallReply(name, arguments string) *llms.ContentResponse {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{
		ToolCalls: []llms.ToolCall{{
			ID:           "call_1",
			Type:         "function",
			FunctionCall: &llms.FunctionCall{Name: name, Arguments: arguments},
		}},
	}}}
}

const testCourseDoc = `Course Title: Test Course
Course Link: https://example.com/test
Course Instructor: Test Instructor

Lesson 0: Introduction
Lesson Link: https://example.com/test/lesson0
Welcome aboard. This introduction explains the fundamentals clearly.

Lesson 1: Advanced Topics
Sharding replication failover quorum leases.
`

const otherCourseDoc = `Course Title: Other Course
Course Instructor: Someone Else

Lesson 0: Gardening
Tomatoes cucumbers trellis compost mulch.
`

func writeDocs(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test_course.txt"), []byte(testCourseDoc), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other_course.txt"), []byte(otherCourseDoc), 0o644))
	return dir
}

func newTestSystem(t *testing.T, model llms.Model) *System {
	t.Helper()
	idx := index.New(vector.NewMemoryStore(), vector.NewMemoryStore(), bagEmbedder{}, nil)
	s, err := New(idx, model, nil)
	require.NoError(t, err)
	return s
}

func TestIngestFolder(t *testing.T) {
	ctx := context.Background()
	s := newTestSystem(t, &scriptedModel{})
	dir := writeDocs(t)

	report, err := s.IngestFolder(ctx, dir, false)
	require.NoError(t, err)
	assert.Equal(t, 2, report.CoursesAdded)
	assert.Equal(t, 3, report.ChunksAdded)
	assert.Zero(t, report.CoursesSkipped)
	assert.Zero(t, report.FilesFailed)

	// Re-ingesting the same folder is a no-op.
	report, err = s.IngestFolder(ctx, dir, false)
	require.NoError(t, err)
	assert.Zero(t, report.CoursesAdded)
	assert.Equal(t, 2, report.CoursesSkipped)
}

func TestIngestFolderSkipsBrokenFiles(t *testing.T) {
	ctx := context.Background()
	s := newTestSystem(t, &scriptedModel{})
	dir := writeDocs(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.txt"), []byte("no course header at all"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.json"), []byte("{}"), 0o644))

	report, err := s.IngestFolder(ctx, dir, false)
	require.NoError(t, err)
	assert.Equal(t, 2, report.CoursesAdded)
	assert.Equal(t, 1, report.FilesFailed)
}

func TestIngestFolderClearExisting(t *testing.T) {
	ctx := context.Background()
	s := newTestSystem(t, &scriptedModel{})
	dir := writeDocs(t)

	_, err := s.IngestFolder(ctx, dir, false)
	require.NoError(t, err)

	report, err := s.IngestFolder(ctx, dir, true)
	require.NoError(t, err)
	assert.Equal(t, 2, report.CoursesAdded, "clearing first means nothing is skipped")
}

func TestIngestFolderMissingDir(t *testing.T) {
	s := newTestSystem(t, &scriptedModel{})

	_, err := s.IngestFolder(context.Background(), filepath.Join(t.TempDir(), "absent"), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read course folder")
}

func TestQueryEndToEnd(t *testing.T) {
	ctx := context.Background()
	model := &scriptedModel{responses: []*llms.ContentResponse{
		toolCallReply("search_course_content", `{"query":"introduction explains the fundamentals","course_name":"Test Course"}`),
		textReply("The introduction covers the fundamentals."),
	}}
	s := newTestSystem(t, model)

	_, err := s.IngestFolder(ctx, writeDocs(t), false)
	require.NoError(t, err)

	answer, err := s.Query(ctx, "What does the introduction cover?", "")
	require.NoError(t, err)

	assert.Equal(t, "The introduction covers the fundamentals.", answer.Text)
	assert.NotEmpty(t, answer.SessionID)

	// The best match for those words is the lesson 0 chunk.
	require.NotEmpty(t, answer.Sources)
	assert.Equal(t, "Test Course - Lesson 0", answer.Sources[0])

	// The follow-up model call carried the search results.
	require.Len(t, model.calls, 2)
	toolMsg := model.calls[1][3]
	require.Equal(t, llms.ChatMessageTypeTool, toolMsg.Role)
	toolResp := toolMsg.Parts[0].(llms.ToolCallResponse)
	assert.Contains(t, toolResp.Content, "[Test Course - Lesson 0]")
	assert.Contains(t, toolResp.Content, "introduction explains the fundamentals")
}

func TestQuerySessionHistoryAndSourceReset(t *testing.T) {
	ctx := context.Background()
	model := &scriptedModel{responses: []*llms.ContentResponse{
		toolCallReply("search_course_content", `{"query":"introduction explains the fundamentals"}`),
		textReply("It explains the fundamentals."),
		textReply("Nothing further to add."),
	}}
	s := newTestSystem(t, model)

	_, err := s.IngestFolder(ctx, writeDocs(t), false)
	require.NoError(t, err)

	first, err := s.Query(ctx, "What does the introduction explain?", "")
	require.NoError(t, err)
	require.NotEmpty(t, first.Sources)

	second, err := s.Query(ctx, "Anything else?", first.SessionID)
	require.NoError(t, err)

	assert.Equal(t, first.SessionID, second.SessionID)

	// No tool ran for the follow-up, so its sources are empty even though the
	// previous query produced some.
	assert.Empty(t, second.Sources)

	// The follow-up saw the first exchange in its system prompt.
	system := model.calls[2][0].Parts[0].(llms.TextContent).Text
	assert.Contains(t, system, "Previous conversation:")
	assert.Contains(t, system, "User: What does the introduction explain?")
	assert.Contains(t, system, "Assistant: It explains the fundamentals.")
}

func TestQueryOutlineTool(t *testing.T) {
	ctx := context.Background()
	model := &scriptedModel{responses: []*llms.ContentResponse{
		toolCallReply("get_course_outline", `{"course_name":"Test Course"}`),
		textReply("The course has two lessons."),
	}}
	s := newTestSystem(t, model)

	_, err := s.IngestFolder(ctx, writeDocs(t), false)
	require.NoError(t, err)

	answer, err := s.Query(ctx, "How is the Test Course structured?", "")
	require.NoError(t, err)

	assert.Equal(t, []string{"Test Course"}, answer.Sources)

	toolResp := model.calls[1][3].Parts[0].(llms.ToolCallResponse)
	assert.Contains(t, toolResp.Content, "Lesson 0: Introduction")
	assert.Contains(t, toolResp.Content, "Lesson 1: Advanced Topics")
	assert.Contains(t, toolResp.Content, "https://example.com/test")
}

func TestQueryModelErrorPropagates(t *testing.T) {
	s := newTestSystem(t, &scriptedModel{})

	_, err := s.Query(context.Background(), "anything", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model call failed")
}

func TestAnalyticsAndClear(t *testing.T) {
	ctx := context.Background()
	s := newTestSystem(t, &scriptedModel{})

	_, err := s.IngestFolder(ctx, writeDocs(t), false)
	require.NoError(t, err)

	analytics, err := s.Analytics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, analytics.TotalCourses)
	assert.Equal(t, []string{"Other Course", "Test Course"}, analytics.CourseTitles)

	require.NoError(t, s.ClearIndex(ctx))

	analytics, err = s.Analytics(ctx)
	require.NoError(t, err)
	assert.Zero(t, analytics.TotalCourses)
	assert.Empty(t, analytics.CourseTitles)
}
