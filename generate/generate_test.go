package generate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

// fakeModel replays canned responses and records every call it receives.
type fakeModel struct {
	responses []*llms.ContentResponse
	err       error

	calls    [][]llms.MessageContent
	optsSeen []llms.CallOptions
}

func (f *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	if f.err != nil {
		return nil, f.err
	}

	var opts llms.CallOptions
	for _, opt := range options {
		opt(&opts)
	}
	f.calls = append(f.calls, messages)
	f.optsSeen = append(f.optsSeen, opts)

	if len(f.calls) > len(f.responses) {
		return nil, errors.New("unexpected extra model call")
	}
	return f.responses[len(f.calls)-1], nil
}

func (f *fakeModel) Call(context.Context, string, ...llms.CallOption) (string, error) {
	return "", errors.New("not implemented")
}

type executedCall struct {
	name string
	args map[string]any
}

type fakeRunner struct {
	defs   []llms.Tool
	result string
	err    error

	executed []executedCall
}

func (f *fakeRunner) Definitions() []llms.Tool { return f.defs }

func (f *fakeRunner) Execute(_ context.Context, name string, args map[string]any) (string, error) {
	f.executed = append(f.executed, executedCall{name: name, args: args})
	if f.err != nil {
		return "", f.err
	}
	return f.result, nil
}

func textResponse(content string) *llms.ContentResponse {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: content}}}
}

func toolCallResponse(id, name, arguments string) *llms.ContentResponse {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{
		ToolCalls: []llms.ToolCall{{
			ID:           id,
			Type:         "function",
			FunctionCall: &llms.FunctionCall{Name: name, Arguments: arguments},
		}},
	}}}
}

func searchDefs() []llms.Tool {
	return []llms.Tool{{
		Type:     "function",
		Function: &llms.FunctionDefinition{Name: "search_course_content"},
	}}
}

func TestAnswerWithoutTools(t *testing.T) {
	model := &fakeModel{responses: []*llms.ContentResponse{textResponse("Paris.")}}
	runner := &fakeRunner{defs: searchDefs()}
	g, err := New(model, runner, nil)
	require.NoError(t, err)

	answer, err := g.Answer(context.Background(), "What is the capital of France?", "")
	require.NoError(t, err)
	assert.Equal(t, "Paris.", answer)

	require.Len(t, model.calls, 1)
	assert.Empty(t, runner.executed)

	messages := model.calls[0]
	require.Len(t, messages, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, messages[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, messages[1].Role)
	human := messages[1].Parts[0].(llms.TextContent)
	assert.Equal(t, "Answer this question about course materials: What is the capital of France?", human.Text)

	// Tools are on offer for the first pass.
	assert.Len(t, model.optsSeen[0].Tools, 1)
}

func TestAnswerWithToolRound(t *testing.T) {
	model := &fakeModel{responses: []*llms.ContentResponse{
		toolCallResponse("call_1", "search_course_content", `{"query":"goroutines","lesson_number":2}`),
		textResponse("Goroutines are lightweight threads."),
	}}
	runner := &fakeRunner{defs: searchDefs(), result: "[Go Basics - Lesson 2]\nGoroutines explained."}
	g, err := New(model, runner, nil)
	require.NoError(t, err)

	answer, err := g.Answer(context.Background(), "What are goroutines?", "")
	require.NoError(t, err)
	assert.Equal(t, "Goroutines are lightweight threads.", answer)

	require.Len(t, runner.executed, 1)
	assert.Equal(t, "search_course_content", runner.executed[0].name)
	assert.Equal(t, map[string]any{"query": "goroutines", "lesson_number": float64(2)}, runner.executed[0].args)

	require.Len(t, model.calls, 2)

	// The follow-up call sees the tool call and its result.
	followUp := model.calls[1]
	require.Len(t, followUp, 4)
	assert.Equal(t, llms.ChatMessageTypeAI, followUp[2].Role)
	assert.Equal(t, llms.ChatMessageTypeTool, followUp[3].Role)
	toolResp := followUp[3].Parts[0].(llms.ToolCallResponse)
	assert.Equal(t, "call_1", toolResp.ToolCallID)
	assert.Equal(t, runner.result, toolResp.Content)

	// And it must not be offered tools again.
	assert.Empty(t, model.optsSeen[1].Tools)
}

func TestAnswerExecutesEveryRequestedCall(t *testing.T) {
	model := &fakeModel{responses: []*llms.ContentResponse{
		{Choices: []*llms.ContentChoice{{
			ToolCalls: []llms.ToolCall{
				{ID: "call_1", Type: "function", FunctionCall: &llms.FunctionCall{Name: "search_course_content", Arguments: `{"query":"a"}`}},
				{ID: "call_2", Type: "function", FunctionCall: &llms.FunctionCall{Name: "get_course_outline", Arguments: `{"course_name":"Go"}`}},
			},
		}}},
		textResponse("Combined answer."),
	}}
	runner := &fakeRunner{defs: searchDefs(), result: "tool output"}
	g, err := New(model, runner, nil)
	require.NoError(t, err)

	_, err = g.Answer(context.Background(), "q", "")
	require.NoError(t, err)

	require.Len(t, runner.executed, 2)
	assert.Equal(t, "search_course_content", runner.executed[0].name)
	assert.Equal(t, "get_course_outline", runner.executed[1].name)

	// Both results became tool messages for the follow-up call.
	followUp := model.calls[1]
	var toolMessages int
	for _, msg := range followUp {
		if msg.Role == llms.ChatMessageTypeTool {
			toolMessages++
		}
	}
	assert.Equal(t, 2, toolMessages)
}

func TestAnswerHistoryLandsInSystemPrompt(t *testing.T) {
	model := &fakeModel{responses: []*llms.ContentResponse{textResponse("ok")}}
	g, err := New(model, &fakeRunner{}, nil)
	require.NoError(t, err)

	history := "User: What is MCP?\nAssistant: A protocol."
	_, err = g.Answer(context.Background(), "Tell me more", history)
	require.NoError(t, err)

	system := model.calls[0][0].Parts[0].(llms.TextContent).Text
	assert.Contains(t, system, "Previous conversation:")
	assert.Contains(t, system, history)
}

func TestAnswerWithoutHistoryOmitsSection(t *testing.T) {
	model := &fakeModel{responses: []*llms.ContentResponse{textResponse("ok")}}
	g, err := New(model, &fakeRunner{}, nil)
	require.NoError(t, err)

	_, err = g.Answer(context.Background(), "q", "")
	require.NoError(t, err)

	system := model.calls[0][0].Parts[0].(llms.TextContent).Text
	assert.NotContains(t, system, "Previous conversation:")
}

func TestAnswerUsesDeterministicCallSettings(t *testing.T) {
	model := &fakeModel{responses: []*llms.ContentResponse{textResponse("ok")}}
	g, err := New(model, &fakeRunner{defs: searchDefs()}, nil)
	require.NoError(t, err)

	_, err = g.Answer(context.Background(), "q", "")
	require.NoError(t, err)

	assert.Zero(t, model.optsSeen[0].Temperature)
	assert.Equal(t, DefaultMaxTokens, model.optsSeen[0].MaxTokens)
}

func TestAnswerModelErrorIsWrappedNotRetried(t *testing.T) {
	boom := errors.New("rate limited")
	model := &fakeModel{err: boom}
	g, err := New(model, &fakeRunner{}, nil)
	require.NoError(t, err)

	_, err = g.Answer(context.Background(), "q", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "model call failed")
}

func TestAnswerToolFailureBecomesToolResult(t *testing.T) {
	model := &fakeModel{responses: []*llms.ContentResponse{
		toolCallResponse("call_1", "search_course_content", `{"query":"x"}`),
		textResponse("The search is unavailable right now."),
	}}
	runner := &fakeRunner{defs: searchDefs(), err: errors.New("store unreachable")}
	g, err := New(model, runner, nil)
	require.NoError(t, err)

	answer, err := g.Answer(context.Background(), "q", "")
	require.NoError(t, err)
	assert.Equal(t, "The search is unavailable right now.", answer)

	toolResp := model.calls[1][3].Parts[0].(llms.ToolCallResponse)
	assert.True(t, strings.HasPrefix(toolResp.Content, "Error:"))
	assert.Contains(t, toolResp.Content, "store unreachable")
}

func TestAnswerEmptyChoices(t *testing.T) {
	model := &fakeModel{responses: []*llms.ContentResponse{{}}}
	g, err := New(model, &fakeRunner{}, nil)
	require.NoError(t, err)

	_, err = g.Answer(context.Background(), "q", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}
