package course

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courserag/courserag/vector"
)

func TestProcessBuildsPrefixedChunks(t *testing.T) {
	text := `Course Title: Test Course
Course Link: https://example.com/test
Course Instructor: Test Instructor

Lesson 0: Introduction
Alpha bravo charlie one. Delta echo foxtrot two. Golf hotel india three.

Lesson 1: Deep Dive
Juliet kilo lima four.
`
	p := NewProcessor(WithChunkSize(50), WithChunkOverlap(0))

	c, chunks, err := p.Process(text, "test.txt")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "Test Course", c.Title)

	require.Len(t, chunks, 3)

	assert.Equal(t, "Lesson 0 content: Alpha bravo charlie one. Delta echo foxtrot two.", chunks[0].Content)
	assert.Equal(t, "Course Test Course Lesson 0 content: Golf hotel india three.", chunks[1].Content)
	assert.Equal(t, "Lesson 1 content: Juliet kilo lima four.", chunks[2].Content)

	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Index, "chunk indexes must be contiguous")
		assert.Equal(t, "Test Course", chunk.CourseTitle)
		require.NotNil(t, chunk.Lesson)
	}
	assert.Equal(t, 0, *chunks[0].Lesson)
	assert.Equal(t, 0, *chunks[1].Lesson)
	assert.Equal(t, 1, *chunks[2].Lesson)
}

func TestProcessCourseWithoutLessons(t *testing.T) {
	text := "Course Title: Flat Course\n\nEverything lives at the course level. There are no lesson markers."
	p := NewProcessor()

	c, chunks, err := p.Process(text, "")
	require.NoError(t, err)
	assert.Empty(t, c.Lessons)

	require.Len(t, chunks, 1)
	assert.True(t, strings.HasPrefix(chunks[0].Content, "Course Flat Course content: "))
	assert.Nil(t, chunks[0].Lesson)
	assert.Equal(t, 0, chunks[0].Index)
}

func TestProcessEmptyLessonKeepsIndexesContiguous(t *testing.T) {
	text := `Course Title: Sparse
Lesson 0: Empty
Lesson 1: Full
Real content lives here in lesson one.
`
	p := NewProcessor()

	c, chunks, err := p.Process(text, "")
	require.NoError(t, err)
	require.Len(t, c.Lessons, 2)

	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Index)
	require.NotNil(t, chunks[0].Lesson)
	assert.Equal(t, 1, *chunks[0].Lesson)
}

func TestProcessParseErrorCarriesPath(t *testing.T) {
	p := NewProcessor()

	_, _, err := p.Process("not a course document", "docs/bad.txt")
	require.Error(t, err)

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "docs/bad.txt", parseErr.Path)
}

func TestChunkDocumentID(t *testing.T) {
	ch := Chunk{CourseTitle: "Test Course Name", Index: 3}
	assert.Equal(t, "Test_Course_Name_3", ch.DocumentID())
}

func TestChunkMetadata(t *testing.T) {
	lesson := 2
	withLesson := Chunk{CourseTitle: "Go Basics", Lesson: &lesson, Index: 5}
	assert.Equal(t, map[string]any{
		"course_title":  "Go Basics",
		"lesson_number": 2,
		"chunk_index":   5,
	}, withLesson.Metadata())

	courseLevel := Chunk{CourseTitle: "Go Basics", Index: 0}
	meta := courseLevel.Metadata()
	assert.NotContains(t, meta, "lesson_number")
}

func TestChunkFromDocumentCoercesNumbers(t *testing.T) {
	lesson := 2
	ch := Chunk{CourseTitle: "Go Basics", Lesson: &lesson, Index: 5}

	doc := vector.Document{
		ID:       ch.DocumentID(),
		Content:  "Lesson 2 content: sample text",
		Metadata: ch.Metadata(),
	}

	// Stores that round-trip metadata through JSON hand back float64s.
	raw, err := json.Marshal(doc.Metadata)
	require.NoError(t, err)
	var roundTripped map[string]any
	require.NoError(t, json.Unmarshal(raw, &roundTripped))
	doc.Metadata = roundTripped

	decoded := ChunkFromDocument(doc)
	assert.Equal(t, "Go Basics", decoded.CourseTitle)
	assert.Equal(t, 5, decoded.Index)
	require.NotNil(t, decoded.Lesson)
	assert.Equal(t, 2, *decoded.Lesson)
}

func TestCourseDocumentRoundTrip(t *testing.T) {
	c := &Course{
		Title:      "Vector Databases",
		Link:       "https://example.com/vdb",
		Instructor: "Ada Lovelace",
		Lessons: []Lesson{
			{Number: 0, Title: "Intro", Link: "https://example.com/vdb/0"},
			{Number: 1, Title: "Indexes"},
		},
	}

	doc, err := c.ToDocument()
	require.NoError(t, err)
	assert.Equal(t, "Vector Databases", doc.ID)
	assert.Equal(t, "Vector Databases", doc.Content)
	assert.Equal(t, 2, doc.Metadata["lesson_count"])

	decoded, err := FromDocument(doc)
	require.NoError(t, err)
	assert.Equal(t, c, decoded)
}

func TestCourseWithoutLessonsEncodesEmptyList(t *testing.T) {
	c := &Course{Title: "Flat"}

	doc, err := c.ToDocument()
	require.NoError(t, err)
	assert.Equal(t, "[]", doc.Metadata["lessons_json"])
	assert.Equal(t, 0, doc.Metadata["lesson_count"])

	decoded, err := FromDocument(doc)
	require.NoError(t, err)
	assert.Equal(t, "Flat", decoded.Title)
	assert.Empty(t, decoded.Lessons)
}

func TestFromDocumentRejectsBadLessonsJSON(t *testing.T) {
	doc, err := (&Course{Title: "Broken"}).ToDocument()
	require.NoError(t, err)
	doc.Metadata["lessons_json"] = "{not json"

	_, err = FromDocument(doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to unmarshal lessons")
}
