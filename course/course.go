// Package course models course documents and turns raw course files into
// catalog entries and embeddable content chunks.
package course

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/courserag/courserag/vector"
)

// Course is one course document's catalog entry. Titles are unique across the
// index and double as identifiers.
type Course struct {
	Title      string
	Link       string
	Instructor string
	Lessons    []Lesson
}

// Lesson is a numbered section inside a course.
type Lesson struct {
	Number int    `json:"lesson_number"`
	Title  string `json:"lesson_title"`
	Link   string `json:"lesson_link,omitempty"`
}

// Chunk is one embeddable piece of course content. Lesson is nil for content
// that belongs to the course rather than a numbered lesson.
type Chunk struct {
	Content     string
	CourseTitle string
	Lesson      *int
	Index       int
}

// Catalog metadata keys. The lesson list crosses the store boundary as JSON
// so any backend can hold it in a flat metadata map.
const (
	metaTitle       = "title"
	metaInstructor  = "instructor"
	metaCourseLink  = "course_link"
	metaLessonsJSON = "lessons_json"
	metaLessonCount = "lesson_count"
)

// Content metadata keys.
const (
	MetaCourseTitle  = "course_title"
	MetaLessonNumber = "lesson_number"
	MetaChunkIndex   = "chunk_index"
)

// ToDocument renders the course as its catalog document. The title is both
// the document ID and the text that gets embedded.
func (c *Course) ToDocument() (vector.Document, error) {
	lessons := c.Lessons
	if lessons == nil {
		lessons = []Lesson{}
	}

	lessonsJSON, err := json.Marshal(lessons)
	if err != nil {
		return vector.Document{}, fmt.Errorf("failed to marshal lessons for %q: %w", c.Title, err)
	}

	return vector.Document{
		ID:      c.Title,
		Content: c.Title,
		Metadata: map[string]any{
			metaTitle:       c.Title,
			metaInstructor:  c.Instructor,
			metaCourseLink:  c.Link,
			metaLessonsJSON: string(lessonsJSON),
			metaLessonCount: len(lessons),
		},
	}, nil
}

// FromDocument rebuilds a course from its catalog document.
func FromDocument(doc vector.Document) (*Course, error) {
	course := &Course{
		Title:      metaString(doc.Metadata, metaTitle),
		Link:       metaString(doc.Metadata, metaCourseLink),
		Instructor: metaString(doc.Metadata, metaInstructor),
	}
	if course.Title == "" {
		course.Title = doc.ID
	}

	if raw := metaString(doc.Metadata, metaLessonsJSON); raw != "" {
		if err := json.Unmarshal([]byte(raw), &course.Lessons); err != nil {
			return nil, fmt.Errorf("failed to unmarshal lessons for %q: %w", course.Title, err)
		}
	}

	return course, nil
}

// DocumentID is the chunk's content-collection ID, derived from the course
// title and chunk index.
func (ch *Chunk) DocumentID() string {
	return fmt.Sprintf("%s_%d", strings.ReplaceAll(ch.CourseTitle, " ", "_"), ch.Index)
}

// Metadata returns the content-collection metadata for the chunk. Course-level
// chunks carry no lesson number.
func (ch *Chunk) Metadata() map[string]any {
	m := map[string]any{
		MetaCourseTitle: ch.CourseTitle,
		MetaChunkIndex:  ch.Index,
	}
	if ch.Lesson != nil {
		m[MetaLessonNumber] = *ch.Lesson
	}
	return m
}

// ChunkFromDocument rebuilds a chunk view from a content document. Numeric
// metadata may arrive as float64 after a JSON round trip.
func ChunkFromDocument(doc vector.Document) Chunk {
	ch := Chunk{
		Content:     doc.Content,
		CourseTitle: metaString(doc.Metadata, MetaCourseTitle),
	}
	if n, ok := metaInt(doc.Metadata[MetaChunkIndex]); ok {
		ch.Index = n
	}
	if n, ok := metaInt(doc.Metadata[MetaLessonNumber]); ok {
		ch.Lesson = &n
	}
	return ch
}

func metaString(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func metaInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float32:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
