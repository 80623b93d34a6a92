package tool

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/llms"

	"github.com/courserag/courserag/course"
	"github.com/courserag/courserag/index"
)

// OutlineToolName is the function name the model calls for course outlines.
const OutlineToolName = "get_course_outline"

// CourseFetcher is the slice of the index the outline tool needs.
type CourseFetcher interface {
	GetCourse(ctx context.Context, name string) (*course.Course, error)
}

// OutlineTool returns a course's link and complete lesson list, so the model
// can answer structural questions without searching content.
type OutlineTool struct {
	fetcher CourseFetcher

	mu          sync.Mutex
	lastSources []string
}

var (
	_ Tool    = (*OutlineTool)(nil)
	_ Sourcer = (*OutlineTool)(nil)
)

// NewOutlineTool builds the outline tool over a course fetcher.
func NewOutlineTool(fetcher CourseFetcher) *OutlineTool {
	return &OutlineTool{fetcher: fetcher}
}

func (t *OutlineTool) Name() string { return OutlineToolName }

func (t *OutlineTool) Definition() llms.Tool {
	return llms.Tool{
		Type: "function",
		Function: &llms.FunctionDefinition{
			Name:        OutlineToolName,
			Description: "Get a course's full outline: its link and every lesson number and title",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"course_name": map[string]any{
						"type":        "string",
						"description": "Course title (partial matches work)",
					},
				},
				"required": []string{"course_name"},
			},
		},
	}
}

// Execute fetches the outline. An unresolvable course comes back as text for
// the model rather than an error.
func (t *OutlineTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	name, _ := args["course_name"].(string)
	if strings.TrimSpace(name) == "" {
		return "", errors.New("course_name is required")
	}

	c, err := t.fetcher.GetCourse(ctx, name)
	if err != nil {
		var notFound *index.CourseNotFoundError
		if errors.As(err, &notFound) {
			return fmt.Sprintf("No course found matching '%s'", notFound.Name), nil
		}
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Course Title: %s", c.Title)
	if c.Link != "" {
		fmt.Fprintf(&sb, "\nCourse Link: %s", c.Link)
	}
	if c.Instructor != "" {
		fmt.Fprintf(&sb, "\nInstructor: %s", c.Instructor)
	}
	fmt.Fprintf(&sb, "\nLessons (%d):", len(c.Lessons))
	for _, lesson := range c.Lessons {
		fmt.Fprintf(&sb, "\n  Lesson %d: %s", lesson.Number, lesson.Title)
	}

	t.mu.Lock()
	t.lastSources = []string{c.Title}
	t.mu.Unlock()

	return sb.String(), nil
}

// LastSources returns the title of the last course whose outline was fetched.
func (t *OutlineTool) LastSources() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.lastSources)
}

// ResetSources forgets the recorded sources.
func (t *OutlineTool) ResetSources() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastSources = nil
}
