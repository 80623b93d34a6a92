package tool

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/llms"

	"github.com/courserag/courserag/index"
)

// SearchToolName is the function name the model calls to search content.
const SearchToolName = "search_course_content"

// Searcher is the slice of the index the search tool needs.
type Searcher interface {
	Search(ctx context.Context, query, courseName string, lesson *int) ([]index.Hit, error)
}

// SearchTool exposes semantic course search to the model and remembers which
// chunks backed its most recent run.
type SearchTool struct {
	searcher Searcher

	mu          sync.Mutex
	lastSources []string
}

var (
	_ Tool    = (*SearchTool)(nil)
	_ Sourcer = (*SearchTool)(nil)
)

// NewSearchTool builds the search tool over a searcher.
func NewSearchTool(searcher Searcher) *SearchTool {
	return &SearchTool{searcher: searcher}
}

func (t *SearchTool) Name() string { return SearchToolName }

// Definition describes the search function. Only query is required;
// course_name accepts partial titles and lesson_number narrows to one lesson.
func (t *SearchTool) Definition() llms.Tool {
	return llms.Tool{
		Type: "function",
		Function: &llms.FunctionDefinition{
			Name:        SearchToolName,
			Description: "Search course materials with smart course name matching and lesson filtering",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "What to search for in the course content",
					},
					"course_name": map[string]any{
						"type":        "string",
						"description": "Course title (partial matches work, e.g. 'MCP', 'Introduction')",
					},
					"lesson_number": map[string]any{
						"type":        "integer",
						"description": "Specific lesson number to search within (e.g. 1, 2, 3)",
					},
				},
				"required": []string{"query"},
			},
		},
	}
}

// Execute runs a search. Lookup misses come back as text so the model can
// relay them; only infrastructure failures surface as errors.
func (t *SearchTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	query, _ := args["query"].(string)
	if strings.TrimSpace(query) == "" {
		return "", errors.New("query is required")
	}
	courseName, _ := args["course_name"].(string)
	var lesson *int
	if n, ok := argInt(args["lesson_number"]); ok {
		lesson = &n
	}

	hits, err := t.searcher.Search(ctx, query, courseName, lesson)
	if err != nil {
		var notFound *index.CourseNotFoundError
		if errors.As(err, &notFound) {
			return fmt.Sprintf("No course found matching '%s'", notFound.Name), nil
		}
		return "", err
	}
	if len(hits) == 0 {
		return noResultsMessage(courseName, lesson), nil
	}
	return t.formatHits(hits), nil
}

func noResultsMessage(courseName string, lesson *int) string {
	msg := "No relevant content found"
	if courseName != "" {
		msg += fmt.Sprintf(" in course '%s'", courseName)
	}
	if lesson != nil {
		msg += fmt.Sprintf(" in lesson %d", *lesson)
	}
	return msg + "."
}

// formatHits renders one headed block per hit and records the sources.
func (t *SearchTool) formatHits(hits []index.Hit) string {
	blocks := make([]string, 0, len(hits))
	sources := make([]string, 0, len(hits))
	for _, hit := range hits {
		header := hit.CourseTitle
		if hit.Lesson != nil {
			header = fmt.Sprintf("%s - Lesson %d", hit.CourseTitle, *hit.Lesson)
		}
		blocks = append(blocks, fmt.Sprintf("[%s]\n%s", header, hit.Content))
		sources = append(sources, header)
	}

	t.mu.Lock()
	t.lastSources = sources
	t.mu.Unlock()

	return strings.Join(blocks, "\n\n")
}

// LastSources returns the sources from the most recent search with results.
func (t *SearchTool) LastSources() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.lastSources)
}

// ResetSources forgets the recorded sources.
func (t *SearchTool) ResetSources() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastSources = nil
}
