// Package index maintains the two-collection course index: a catalog of
// course metadata keyed by title, and the chunked course content that
// semantic search runs against.
package index

import (
	"context"
	"fmt"
	"sort"

	"github.com/courserag/courserag/course"
	"github.com/courserag/courserag/log"
	"github.com/courserag/courserag/vector"
)

// Collection names. Catalog documents are keyed by course title; content
// documents hold the embedded chunks.
const (
	CatalogCollection = "course_catalog"
	ContentCollection = "course_content"
)

// DefaultMaxResults caps how many chunks a search returns.
const DefaultMaxResults = 5

// CourseNotFoundError reports a course name that matched nothing in the
// catalog, which is a different outcome than a search with no hits.
type CourseNotFoundError struct {
	Name string
}

func (e *CourseNotFoundError) Error() string {
	return fmt.Sprintf("no course found matching %q", e.Name)
}

// Hit is one retrieved content chunk. Lesson is nil for course-level chunks.
type Hit struct {
	CourseTitle string
	Lesson      *int
	Content     string
	Score       float64
}

// Options configure an Index.
type Options struct {
	// MaxResults caps search results; zero means DefaultMaxResults.
	MaxResults int
	Logger     log.Logger
}

// Index owns both collections and the embedder. Embedding happens here, not
// in the stores, so a batch of chunks costs one provider round trip and every
// backend receives ready-made vectors.
type Index struct {
	catalog    vector.Store
	content    vector.Store
	embedder   vector.Embedder
	maxResults int
	logger     log.Logger
}

// New builds an Index over a catalog store and a content store.
func New(catalog, content vector.Store, embedder vector.Embedder, opts *Options) *Index {
	idx := &Index{
		catalog:    catalog,
		content:    content,
		embedder:   embedder,
		maxResults: DefaultMaxResults,
		logger:     log.GetDefaultLogger(),
	}
	if opts != nil {
		if opts.MaxResults > 0 {
			idx.maxResults = opts.MaxResults
		}
		if opts.Logger != nil {
			idx.logger = opts.Logger
		}
	}
	return idx
}

// AddCourse writes the course's catalog entry and its content chunks. The
// catalog embeds the title; chunks are embedded as one batch.
func (idx *Index) AddCourse(ctx context.Context, c *course.Course, chunks []course.Chunk) error {
	catalogDoc, err := c.ToDocument()
	if err != nil {
		return err
	}

	titleVecs, err := idx.embedder.EmbedDocuments(ctx, []string{c.Title})
	if err != nil {
		return fmt.Errorf("failed to embed course %q: %w", c.Title, err)
	}
	catalogDoc.Embedding = titleVecs[0]

	if err := idx.catalog.Add(ctx, []vector.Document{catalogDoc}); err != nil {
		return fmt.Errorf("failed to store catalog entry for %q: %w", c.Title, err)
	}

	if len(chunks) == 0 {
		idx.logger.Debug("indexed course %q with no content chunks", c.Title)
		return nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}
	embeddings, err := idx.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed content for %q: %w", c.Title, err)
	}

	docs := make([]vector.Document, len(chunks))
	for i, chunk := range chunks {
		docs[i] = vector.Document{
			ID:        chunk.DocumentID(),
			Content:   chunk.Content,
			Metadata:  chunk.Metadata(),
			Embedding: embeddings[i],
		}
	}
	if err := idx.content.Add(ctx, docs); err != nil {
		return fmt.Errorf("failed to store content for %q: %w", c.Title, err)
	}

	idx.logger.Debug("indexed course %q with %d chunks", c.Title, len(chunks))
	return nil
}

// ExistingTitles returns every catalog title, sorted.
func (idx *Index) ExistingTitles(ctx context.Context) ([]string, error) {
	docs, err := idx.catalog.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	titles := make([]string, 0, len(docs))
	for _, doc := range docs {
		titles = append(titles, doc.ID)
	}
	sort.Strings(titles)
	return titles, nil
}

// Courses decodes every catalog entry.
func (idx *Index) Courses(ctx context.Context) ([]*course.Course, error) {
	docs, err := idx.catalog.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	courses := make([]*course.Course, 0, len(docs))
	for _, doc := range docs {
		c, err := course.FromDocument(doc)
		if err != nil {
			return nil, err
		}
		courses = append(courses, c)
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].Title < courses[j].Title })
	return courses, nil
}

// ResolveCourseName maps a possibly partial or misspelled name to a catalog
// title. An exact match wins without touching the embedder; otherwise the
// nearest catalog entry by title embedding is taken, whatever its distance.
func (idx *Index) ResolveCourseName(ctx context.Context, name string) (string, error) {
	docs, err := idx.catalog.All(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read catalog: %w", err)
	}
	for _, doc := range docs {
		if doc.ID == name {
			return name, nil
		}
	}

	queryVec, err := idx.embedder.EmbedQuery(ctx, name)
	if err != nil {
		return "", fmt.Errorf("failed to embed course name %q: %w", name, err)
	}
	results, err := idx.catalog.Search(ctx, queryVec, 1)
	if err != nil {
		return "", fmt.Errorf("failed to search catalog: %w", err)
	}
	if len(results) == 0 {
		return "", &CourseNotFoundError{Name: name}
	}

	resolved := results[0].Document.ID
	idx.logger.Debug("resolved course name %q to %q", name, resolved)
	return resolved, nil
}

// GetCourse resolves name against the catalog and returns the full entry.
func (idx *Index) GetCourse(ctx context.Context, name string) (*course.Course, error) {
	title, err := idx.ResolveCourseName(ctx, name)
	if err != nil {
		return nil, err
	}
	docs, err := idx.catalog.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	for _, doc := range docs {
		if doc.ID == title {
			return course.FromDocument(doc)
		}
	}
	return nil, &CourseNotFoundError{Name: name}
}

// Search retrieves the chunks most similar to query. courseName narrows the
// search to one course after name resolution; lesson narrows it further. An
// empty result is not an error, but an unresolvable courseName is.
func (idx *Index) Search(ctx context.Context, query, courseName string, lesson *int) ([]Hit, error) {
	filter := map[string]any{}
	if courseName != "" {
		title, err := idx.ResolveCourseName(ctx, courseName)
		if err != nil {
			return nil, err
		}
		filter[course.MetaCourseTitle] = title
	}
	if lesson != nil {
		filter[course.MetaLessonNumber] = *lesson
	}

	queryVec, err := idx.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	var results []vector.SearchResult
	if len(filter) > 0 {
		results, err = idx.content.SearchWithFilter(ctx, queryVec, idx.maxResults, filter)
	} else {
		results, err = idx.content.Search(ctx, queryVec, idx.maxResults)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to search content: %w", err)
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		chunk := course.ChunkFromDocument(r.Document)
		hits = append(hits, Hit{
			CourseTitle: chunk.CourseTitle,
			Lesson:      chunk.Lesson,
			Content:     r.Document.Content,
			Score:       r.Score,
		})
	}
	idx.logger.Debug("search %q returned %d hits", query, len(hits))
	return hits, nil
}

// Clear drops both collections.
func (idx *Index) Clear(ctx context.Context) error {
	if err := idx.catalog.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear catalog: %w", err)
	}
	if err := idx.content.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear content: %w", err)
	}
	return nil
}
