package courserag

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tmc/langchaingo/llms"

	"github.com/courserag/courserag/course"
	"github.com/courserag/courserag/generate"
	"github.com/courserag/courserag/index"
	"github.com/courserag/courserag/log"
	"github.com/courserag/courserag/session"
	"github.com/courserag/courserag/tool"
)

// System wires ingestion, retrieval, generation and sessions into one
// assistant over course materials.
type System struct {
	index     *index.Index
	processor *course.Processor
	generator *generate.Generator
	sessions  *session.Store
	tools     *tool.Manager
	logger    log.Logger
}

// Options configure a System. Zero-value fields get working defaults.
type Options struct {
	// Processor chunks ingested documents; defaults to standard chunk sizes.
	Processor *course.Processor
	// Sessions holds conversation history; defaults to a fresh store.
	Sessions *session.Store
	// MaxTokens caps each model response.
	MaxTokens int
	Logger    log.Logger
}

// New assembles a system over an index and a chat model. The search and
// outline tools are registered against the index automatically.
func New(idx *index.Index, model llms.Model, opts *Options) (*System, error) {
	s := &System{
		index:     idx,
		processor: course.NewProcessor(),
		sessions:  session.NewStore(session.DefaultMaxHistory),
		tools:     tool.NewManager(),
		logger:    log.GetDefaultLogger(),
	}

	var maxTokens int
	if opts != nil {
		if opts.Processor != nil {
			s.processor = opts.Processor
		}
		if opts.Sessions != nil {
			s.sessions = opts.Sessions
		}
		if opts.Logger != nil {
			s.logger = opts.Logger
		}
		maxTokens = opts.MaxTokens
	}

	if err := s.tools.Register(tool.NewSearchTool(idx)); err != nil {
		return nil, err
	}
	if err := s.tools.Register(tool.NewOutlineTool(idx)); err != nil {
		return nil, err
	}

	generator, err := generate.New(model, s.tools, &generate.Options{
		MaxTokens: maxTokens,
		Logger:    s.logger,
	})
	if err != nil {
		return nil, err
	}
	s.generator = generator
	return s, nil
}

// IngestReport summarizes one folder ingestion.
type IngestReport struct {
	CoursesAdded   int
	ChunksAdded    int
	CoursesSkipped int
	FilesFailed    int
}

// IngestFolder loads every supported document in dir. Courses whose titles
// are already in the catalog are skipped, so re-running ingestion is cheap.
// A file that fails to load or parse is logged and counted, never fatal.
func (s *System) IngestFolder(ctx context.Context, dir string, clearExisting bool) (*IngestReport, error) {
	if clearExisting {
		s.logger.Info("clearing existing index before ingestion")
		if err := s.index.Clear(ctx); err != nil {
			return nil, err
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read course folder: %w", err)
	}

	titles, err := s.index.ExistingTitles(ctx)
	if err != nil {
		return nil, err
	}
	existing := make(map[string]struct{}, len(titles))
	for _, title := range titles {
		existing[title] = struct{}{}
	}

	report := &IngestReport{}
	for _, entry := range entries {
		if entry.IsDir() || !course.IsSupported(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())

		text, err := course.LoadFile(path)
		if err != nil {
			s.logger.Warn("skipping %s: %v", path, err)
			report.FilesFailed++
			continue
		}

		c, chunks, err := s.processor.Process(text, path)
		if err != nil {
			s.logger.Warn("skipping unparseable document: %v", err)
			report.FilesFailed++
			continue
		}

		if _, ok := existing[c.Title]; ok {
			s.logger.Debug("course %q already indexed, skipping", c.Title)
			report.CoursesSkipped++
			continue
		}

		if err := s.index.AddCourse(ctx, c, chunks); err != nil {
			s.logger.Error("failed to index %q: %v", c.Title, err)
			report.FilesFailed++
			continue
		}
		existing[c.Title] = struct{}{}
		report.CoursesAdded++
		report.ChunksAdded += len(chunks)
	}

	s.logger.Info("ingested %d courses (%d chunks) from %s, skipped %d, failed %d",
		report.CoursesAdded, report.ChunksAdded, dir, report.CoursesSkipped, report.FilesFailed)
	return report, nil
}

// Answer is one assistant reply.
type Answer struct {
	Text      string
	Sources   []string
	SessionID string
}

// Query answers one question inside a session. Sources reflect only the tool
// activity of this query; the exchange is recorded so the next question in
// the session sees it.
func (s *System) Query(ctx context.Context, query, sessionID string) (*Answer, error) {
	id := s.sessions.GetOrCreate(sessionID)
	history := s.sessions.History(id)

	s.tools.ResetSources()
	text, err := s.generator.Answer(ctx, query, history)
	if err != nil {
		return nil, err
	}
	sources := s.tools.LastSources()

	s.sessions.Append(id, query, text)
	return &Answer{Text: text, Sources: sources, SessionID: id}, nil
}

// Analytics summarizes the catalog.
type Analytics struct {
	TotalCourses int      `json:"total_courses"`
	CourseTitles []string `json:"course_titles"`
}

// Analytics reports how many courses are indexed and their titles.
func (s *System) Analytics(ctx context.Context) (*Analytics, error) {
	titles, err := s.index.ExistingTitles(ctx)
	if err != nil {
		return nil, err
	}
	return &Analytics{TotalCourses: len(titles), CourseTitles: titles}, nil
}

// ClearIndex drops both collections.
func (s *System) ClearIndex(ctx context.Context) error {
	return s.index.Clear(ctx)
}
