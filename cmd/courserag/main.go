// Command courserag answers questions about ingested course materials through
// a retrieval-augmented chat model. It runs as an HTTP API server by default,
// or as a one-shot ingester or interactive terminal chat via flags.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/kataras/golog"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/courserag/courserag"
	"github.com/courserag/courserag/config"
	"github.com/courserag/courserag/course"
	"github.com/courserag/courserag/embedding"
	"github.com/courserag/courserag/index"
	"github.com/courserag/courserag/log"
	"github.com/courserag/courserag/server"
	"github.com/courserag/courserag/session"
	"github.com/courserag/courserag/vector"
	"github.com/courserag/courserag/vector/postgres"
	"github.com/courserag/courserag/vector/sqlite"
)

func main() {
	serverMode := flag.Bool("server", false, "Run the HTTP API server (the default mode)")
	ingestDir := flag.String("ingest", "", "Ingest every course document in a folder, then exit")
	clearFirst := flag.Bool("clear", false, "Clear the index before ingesting (with -ingest)")
	chatMode := flag.Bool("chat", false, "Start an interactive chat session")
	port := flag.String("port", "", "Server port (overrides SERVER_PORT)")
	flag.Parse()

	cfg := config.Load()
	if *port != "" {
		cfg.ServerPort = *port
	}

	logger := log.NewGologLogger(golog.New())
	logger.SetLevel(log.ParseLevel(cfg.LogLevel))
	log.SetDefaultLogger(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration: %v", err)
		os.Exit(1)
	}

	ctx := context.Background()

	sys, cleanup, err := buildSystem(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed: %v", err)
		os.Exit(1)
	}
	defer cleanup()

	switch {
	case *ingestDir != "":
		report, err := sys.IngestFolder(ctx, *ingestDir, *clearFirst)
		if err != nil {
			logger.Error("ingestion failed: %v", err)
			os.Exit(1)
		}
		fmt.Printf("Added %d courses (%d chunks), skipped %d existing, %d files failed.\n",
			report.CoursesAdded, report.ChunksAdded, report.CoursesSkipped, report.FilesFailed)
		if *chatMode {
			runChat(ctx, sys)
		}

	case *chatMode:
		runChat(ctx, sys)

	default:
		if !*serverMode {
			logger.Debug("no mode flag given, defaulting to -server")
		}
		srvCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := runServer(srvCtx, cfg, sys, logger); err != nil {
			logger.Error("server failed: %v", err)
			os.Exit(1)
		}
	}
}

// buildSystem wires the configured vector backend, embedder, chat model and
// assistant together. The returned cleanup closes whatever was opened.
func buildSystem(ctx context.Context, cfg *config.Config, logger log.Logger) (*courserag.System, func(), error) {
	catalog, content, closeStores, err := openStores(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	var embedder vector.Embedder = embedding.NewOpenAIEmbedder(embedding.OpenAIOptions{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.EmbedModel,
	})

	var closeCache func()
	if cfg.RedisAddr != "" {
		cache := embedding.NewRedisCache(embedder, embedding.RedisCacheOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		embedder = cache
		closeCache = func() { _ = cache.Close() }
		logger.Info("embedding cache enabled at %s", cfg.RedisAddr)
	}

	idx := index.New(catalog, content, embedder, &index.Options{
		MaxResults: cfg.MaxResults,
		Logger:     logger,
	})

	modelOpts := []openai.Option{
		openai.WithToken(cfg.OpenAIAPIKey),
		openai.WithModel(cfg.Model),
	}
	if cfg.OpenAIBaseURL != "" {
		modelOpts = append(modelOpts, openai.WithBaseURL(cfg.OpenAIBaseURL))
	}
	model, err := openai.New(modelOpts...)
	if err != nil {
		closeStores()
		return nil, nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	sys, err := courserag.New(idx, model, &courserag.Options{
		Processor: course.NewProcessor(
			course.WithChunkSize(cfg.ChunkSize),
			course.WithChunkOverlap(cfg.ChunkOverlap),
		),
		Sessions: session.NewStore(cfg.MaxHistory),
		Logger:   logger,
	})
	if err != nil {
		closeStores()
		return nil, nil, err
	}

	cleanup := func() {
		if closeCache != nil {
			closeCache()
		}
		closeStores()
	}
	return sys, cleanup, nil
}

// openStores returns the catalog and content collections for the configured
// backend.
func openStores(ctx context.Context, cfg *config.Config) (vector.Store, vector.Store, func(), error) {
	switch cfg.VectorBackend {
	case config.BackendMemory:
		return vector.NewMemoryStore(), vector.NewMemoryStore(), func() {}, nil

	case config.BackendSqlite:
		db, err := sqlite.Open(sqlite.Options{Path: cfg.VectorDBPath})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		closer := func() { _ = db.Close() }
		return db.Collection(index.CatalogCollection), db.Collection(index.ContentCollection), closer, nil

	case config.BackendPostgres:
		db, err := postgres.New(ctx, postgres.Options{ConnString: cfg.DatabaseURL})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		return db.Collection(index.CatalogCollection), db.Collection(index.ContentCollection), db.Close, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown vector backend %q", cfg.VectorBackend)
	}
}

// runServer ingests the configured docs folder when it exists, then serves
// the HTTP API until interrupted.
func runServer(ctx context.Context, cfg *config.Config, sys *courserag.System, logger log.Logger) error {
	if info, err := os.Stat(cfg.DocsDir); err == nil && info.IsDir() {
		report, err := sys.IngestFolder(ctx, cfg.DocsDir, false)
		if err != nil {
			logger.Warn("startup ingestion failed: %v", err)
		} else {
			logger.Info("startup ingestion: %d courses added (%d chunks), %d already indexed",
				report.CoursesAdded, report.ChunksAdded, report.CoursesSkipped)
		}
	}

	return server.New(sys, logger).ListenAndServe(ctx, ":"+cfg.ServerPort)
}

var (
	bannerStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	promptStyle = lipgloss.NewStyle().Bold(true)
	sourceStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// runChat runs the interactive terminal session. One chat process is one
// conversation: the session ID from the first answer is reused for the rest.
func runChat(ctx context.Context, sys *courserag.System) {
	banner := "Course Materials Assistant\nAsk a question, 'courses' to list the catalog, 'exit' to quit."
	if analytics, err := sys.Analytics(ctx); err == nil {
		banner += fmt.Sprintf("\nCourses indexed: %d", analytics.TotalCourses)
	}
	fmt.Println(bannerStyle.Render(banner))

	reader := bufio.NewReader(os.Stdin)
	var sessionID string

	for {
		fmt.Print(promptStyle.Render("You: "))
		line, err := reader.ReadString('\n')
		if err != nil {
			fmt.Println()
			return
		}
		input := strings.TrimSpace(line)

		switch strings.ToLower(input) {
		case "":
			continue
		case "exit", "quit":
			return
		case "courses":
			analytics, err := sys.Analytics(ctx)
			if err != nil {
				fmt.Println(errorStyle.Render("Error: " + err.Error()))
				continue
			}
			for _, title := range analytics.CourseTitles {
				fmt.Println("  " + title)
			}
			continue
		}

		answer, err := sys.Query(ctx, input, sessionID)
		if err != nil {
			fmt.Println(errorStyle.Render("Error: " + err.Error()))
			continue
		}
		sessionID = answer.SessionID

		fmt.Println(answer.Text)
		if len(answer.Sources) > 0 {
			fmt.Println(sourceStyle.Render("Sources: " + strings.Join(answer.Sources, ", ")))
		}
		fmt.Println()
	}
}
