// CourseRAG - Retrieval-Augmented Generation over course materials
//
// CourseRAG ingests course documents, indexes them in a vector store, and
// answers questions about them with a tool-calling chat model. Answers cite
// the course and lesson each piece of retrieved content came from, and short
// per-session history lets follow-up questions build on earlier turns.
//
// # Quick Start
//
// Install the package:
//
//	go get github.com/courserag/courserag
//
// Basic example:
//
//	package main
//
//	import (
//		"context"
//		"fmt"
//
//		"github.com/tmc/langchaingo/llms/openai"
//
//		"github.com/courserag/courserag"
//		"github.com/courserag/courserag/embedding"
//		"github.com/courserag/courserag/index"
//		"github.com/courserag/courserag/vector"
//	)
//
//	func main() {
//		ctx := context.Background()
//
//		model, _ := openai.New(openai.WithModel("gpt-4o-mini"))
//		embedder, _ := embedding.NewOpenAIEmbedder(embedding.OpenAIOptions{})
//
//		idx := index.New(vector.NewMemoryStore(), vector.NewMemoryStore(), embedder, nil)
//		system, _ := courserag.New(idx, model, nil)
//
//		system.IngestFolder(ctx, "./docs", false)
//
//		answer, _ := system.Query(ctx, "What does lesson 2 cover?", "")
//		fmt.Println(answer.Text)
//		fmt.Println(answer.Sources)
//	}
//
// # How a Query Flows
//
//   - The query lands in a session; prior exchanges are rendered into the
//     system prompt.
//   - The model gets one pass with the search and outline tools on offer.
//   - Requested tool calls run against the index; the follow-up pass sees the
//     results but no tools, so there is at most one tool round per query.
//   - Sources recorded by the tools come back alongside the answer text.
//
// # Package Structure
//
// course/
// Parses course documents (plain text, markdown, HTML) into catalog entries
// and overlapping content chunks.
//
// vector/
// The vector store contract plus the in-memory backend; vector/sqlite and
// vector/postgres persist documents in SQLite and pgvector respectively.
//
// embedding/
// OpenAI embeddings and an optional Redis cache layered in front of them.
//
// index/
// The two-collection course index: catalog (titles, lessons, links) and
// content (embedded chunks), with fuzzy course name resolution.
//
// tool/
// The functions exposed to the model: content search and course outlines.
//
// flow/
// A small typed state graph that drives the generation pipeline.
//
// generate/
// The single-tool-round answer pipeline over a langchaingo chat model.
//
// session/
// Bounded in-memory conversation history.
//
// server/
// The HTTP API: query, course stats and health endpoints.
//
// # Configuration
//
// cmd/courserag reads configuration from the environment (and a .env file):
//
//   - OPENAI_API_KEY: API key for chat and embedding calls
//   - OPENAI_MODEL, EMBEDDING_MODEL: model names
//   - VECTOR_BACKEND: memory, sqlite or postgres
//   - VECTOR_DB_PATH / DATABASE_URL: backend location
//   - REDIS_ADDR: optional embedding cache
//   - DOCS_DIR: course documents ingested on startup
//   - CHUNK_SIZE, CHUNK_OVERLAP, MAX_RESULTS, MAX_HISTORY: tuning knobs
package courserag // import "github.com/courserag/courserag"
