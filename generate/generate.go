// Package generate produces answers from a chat model with at most one round
// of tool execution: the model may request tools once, the results go back,
// and the follow-up call must answer with no tools on offer.
package generate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"

	"github.com/courserag/courserag/flow"
	"github.com/courserag/courserag/log"
)

// Defaults for model calls. Answers should be deterministic and short.
const (
	DefaultTemperature = 0.0
	DefaultMaxTokens   = 800
)

// systemPrompt steers the model toward tool-backed, direct answers.
const systemPrompt = `You are an AI assistant specialized in course materials and educational content with access to tools for course information.

Tool Usage:
- Use the content search tool only for questions about specific course content or detailed educational materials
- Use the outline tool for questions about course structure, lesson lists or course links
- One tool call per query maximum
- Synthesize tool results into accurate, fact-based responses
- If a tool yields no results, state this clearly without offering alternatives

Response Protocol:
- General knowledge questions: answer using existing knowledge without tools
- Course-specific questions: use a tool first, then answer
- No meta-commentary: provide direct answers only, without reasoning process or question-type analysis

All responses must be brief, concise and focused. Provide only the direct answer to what was asked.`

// ToolRunner supplies tool schemas and executes the calls the model makes.
type ToolRunner interface {
	Definitions() []llms.Tool
	Execute(ctx context.Context, name string, args map[string]any) (string, error)
}

// Options configure a Generator.
type Options struct {
	// Temperature for model calls; answers default to deterministic.
	Temperature float64
	// MaxTokens caps each model response; zero means DefaultMaxTokens.
	MaxTokens int
	Logger    log.Logger
}

// answerState threads the conversation through the generation graph.
type answerState struct {
	messages []llms.MessageContent
	answer   string
}

// Generator runs the single-pass answer pipeline.
type Generator struct {
	model       llms.Model
	tools       ToolRunner
	runnable    *flow.Runnable[answerState]
	temperature float64
	maxTokens   int
	logger      log.Logger
}

// New builds a generator over a model and a tool runner.
func New(model llms.Model, tools ToolRunner, opts *Options) (*Generator, error) {
	g := &Generator{
		model:       model,
		tools:       tools,
		temperature: DefaultTemperature,
		maxTokens:   DefaultMaxTokens,
		logger:      log.GetDefaultLogger(),
	}
	if opts != nil {
		g.temperature = opts.Temperature
		if opts.MaxTokens > 0 {
			g.maxTokens = opts.MaxTokens
		}
		if opts.Logger != nil {
			g.logger = opts.Logger
		}
	}

	runnable, err := g.buildGraph()
	if err != nil {
		return nil, err
	}
	g.runnable = runnable
	return g, nil
}

// buildGraph wires generate -> run_tools -> respond, with generate branching
// straight to End when the model asked for no tools.
func (g *Generator) buildGraph() (*flow.Runnable[answerState], error) {
	gr := flow.New[answerState]()
	gr.AddNode("generate", "first model pass with tools offered", g.generateNode)
	gr.AddNode("run_tools", "execute the requested tool calls", g.runToolsNode)
	gr.AddNode("respond", "final model pass over tool results", g.respondNode)

	gr.SetEntryPoint("generate")
	gr.AddConditionalEdge("generate", func(_ context.Context, s answerState) string {
		if hasToolCalls(s.messages) {
			return "run_tools"
		}
		return flow.End
	})
	gr.AddEdge("run_tools", "respond")
	gr.AddEdge("respond", flow.End)

	return gr.Compile()
}

// Answer answers query. history, when non-empty, is folded into the system
// prompt so the model sees prior turns without them becoming chat messages.
func (g *Generator) Answer(ctx context.Context, query, history string) (string, error) {
	system := systemPrompt
	if history != "" {
		system = fmt.Sprintf("%s\n\nPrevious conversation:\n%s", systemPrompt, history)
	}

	initial := answerState{messages: []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, fmt.Sprintf("Answer this question about course materials: %s", query)),
	}}

	final, err := g.runnable.Invoke(ctx, initial)
	if err != nil {
		return "", err
	}
	return final.answer, nil
}

func (g *Generator) generateNode(ctx context.Context, s answerState) (answerState, error) {
	opts := []llms.CallOption{
		llms.WithTemperature(g.temperature),
		llms.WithMaxTokens(g.maxTokens),
	}
	if defs := g.tools.Definitions(); len(defs) > 0 {
		opts = append(opts, llms.WithTools(defs))
	}

	choice, err := g.callModel(ctx, s.messages, opts)
	if err != nil {
		return s, err
	}

	aiMsg := llms.MessageContent{Role: llms.ChatMessageTypeAI}
	if choice.Content != "" {
		aiMsg.Parts = append(aiMsg.Parts, llms.TextPart(choice.Content))
	}
	for _, tc := range choice.ToolCalls {
		aiMsg.Parts = append(aiMsg.Parts, tc)
	}

	s.messages = append(s.messages, aiMsg)
	s.answer = choice.Content
	return s, nil
}

// runToolsNode executes every tool call from the last AI message. A failed
// call still produces a tool result, so the follow-up pass can tell the user
// what went wrong instead of the whole answer failing.
func (g *Generator) runToolsNode(ctx context.Context, s answerState) (answerState, error) {
	last := s.messages[len(s.messages)-1]

	for _, part := range last.Parts {
		tc, ok := part.(llms.ToolCall)
		if !ok || tc.FunctionCall == nil {
			continue
		}

		var args map[string]any
		if tc.FunctionCall.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.FunctionCall.Arguments), &args); err != nil {
				g.logger.Warn("bad arguments for tool %s: %v", tc.FunctionCall.Name, err)
			}
		}

		result, err := g.tools.Execute(ctx, tc.FunctionCall.Name, args)
		if err != nil {
			g.logger.Warn("tool %s failed: %v", tc.FunctionCall.Name, err)
			result = fmt.Sprintf("Error: %v", err)
		}

		s.messages = append(s.messages, llms.MessageContent{
			Role: llms.ChatMessageTypeTool,
			Parts: []llms.ContentPart{
				llms.ToolCallResponse{
					ToolCallID: tc.ID,
					Name:       tc.FunctionCall.Name,
					Content:    result,
				},
			},
		})
	}
	return s, nil
}

// respondNode makes the follow-up call. No tools are offered, which is what
// caps the pipeline at a single tool round.
func (g *Generator) respondNode(ctx context.Context, s answerState) (answerState, error) {
	choice, err := g.callModel(ctx, s.messages, []llms.CallOption{
		llms.WithTemperature(g.temperature),
		llms.WithMaxTokens(g.maxTokens),
	})
	if err != nil {
		return s, err
	}

	s.messages = append(s.messages, llms.TextParts(llms.ChatMessageTypeAI, choice.Content))
	s.answer = choice.Content
	return s, nil
}

func (g *Generator) callModel(ctx context.Context, messages []llms.MessageContent, opts []llms.CallOption) (*llms.ContentChoice, error) {
	resp, err := g.model.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return nil, fmt.Errorf("model call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("model returned no choices")
	}
	return resp.Choices[0], nil
}

func hasToolCalls(messages []llms.MessageContent) bool {
	if len(messages) == 0 {
		return false
	}
	for _, part := range messages[len(messages)-1].Parts {
		if _, ok := part.(llms.ToolCall); ok {
			return true
		}
	}
	return false
}
