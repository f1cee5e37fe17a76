package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mkleiva/wellgraph/llm"
)

// MaxIterations bounds the reason-act loop. Three rounds is enough for a
// lookup, a correction and an answer; anything longer is the model looping.
const MaxIterations = 3

const systemPromptFmt = `You answer questions about subsurface well-log data.
You can call tools. Available tools:
%s
To call a tool, reply with exactly:
Thought: <your reasoning>
Action: <tool name>
Action Input: <tool input>

When you can answer, reply with exactly:
Final Answer: <your answer>`

// Generator is the model surface the loop drives.
type Generator interface {
	Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error)
}

// ToolCall records one executed tool invocation.
type ToolCall struct {
	Name        string `json:"name"`
	Input       string `json:"input"`
	Observation string `json:"observation"`
}

// Outcome is the loop's result. An empty Answer with a non-empty Failure
// means the caller should fall through to plain retrieval.
type Outcome struct {
	Answer      string
	ToolInvoked bool
	ToolCalls   []ToolCall
	Iterations  int
	// Truncated is set when the iteration budget ran out before a final
	// answer.
	Truncated bool
	Failure   string
}

// Loop is a bounded tool-calling agent.
type Loop struct {
	gen    Generator
	reg    *Registry
	logger *slog.Logger
}

// NewLoop creates an agent loop over gen and the registered tools.
func NewLoop(gen Generator, reg *Registry, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{gen: gen, reg: reg, logger: logger}
}

// Run answers question with up to MaxIterations tool rounds. Run itself
// never returns an error; failures surface in the Outcome so the caller can
// fall through.
func (l *Loop) Run(ctx context.Context, question string) Outcome {
	messages := []llm.Message{
		{Role: "system", Content: fmt.Sprintf(systemPromptFmt, l.reg.Describe())},
		{Role: "user", Content: question},
	}

	out := Outcome{}
	for i := 0; i < MaxIterations; i++ {
		out.Iterations = i + 1

		resp, err := l.gen.Chat(ctx, llm.ChatRequest{Messages: messages})
		if err != nil {
			return l.fail(out, fmt.Sprintf("generation failed: %v", err))
		}

		st, err := parseStep(resp.Content)
		if err != nil {
			return l.fail(out, fmt.Sprintf("unparseable model output: %v", err))
		}

		if st.final {
			out.Answer = st.answer
			return out
		}

		tool, ok := l.reg.Get(st.action)
		if !ok {
			return l.fail(out, fmt.Sprintf("unknown tool %q", st.action))
		}

		obs, err := tool.Call(ctx, st.input)
		if err != nil {
			return l.fail(out, fmt.Sprintf("tool %s failed: %v", st.action, err))
		}
		out.ToolInvoked = true
		out.ToolCalls = append(out.ToolCalls, ToolCall{Name: st.action, Input: st.input, Observation: obs})

		messages = append(messages,
			llm.Message{Role: "assistant", Content: resp.Content},
			llm.Message{Role: "user", Content: "Observation: " + obs},
		)
	}

	// Budget exhausted without a final answer. Keep what the tools saw so
	// the caller can still salvage an answer, and flag the truncation.
	out.Truncated = true
	if n := len(out.ToolCalls); n > 0 {
		out.Answer = out.ToolCalls[n-1].Observation
	} else {
		out.Failure = "iteration budget exhausted without a tool call or answer"
	}
	l.logger.Warn("tool loop truncated", "iterations", out.Iterations, "tool_calls", len(out.ToolCalls))
	return out
}

func (l *Loop) fail(out Outcome, reason string) Outcome {
	out.Answer = ""
	out.ToolInvoked = false
	out.Failure = reason
	l.logger.Warn("tool loop failed", "reason", reason, "iteration", out.Iterations)
	return out
}
