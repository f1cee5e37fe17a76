// Package agent runs a bounded tool-calling loop: the model reasons, picks a
// tool, observes its output and either answers or iterates. The loop never
// exceeds a fixed iteration budget.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/mkleiva/wellgraph/glossary"
)

// Tool is one callable capability exposed to the model.
type Tool interface {
	Name() string
	Description() string
	Call(ctx context.Context, input string) (string, error)
}

// Registry holds the tools available to a loop.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds or replaces a tool by name.
func (r *Registry) Register(t Tool) {
	r.tools[t.Name()] = t
}

// Get looks up a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names returns registered tool names sorted ascending.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe renders the tool list for the system prompt.
func (r *Registry) Describe() string {
	out := ""
	for _, name := range r.Names() {
		out += fmt.Sprintf("- %s: %s\n", name, r.tools[name].Description())
	}
	return out
}

// Definer is the slice of the glossary service the define_term tool needs.
type Definer interface {
	Define(ctx context.Context, term string) glossary.Definition
}

// defineTermTool exposes glossary lookups to the model. The observation is
// the definition record as JSON so the model sees source and error fields.
type defineTermTool struct {
	definer Definer
}

// NewDefineTermTool wraps a glossary service as a tool.
func NewDefineTermTool(definer Definer) Tool {
	return &defineTermTool{definer: definer}
}

func (t *defineTermTool) Name() string { return "define_term" }

func (t *defineTermTool) Description() string {
	return "Look up the definition of a subsurface or well-log term. Input: the term."
}

func (t *defineTermTool) Call(ctx context.Context, input string) (string, error) {
	def := t.definer.Define(ctx, input)
	out, err := json.Marshal(def)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
