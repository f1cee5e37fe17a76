package agent

import (
	"fmt"
	"strings"
)

// step is one parsed model turn: either a final answer or a tool invocation.
type step struct {
	final  bool
	answer string
	action string
	input  string
}

// parseStep reads the reason-act format:
//
//	Thought: <free text>
//	Action: <tool name>
//	Action Input: <tool input>
//
// or
//
//	Final Answer: <answer text, may span lines>
//
// Anything else is a parse error.
func parseStep(content string) (step, error) {
	if idx := indexLine(content, "Final Answer:"); idx >= 0 {
		answer := strings.TrimSpace(content[idx+len("Final Answer:"):])
		if answer == "" {
			return step{}, fmt.Errorf("empty final answer")
		}
		return step{final: true, answer: answer}, nil
	}

	var action, input string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "Action Input:"):
			input = strings.TrimSpace(strings.TrimPrefix(line, "Action Input:"))
		case strings.HasPrefix(line, "Action:"):
			action = strings.TrimSpace(strings.TrimPrefix(line, "Action:"))
		}
	}
	if action == "" {
		return step{}, fmt.Errorf("no action or final answer in model output")
	}
	return step{action: action, input: input}, nil
}

// indexLine finds marker at the start of any line.
func indexLine(content, marker string) int {
	if strings.HasPrefix(content, marker) {
		return 0
	}
	idx := strings.Index(content, "\n"+marker)
	if idx < 0 {
		return -1
	}
	return idx + 1
}
