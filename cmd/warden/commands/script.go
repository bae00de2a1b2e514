package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/wardenhq/warden/internal/orchestrator"
)

// scriptStep is one action invocation in a run script.
type scriptStep struct {
	Action string         `json:"action"`
	Args   map[string]any `json:"args"`
}

// scriptExecutor runs a branch's prompt as a JSON array of action calls, in
// order, through the branch's gated action set. It is the CLI's deterministic
// stand-in for a model-driven executor: every step passes the same gate chain
// a model call would.
type scriptExecutor struct {
	continueOnError bool
}

func (e *scriptExecutor) Execute(ctx context.Context, frame *orchestrator.CallFrame) (string, []*schema.Message, error) {
	var steps []scriptStep
	if err := json.Unmarshal([]byte(frame.Prompt), &steps); err != nil {
		return "", nil, fmt.Errorf("parse run script: %w", err)
	}
	if len(steps) == 0 {
		return "", nil, fmt.Errorf("run script is empty")
	}

	actions := make(map[string]tool.InvokableTool, len(frame.Actions))
	for _, act := range frame.Actions {
		info, err := act.Info(ctx)
		if err != nil {
			return "", nil, err
		}
		actions[info.Name] = act
	}

	var history []*schema.Message
	var outputs []string

	for i, step := range steps {
		name := strings.TrimSpace(step.Action)
		act, ok := actions[name]
		if !ok {
			return "", history, fmt.Errorf("step %d: unknown action %q", i+1, name)
		}

		argsJSON := "{}"
		if step.Args != nil {
			encoded, err := json.Marshal(step.Args)
			if err != nil {
				return "", history, fmt.Errorf("step %d: encode args: %w", i+1, err)
			}
			argsJSON = string(encoded)
		}

		out, err := act.InvokableRun(ctx, argsJSON)
		history = append(history,
			&schema.Message{Role: schema.User, Content: name + " " + argsJSON},
			&schema.Message{Role: schema.Tool, Content: out},
		)
		if err != nil {
			if e.continueOnError {
				outputs = append(outputs, fmt.Sprintf("[%s] error: %v", name, err))
				continue
			}
			return "", history, fmt.Errorf("step %d (%s): %w", i+1, name, err)
		}
		outputs = append(outputs, fmt.Sprintf("[%s] %s", name, out))
	}

	return strings.Join(outputs, "\n"), history, nil
}
