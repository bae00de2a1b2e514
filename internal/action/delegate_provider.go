package action

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"

	"github.com/wardenhq/warden/internal/capability"
)

// DelegateInput parameters for the delegate action.
type DelegateInput struct {
	Target string `json:"target" jsonschema:"required,description=Name of the task definition to delegate to"`
	Prompt string `json:"prompt" jsonschema:"required,description=Instructions for the delegated branch"`
}

// DelegateExecutor runs a delegated child branch. Implemented by the call
// orchestrator; the indirection keeps this package free of orchestration
// concerns the same way subagent tools stay free of the agent loop.
type DelegateExecutor interface {
	Delegate(ctx context.Context, target, prompt string) (string, error)
}

// DelegateProvider exposes recursive sub-task delegation as an action.
type DelegateProvider struct {
	executor DelegateExecutor
	targets  []string
}

// NewDelegateProvider builds the delegation provider. targets names the task
// definitions a branch may delegate to.
func NewDelegateProvider(executor DelegateExecutor, targets []string) *DelegateProvider {
	return &DelegateProvider{executor: executor, targets: targets}
}

func (p *DelegateProvider) Name() string { return "delegate" }

func (p *DelegateProvider) Actions(ctx context.Context) ([]tool.InvokableTool, error) {
	desc := "Delegate a sub-task to a child branch"
	if len(p.targets) > 0 {
		desc += " (targets: " + strings.Join(p.targets, ", ") + ")"
	}
	delegateTool, err := utils.InferTool("delegate", desc, p.delegate)
	if err != nil {
		return nil, err
	}
	return []tool.InvokableTool{delegateTool}, nil
}

func (p *DelegateProvider) Capabilities(action string, args map[string]any) []string {
	if action != "delegate" {
		return nil
	}
	return []string{capability.TaskDelegate}
}

func (p *DelegateProvider) delegate(ctx context.Context, input *DelegateInput) (string, error) {
	if p.executor == nil {
		return "", fmt.Errorf("delegate executor is not configured")
	}
	target := strings.TrimSpace(input.Target)
	if target == "" {
		return "", fmt.Errorf("target is required")
	}
	if len(p.targets) > 0 && !p.allows(target) {
		return "", fmt.Errorf("unknown delegation target %q (targets: %s)",
			target, strings.Join(p.targets, ", "))
	}
	return p.executor.Delegate(ctx, target, input.Prompt)
}

func (p *DelegateProvider) allows(target string) bool {
	for _, candidate := range p.targets {
		if strings.EqualFold(strings.TrimSpace(candidate), target) {
			return true
		}
	}
	return false
}
