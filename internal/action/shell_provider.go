package action

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"

	"github.com/wardenhq/warden/internal/capability"
	"github.com/wardenhq/warden/internal/shellexec"
)

// ShellExecInput parameters for the shell_exec action.
type ShellExecInput struct {
	Command     string `json:"command" jsonschema:"required,description=Single command to execute (no pipes or redirects)"`
	Description string `json:"description,omitempty" jsonschema:"description=Human readable intent of the command"`
}

// ShellExecOutput result of the shell_exec action.
type ShellExecOutput struct {
	Stdout    string `json:"stdout"`
	Stderr    string `json:"stderr"`
	ExitCode  int    `json:"exit_code"`
	Truncated bool   `json:"truncated"`
	TimedOut  bool   `json:"timed_out"`
}

// ShellProvider exposes whitelisted command execution.
type ShellProvider struct {
	executor *shellexec.Executor
}

// NewShellProvider builds the shell action provider.
func NewShellProvider(executor *shellexec.Executor) *ShellProvider {
	return &ShellProvider{executor: executor}
}

func (p *ShellProvider) Name() string { return "shell" }

func (p *ShellProvider) Actions(ctx context.Context) ([]tool.InvokableTool, error) {
	execTool, err := utils.InferTool("shell_exec", "Execute one whitelisted external command", p.execute)
	if err != nil {
		return nil, err
	}
	return []tool.InvokableTool{execTool}, nil
}

// Capabilities classifies the command against the whitelist: matched rules
// report process.exec, default-path commands report process.exec.unlisted,
// and either source's approval flag escalates to approval.required. Commands
// the whitelist will reject still classify as unlisted; execution blocks
// them regardless of the policy verdict.
func (p *ShellProvider) Capabilities(action string, args map[string]any) []string {
	if action != "shell_exec" {
		return nil
	}
	command, _ := args["command"].(string)
	if strings.TrimSpace(command) == "" {
		return []string{capability.ProcessExecUnlisted}
	}

	match, _, err := p.executor.Match(command)
	if err != nil {
		return []string{capability.ProcessExecUnlisted}
	}

	label := capability.ProcessExec
	if match.ViaDefault {
		label = capability.ProcessExecUnlisted
	}
	labels := []string{label}
	if match.RequireApproval {
		labels = append(labels, capability.ApprovalRequired)
	}
	return labels
}

func (p *ShellProvider) execute(ctx context.Context, input *ShellExecInput) (*ShellExecOutput, error) {
	result, err := p.executor.Run(ctx, input.Command)
	if err != nil {
		return nil, err
	}
	return &ShellExecOutput{
		Stdout:    result.Stdout,
		Stderr:    result.Stderr,
		ExitCode:  result.ExitCode,
		Truncated: result.Truncated,
		TimedOut:  result.TimedOut,
	}, nil
}
