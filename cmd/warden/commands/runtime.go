package commands

import (
	"time"

	"github.com/wardenhq/warden/internal/action"
	"github.com/wardenhq/warden/internal/approval"
	"github.com/wardenhq/warden/internal/audit"
	"github.com/wardenhq/warden/internal/config"
	"github.com/wardenhq/warden/internal/orchestrator"
	"github.com/wardenhq/warden/internal/policy"
	"github.com/wardenhq/warden/internal/sandbox"
	"github.com/wardenhq/warden/internal/shellexec"
	"github.com/wardenhq/warden/internal/telemetry"
)

// runtime holds the wired runtime for one CLI invocation.
type runtime struct {
	cfg          *config.Config
	orchestrator *orchestrator.Orchestrator
	usage        *telemetry.UsageSink
	messages     *telemetry.MessageLog
}

// buildRuntime assembles the full gate chain from config: sandbox boundary,
// whitelist executor, policy evaluator, approval gateway, action registry,
// and the orchestrator running exec.
func buildRuntime(cfg *config.Config, exec orchestrator.TaskExecutor, decide approval.DecideFunc, returnPermissionErrors bool) (*runtime, error) {
	var boundary *sandbox.Boundary
	if len(cfg.Sandbox.Roots) > 0 {
		var err error
		boundary, err = sandbox.NewBoundary(cfg.SandboxRoots())
		if err != nil {
			return nil, err
		}
	}

	var shellOpts []shellexec.ExecOption
	if cfg.Shell.Timeout > 0 {
		shellOpts = append(shellOpts, shellexec.WithTimeout(time.Duration(cfg.Shell.Timeout)*time.Second))
	}
	var resolver shellexec.PathResolver
	if boundary != nil {
		resolver = boundary
	}
	shell := shellexec.NewExecutor(cfg.ShellRules(), cfg.ShellDefault(), resolver, shellOpts...)

	var gatewayOpts []approval.Option
	if decide != nil {
		gatewayOpts = append(gatewayOpts, approval.WithDecideFunc(decide))
	}
	if cfg.Approval.DecisionTimeout > 0 {
		gatewayOpts = append(gatewayOpts, approval.WithDecisionTimeout(time.Duration(cfg.Approval.DecisionTimeout)*time.Second))
	}
	gateway, err := approval.NewGateway(approval.Mode(cfg.Approval.Mode), gatewayOpts...)
	if err != nil {
		return nil, err
	}

	usage := telemetry.NewUsageSink()
	messages := telemetry.NewMessageLog()
	auditWriter := audit.NewWriter(cfg.StateDir)

	registry, err := action.NewRegistry(action.RegistryConfig{
		Evaluator:              policy.NewEvaluator(cfg.PolicyEngineConfig()),
		Gateway:                gateway,
		Declared:               cfg.DeclaredCapabilities(),
		Usage:                  usage,
		Audit:                  auditWriter,
		ReturnPermissionErrors: returnPermissionErrors,
	})
	if err != nil {
		return nil, err
	}

	var providers []action.Provider
	if boundary != nil {
		providers = append(providers, action.NewFilesystemProvider(boundary))
	}
	providers = append(providers, action.NewShellProvider(shell))

	orc, err := orchestrator.New(orchestrator.CallConfig{
		MaxDepth:               cfg.Orchestrator.MaxDepth,
		Usage:                  usage,
		Messages:               messages,
		ReturnPermissionErrors: returnPermissionErrors,
	}, exec, registry, providers, orchestrator.Options{
		Tasks: taskDefs(cfg),
		Audit: auditWriter,
	})
	if err != nil {
		return nil, err
	}

	return &runtime{
		cfg:          cfg,
		orchestrator: orc,
		usage:        usage,
		messages:     messages,
	}, nil
}

func taskDefs(cfg *config.Config) []orchestrator.TaskDef {
	defs := make([]orchestrator.TaskDef, 0, len(cfg.Tasks))
	for _, task := range cfg.Tasks {
		defs = append(defs, orchestrator.TaskDef{
			Name:         task.Name,
			Instructions: task.Instructions,
			Delegates:    task.Delegates,
		})
	}
	return defs
}
