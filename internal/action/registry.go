package action

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/wardenhq/warden/internal/approval"
	"github.com/wardenhq/warden/internal/audit"
	"github.com/wardenhq/warden/internal/capability"
	"github.com/wardenhq/warden/internal/policy"
	"github.com/wardenhq/warden/internal/runerr"
	"github.com/wardenhq/warden/internal/telemetry"
)

// BranchInfo pins a built action set to the branch it serves. Every wrapped
// action reports this branch in policy requests, audit events, and telemetry.
type BranchInfo struct {
	RunID    string
	BranchID string
	Depth    int
}

// RegistryConfig carries everything the registry needs to gate actions.
type RegistryConfig struct {
	Evaluator policy.Evaluator
	Gateway   *approval.Gateway

	// Static maps action name to capability labels known independently of
	// any provider, e.g. from built-in runtime knowledge.
	Static map[string][]string
	// Declared maps action name to labels declared in policy config.
	Declared map[string][]string

	Usage  *telemetry.UsageSink
	Events telemetry.EventFunc
	Audit  *audit.Writer
	Logger *slog.Logger

	// ReturnPermissionErrors makes denials come back as ordinary string
	// results instead of Go errors, so a caller driving a conversation can
	// surface the denial and keep going.
	ReturnPermissionErrors bool
}

// Registry builds gated action sets. Every action handed out by Build runs
// the full gate chain on each invocation: capability resolution, policy
// evaluation, and approval when the verdict asks for it. Providers never see
// an invocation the gate rejected.
type Registry struct {
	cfg RegistryConfig
	log *slog.Logger
}

// NewRegistry validates cfg and returns a registry. The gateway is required;
// everything else may be zero.
func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	if cfg.Gateway == nil {
		return nil, runerr.Configuration("action.registry", "approval gateway is required")
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Registry{cfg: cfg, log: log}, nil
}

// Build collects the actions of all providers and wraps each one with the
// gate chain for the given branch. A provider appearing more than once is
// consulted once: wrapping is keyed on provider identity, so nothing is
// double-gated.
func (r *Registry) Build(ctx context.Context, providers []Provider, info BranchInfo) ([]tool.InvokableTool, error) {
	seen := make(map[Provider]struct{}, len(providers))
	var out []tool.InvokableTool

	for _, p := range providers {
		if p == nil {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}

		actions, err := p.Actions(ctx)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", p.Name(), err)
		}
		resolver := capability.NewResolver(r.cfg.Static, r.cfg.Declared, p.Capabilities)
		for _, act := range actions {
			inf, err := act.Info(ctx)
			if err != nil {
				return nil, fmt.Errorf("provider %s: action info: %w", p.Name(), err)
			}
			out = append(out, &guardedTool{
				inner:    act,
				name:     inf.Name,
				desc:     inf.Desc,
				provider: p.Name(),
				resolver: resolver,
				registry: r,
				branch:   info,
			})
		}
	}
	return out, nil
}

// guardedTool is the gate chain wrapped around one action. The inner action
// runs only after the chain reaches a pre-approved or approved verdict.
type guardedTool struct {
	inner    tool.InvokableTool
	name     string
	desc     string
	provider string
	resolver *capability.Resolver
	registry *Registry
	branch   BranchInfo
}

func (g *guardedTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return g.inner.Info(ctx)
}

func (g *guardedTool) InvokableRun(ctx context.Context, argsJSON string, opts ...tool.Option) (string, error) {
	args := decodeArgs(argsJSON)
	r := g.registry

	r.emit(telemetry.Event{
		BranchID: g.branch.BranchID,
		Depth:    g.branch.Depth,
		Kind:     telemetry.EventActionCallStart,
		Action:   g.name,
		Detail:   summarizeArgs(args),
	})

	caps := g.resolver.Resolve(capability.Request{
		Action:   g.name,
		Args:     args,
		BranchID: g.branch.BranchID,
	})
	decision := r.cfg.Evaluator.Evaluate(policy.Request{
		Action:       g.name,
		Args:         args,
		BranchID:     g.branch.BranchID,
		Capabilities: caps,
	})

	switch decision.Verdict {
	case policy.VerdictBlocked:
		r.audit(audit.TypePolicyBlocked, g.branch, g.name, decision.Reason)
		r.log.Warn("action blocked by policy",
			"action", g.name, "branch", g.branch.BranchID, "reason", decision.Reason)
		denial := runerr.PolicyDenied("action.gate", "action %s is blocked: %s", g.name, decision.Reason).
			WithRemediation("remove the action from the blocked list or drop the blocked capability from its set")
		return g.deny(denial)

	case policy.VerdictNeedsApproval:
		approved, note, err := g.requestApproval(ctx, args)
		if err != nil {
			return "", err
		}
		if !approved {
			r.audit(audit.TypeApprovalDenied, g.branch, g.name, note)
			denial := runerr.PolicyDenied("action.gate", "approval denied for %s: %s", g.name, note).
				WithRemediation("re-run with approval mode approve_all, or pre-approve the action in policy config")
			return g.deny(denial)
		}
		r.audit(audit.TypeApprovalGranted, g.branch, g.name, note)

	case policy.VerdictPreApproved:
		r.audit(audit.TypePolicyPreApprove, g.branch, g.name, decision.Reason)

	default:
		return "", runerr.Configuration("action.gate", "unknown policy verdict %q for %s", decision.Verdict, g.name)
	}

	result, err := g.inner.InvokableRun(ctx, argsJSON, opts...)
	if r.cfg.Usage != nil {
		r.cfg.Usage.RecordAction(g.name, err != nil)
	}
	r.audit(audit.TypeActionExecution, g.branch, g.name, executionDetail(err))
	r.emit(telemetry.Event{
		BranchID: g.branch.BranchID,
		Depth:    g.branch.Depth,
		Kind:     telemetry.EventActionCallResult,
		Action:   g.name,
		Detail:   executionDetail(err),
	})
	return result, err
}

// requestApproval routes the needs_approval verdict through the gateway. The
// returned note carries the decider's reasoning either way.
func (g *guardedTool) requestApproval(ctx context.Context, args map[string]any) (bool, string, error) {
	description := g.desc
	if d, ok := args["description"].(string); ok && d != "" {
		description = d
	}
	decision, err := g.registry.cfg.Gateway.Request(ctx, approval.Request{
		Action:   g.name,
		Args:     args,
		BranchID: g.branch.BranchID,
	}, description)
	if err != nil {
		return false, "", fmt.Errorf("approval for %s: %w", g.name, err)
	}
	return decision.Approved, decision.Note, nil
}

// deny turns a denial into either a structured result or an error, per the
// registry's ReturnPermissionErrors setting. Either way the action-call-result
// event fires so the stream stays complete.
func (g *guardedTool) deny(denial *runerr.Error) (string, error) {
	r := g.registry
	if r.cfg.Usage != nil {
		r.cfg.Usage.RecordAction(g.name, true)
	}
	r.emit(telemetry.Event{
		BranchID: g.branch.BranchID,
		Depth:    g.branch.Depth,
		Kind:     telemetry.EventActionCallResult,
		Action:   g.name,
		Detail:   "denied: " + denial.Message,
	})
	if r.cfg.ReturnPermissionErrors {
		return "Permission denied: " + denial.Error(), nil
	}
	return "", denial
}

func (r *Registry) emit(ev telemetry.Event) {
	if r.cfg.Events != nil {
		r.cfg.Events(ev)
	}
}

func (r *Registry) audit(eventType string, branch BranchInfo, actionName, result string) {
	if r.cfg.Audit == nil {
		return
	}
	err := r.cfg.Audit.Append(audit.Event{
		Type:     eventType,
		RunID:    branch.RunID,
		BranchID: branch.BranchID,
		Action:   actionName,
		Result:   result,
	})
	if err != nil {
		r.log.Warn("audit append failed", "type", eventType, "error", err)
	}
}

// decodeArgs tolerates malformed argument JSON: the gate still runs, with an
// empty argument map, and the inner action reports its own decode error.
func decodeArgs(argsJSON string) map[string]any {
	var args map[string]any
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return map[string]any{}
	}
	if args == nil {
		args = map[string]any{}
	}
	return args
}

func summarizeArgs(args map[string]any) string {
	if len(args) == 0 {
		return ""
	}
	b, err := json.Marshal(args)
	if err != nil {
		return ""
	}
	const maxDetail = 256
	if len(b) > maxDetail {
		return string(b[:maxDetail]) + "..."
	}
	return string(b)
}

func executionDetail(err error) string {
	if err != nil {
		return "error: " + err.Error()
	}
	return "ok"
}
