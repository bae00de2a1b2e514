package orchestrator

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/wardenhq/warden/internal/action"
	"github.com/wardenhq/warden/internal/audit"
	"github.com/wardenhq/warden/internal/run"
	"github.com/wardenhq/warden/internal/runerr"
	"github.com/wardenhq/warden/internal/telemetry"
)

// TaskExecutor runs one branch to completion: it drives the model/tool round
// trip over the frame's prompt, history, and gated action set. It may suspend
// for unbounded time; it must honor ctx cancellation.
type TaskExecutor interface {
	Execute(ctx context.Context, frame *CallFrame) (string, []*schema.Message, error)
}

// CallConfig is created once per run and shared read-only across the whole
// call tree. The sinks aggregate across branches by reference.
type CallConfig struct {
	MaxDepth int
	Events   telemetry.EventFunc
	Usage    *telemetry.UsageSink
	Messages *telemetry.MessageLog

	// ReturnPermissionErrors makes gated actions surface denials as values
	// rather than errors; see the action registry.
	ReturnPermissionErrors bool
}

// Orchestrator runs a tree of branches for one run. Delegation forks child
// frames with freshly built action sets; depth is bounded by CallConfig.
type Orchestrator struct {
	runID     string
	cfg       CallConfig
	executor  TaskExecutor
	registry  *action.Registry
	providers []action.Provider
	tasks     map[string]TaskDef
	audit     *audit.Writer
	log       *slog.Logger

	mu          sync.Mutex
	rootHistory []*schema.Message
}

// Options configures an orchestrator beyond its required pieces.
type Options struct {
	Tasks  []TaskDef
	Audit  *audit.Writer
	Logger *slog.Logger
}

const defaultMaxDepth = 5

// New builds an orchestrator for one run. providers are the base action
// providers every branch gets; the delegate provider is added per branch so
// child action sets are re-wrapped rather than inherited.
func New(cfg CallConfig, executor TaskExecutor, registry *action.Registry, providers []action.Provider, opts Options) (*Orchestrator, error) {
	if executor == nil {
		return nil, runerr.Configuration("orchestrator", "task executor is required")
	}
	if registry == nil {
		return nil, runerr.Configuration("orchestrator", "action registry is required")
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = defaultMaxDepth
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	tasks := make(map[string]TaskDef, len(opts.Tasks))
	for _, task := range opts.Tasks {
		name := strings.ToLower(strings.TrimSpace(task.Name))
		if name == "" {
			return nil, runerr.Configuration("orchestrator", "task definition with empty name")
		}
		if _, dup := tasks[name]; dup {
			return nil, runerr.Configuration("orchestrator", "duplicate task definition %q", name)
		}
		tasks[name] = task
	}

	return &Orchestrator{
		runID:     run.NewRunID(),
		cfg:       cfg,
		executor:  executor,
		registry:  registry,
		providers: providers,
		tasks:     tasks,
		audit:     opts.Audit,
		log:       log,
	}, nil
}

// RunID returns this run's identifier.
func (o *Orchestrator) RunID() string { return o.runID }

// Run executes one top-level prompt at depth 0. Sequential Runs on the same
// orchestrator share the depth-0 history; child branches never do.
func (o *Orchestrator) Run(ctx context.Context, prompt string) (string, error) {
	o.mu.Lock()
	history := make([]*schema.Message, len(o.rootHistory))
	copy(history, o.rootHistory)
	o.mu.Unlock()

	frame := &CallFrame{
		RunID:    o.runID,
		BranchID: run.NewBranchID(),
		Depth:    0,
		Prompt:   prompt,
		History:  history,
	}
	result, err := o.Call(ctx, frame)
	if err != nil {
		return "", err
	}

	o.mu.Lock()
	o.rootHistory = append(o.rootHistory,
		&schema.Message{Role: schema.User, Content: prompt},
		&schema.Message{Role: schema.Assistant, Content: result},
	)
	o.mu.Unlock()
	return result, nil
}

// Call runs one branch through its state machine. The frame's action set is
// built here when absent, so forked frames always get a freshly gated set.
func (o *Orchestrator) Call(ctx context.Context, frame *CallFrame) (string, error) {
	branch := newBranch(frame.BranchID, frame.Depth)
	if err := branch.Transition(BranchRunning); err != nil {
		return "", err
	}
	o.auditBranch(audit.TypeBranchStart, frame, "")
	o.log.Info("branch started",
		"run_id", frame.RunID, "branch", frame.BranchID, "depth", frame.Depth)

	if frame.Actions == nil {
		actions, err := o.buildActions(ctx, frame)
		if err != nil {
			branch.Transition(BranchFailed)
			o.auditBranch(audit.TypeBranchFinish, frame, "failed: "+err.Error())
			return "", err
		}
		frame.Actions = actions
	}

	o.recordMessage(frame, "user", frame.Prompt)
	result, history, err := o.executor.Execute(ctx, frame)
	if err != nil {
		final := BranchFailed
		if runerr.KindOf(err) == runerr.KindDepthExceeded {
			final = BranchDepthExceeded
		}
		branch.Transition(final)
		o.auditBranch(audit.TypeBranchFinish, frame, string(final)+": "+err.Error())
		o.log.Warn("branch finished with error",
			"branch", frame.BranchID, "depth", frame.Depth, "state", final, "error", err)
		return "", err
	}
	frame.History = history

	if err := branch.Transition(BranchCompleted); err != nil {
		return "", err
	}
	o.recordMessage(frame, "assistant", result)
	o.emit(telemetry.Event{
		BranchID: frame.BranchID,
		Depth:    frame.Depth,
		Kind:     telemetry.EventFinalResult,
		Detail:   result,
	})
	o.auditBranch(audit.TypeBranchFinish, frame, string(BranchCompleted))
	o.log.Info("branch completed", "branch", frame.BranchID, "depth", frame.Depth)
	return result, nil
}

// ChildRequest is one delegation in a fan-out.
type ChildRequest struct {
	Target string
	Prompt string
}

// ChildResult pairs a fan-out request with its outcome. Err is per-branch:
// one child failing never disturbs its siblings.
type ChildResult struct {
	Index  int
	Output string
	Err    error
}

// CallParallel forks one child per request, runs them concurrently, and joins
// on all of them before returning. Results come back in request order.
func (o *Orchestrator) CallParallel(ctx context.Context, parent *CallFrame, requests []ChildRequest) []ChildResult {
	results := make([]ChildResult, len(requests))
	resultChan := make(chan ChildResult, len(requests))
	var wg sync.WaitGroup

	for i, req := range requests {
		wg.Add(1)
		go func(i int, req ChildRequest) {
			defer wg.Done()
			out, err := o.delegate(ctx, parent, req.Target, req.Prompt)
			resultChan <- ChildResult{Index: i, Output: out, Err: err}
		}(i, req)
	}
	wg.Wait()
	close(resultChan)

	for res := range resultChan {
		results[res.Index] = res
	}
	return results
}

// Delegator binds the delegate action of one branch to its frame, so each
// branch's delegate action forks from the right depth.
func (o *Orchestrator) Delegator(frame *CallFrame) action.DelegateExecutor {
	return &branchDelegator{orc: o, parent: frame}
}

type branchDelegator struct {
	orc    *Orchestrator
	parent *CallFrame
}

func (d *branchDelegator) Delegate(ctx context.Context, target, prompt string) (string, error) {
	return d.orc.delegate(ctx, d.parent, target, prompt)
}

// delegate forks and runs one child branch. Depth is validated before the
// fork; exceeding it fails this delegation only.
func (o *Orchestrator) delegate(ctx context.Context, parent *CallFrame, target, prompt string) (string, error) {
	if parent.Depth+1 > o.cfg.MaxDepth {
		return "", runerr.DepthExceeded("orchestrator.delegate",
			"delegation from depth %d exceeds max depth %d", parent.Depth, o.cfg.MaxDepth).
			WithRemediation("raise orchestrator.max_depth or flatten the delegation chain")
	}
	task, err := o.task(target)
	if err != nil {
		return "", err
	}

	child := parent.Fork(task, prompt)
	return o.Call(ctx, child)
}

func (o *Orchestrator) task(target string) (*TaskDef, error) {
	name := strings.ToLower(strings.TrimSpace(target))
	task, ok := o.tasks[name]
	if !ok {
		return nil, runerr.Configuration("orchestrator.delegate", "unknown task definition %q", target).
			WithRemediation("known tasks: %s", strings.Join(o.taskNames(), ", "))
	}
	return &task, nil
}

func (o *Orchestrator) taskNames() []string {
	names := make([]string, 0, len(o.tasks))
	for name := range o.tasks {
		names = append(names, name)
	}
	return names
}

// buildActions assembles the gated action set for one branch: the base
// providers plus a delegate provider bound to this frame, all wrapped by the
// registry. Children of a fork pass through here again, so nested delegate
// targets are re-wrapped rather than inherited.
func (o *Orchestrator) buildActions(ctx context.Context, frame *CallFrame) ([]tool.InvokableTool, error) {
	targets := o.delegateTargets(frame)
	providers := make([]action.Provider, 0, len(o.providers)+1)
	providers = append(providers, o.providers...)
	providers = append(providers, action.NewDelegateProvider(o.Delegator(frame), targets))

	return o.registry.Build(ctx, providers, action.BranchInfo{
		RunID:    frame.RunID,
		BranchID: frame.BranchID,
		Depth:    frame.Depth,
	})
}

// delegateTargets returns the targets a frame may delegate to: the target
// task's declared delegates, or every known task at depth 0.
func (o *Orchestrator) delegateTargets(frame *CallFrame) []string {
	if frame.Target != nil {
		return frame.Target.Delegates
	}
	return o.taskNames()
}

func (o *Orchestrator) recordMessage(frame *CallFrame, role, content string) {
	if o.cfg.Messages == nil || content == "" {
		return
	}
	o.cfg.Messages.Append(frame.BranchID, frame.Depth, role, content)
}

func (o *Orchestrator) emit(ev telemetry.Event) {
	if o.cfg.Events != nil {
		o.cfg.Events(ev)
	}
}

func (o *Orchestrator) auditBranch(eventType string, frame *CallFrame, result string) {
	if o.audit == nil {
		return
	}
	err := o.audit.Append(audit.Event{
		Type:     eventType,
		RunID:    frame.RunID,
		BranchID: frame.BranchID,
		Result:   result,
	})
	if err != nil {
		o.log.Warn("audit append failed", "type", eventType, "error", err)
	}
}
