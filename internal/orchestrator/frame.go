package orchestrator

import (
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/wardenhq/warden/internal/run"
)

// TaskDef names a delegation target: the instructions a child branch starts
// from and the further targets it may delegate to.
type TaskDef struct {
	Name         string
	Instructions string
	Delegates    []string
}

// CallFrame is the per-branch execution state. It is owned by exactly one
// branch: forks copy what the child needs and never alias the parent's
// history or action set.
type CallFrame struct {
	RunID    string
	BranchID string
	Depth    int
	Prompt   string
	History  []*schema.Message
	Actions  []tool.InvokableTool
	Target   *TaskDef
}

// Fork derives a child frame for a delegation. The child gets depth+1, a
// fresh branch id, an empty history, and no action set; the orchestrator
// builds and wraps the child's actions before running it.
func (f *CallFrame) Fork(target *TaskDef, prompt string) *CallFrame {
	return &CallFrame{
		RunID:    f.RunID,
		BranchID: run.NewBranchID(),
		Depth:    f.Depth + 1,
		Prompt:   prompt,
		Target:   target,
	}
}
