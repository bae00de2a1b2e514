package orchestrator

import (
	"sync"

	"github.com/wardenhq/warden/internal/runerr"
)

// BranchState is the lifecycle state of one branch.
type BranchState string

const (
	BranchCreated       BranchState = "created"
	BranchRunning       BranchState = "running"
	BranchCompleted     BranchState = "completed"
	BranchFailed        BranchState = "failed"
	BranchDepthExceeded BranchState = "depth_exceeded"
)

// legalTransition enforces the branch machine: Created -> Running ->
// {Completed, Failed, DepthExceeded}. Terminal states accept nothing.
func legalTransition(from, to BranchState) bool {
	switch from {
	case BranchCreated:
		return to == BranchRunning
	case BranchRunning:
		return to == BranchCompleted || to == BranchFailed || to == BranchDepthExceeded
	default:
		return false
	}
}

// Branch tracks the state of one branch in the call tree.
type Branch struct {
	ID    string
	Depth int

	mu    sync.Mutex
	state BranchState
}

func newBranch(id string, depth int) *Branch {
	return &Branch{ID: id, Depth: depth, state: BranchCreated}
}

// State returns the current state.
func (b *Branch) State() BranchState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Transition moves the branch to a new state, rejecting illegal moves.
func (b *Branch) Transition(to BranchState) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !legalTransition(b.state, to) {
		return runerr.Configuration("orchestrator.branch",
			"illegal branch transition %s -> %s for %s", b.state, to, b.ID)
	}
	b.state = to
	return nil
}
