package approval

import "context"

// Mode controls gateway behavior when an action needs approval.
type Mode string

const (
	ModeApproveAll  Mode = "approve_all"
	ModeRejectAll   Mode = "reject_all"
	ModeInteractive Mode = "interactive"
)

// Remember says how long a decision stays valid.
type Remember string

const (
	RememberNone    Remember = "none"
	RememberSession Remember = "session"
)

// Decision is the outcome of one approval request.
type Decision struct {
	Approved bool
	Remember Remember
	Note     string
}

// Request identifies the action being gated.
type Request struct {
	Action   string
	Args     map[string]any
	BranchID string
}

// DecideFunc is the pluggable external decision function. It may suspend; it
// must honor ctx cancellation.
type DecideFunc func(ctx context.Context, req Request, description string) (Decision, error)
