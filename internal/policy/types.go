package policy

import "github.com/wardenhq/warden/internal/capability"

// Verdict is the policy decision for an action request.
type Verdict string

const (
	VerdictBlocked       Verdict = "blocked"
	VerdictPreApproved   Verdict = "pre_approved"
	VerdictNeedsApproval Verdict = "needs_approval"
)

// Rule is the treatment a capability label receives from the rule table.
type Rule string

const (
	RuleBlocked       Rule = "blocked"
	RuleNeedsApproval Rule = "needs_approval"
	RulePreApproved   Rule = "pre_approved"
)

// Decision is the deterministic policy result. Exactly one verdict per
// evaluation; Reason is populated for blocked outcomes.
type Decision struct {
	Verdict Verdict
	Reason  string
}

// ActionPolicy is the per-action configuration entry. Explicit Blocked and
// PreApproved always win over capability-derived rules.
type ActionPolicy struct {
	Blocked      bool
	BlockReason  string
	PreApproved  bool
	Capabilities []string
	// Default, when set, applies after capability rules fall through.
	Default Verdict
}

// Config contains everything the evaluator needs.
type Config struct {
	// Actions maps action name to its explicit policy entry.
	Actions map[string]ActionPolicy
	// Rules maps capability label to its treatment.
	Rules map[string]Rule
	// DefaultRule applies to capability labels missing from Rules.
	DefaultRule Rule
}

// Request is the evaluation input: one action request plus its resolved
// capability set.
type Request struct {
	Action       string
	Args         map[string]any
	BranchID     string
	Capabilities capability.Set
}
