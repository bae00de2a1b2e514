package policy

import "strings"

// Evaluator performs pure policy decisions. Precedence is a hard contract:
// per-action block, per-action pre-approval, capability block, capability
// approval-required, capability pre-approval, per-action default, and finally
// needs-approval. Blocking always dominates approval-required, which always
// dominates pre-approval.
type Evaluator struct {
	actions     map[string]ActionPolicy
	rules       map[string]Rule
	defaultRule Rule
}

// NewEvaluator builds a deterministic, side-effect free evaluator.
func NewEvaluator(cfg Config) Evaluator {
	actions := make(map[string]ActionPolicy, len(cfg.Actions))
	for name, entry := range cfg.Actions {
		normalized := normalizeActionName(name)
		if normalized == "" {
			continue
		}
		actions[normalized] = entry
	}

	rules := make(map[string]Rule, len(cfg.Rules))
	for label, rule := range cfg.Rules {
		normalized := normalizeActionName(label)
		if normalized == "" {
			continue
		}
		rules[normalized] = rule
	}

	defaultRule := cfg.DefaultRule
	if defaultRule == "" {
		defaultRule = RuleNeedsApproval
	}

	return Evaluator{
		actions:     actions,
		rules:       rules,
		defaultRule: defaultRule,
	}
}

// Evaluate returns a deterministic decision for the given request.
func (e Evaluator) Evaluate(req Request) Decision {
	name := normalizeActionName(req.Action)
	entry, hasEntry := e.actions[name]

	if hasEntry && entry.Blocked {
		reason := strings.TrimSpace(entry.BlockReason)
		if reason == "" {
			reason = "action blocked by policy"
		}
		return Decision{Verdict: VerdictBlocked, Reason: reason}
	}
	if hasEntry && entry.PreApproved {
		return Decision{Verdict: VerdictPreApproved}
	}

	if len(req.Capabilities) > 0 {
		if decision, matched := e.evaluateCapabilities(req); matched {
			return decision
		}
	}

	if hasEntry && entry.Default != "" {
		return Decision{Verdict: entry.Default}
	}

	// Unknown actions never proceed silently.
	return Decision{Verdict: VerdictNeedsApproval}
}

// evaluateCapabilities applies the rule table to a non-empty capability set.
// The most restrictive treatment across all labels wins.
func (e Evaluator) evaluateCapabilities(req Request) (Decision, bool) {
	var needsApproval, preApproved bool
	for _, label := range req.Capabilities.Labels() {
		rule, ok := e.rules[label]
		if !ok {
			rule = e.defaultRule
		}
		switch rule {
		case RuleBlocked:
			return Decision{
				Verdict: VerdictBlocked,
				Reason:  "capability " + label + " is blocked by policy",
			}, true
		case RuleNeedsApproval:
			needsApproval = true
		case RulePreApproved:
			preApproved = true
		}
	}
	if needsApproval {
		return Decision{Verdict: VerdictNeedsApproval}, true
	}
	if preApproved {
		return Decision{Verdict: VerdictPreApproved}, true
	}
	return Decision{}, false
}

func normalizeActionName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
