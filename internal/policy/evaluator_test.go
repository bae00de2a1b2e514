package policy

import (
	"strings"
	"testing"

	"github.com/wardenhq/warden/internal/capability"
)

func TestEvaluate_PerActionBlockedWinsOverEverything(t *testing.T) {
	e := NewEvaluator(Config{
		Actions: map[string]ActionPolicy{
			"danger_tool": {Blocked: true, BlockReason: "forbidden in this run", PreApproved: true},
		},
		Rules: map[string]Rule{
			"filesystem.write": RulePreApproved,
		},
	})

	d := e.Evaluate(Request{
		Action:       "danger_tool",
		Capabilities: capability.NewSet("filesystem.write"),
	})
	if d.Verdict != VerdictBlocked {
		t.Fatalf("expected blocked, got %s", d.Verdict)
	}
	if d.Reason != "forbidden in this run" {
		t.Fatalf("expected configured reason, got %q", d.Reason)
	}
}

func TestEvaluate_PerActionPreApprovedSkipsCapabilityRules(t *testing.T) {
	e := NewEvaluator(Config{
		Actions: map[string]ActionPolicy{
			"safe_tool": {PreApproved: true},
		},
		Rules: map[string]Rule{
			"filesystem.write": RuleNeedsApproval,
		},
	})

	d := e.Evaluate(Request{
		Action:       "Safe_Tool",
		Capabilities: capability.NewSet("filesystem.write"),
	})
	if d.Verdict != VerdictPreApproved {
		t.Fatalf("expected pre_approved, got %s", d.Verdict)
	}
}

func TestEvaluate_CapabilityBlockDominatesPreApproval(t *testing.T) {
	e := NewEvaluator(Config{
		Rules: map[string]Rule{
			"process.exec":     RuleBlocked,
			"filesystem.write": RulePreApproved,
		},
	})

	d := e.Evaluate(Request{
		Action:       "mixed_tool",
		Capabilities: capability.NewSet("process.exec", "filesystem.write"),
	})
	if d.Verdict != VerdictBlocked {
		t.Fatalf("expected blocked, got %s", d.Verdict)
	}
	if !strings.Contains(d.Reason, "process.exec") {
		t.Fatalf("expected blocking capability named in reason, got %q", d.Reason)
	}
}

func TestEvaluate_NeedsApprovalDominatesPreApproval(t *testing.T) {
	e := NewEvaluator(Config{
		Rules: map[string]Rule{
			"filesystem.write": RuleNeedsApproval,
			"filesystem.read":  RulePreApproved,
		},
	})

	d := e.Evaluate(Request{
		Action:       "write_tool",
		Capabilities: capability.NewSet("filesystem.write", "filesystem.read"),
	})
	if d.Verdict != VerdictNeedsApproval {
		t.Fatalf("expected needs_approval, got %s", d.Verdict)
	}
}

func TestEvaluate_AllCapabilitiesPreApproved(t *testing.T) {
	e := NewEvaluator(Config{
		Rules: map[string]Rule{
			"filesystem.read": RulePreApproved,
		},
	})

	d := e.Evaluate(Request{
		Action:       "read_tool",
		Capabilities: capability.NewSet("filesystem.read"),
	})
	if d.Verdict != VerdictPreApproved {
		t.Fatalf("expected pre_approved, got %s", d.Verdict)
	}
}

func TestEvaluate_UnlistedCapabilityUsesDefaultRule(t *testing.T) {
	e := NewEvaluator(Config{
		Rules:       map[string]Rule{"filesystem.read": RulePreApproved},
		DefaultRule: RuleBlocked,
	})

	d := e.Evaluate(Request{
		Action:       "weird_tool",
		Capabilities: capability.NewSet("network.raw"),
	})
	if d.Verdict != VerdictBlocked {
		t.Fatalf("expected blocked via default rule, got %s", d.Verdict)
	}
}

func TestEvaluate_PerActionDefaultAfterEmptyCapabilitySet(t *testing.T) {
	e := NewEvaluator(Config{
		Actions: map[string]ActionPolicy{
			"list_tool": {Default: VerdictPreApproved},
		},
	})

	d := e.Evaluate(Request{Action: "list_tool"})
	if d.Verdict != VerdictPreApproved {
		t.Fatalf("expected per-action default, got %s", d.Verdict)
	}
}

func TestEvaluate_UnknownActionNeedsApproval(t *testing.T) {
	e := NewEvaluator(Config{})
	d := e.Evaluate(Request{Action: "never_seen"})
	if d.Verdict != VerdictNeedsApproval {
		t.Fatalf("expected secure default needs_approval, got %s", d.Verdict)
	}
}

func TestEvaluate_EmptyPolicyEntryWithRuledCapability(t *testing.T) {
	// Scenario from the runtime contract: an action with an empty policy
	// entry whose resolver reports filesystem.write ruled needs_approval.
	e := NewEvaluator(Config{
		Actions: map[string]ActionPolicy{"writetool": {}},
		Rules:   map[string]Rule{"filesystem.write": RuleNeedsApproval},
	})

	d := e.Evaluate(Request{
		Action:       "writeTool",
		Capabilities: capability.NewSet("filesystem.write"),
	})
	if d.Verdict != VerdictNeedsApproval {
		t.Fatalf("expected needs_approval, got %s", d.Verdict)
	}
}

func TestEvaluate_BlockedRegardlessOfCapabilitySet(t *testing.T) {
	e := NewEvaluator(Config{
		Actions: map[string]ActionPolicy{
			"locked": {Blocked: true},
		},
	})

	for _, set := range []capability.Set{
		nil,
		capability.NewSet(),
		capability.NewSet("filesystem.read"),
		capability.NewSet("filesystem.read", "process.exec"),
	} {
		d := e.Evaluate(Request{Action: "locked", Capabilities: set})
		if d.Verdict != VerdictBlocked {
			t.Fatalf("expected blocked for set %v, got %s", set.Labels(), d.Verdict)
		}
		if d.Reason == "" {
			t.Fatal("expected a non-empty block reason")
		}
	}
}
