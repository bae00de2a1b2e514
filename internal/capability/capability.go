package capability

import (
	"sort"
	"strings"
)

// Well-known capability labels. Labels are opaque to the policy engine;
// these constants exist so boundary executors and config agree on spelling.
const (
	FilesystemRead      = "filesystem.read"
	FilesystemWrite     = "filesystem.write"
	ProcessExec         = "process.exec"
	ProcessExecUnlisted = "process.exec.unlisted"
	TaskDelegate        = "task.delegate"
	// ApprovalRequired is reported by boundary executors whose own config
	// demands approval (per-root toggles, per-rule flags). The default rule
	// table maps it to needs_approval.
	ApprovalRequired = "approval.required"
)

// Set is an unordered collection of capability labels.
type Set map[string]struct{}

// NewSet builds a set from labels, dropping empties.
func NewSet(labels ...string) Set {
	s := make(Set, len(labels))
	for _, label := range labels {
		s.Add(label)
	}
	return s
}

// Add inserts a normalized label. Empty labels are ignored.
func (s Set) Add(label string) {
	label = normalize(label)
	if label == "" {
		return
	}
	s[label] = struct{}{}
}

// Has reports whether the set contains label.
func (s Set) Has(label string) bool {
	_, ok := s[normalize(label)]
	return ok
}

// Union merges other into a new set, leaving both inputs untouched.
func (s Set) Union(other Set) Set {
	merged := make(Set, len(s)+len(other))
	for label := range s {
		merged[label] = struct{}{}
	}
	for label := range other {
		merged[label] = struct{}{}
	}
	return merged
}

// Labels returns the sorted labels for stable logging and error messages.
func (s Set) Labels() []string {
	labels := make([]string, 0, len(s))
	for label := range s {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

func normalize(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}
