package sandbox

import (
	"fmt"
	"sort"
	"strings"
)

// Root is one named, bounded filesystem subtree a branch may access.
type Root struct {
	// Name is the leading path segment actions use to address this root.
	Name string
	// Path is the absolute directory backing the root.
	Path string
	// Writable permits writes; read-only roots reject every write.
	Writable bool
	// AllowedSuffixes, when non-empty, restricts file access to these
	// extensions (e.g. ".txt", ".md"). Matching is case-insensitive.
	AllowedSuffixes []string
	// MaxBytes, when positive, caps file size for both reads and writes.
	MaxBytes int64
	// ReadApproval and WriteApproval toggle whether accesses through this
	// root require approval, surfaced to policy via capability rules.
	ReadApproval  bool
	WriteApproval bool
}

func (r Root) mode() string {
	if r.Writable {
		return "rw"
	}
	return "ro"
}

func (r Root) suffixAllowed(path string) bool {
	if len(r.AllowedSuffixes) == 0 {
		return true
	}
	lowered := strings.ToLower(path)
	for _, suffix := range r.AllowedSuffixes {
		if strings.HasSuffix(lowered, strings.ToLower(strings.TrimSpace(suffix))) {
			return true
		}
	}
	return false
}

// describeRoots renders remediation context for error messages: which roots
// exist, their modes, and suffix restrictions.
func describeRoots(roots map[string]Root) string {
	if len(roots) == 0 {
		return "no sandbox roots are configured"
	}
	names := make([]string, 0, len(roots))
	for name := range roots {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		root := roots[name]
		desc := fmt.Sprintf("%s (%s", name, root.mode())
		if len(root.AllowedSuffixes) > 0 {
			desc += ", suffixes: " + strings.Join(root.AllowedSuffixes, ",")
		}
		desc += ")"
		parts = append(parts, desc)
	}
	return "available roots: " + strings.Join(parts, ", ")
}
