package capability

// Request is one action invocation to classify.
type Request struct {
	Action   string
	Args     map[string]any
	BranchID string
}

// SelfReportFunc lets an action provider report capabilities for its own
// actions, typically from knowledge the static config does not have.
type SelfReportFunc func(action string, args map[string]any) []string

// Resolver derives the capability set of an action request by merging a
// static name-to-labels map, per-action declarations from policy config, and
// an optional provider self-report hook. Pure and non-mutating: absent
// declarations yield an empty set.
type Resolver struct {
	static     map[string][]string
	declared   map[string][]string
	selfReport SelfReportFunc
}

// NewResolver builds a resolver. Any argument may be nil.
func NewResolver(static, declared map[string][]string, selfReport SelfReportFunc) *Resolver {
	return &Resolver{
		static:     static,
		declared:   declared,
		selfReport: selfReport,
	}
}

// Resolve returns the merged capability set for req.
func (r *Resolver) Resolve(req Request) Set {
	merged := NewSet()
	if r == nil {
		return merged
	}

	name := normalize(req.Action)
	for _, label := range r.static[name] {
		merged.Add(label)
	}
	for _, label := range r.declared[name] {
		merged.Add(label)
	}
	if r.selfReport != nil {
		for _, label := range r.selfReport(name, req.Args) {
			merged.Add(label)
		}
	}
	return merged
}
