package shellexec

import (
	"strings"
)

// Rule whitelists commands matching a prefix pattern. Rules are ordered and
// matched first-match-wins.
type Rule struct {
	// Pattern is a command prefix, e.g. "git status" or "ls". The command's
	// leading tokens must equal the pattern's tokens.
	Pattern string
	// RequiredRoots, when non-empty, demands that every non-flag argument
	// beyond the prefix resolves inside one of these sandbox roots.
	RequiredRoots []string
	// RequireApproval marks matched commands as needing approval.
	RequireApproval bool
}

// Default is the fallback when no rule matches. Absence of both a matching
// rule and a default means the command is blocked.
type Default struct {
	Allowed         bool
	RequireApproval bool
}

// Match is the resolved treatment of one command.
type Match struct {
	// Rule is the matched rule, nil when the default applied.
	Rule *Rule
	// ViaDefault reports that no rule matched and the default was used.
	ViaDefault bool
	// RequireApproval aggregates the matched source's approval flag.
	RequireApproval bool
}

// PathResolver checks sandbox membership of path arguments. Implemented by
// the sandbox boundary.
type PathResolver interface {
	Resolve(spec string) (string, error)
}

func (r Rule) matches(tokens []string, resolveRoot func(arg string) (string, bool)) bool {
	pattern := strings.Fields(strings.TrimSpace(r.Pattern))
	if len(pattern) == 0 || len(tokens) < len(pattern) {
		return false
	}
	for i, want := range pattern {
		if tokens[i] != want {
			return false
		}
	}
	if len(r.RequiredRoots) == 0 {
		return true
	}

	for _, arg := range tokens[len(pattern):] {
		if strings.HasPrefix(arg, "-") {
			continue
		}
		rootName, ok := resolveRoot(arg)
		if !ok {
			return false
		}
		allowed := false
		for _, required := range r.RequiredRoots {
			if strings.EqualFold(strings.TrimSpace(required), rootName) {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}
	return true
}

// describeRules renders remediation context listing allowed command patterns.
func describeRules(rules []Rule, def *Default) string {
	if len(rules) == 0 && def == nil {
		return "no commands are whitelisted"
	}
	patterns := make([]string, 0, len(rules))
	for _, rule := range rules {
		patterns = append(patterns, strings.TrimSpace(rule.Pattern))
	}
	desc := "allowed command patterns: " + strings.Join(patterns, ", ")
	if def != nil && def.Allowed {
		desc += " (unlisted commands allowed by default)"
	}
	return desc
}
