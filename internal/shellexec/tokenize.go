package shellexec

import (
	"strings"

	"github.com/wardenhq/warden/internal/runerr"
)

// blockedMetacharacters would route the command through shell machinery that
// bypasses argument-level analysis. They are rejected on the raw string,
// before tokenization, regardless of any matching rule.
var blockedMetacharacters = []string{
	"|", ">", "<", ";", "&", "`", "$(", "${", "\n",
}

// screenMetacharacters rejects raw commands containing shell metacharacters.
func screenMetacharacters(raw string) error {
	for _, meta := range blockedMetacharacters {
		if strings.Contains(raw, meta) {
			return runerr.WhitelistViolation("exec",
				"command contains blocked shell metacharacter %q", meta).
				WithRemediation("run a single command without pipes, redirects, or substitution")
		}
	}
	return nil
}

// tokenize splits a command into words the way a shell would, honoring
// single quotes, double quotes, and backslash escapes, without performing
// any interpretation or expansion.
func tokenize(raw string) ([]string, error) {
	var tokens []string
	var current strings.Builder
	inToken := false
	var quote rune

	runes := []rune(raw)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch {
		case quote == '\'':
			if c == '\'' {
				quote = 0
			} else {
				current.WriteRune(c)
			}
		case quote == '"':
			if c == '"' {
				quote = 0
			} else if c == '\\' && i+1 < len(runes) && (runes[i+1] == '"' || runes[i+1] == '\\') {
				i++
				current.WriteRune(runes[i])
			} else {
				current.WriteRune(c)
			}
		case c == '\'' || c == '"':
			quote = c
			inToken = true
		case c == '\\':
			if i+1 >= len(runes) {
				return nil, runerr.WhitelistViolation("exec", "trailing backslash in command")
			}
			i++
			current.WriteRune(runes[i])
			inToken = true
		case c == ' ' || c == '\t':
			if inToken {
				tokens = append(tokens, current.String())
				current.Reset()
				inToken = false
			}
		default:
			current.WriteRune(c)
			inToken = true
		}
	}
	if quote != 0 {
		return nil, runerr.WhitelistViolation("exec", "unterminated quote in command")
	}
	if inToken {
		tokens = append(tokens, current.String())
	}
	if len(tokens) == 0 {
		return nil, runerr.WhitelistViolation("exec", "empty command")
	}
	return tokens, nil
}
