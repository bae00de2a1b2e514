package runerr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a runtime failure for callers that route on error class.
type Kind string

const (
	KindPolicyDenied       Kind = "policy_denied"
	KindSandboxViolation   Kind = "sandbox_violation"
	KindWhitelistViolation Kind = "whitelist_violation"
	KindDepthExceeded      Kind = "depth_exceeded"
	KindConfiguration      Kind = "configuration"
)

// Error is a classified runtime failure. Remediation carries actionable
// context (writable roots, allowed command patterns) so an automated caller
// can self-correct.
type Error struct {
	Kind        Kind
	Op          string
	Message     string
	Remediation string
	Err         error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Message != "" {
		b.WriteString(e.Message)
	} else {
		b.WriteString(string(e.Kind))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if e.Remediation != "" {
		b.WriteString(" (")
		b.WriteString(e.Remediation)
		b.WriteString(")")
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same kind, so errors.Is works with the
// exported sentinels below.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Kind == e.Kind && other.Message == "" && other.Err == nil
}

// Sentinels for errors.Is classification.
var (
	ErrPolicyDenied       = &Error{Kind: KindPolicyDenied}
	ErrSandboxViolation   = &Error{Kind: KindSandboxViolation}
	ErrWhitelistViolation = &Error{Kind: KindWhitelistViolation}
	ErrDepthExceeded      = &Error{Kind: KindDepthExceeded}
	ErrConfiguration      = &Error{Kind: KindConfiguration}
)

// PolicyDenied builds a policy denial error.
func PolicyDenied(op, format string, args ...any) *Error {
	return &Error{Kind: KindPolicyDenied, Op: op, Message: fmt.Sprintf(format, args...)}
}

// SandboxViolation builds a sandbox boundary error.
func SandboxViolation(op, format string, args ...any) *Error {
	return &Error{Kind: KindSandboxViolation, Op: op, Message: fmt.Sprintf(format, args...)}
}

// WhitelistViolation builds a command whitelist error.
func WhitelistViolation(op, format string, args ...any) *Error {
	return &Error{Kind: KindWhitelistViolation, Op: op, Message: fmt.Sprintf(format, args...)}
}

// DepthExceeded builds a recursion depth error.
func DepthExceeded(op, format string, args ...any) *Error {
	return &Error{Kind: KindDepthExceeded, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Configuration builds a setup-time configuration error.
func Configuration(op, format string, args ...any) *Error {
	return &Error{Kind: KindConfiguration, Op: op, Message: fmt.Sprintf(format, args...)}
}

// WithRemediation attaches remediation context and returns the error.
func (e *Error) WithRemediation(format string, args ...any) *Error {
	e.Remediation = fmt.Sprintf(format, args...)
	return e
}

// KindOf returns the classified kind of err, or "" when err is not classified.
func KindOf(err error) Kind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return ""
}
