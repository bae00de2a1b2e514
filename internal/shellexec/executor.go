package shellexec

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/wardenhq/warden/internal/runerr"
)

const (
	defaultTimeout        = 30 * time.Second
	maxTimeout            = 300 * time.Second
	defaultMaxOutputBytes = 50 * 1024
)

// ExitNotFound and ExitNoPermission are the conventional shell exit codes
// surfaced as structured results rather than errors.
const (
	ExitNotFound     = 127
	ExitNoPermission = 126
)

// Result is the structured outcome of one command. Non-zero exits, missing
// binaries, and permission failures are data; only policy violations raise
// errors.
type Result struct {
	Stdout    string
	Stderr    string
	ExitCode  int
	Truncated bool
	TimedOut  bool
	Duration  time.Duration
}

// Executor runs one external command at a time under default-deny.
type Executor struct {
	rules    []Rule
	def      *Default
	resolver PathResolver
	timeout  time.Duration
	maxBytes int
	workDir  string
}

// ExecOption configures an Executor.
type ExecOption func(*Executor)

// WithTimeout sets the per-command timeout, clamped to the hard cap.
func WithTimeout(d time.Duration) ExecOption {
	return func(e *Executor) { e.timeout = d }
}

// WithMaxOutputBytes caps captured bytes per stream.
func WithMaxOutputBytes(n int) ExecOption {
	return func(e *Executor) { e.maxBytes = n }
}

// WithWorkDir sets the working directory for executed commands.
func WithWorkDir(dir string) ExecOption {
	return func(e *Executor) { e.workDir = dir }
}

// NewExecutor builds a whitelist executor. resolver may be nil when no rule
// declares required roots.
func NewExecutor(rules []Rule, def *Default, resolver PathResolver, opts ...ExecOption) *Executor {
	e := &Executor{
		rules:    rules,
		def:      def,
		resolver: resolver,
		timeout:  defaultTimeout,
		maxBytes: defaultMaxOutputBytes,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.timeout <= 0 {
		e.timeout = defaultTimeout
	}
	if e.timeout > maxTimeout {
		e.timeout = maxTimeout
	}
	if e.maxBytes <= 0 {
		e.maxBytes = defaultMaxOutputBytes
	}
	return e
}

// Describe returns remediation context naming the whitelisted patterns.
func (e *Executor) Describe() string {
	return describeRules(e.rules, e.def)
}

// Match screens and tokenizes raw, then resolves its whitelist treatment
// without executing anything. It fails with a WhitelistViolation when the
// command is blocked.
func (e *Executor) Match(raw string) (Match, []string, error) {
	if err := screenMetacharacters(raw); err != nil {
		return Match{}, nil, err
	}
	tokens, err := tokenize(raw)
	if err != nil {
		return Match{}, nil, err
	}

	for i := range e.rules {
		rule := &e.rules[i]
		if rule.matches(tokens, e.resolveRootName) {
			return Match{Rule: rule, RequireApproval: rule.RequireApproval}, tokens, nil
		}
	}
	if e.def != nil && e.def.Allowed {
		return Match{ViaDefault: true, RequireApproval: e.def.RequireApproval}, tokens, nil
	}
	return Match{}, nil, runerr.WhitelistViolation("exec",
		"command %q matches no whitelist rule", strings.Join(tokens, " ")).
		WithRemediation("%s", e.Describe())
}

// Run executes one whitelisted command directly (never through a shell)
// under the configured timeout, capturing capped stdout/stderr.
func (e *Executor) Run(ctx context.Context, raw string) (Result, error) {
	_, tokens, err := e.Match(raw)
	if err != nil {
		return Result{}, err
	}
	return e.runArgv(ctx, tokens)
}

func (e *Executor) runArgv(ctx context.Context, argv []string) (Result, error) {
	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	if e.workDir != "" {
		cmd.Dir = e.workDir
	}

	stdout := newBoundedBuffer(e.maxBytes)
	stderr := newBoundedBuffer(e.maxBytes)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	runErr := cmd.Run()
	result := Result{
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		Truncated: stdout.Truncated() || stderr.Truncated(),
		Duration:  time.Since(start),
	}

	if runErr == nil {
		return result, nil
	}
	if runCtx.Err() == context.DeadlineExceeded {
		result.TimedOut = true
		result.ExitCode = -1
		return result, nil
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	if errors.Is(runErr, exec.ErrNotFound) {
		result.ExitCode = ExitNotFound
		result.Stderr = appendLine(result.Stderr, argv[0]+": command not found")
		return result, nil
	}
	if errors.Is(runErr, os.ErrPermission) {
		result.ExitCode = ExitNoPermission
		result.Stderr = appendLine(result.Stderr, argv[0]+": permission denied")
		return result, nil
	}
	return Result{}, runErr
}

// resolveRootName reports which sandbox root an argument resolves into.
// Arguments that are not sandbox paths resolve to nothing.
func (e *Executor) resolveRootName(arg string) (string, bool) {
	if e.resolver == nil {
		return "", false
	}
	if _, err := e.resolver.Resolve(arg); err != nil {
		return "", false
	}
	name, _, found := strings.Cut(filepath.ToSlash(arg), "/")
	if !found {
		name = arg
	}
	return strings.TrimSpace(name), true
}

func appendLine(existing, line string) string {
	if existing == "" {
		return line
	}
	return existing + "\n" + line
}
