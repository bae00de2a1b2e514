package approval

import (
	"context"
	"time"

	"github.com/wardenhq/warden/internal/runerr"
)

const rejectAllNote = "rejected by policy mode reject_all"

// Gateway collects approval decisions for actions the policy engine marked
// needs-approval. Blocked outcomes never reach the gateway.
type Gateway struct {
	mode    Mode
	decide  DecideFunc
	cache   *SessionCache
	timeout time.Duration
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithDecideFunc registers the external decision function used in
// interactive mode.
func WithDecideFunc(fn DecideFunc) Option {
	return func(g *Gateway) { g.decide = fn }
}

// WithDecisionTimeout caps how long one interactive decision may suspend.
func WithDecisionTimeout(d time.Duration) Option {
	return func(g *Gateway) { g.timeout = d }
}

// NewGateway creates a gateway with a fresh run-scoped session cache.
// Interactive mode without a decision function is a configuration error and
// fails here rather than at request time.
func NewGateway(mode Mode, opts ...Option) (*Gateway, error) {
	g := &Gateway{
		mode:  mode,
		cache: NewSessionCache(),
	}
	for _, opt := range opts {
		opt(g)
	}

	switch mode {
	case ModeApproveAll, ModeRejectAll:
	case ModeInteractive:
		if g.decide == nil {
			return nil, runerr.Configuration("approval",
				"interactive mode requires a decision function")
		}
	default:
		return nil, runerr.Configuration("approval", "unknown approval mode %q", mode)
	}
	return g, nil
}

// Mode returns the operating mode.
func (g *Gateway) Mode() Mode { return g.mode }

// Cache exposes the run-scoped session cache, shared across every branch of
// the run's call tree.
func (g *Gateway) Cache() *SessionCache { return g.cache }

// Request collects one decision for req. In approve_all and reject_all the
// answer is mode-driven and never prompts or caches. In interactive mode the
// session cache is consulted first; only remember=session decisions populate
// it.
func (g *Gateway) Request(ctx context.Context, req Request, description string) (Decision, error) {
	switch g.mode {
	case ModeApproveAll:
		return Decision{Approved: true, Remember: RememberNone}, nil
	case ModeRejectAll:
		return Decision{Approved: false, Remember: RememberNone, Note: rejectAllNote}, nil
	}

	key := CacheKey(req)
	if cached, ok := g.cache.Get(key); ok {
		return cached, nil
	}

	if err := ctx.Err(); err != nil {
		return Decision{}, err
	}

	decideCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		decideCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	decision, err := g.decide(decideCtx, req, description)
	if err != nil {
		return Decision{}, err
	}
	if decision.Remember == "" {
		decision.Remember = RememberNone
	}
	if decision.Remember == RememberSession {
		g.cache.Put(key, decision)
	}
	return decision, nil
}
