package action

import (
	"context"

	"github.com/cloudwego/eino/components/tool"
)

// Provider exposes a set of invocable actions to a branch. The runtime ships
// a closed set of variants (filesystem, shell, delegate, static); new kinds
// implement this interface rather than being type-switched at runtime.
type Provider interface {
	// Name identifies the provider in logs and errors.
	Name() string
	// Actions returns the provider's invocable actions.
	Actions(ctx context.Context) ([]tool.InvokableTool, error)
	// Capabilities reports capability labels for one of this provider's
	// actions, given its decoded arguments. Providers with nothing to
	// report return nil.
	Capabilities(action string, args map[string]any) []string
}

// StaticProvider wraps user-defined tools with a fixed capability map.
type StaticProvider struct {
	name         string
	tools        []tool.InvokableTool
	capabilities map[string][]string
}

// NewStaticProvider builds a provider over pre-built tools. capabilities
// maps action name to declared labels and may be nil.
func NewStaticProvider(name string, tools []tool.InvokableTool, capabilities map[string][]string) *StaticProvider {
	return &StaticProvider{name: name, tools: tools, capabilities: capabilities}
}

func (p *StaticProvider) Name() string { return p.name }

func (p *StaticProvider) Actions(ctx context.Context) ([]tool.InvokableTool, error) {
	return p.tools, nil
}

func (p *StaticProvider) Capabilities(action string, args map[string]any) []string {
	return p.capabilities[action]
}
