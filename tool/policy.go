package tool

import (
	"context"

	"github.com/flowctl/orchestrator/internal/tools/policy"
	"github.com/flowctl/orchestrator/resultx"
)

// Policy re-exports the access-control policy type, so callers building
// SPEC_FULL's "tool policy / access filtering" supplement don't need to
// import the policy package directly.
type Policy = policy.Policy

// Resolver re-exports the policy resolver: group/MCP/remote-host
// expansion, alias canonicalization, and allow/deny decision logic.
type Resolver = policy.Resolver

// NewResolver constructs a Resolver seeded with the default tool groups.
func NewResolver() *Resolver { return policy.NewResolver() }

// NewPolicy builds a Policy seeded from a profile.
func NewPolicy(profile policy.Profile) *Policy { return policy.NewPolicy(profile) }

// Gated wraps a Tool so Execute is denied per a Resolver decision before the
// underlying tool ever runs. This is the supplemented "tool policy / access
// filtering" component recorded in SPEC_FULL.md: the graph and flow engines
// only ever see a Tool interface, so policy enforcement is just another
// decorator, the same shape as Cache and RateLimited.
type Gated struct {
	inner    Tool
	resolver *Resolver
	policy   *Policy
}

// Gate wraps t so that Execute first checks resolver.IsAllowed(policy,
// t.Name()); a denied call fails fast with ErrPermission and never reaches
// the wrapped tool.
func Gate(t Tool, resolver *Resolver, p *Policy) *Gated {
	return &Gated{inner: t, resolver: resolver, policy: p}
}

func (g *Gated) Name() string        { return g.inner.Name() }
func (g *Gated) Description() string { return g.inner.Description() }
func (g *Gated) Schema() Schema      { return g.inner.Schema() }

func (g *Gated) Execute(ctx context.Context, params map[string]any) resultx.Result[Result] {
	if g.resolver != nil && !g.resolver.IsAllowed(g.policy, g.inner.Name()) {
		return resultx.Fail[Result](resultx.New("tool", resultx.ErrPermission, "tool denied by policy").WithSubject(g.inner.Name()))
	}
	return g.inner.Execute(ctx, params)
}

// FilterByPolicy narrows a tool list down to the names resolver.Decide
// allows under p, preserving input order.
func FilterByPolicy(resolver *Resolver, p *Policy, tools []Tool) []Tool {
	if resolver == nil {
		return tools
	}
	out := make([]Tool, 0, len(tools))
	for _, t := range tools {
		if resolver.IsAllowed(p, t.Name()) {
			out = append(out, t)
		}
	}
	return out
}
