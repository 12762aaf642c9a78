package tool

import (
	"context"

	"github.com/flowctl/orchestrator/internal/ratelimit"
	"github.com/flowctl/orchestrator/resultx"
)

// RateLimited wraps a Tool with a token-bucket limit, keyed per call by a
// caller-supplied function (tenant, session, or a constant for a
// tool-global limit). A denied call fails fast with ErrRateLimit and
// RetryAfterMs set from the bucket's WaitTime, without invoking the
// wrapped tool.
type RateLimited struct {
	inner   Tool
	limiter *ratelimit.Limiter
	keyFn   func(ctx context.Context, params map[string]any) string
}

// Limited wraps t with limiter, keying each call via keyFn. A nil keyFn
// rate-limits the tool globally under its own name.
func Limited(t Tool, limiter *ratelimit.Limiter, keyFn func(ctx context.Context, params map[string]any) string) *RateLimited {
	return &RateLimited{inner: t, limiter: limiter, keyFn: keyFn}
}

func (rl *RateLimited) Name() string        { return rl.inner.Name() }
func (rl *RateLimited) Description() string { return rl.inner.Description() }
func (rl *RateLimited) Schema() Schema      { return rl.inner.Schema() }

func (rl *RateLimited) Execute(ctx context.Context, params map[string]any) resultx.Result[Result] {
	key := rl.inner.Name()
	if rl.keyFn != nil {
		key = rl.keyFn(ctx, params)
	}
	if rl.limiter != nil && !rl.limiter.Allow(key) {
		wait := rl.limiter.WaitTime(key)
		err := resultx.New("tool", resultx.ErrRateLimit, "rate limit exceeded").WithSubject(rl.inner.Name())
		err.RetryAfterMs = wait.Milliseconds()
		return resultx.Fail[Result](err)
	}
	return rl.inner.Execute(ctx, params)
}
