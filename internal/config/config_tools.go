package config

import "time"

// ToolsConfig configures the tool execution layer (the tool package):
// per-tool policy, concurrency/retry, rate limiting, and the result cache.
type ToolsConfig struct {
	Policies  ToolPoliciesConfig  `yaml:"policies"`
	Execution ToolExecutionConfig `yaml:"execution"`
	RateLimit RateLimitConfig     `yaml:"rate_limit"`
	Cache     ToolCacheConfig     `yaml:"cache"`
}

// ToolPoliciesConfig defines default allow/deny policies for tools, mirroring
// tool.Policy / internal/tools/policy's groups-and-rules model.
type ToolPoliciesConfig struct {
	// Default policy behavior: "allow" or "deny".
	Default string `yaml:"default"`
	// Rules define per-tool allow/deny behavior.
	Rules []ToolPolicyRule `yaml:"rules"`
}

// ToolPolicyRule defines a policy action for a tool, optionally scoped to a
// named capability group.
type ToolPolicyRule struct {
	Tool   string `yaml:"tool"`
	Action string `yaml:"action"` // "allow" | "deny"
	Group  string `yaml:"group"`
}

// ToolExecutionConfig controls Executor concurrency, timeout, and retry backoff.
type ToolExecutionConfig struct {
	Concurrency    int           `yaml:"concurrency"`
	PerCallTimeout time.Duration `yaml:"per_call_timeout"`
	MaxAttempts    int           `yaml:"max_attempts"`
	BackoffInitial time.Duration `yaml:"backoff_initial"`
	BackoffMax     time.Duration `yaml:"backoff_max"`
	BackoffFactor  float64       `yaml:"backoff_factor"`
	BackoffJitter  float64       `yaml:"backoff_jitter"`
}

// RateLimitConfig configures the token-bucket rate limiter a rate-limited
// tool wrapper enforces per tool name.
type RateLimitConfig struct {
	Enabled          bool          `yaml:"enabled"`
	RequestsPerBurst int           `yaml:"requests_per_burst"`
	RefillInterval   time.Duration `yaml:"refill_interval"`
}

// ToolCacheConfig configures the tool result cache's capacity and TTL.
type ToolCacheConfig struct {
	Enabled  bool          `yaml:"enabled"`
	MaxSize  int           `yaml:"max_size"`
	TTL      time.Duration `yaml:"ttl"`
}
