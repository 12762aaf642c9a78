package tool

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/flowctl/orchestrator/resultx"
)

// DefaultMaxResultSize bounds a tool result's textual content before
// persistence or transport.
const DefaultMaxResultSize = 64 * 1024

// builtinSecretPatterns are the default built-in secret detectors.
var builtinSecretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(api[_-]?key|apikey)\s*[:=]\s*['"]?[\w-]{20,}['"]?`),
	regexp.MustCompile(`(?i)bearer\s+[\w-\.]+`),
	regexp.MustCompile(`(?i)(aws|amazon).*?(key|secret|token)\s*[:=]\s*['"]?[\w/+=]{20,}['"]?`),
	regexp.MustCompile(`(?i)(password|passwd|secret|token)\s*[:=]\s*['"]?[^\s'"]{8,}['"]?`),
	regexp.MustCompile(`-----BEGIN (RSA |EC |DSA |OPENSSH )?PRIVATE KEY-----`),
}

var secretPatternNames = []string{"api_key", "bearer_token", "aws_key", "generic_secret", "private_key"}

// Guard controls how a tool's textual result is redacted and truncated
// before it leaves the process (event bus publish, checkpoint store,
// graph node output).
type Guard struct {
	Enabled         bool
	MaxChars        int
	Denylist        []string
	RedactPatterns  []string
	RedactionText   string
	TruncateSuffix  string
	SanitizeSecrets bool
}

func (g Guard) active() bool {
	return g.Enabled || g.MaxChars > 0 || len(g.Denylist) > 0 || len(g.RedactPatterns) > 0 ||
		g.RedactionText != "" || g.TruncateSuffix != "" || g.SanitizeSecrets
}

// Apply redacts and truncates res.Value according to g's rules when it is
// a string. A non-string Value is left as it is unless the tool name is on
// the denylist, which replaces any Value with the redaction text. A
// non-active Guard returns res unchanged.
func (g Guard) Apply(toolName string, res Result) Result {
	if !g.active() {
		return res
	}

	content, isString := res.Value.(string)
	if !isString {
		content = fmt.Sprintf("%v", res.Value)
	}

	redaction := strings.TrimSpace(g.RedactionText)
	if redaction == "" {
		redaction = "[REDACTED]"
	}
	truncateSuffix := strings.TrimSpace(g.TruncateSuffix)
	if truncateSuffix == "" {
		truncateSuffix = "...[truncated]"
	}

	if len(g.Denylist) > 0 && matchesAny(g.Denylist, toolName) {
		res.Value = redaction
		return res
	}

	if g.SanitizeSecrets && content != "" {
		for _, re := range builtinSecretPatterns {
			content = re.ReplaceAllString(content, redaction)
		}
	}

	if len(g.RedactPatterns) > 0 && content != "" {
		for _, pattern := range g.RedactPatterns {
			pattern = strings.TrimSpace(pattern)
			if pattern == "" {
				continue
			}
			re, err := regexp.Compile(pattern)
			if err != nil {
				continue
			}
			content = re.ReplaceAllString(content, redaction)
		}
	}

	if g.MaxChars > 0 && len(content) > g.MaxChars {
		cutoff := g.MaxChars
		if cutoff > len(content) {
			cutoff = len(content)
		}
		content = content[:cutoff] + truncateSuffix
	}

	if isString {
		res.Value = content
	}
	return res
}

func matchesAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if p == name || p == "*" {
			return true
		}
	}
	return false
}

// DetectSecrets scans content and returns the names of any built-in secret
// patterns that matched, for logging or alerting.
func DetectSecrets(content string) []string {
	if content == "" {
		return nil
	}
	var matches []string
	for i, re := range builtinSecretPatterns {
		if re.MatchString(content) {
			matches = append(matches, secretPatternNames[i])
		}
	}
	return matches
}

// Guarded wraps a Tool so every successful Result passes through a Guard
// before the caller sees it.
type Guarded struct {
	inner Tool
	guard Guard
}

// WithGuard wraps t with g.
func WithGuard(t Tool, g Guard) *Guarded {
	return &Guarded{inner: t, guard: g}
}

func (gt *Guarded) Name() string        { return gt.inner.Name() }
func (gt *Guarded) Description() string { return gt.inner.Description() }
func (gt *Guarded) Schema() Schema      { return gt.inner.Schema() }

func (gt *Guarded) Execute(ctx context.Context, params map[string]any) resultx.Result[Result] {
	out := gt.inner.Execute(ctx, params)
	value, ok := out.Value()
	if !ok || value.Status != StatusSuccess {
		return out
	}
	return resultx.Ok(gt.guard.Apply(gt.inner.Name(), value))
}
