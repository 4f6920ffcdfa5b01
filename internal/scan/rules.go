package scan

import (
	"fmt"
	"regexp"

	"github.com/plugreg/plugreg/internal/config"
)

// Rule is one compiled suspicious-pattern check. The built-in set is a
// best-effort heuristic lint, not a security boundary.
type Rule struct {
	Name     string
	Severity string
	re       *regexp.Regexp
}

var defaultRules = []config.RuleConfig{
	{Name: "eval-call", Pattern: `\beval\s*\(`, Severity: "high"},
	{Name: "function-constructor", Pattern: `new\s+Function\s*\(`, Severity: "high"},
	{Name: "child-process", Pattern: `child_process|execSync\s*\(|spawnSync\s*\(`, Severity: "high"},
	{Name: "base64-decode", Pattern: `atob\s*\(|Buffer\.from\s*\([^)]*base64`, Severity: "medium"},
	{Name: "remote-script", Pattern: `https?://[^"')\s]+\.(?:js|wasm)`, Severity: "medium"},
	{Name: "prototype-pollution", Pattern: `__proto__|constructor\[\s*["']prototype["']`, Severity: "low"},
}

// CompileRules builds the active rule set. A non-empty override from the
// config file replaces the built-in rules entirely.
func CompileRules(overrides []config.RuleConfig) ([]Rule, error) {
	src := defaultRules
	if len(overrides) > 0 {
		src = overrides
	}

	rules := make([]Rule, 0, len(src))
	for _, rc := range src {
		re, err := regexp.Compile(rc.Pattern)
		if err != nil {
			return nil, fmt.Errorf("compiling rule %q: %w", rc.Name, err)
		}
		severity := rc.Severity
		if severity == "" {
			severity = "medium"
		}
		rules = append(rules, Rule{Name: rc.Name, Severity: severity, re: re})
	}
	return rules, nil
}
