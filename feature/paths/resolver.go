package paths

import (
	"fmt"
	"strings"

	"jellyfin-migrator/core/migerr"
)

type compiledRule struct {
	Rule
	comps []string
}

// Resolver applies an ordered rule set. It is immutable and safe for concurrent use.
type Resolver struct {
	rules      []compiledRule
	sep        string
	fold       bool
	unresolved Policy
}

// Shadow reports a rule that can never match.
type Shadow struct {
	Rule      Rule
	Index     int
	CoveredBy int
}

// NewResolver compiles cfg. A rule whose target another rule would rewrite
// again is rejected.
func NewResolver(cfg Config) (*Resolver, error) {
	sep := cfg.TargetSeparator
	if sep == "" {
		sep = "/"
	}
	if sep != "/" && sep != `\` {
		return nil, fmt.Errorf("invalid target separator %q", sep)
	}
	policy := cfg.Unresolved
	if policy == "" {
		policy = PolicyPassthrough
	}
	switch policy {
	case PolicyPassthrough, PolicyReport, PolicyFatal:
	default:
		return nil, fmt.Errorf("invalid unresolved policy %q", policy)
	}

	r := &Resolver{sep: sep, fold: cfg.CaseInsensitive, unresolved: policy}
	for i, rule := range cfg.AllRules() {
		comps := Split(rule.Source)
		if len(comps) == 0 {
			return nil, fmt.Errorf("rule %d has an empty source", i)
		}
		r.rules = append(r.rules, compiledRule{Rule: rule, comps: comps})
	}
	for i, rule := range r.rules {
		if j, ok := r.chained(rule.Target); ok {
			return nil, fmt.Errorf("rule %d target %q is rewritten again by rule %d", i, rule.Target, j)
		}
	}
	return r, nil
}

// chained reports the first rule that would rewrite target to something
// else, so a rewritten path would not be a fixed point.
func (r *Resolver) chained(target string) (int, bool) {
	comps := Split(target)
	if len(comps) == 0 {
		return 0, false
	}
	for j, rule := range r.rules {
		if !r.hasPrefix(comps, rule.comps) {
			continue
		}
		out := Split(r.join(rule.Target, comps[len(rule.comps):]))
		if len(out) == len(comps) && r.hasPrefix(out, comps) {
			return 0, false
		}
		return j, true
	}
	return 0, false
}

// Separator returns the target separator.
func (r *Resolver) Separator() string {
	return r.sep
}

// Rules returns the compiled rules in evaluation order.
func (r *Resolver) Rules() []Rule {
	out := make([]Rule, len(r.rules))
	for i, cr := range r.rules {
		out[i] = cr.Rule
	}
	return out
}

// Match applies the first matching rule. ok is false when no rule matches.
func (r *Resolver) Match(path string) (out string, ok bool) {
	comps := Split(path)
	for _, rule := range r.rules {
		if !r.hasPrefix(comps, rule.comps) {
			continue
		}
		return r.join(rule.Target, comps[len(rule.comps):]), true
	}
	return path, false
}

// Resolve applies the first matching rule and the unresolved policy.
func (r *Resolver) Resolve(path string) (string, error) {
	out, ok := r.Match(path)
	if ok || !LooksAbsolute(path) {
		return out, nil
	}
	switch r.unresolved {
	case PolicyReport:
		return path, fmt.Errorf("%w: %s", migerr.ErrPathUnresolved, path)
	case PolicyFatal:
		return path, migerr.Fatal(fmt.Errorf("%w: %s", migerr.ErrPathUnresolved, path))
	default:
		return path, nil
	}
}

// Shadowed lists rules whose prefix is covered by an earlier rule.
func (r *Resolver) Shadowed() []Shadow {
	var out []Shadow
	for i := range r.rules {
		for j := 0; j < i; j++ {
			if r.hasPrefix(r.rules[i].comps, r.rules[j].comps) {
				out = append(out, Shadow{Rule: r.rules[i].Rule, Index: i, CoveredBy: j})
				break
			}
		}
	}
	return out
}

func (r *Resolver) hasPrefix(comps, prefix []string) bool {
	if len(prefix) > len(comps) {
		return false
	}
	for i, p := range prefix {
		if r.fold {
			if !strings.EqualFold(comps[i], p) {
				return false
			}
		} else if comps[i] != p {
			return false
		}
	}
	return true
}

func (r *Resolver) join(target string, rest []string) string {
	base := strings.Join(Split(target), r.sep)
	if base == "" && target != "" {
		base = r.sep
	}
	if len(rest) == 0 {
		return base
	}
	tail := strings.Join(rest, r.sep)
	if base == "" {
		return tail
	}
	if strings.HasSuffix(base, r.sep) {
		return base + tail
	}
	return base + r.sep + tail
}

// Split breaks a path into components on both separators. Leading empty
// components are kept so "/a" and "a" differ and UNC prefixes survive; empty
// components elsewhere are dropped.
func Split(path string) []string {
	if path == "" {
		return nil
	}
	raw := strings.FieldsFunc(path, isSep)
	lead := 0
	for lead < len(path) && isSep(rune(path[lead])) {
		lead++
	}
	out := make([]string, 0, lead+len(raw))
	for i := 0; i < lead; i++ {
		out = append(out, "")
	}
	return append(out, raw...)
}

func isSep(r rune) bool {
	return r == '/' || r == '\\'
}

// LooksAbsolute reports whether s looks like an absolute path on any platform
// Jellyfin runs on, or starts with a Jellyfin path variable.
func LooksAbsolute(s string) bool {
	if s == "" {
		return false
	}
	if isSep(rune(s[0])) {
		return true
	}
	if len(s) >= 3 && isLetter(s[0]) && s[1] == ':' && isSep(rune(s[2])) {
		return true
	}
	if s[0] == '%' {
		if end := strings.IndexByte(s[1:], '%'); end > 0 {
			rest := s[end+2:]
			return rest == "" || isSep(rune(rest[0]))
		}
	}
	return false
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
