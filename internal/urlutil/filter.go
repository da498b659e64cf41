package urlutil

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// defaultExcludePatterns mirror the built-in exclusions applied to every
// crawl: auth and account pages, e-commerce checkout flows, utility/legal
// pages, and common binary file extensions. Caller-supplied patterns are
// unioned with these; nothing can re-admit a URL excluded here.
var defaultExcludePatterns = []string{
	`.*login.*`,
	`.*signup.*`,
	`.*register.*`,
	`.*sign-in.*`,
	`.*sign-up.*`,
	`.*auth.*`,
	`.*password.*`,
	`.*reset.*`,
	`.*logout.*`,
	`.*admin.*`,
	`.*dashboard.*`,
	`.*profile.*`,
	`.*account.*`,
	`.*checkout.*`,
	`.*cart.*`,
	`.*payment.*`,
	`.*billing.*`,
	`.*subscribe.*`,
	`.*newsletter.*`,
	`.*contact.*`,
	`.*support.*`,
	`.*help.*`,
	`.*faq.*`,
	`.*sitemap.*`,
	`.*robots.*`,
	`.*\.(pdf|doc|docx|xls|xlsx|ppt|pptx|zip|rar|exe|dmg)$`,
}

var compiledDefaults = mustCompile(defaultExcludePatterns)

func mustCompile(patterns []string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		compiled = append(compiled, regexp.MustCompile(p))
	}
	return compiled
}

// RuleSet is a compiled, immutable set of URL exclusion rules for one crawl
// run, plus the site gate that keeps expansion on the seed's registrable
// domain unless cross-domain traversal was explicitly allowed.
type RuleSet struct {
	exclude     []*regexp.Regexp
	seedDomain  string
	crossDomain bool
}

// NewRuleSet compiles caller patterns on top of the built-in defaults.
// seedURL anchors the same-site gate; pass crossDomain=true to allow
// expansion beyond the seed's registrable domain.
func NewRuleSet(seedURL string, extraPatterns []string, crossDomain bool) (*RuleSet, error) {
	rules := make([]*regexp.Regexp, 0, len(compiledDefaults)+len(extraPatterns))
	rules = append(rules, compiledDefaults...)
	for _, raw := range extraPatterns {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		pat, err := regexp.Compile(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", raw, err)
		}
		rules = append(rules, pat)
	}

	var seedDomain string
	if seedURL != "" {
		parsed, err := url.Parse(seedURL)
		if err != nil {
			return nil, fmt.Errorf("parse seed %q: %w", seedURL, err)
		}
		seedDomain = RegistrableDomain(parsed.Hostname())
	}

	return &RuleSet{
		exclude:     rules,
		seedDomain:  seedDomain,
		crossDomain: crossDomain,
	}, nil
}

// Accept reports whether a normalized URL may enter the frontier. A URL is
// rejected when any rule, built-in or caller-supplied, matches it.
func (r *RuleSet) Accept(normalized string) bool {
	if r == nil {
		return true
	}
	for _, pat := range r.exclude {
		if pat.MatchString(normalized) {
			return false
		}
	}
	return true
}

// Expandable reports whether a URL's own links may be followed. External
// URLs are still acceptable crawl results, but expansion stays on the seed's
// registrable domain unless cross-domain traversal is on.
func (r *RuleSet) Expandable(normalized string) bool {
	if r == nil || r.crossDomain || r.seedDomain == "" {
		return true
	}
	parsed, err := url.Parse(normalized)
	if err != nil {
		return false
	}
	return RegistrableDomain(parsed.Hostname()) == r.seedDomain
}
