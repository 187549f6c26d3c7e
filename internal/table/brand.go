package table

import (
	"fmt"
	"regexp"
	"strings"
)

// UnknownBrand is the label given to rows no brand rule matches.
const UnknownBrand = "unknown"

// BrandRule maps a case-insensitive pattern to a brand label. Patterns are
// regular expressions; a plain substring is a valid pattern.
type BrandRule struct {
	Pattern string
	Label   string
}

type compiledRule struct {
	re    *regexp.Regexp
	label string
}

// BrandClassifier assigns the label of the first matching rule.
type BrandClassifier struct {
	rules   []compiledRule
	unknown string
}

// CompileBrandRules compiles rules in order. An empty unknown label
// defaults to UnknownBrand.
func CompileBrandRules(rules []BrandRule, unknown string) (*BrandClassifier, error) {
	if unknown == "" {
		unknown = UnknownBrand
	}
	c := &BrandClassifier{unknown: unknown, rules: make([]compiledRule, 0, len(rules))}
	for i, r := range rules {
		if strings.TrimSpace(r.Label) == "" {
			return nil, fmt.Errorf("CompileBrandRules: rule %d (%q) has no label", i, r.Pattern)
		}
		if r.Pattern == "" {
			return nil, fmt.Errorf("CompileBrandRules: rule %d (%q) has no pattern", i, r.Label)
		}
		re, err := regexp.Compile("(?i)" + r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("CompileBrandRules: rule %d: %w", i, err)
		}
		c.rules = append(c.rules, compiledRule{re: re, label: r.Label})
	}
	return c, nil
}

// Unknown returns the sentinel label.
func (c *BrandClassifier) Unknown() string { return c.unknown }

// Classify returns the first matching label, or the unknown label.
func (c *BrandClassifier) Classify(s string) string {
	for _, r := range c.rules {
		if r.re.MatchString(s) {
			return r.label
		}
	}
	return c.unknown
}

// DeriveBrand adds (or replaces) text column out, classifying each row by
// its identifier value. A null identifier is classified as unknown.
func (t *Table) DeriveBrand(identifier string, c *BrandClassifier, out string) (*Table, error) {
	idx := t.Index(identifier)
	if idx < 0 {
		return nil, fmt.Errorf("DeriveBrand %q: %w", identifier, ErrColumnNotFound)
	}
	return t.withValues(Field{Name: out, Kind: Text}, func(row []any) any {
		if row[idx] == nil {
			return c.unknown
		}
		return c.Classify(FormatValue(row[idx]))
	}), nil
}
