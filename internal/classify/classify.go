// Package classify assigns a type/risk/citation-requirement verdict to a
// claim span using deterministic pattern rules over its text. Classification
// is pure and idempotent: the same text always yields the same verdict, in
// any call order, because re-segmentation re-classifies surviving spans
// repeatedly.
package classify

import (
	"regexp"
	"strings"

	"claimtrack/internal/model"
)

// Classifier evaluates lexicon and pattern rules in priority order.
// Whether a type demands an inline citation comes from the policy
// configuration, never from the rules themselves.
type Classifier struct {
	policy      model.Policy
	biographic  []string
	dispute     []string
	numeric     *regexp.Regexp
	attribution string
}

// numericPattern matches quantitative content: a four-digit year, a
// percentage, a currency amount, or a magnitude word.
var numericPattern = regexp.MustCompile(`(?i)\b\d{4}\b|\d+(?:\.\d+)?\s?%|[$€£]\s?\d|\b(?:million|billion|trillion|thousand)\b`)

// namedRefPattern and inlineRefPattern find citation markup lexically inside
// a span; the captured name populates existing_refs.
var (
	namedRefPattern  = regexp.MustCompile(`<ref[^>]*name\s*=\s*["']([^"']+)["'][^>]*/?>`)
	inlineRefPattern = regexp.MustCompile(`<ref\s*>[^<]*</ref>`)
)

// New creates a classifier bound to the given citation policy
func New(policy model.Policy) *Classifier {
	return &Classifier{
		policy: policy,
		biographic: []string{
			"born", "died", "married", "divorced", "widowed",
			"graduated", "appointed", "elected", "convicted", "arrested",
		},
		dispute: []string{
			"alleged", "allegedly", "controversial", "controversy",
			"disputed", "contested", "refuted",
		},
		numeric:     numericPattern,
		attribution: "according to",
	}
}

// Classify returns the verdict for a span of text. Rules are evaluated in
// priority order; the first type rule that matches wins.
func (c *Classifier) Classify(text string) model.Verdict {
	lower := strings.ToLower(text)

	biographic := containsAny(lower, c.biographic)
	dispute := containsAny(lower, c.dispute)
	numeric := c.numeric.MatchString(text)
	quoted := strings.ContainsAny(text, `"“”«»`)
	attributed := strings.Contains(lower, c.attribution)

	var typ model.ClaimType
	switch {
	case biographic:
		typ = model.ClaimTypeBLP
	case numeric:
		typ = model.ClaimTypeStatistic
	case quoted:
		typ = model.ClaimTypeQuote
	case dispute:
		typ = model.ClaimTypeContentious
	default:
		typ = model.ClaimTypeGeneral
	}

	risk := model.RiskLow
	switch {
	case dispute:
		risk = model.RiskHigh
	case numeric || attributed:
		risk = model.RiskMedium
	}

	return model.Verdict{
		Type:           typ,
		Risk:           risk,
		RequiresInline: c.policy.InlineRequired(typ),
	}
}

// ExtractRefs returns the citation names found lexically inside the span, in
// order of appearance. Anonymous <ref>...</ref> citations are reported as
// "inline".
func ExtractRefs(text string) []string {
	var refs []string
	seen := make(map[string]bool)

	for _, m := range namedRefPattern.FindAllStringSubmatch(text, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			refs = append(refs, m[1])
		}
	}
	if inlineRefPattern.MatchString(text) && !seen["inline"] {
		refs = append(refs, "inline")
	}

	return refs
}

func containsAny(lower string, words []string) bool {
	for _, w := range words {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}
