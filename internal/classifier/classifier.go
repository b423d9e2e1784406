// Package classifier maps a free-text query to an intent and the entities it
// mentions.
package classifier

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/apperr"
	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/apptype"
)

// Classifier is the boundary the orchestrator classifies through.
type Classifier interface {
	Classify(ctx context.Context, query string) (apptype.Classification, error)
}

const (
	GeneralInquiry = "general_inquiry"

	fallbackConfidence = 0.3
	baseConfidence     = 0.5
	perKeyword         = 0.1
	maxConfidence      = 0.95
)

// Rule names an intent and the keywords that vote for it.
type Rule struct {
	Intent   string   `yaml:"intent"`
	Keywords []string `yaml:"keywords"`
}

// DefaultRules covers the support intents the demo knowledge base is written for.
var DefaultRules = []Rule{
	{Intent: "password_reset", Keywords: []string{"password", "reset", "forgot", "login", "signin"}},
	{Intent: "account_activation", Keywords: []string{"activation", "activate", "verify", "confirm"}},
	{Intent: "subscription_inquiry", Keywords: []string{"premium", "subscription", "upgrade", "plan", "billing"}},
	{Intent: "mobile_app_support", Keywords: []string{"mobile", "app", "ios", "android", "download"}},
	{Intent: "api_integration", Keywords: []string{"api", "integration", "endpoint", "webhook", "sync"}},
}

var entityPattern = regexp.MustCompile(`\b(customer|product|issue)_\w+`)

// Keyword is a rule-table classifier. The intent with the most keyword hits
// wins; ties go to the earlier rule.
type Keyword struct {
	rules []Rule
}

var _ Classifier = (*Keyword)(nil)

// NewKeyword builds a classifier over rules, or DefaultRules when none are given.
func NewKeyword(rules ...Rule) *Keyword {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	normalized := make([]Rule, len(rules))
	for i, r := range rules {
		kw := make([]string, len(r.Keywords))
		for j, k := range r.Keywords {
			kw[j] = strings.ToLower(k)
		}
		normalized[i] = Rule{Intent: r.Intent, Keywords: kw}
	}
	return &Keyword{rules: normalized}
}

func (k *Keyword) Classify(ctx context.Context, query string) (apptype.Classification, error) {
	if err := ctx.Err(); err != nil {
		return apptype.Classification{}, err
	}
	if strings.TrimSpace(query) == "" {
		return apptype.Classification{}, fmt.Errorf("%w: empty query", apperr.ErrClassification)
	}

	words := make(map[string]struct{})
	for _, w := range strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		words[w] = struct{}{}
	}

	intent := apptype.Intent{Type: GeneralInquiry, Confidence: fallbackConfidence}
	best := 0
	for _, r := range k.rules {
		hits := 0
		for _, kw := range r.Keywords {
			if _, ok := words[kw]; ok {
				hits++
			}
		}
		if hits > best {
			best = hits
			intent = apptype.Intent{
				Type:       r.Intent,
				Confidence: min(maxConfidence, baseConfidence+perKeyword*float64(hits)),
			}
		}
	}
	return apptype.Classification{Intent: intent, Entities: ExtractEntities(query)}, nil
}

// ExtractEntities returns the typed identifiers (customer_*, product_*,
// issue_*) in text, in order of first appearance.
func ExtractEntities(text string) []apptype.Entity {
	var out []apptype.Entity
	seen := make(map[string]struct{})
	for _, m := range entityPattern.FindAllStringSubmatch(text, -1) {
		if _, dup := seen[m[0]]; dup {
			continue
		}
		seen[m[0]] = struct{}{}
		out = append(out, apptype.Entity{Type: m[1], Value: m[0]})
	}
	return out
}
