// Package taxonomy holds the table that maps movement categories to the
// textual rules that detect them and the weight each category contributes.
package taxonomy

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/huangsam/cfpscan/schema"
)

// DefaultWeight is used for any category without an explicit weight.
const DefaultWeight = 1.0

// Rule is a compiled textual pattern bound to exactly one category.
type Rule struct {
	Category      schema.MovementCategory
	Pattern       string
	CaseSensitive bool
	re            *regexp.Regexp
}

// Count returns the number of non-overlapping matches of the rule in text.
func (r Rule) Count(text string) int {
	return len(r.re.FindAllStringIndex(text, -1))
}

// CategorySpec is the declarative form of one taxonomy entry, as read from
// a config file or built into the binary.
type CategorySpec struct {
	Category      schema.MovementCategory `mapstructure:"category" json:"category"`
	Rules         []string                `mapstructure:"rules" json:"rules"`
	Weight        *float64                `mapstructure:"weight" json:"weight,omitempty"`
	CaseSensitive bool                    `mapstructure:"case_sensitive" json:"case_sensitive,omitempty"`
}

// Taxonomy is an immutable lookup of category -> rules and category -> weight.
// It is safe for concurrent use once built.
type Taxonomy struct {
	categories []schema.MovementCategory
	rules      map[schema.MovementCategory][]Rule
	weights    map[schema.MovementCategory]float64
	// caseOf keeps the declared case mode of categories without rules.
	caseOf map[schema.MovementCategory]bool
}

// builtinRules is the default pattern table for Go sources.
var builtinRules = map[schema.MovementCategory][]string{
	schema.EntryMovement: {
		`\brouter\.(GET|POST|PUT|DELETE|PATCH)`,
		`\bmux\.HandleFunc`,
		`\bapp\.(Get|Post|Put|Delete|Patch)`,
		`\bcobra\.Command`,
		`\bRegister.*Server`,
		`\bhttp\.HandleFunc`,
		`\bgrpc\.NewServer`,
		`\bchi\.NewRouter`,
		`\bfiber\.New`,
		`\bgin\.Default`,
		`\bfunc\s+[A-Z]\w*\(`,
	},
	schema.ExitMovement: {
		`\bctx\.JSON`,
		`\bw\.Write`,
		`\bhttp\.ResponseWriter`,
		`\breturn\s+json`,
		`\breturn\s+fmt\.Sprintf`,
		`\btemplate\.Execute`,
		`\brender\.(HTML|JSON|Template)`,
		`\bfmt\.Fprintf`,
	},
	schema.ReadMovement: {
		`\bdb\.(Find|Select|Query|QueryRow|QueryRows|First|Where)`,
		`\bread.*File`,
		`\bios\.Open`,
		`\bjson\.Unmarshal`,
		`\bioutil\.ReadFile`,
	},
	schema.WriteMovement: {
		`\bdb\.(Create|Save|Exec|Update|Insert|SaveChanges)`,
		`\bwrite.*File`,
		`\bios\.Write`,
		`\bjson\.Marshal`,
		`\bioutil\.WriteFile`,
	},
	schema.ChannelMovement: {
		`<-chan`,
		`chan\s*<-`,
	},
	schema.GoroutineMovement: {
		`\bgo\s+\w+\(`,
	},
}

// DefaultSpecs returns the built-in taxonomy in canonical category order.
// Every built-in category is weighted 1 and matched case-insensitively.
func DefaultSpecs() []CategorySpec {
	specs := make([]CategorySpec, 0, len(schema.BuiltinCategories))
	for _, cat := range schema.BuiltinCategories {
		specs = append(specs, CategorySpec{
			Category: cat,
			Rules:    slices.Clone(builtinRules[cat]),
		})
	}
	return specs
}

// Default returns the compiled built-in taxonomy.
func Default() *Taxonomy {
	t, err := New(DefaultSpecs())
	if err != nil {
		panic(fmt.Sprintf("builtin taxonomy: %v", err))
	}
	return t
}

// New compiles specs into a Taxonomy. Specs naming the same category are
// merged. A category may have zero rules, in which case it always counts 0.
func New(specs []CategorySpec) (*Taxonomy, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("taxonomy must define at least one category")
	}
	t := &Taxonomy{
		rules:   make(map[schema.MovementCategory][]Rule),
		weights: make(map[schema.MovementCategory]float64),
		caseOf:  make(map[schema.MovementCategory]bool),
	}
	seen := make(map[schema.MovementCategory]bool)
	for _, spec := range specs {
		cat := schema.MovementCategory(strings.ToLower(strings.TrimSpace(string(spec.Category))))
		if cat == "" {
			return nil, fmt.Errorf("taxonomy category name cannot be empty")
		}
		if !seen[cat] {
			seen[cat] = true
			t.categories = append(t.categories, cat)
			t.rules[cat] = nil
		}
		t.caseOf[cat] = spec.CaseSensitive
		for _, pattern := range spec.Rules {
			expr := pattern
			if !spec.CaseSensitive {
				expr = "(?i)" + expr
			}
			re, err := regexp.Compile(expr)
			if err != nil {
				return nil, fmt.Errorf("invalid rule %q for category %s: %w", pattern, cat, err)
			}
			t.rules[cat] = append(t.rules[cat], Rule{
				Category:      cat,
				Pattern:       pattern,
				CaseSensitive: spec.CaseSensitive,
				re:            re,
			})
		}
		if spec.Weight != nil {
			if *spec.Weight < 0 {
				return nil, fmt.Errorf("weight for category %s must be non-negative (received %v)", cat, *spec.Weight)
			}
			t.weights[cat] = *spec.Weight
		}
	}
	sortCategories(t.categories)
	return t, nil
}

// sortCategories puts built-in categories first in canonical order and
// any custom ones after them alphabetically.
func sortCategories(cats []schema.MovementCategory) {
	rank := func(c schema.MovementCategory) int {
		if i := slices.Index(schema.BuiltinCategories, c); i >= 0 {
			return i
		}
		return len(schema.BuiltinCategories)
	}
	sort.SliceStable(cats, func(i, j int) bool {
		ri, rj := rank(cats[i]), rank(cats[j])
		if ri != rj {
			return ri < rj
		}
		return cats[i] < cats[j]
	})
}

// Categories returns the ordered category set. Detection and output both
// use this list so their columns always agree.
func (t *Taxonomy) Categories() []schema.MovementCategory {
	return slices.Clone(t.categories)
}

// RulesFor returns the rules of a category, or nil if it is unknown.
func (t *Taxonomy) RulesFor(cat schema.MovementCategory) []Rule {
	return slices.Clone(t.rules[cat])
}

// WeightOf returns the multiplier of a category, defaulting to 1.
func (t *Taxonomy) WeightOf(cat schema.MovementCategory) float64 {
	if w, ok := t.weights[cat]; ok {
		return w
	}
	return DefaultWeight
}

// WithWeights returns a copy of the taxonomy with the given weights applied
// on top of the existing ones. Unknown categories are rejected.
func (t *Taxonomy) WithWeights(overrides map[schema.MovementCategory]float64) (*Taxonomy, error) {
	out := &Taxonomy{
		categories: slices.Clone(t.categories),
		rules:      t.rules,
		weights:    make(map[schema.MovementCategory]float64, len(t.weights)+len(overrides)),
		caseOf:     t.caseOf,
	}
	for k, v := range t.weights {
		out.weights[k] = v
	}
	for k, v := range overrides {
		if _, ok := t.rules[k]; !ok {
			return nil, fmt.Errorf("weight given for unknown category %s", k)
		}
		if v < 0 {
			return nil, fmt.Errorf("weight for category %s must be non-negative (received %v)", k, v)
		}
		out.weights[k] = v
	}
	return out, nil
}

// Count applies every rule to text and returns per-category counts. Each
// category of the taxonomy is present in the result, even when zero.
func (t *Taxonomy) Count(text string) schema.MovementCounts {
	counts := t.ZeroCounts()
	t.CountInto(counts, text)
	return counts
}

// CountInto adds the matches found in text to counts.
func (t *Taxonomy) CountInto(counts schema.MovementCounts, text string) {
	for _, cat := range t.categories {
		for _, rule := range t.rules[cat] {
			counts[cat] += rule.Count(text)
		}
	}
}

// ZeroCounts returns a counts map with every category set to 0.
func (t *Taxonomy) ZeroCounts() schema.MovementCounts {
	counts := make(schema.MovementCounts, len(t.categories))
	for _, cat := range t.categories {
		counts[cat] = 0
	}
	return counts
}

// Specs returns the declarative form of the taxonomy, with weights resolved.
// A category whose rules mix case modes yields one spec per run of rules
// sharing a mode, in rule order, so New(t.Specs()) rebuilds the same table.
func (t *Taxonomy) Specs() []CategorySpec {
	specs := make([]CategorySpec, 0, len(t.categories))
	for _, cat := range t.categories {
		w := t.WeightOf(cat)
		rules := t.rules[cat]
		if len(rules) == 0 {
			specs = append(specs, CategorySpec{Category: cat, Weight: &w, CaseSensitive: t.caseOf[cat]})
			continue
		}
		for start := 0; start < len(rules); {
			end := start
			spec := CategorySpec{Category: cat, Weight: &w, CaseSensitive: rules[start].CaseSensitive}
			for end < len(rules) && rules[end].CaseSensitive == spec.CaseSensitive {
				spec.Rules = append(spec.Rules, rules[end].Pattern)
				end++
			}
			specs = append(specs, spec)
			start = end
		}
	}
	return specs
}

// Fingerprint identifies the detection rules. Two taxonomies with equal
// fingerprints produce equal counts for the same text; weights are not part
// of it since they do not change raw counts.
func (t *Taxonomy) Fingerprint() string {
	h := sha256.New()
	for _, cat := range t.categories {
		_, _ = fmt.Fprintf(h, "%s\n", cat)
		for _, r := range t.rules[cat] {
			_, _ = fmt.Fprintf(h, "\t%t|%s\n", r.CaseSensitive, r.Pattern)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
