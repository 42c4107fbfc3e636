package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/huangsam/cfpscan/core/taxonomy"
	"github.com/huangsam/cfpscan/internal/contract"
	"github.com/huangsam/cfpscan/schema"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"
)

// WriteTaxonomy prints the active categories with their rules and weights.
func WriteTaxonomy(tax *taxonomy.Taxonomy, cfg *contract.Config) error {
	_, fmtTotal := createFormatters(cfg.Precision)

	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, tax.Specs())
		}, "Wrote JSON")
	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeTaxonomyCSV(w, tax, fmtTotal)
		}, "Wrote CSV")
	case schema.TextOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeTaxonomyTable(w, tax, fmtTotal)
		}, "Wrote table")
	default:
		return fmt.Errorf("taxonomy cannot be written as %s", cfg.Output)
	}
}

// writeTaxonomyCSV writes one row per rule. Categories without rules get a
// single row with an empty rule.
func writeTaxonomyCSV(w io.Writer, tax *taxonomy.Taxonomy, fmtTotal func(float64) string) error {
	header := []string{"category", "weight", "case_sensitive", "rule"}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for _, spec := range tax.Specs() {
			weight := fmtTotal(*spec.Weight)
			sensitive := strconv.FormatBool(spec.CaseSensitive)
			rules := spec.Rules
			if len(rules) == 0 {
				rules = []string{""}
			}
			for _, rule := range rules {
				if err := cw.Write([]string{string(spec.Category), weight, sensitive, rule}); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func writeTaxonomyTable(w io.Writer, tax *taxonomy.Taxonomy, fmtTotal func(float64) string) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Category", "Weight", "Case", "Rules"})

	specs := tax.Specs()
	data := make([][]string, 0, len(specs))
	totalRules := 0
	for _, spec := range specs {
		caseMode := "insensitive"
		if spec.CaseSensitive {
			caseMode = "sensitive"
		}
		totalRules += len(spec.Rules)
		data = append(data, []string{string(spec.Category), fmtTotal(*spec.Weight), caseMode, strings.Join(spec.Rules, "\n")})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d categories, %d rules. Fingerprint: %s\n", len(tax.Categories()), totalRules, shortFingerprint(tax.Fingerprint()))
	return err
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}

// yamlTaxonomyEntry mirrors the config file layout of one category.
type yamlTaxonomyEntry struct {
	Rules         []string `yaml:"rules"`
	Weight        float64  `yaml:"weight"`
	CaseSensitive bool     `yaml:"case_sensitive,omitempty"`
}

// WriteTaxonomyYAML writes the active taxonomy as a config file fragment
// that can be pasted into .cfpscan.yaml and edited.
func WriteTaxonomyYAML(tax *taxonomy.Taxonomy, cfg *contract.Config) error {
	return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
		return writeTaxonomyYAML(w, tax)
	}, "Wrote YAML")
}

func writeTaxonomyYAML(w io.Writer, tax *taxonomy.Taxonomy) error {
	// A category with rules in both case modes becomes a list of entries.
	grouped := make(map[schema.MovementCategory][]yamlTaxonomyEntry)
	for _, spec := range tax.Specs() {
		entry := yamlTaxonomyEntry{Rules: spec.Rules, Weight: *spec.Weight, CaseSensitive: spec.CaseSensitive}
		if entry.Rules == nil {
			entry.Rules = []string{}
		}
		grouped[spec.Category] = append(grouped[spec.Category], entry)
	}

	// A yaml.Node keeps categories in taxonomy order; a map would sort them.
	entries := &yaml.Node{Kind: yaml.MappingNode}
	for _, cat := range tax.Categories() {
		var value yaml.Node
		var err error
		if group := grouped[cat]; len(group) == 1 {
			err = value.Encode(group[0])
		} else {
			err = value.Encode(group)
		}
		if err != nil {
			return fmt.Errorf("failed to encode category %s: %w", cat, err)
		}
		entries.Content = append(entries.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: string(cat)},
			&value,
		)
	}
	doc := &yaml.Node{Kind: yaml.MappingNode, Content: []*yaml.Node{
		{Kind: yaml.ScalarNode, Value: "taxonomy"},
		entries,
	}}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return encoder.Close()
}
