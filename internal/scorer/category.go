package scorer

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Category is one topical signal; a window matches it at most once.
type Category struct {
	Name    string
	Pattern *regexp.Regexp
}

// Table is the ordered set of categories a scorer counts.
type Table []Category

// CategorySpec is the declarative form of a category, as found in YAML files.
type CategorySpec struct {
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`
}

type tableFile struct {
	Categories []CategorySpec `yaml:"categories"`
}

var defaultSpecs = []CategorySpec{
	{Name: "economics", Pattern: `economic\s+analysis|financial\s+analysis|project\s+economics|economic\s+evaluation`},
	{Name: "executive-summary", Pattern: `executive\s+summary|summary\s+of\s+results|project\s+summary|key\s+findings`},
	{Name: "npv", Pattern: `net\s+present\s+value|\bnpv\b`},
	{Name: "irr", Pattern: `internal\s+rate\s+of\s+return|\birr\b`},
	{Name: "capex", Pattern: `capital\s+costs?|initial\s+capital|\bcapex\b|capital\s+expenditures?`},
	{Name: "resources", Pattern: `mineral\s+resources?|resource\s+estimates?|measured\s+(?:and|&)\s+indicated`},
	{Name: "reserves", Pattern: `mineral\s+reserves?|reserve\s+estimates?|ore\s+reserves?|proven\s+(?:and|&)\s+probable`},
}

// DefaultCategories returns the built-in table for mining technical reports.
func DefaultCategories() Table {
	t, err := NewTable(defaultSpecs)
	if err != nil {
		panic(err)
	}
	return t
}

// NewTable compiles specs into a case-insensitive table. Names must be unique.
func NewTable(specs []CategorySpec) (Table, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("category table is empty")
	}
	seen := make(map[string]struct{}, len(specs))
	out := make(Table, 0, len(specs))
	for i, s := range specs {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			return nil, fmt.Errorf("category %d: name is required", i)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("category %q: duplicate name", name)
		}
		seen[name] = struct{}{}
		if strings.TrimSpace(s.Pattern) == "" {
			return nil, fmt.Errorf("category %q: pattern is required", name)
		}
		re, err := regexp.Compile("(?i)" + s.Pattern)
		if err != nil {
			return nil, fmt.Errorf("category %q: %w", name, err)
		}
		out = append(out, Category{Name: name, Pattern: re})
	}
	return out, nil
}

// ParseCategories reads a YAML category table:
//
//	categories:
//	  - name: npv
//	    pattern: 'net\s+present\s+value|\bnpv\b'
func ParseCategories(data []byte) (Table, error) {
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse category table: %w", err)
	}
	return NewTable(f.Categories)
}

// LoadCategories reads a YAML category table from path. An empty path
// yields DefaultCategories.
func LoadCategories(path string) (Table, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultCategories(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read category table: %w", err)
	}
	return ParseCategories(b)
}

// Names lists category names in table order.
func (t Table) Names() []string {
	out := make([]string, len(t))
	for i, c := range t {
		out[i] = c.Name
	}
	return out
}
