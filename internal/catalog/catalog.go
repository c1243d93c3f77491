// Package catalog holds the per-dataset table conventions: primary key
// overrides, display columns, inverse relations and the columns sampled into
// the assistant's schema context. It is declarative data decoded once at
// startup; nothing here is discovered from store metadata.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed xwines.yaml
var defaultCatalog []byte

type Relation struct {
	Table      string `yaml:"table" json:"table"`
	ForeignKey string `yaml:"foreign_key" json:"foreign_key"`
	Display    string `yaml:"display" json:"display"`
}

type Sample struct {
	Table  string `yaml:"table"`
	Column string `yaml:"column"`
	Limit  int    `yaml:"limit"`
}

type tableSpec struct {
	PrimaryKey string     `yaml:"primary_key"`
	Positional bool       `yaml:"positional"`
	Display    string     `yaml:"display"`
	Relations  []Relation `yaml:"relations"`
}

type document struct {
	PositionalColumn string `yaml:"positional_column"`
	Labels           struct {
		Display []string `yaml:"display"`
		Search  []string `yaml:"search"`
	} `yaml:"labels"`
	Tables        map[string]tableSpec `yaml:"tables"`
	SchemaContext struct {
		Tables  []string `yaml:"tables"`
		Samples []Sample `yaml:"samples"`
	} `yaml:"schema_context"`
}

// TableDescriptor is the resolved convention set for one table.
type TableDescriptor struct {
	Name       string
	PrimaryKey string
	Positional bool
	// DisplayColumn is the override, empty when the display column is
	// resolved from row contents.
	DisplayColumn string
	Relations     []Relation
}

type Catalog struct {
	positionalColumn string
	displayLabels    []string
	searchLabels     []string
	tables           map[string]tableSpec
	contextTables    []string
	samples          []Sample
}

// Default returns the embedded X-Wines catalog.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog: %v", err))
	}
	return c
}

func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	c, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return c, nil
}

func Parse(raw []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if strings.TrimSpace(doc.PositionalColumn) == "" {
		doc.PositionalColumn = "rowid"
	}
	if doc.Tables == nil {
		doc.Tables = map[string]tableSpec{}
	}
	for name, spec := range doc.Tables {
		if spec.Positional && spec.PrimaryKey != "" {
			return nil, fmt.Errorf("table %s: positional tables cannot declare primary_key", name)
		}
		for i, rel := range spec.Relations {
			if rel.Table == "" || rel.ForeignKey == "" {
				return nil, fmt.Errorf("table %s: relation %d requires table and foreign_key", name, i)
			}
		}
	}
	for i, sample := range doc.SchemaContext.Samples {
		if sample.Table == "" || sample.Column == "" || sample.Limit <= 0 {
			return nil, fmt.Errorf("schema_context sample %d requires table, column and a positive limit", i)
		}
	}
	return &Catalog{
		positionalColumn: doc.PositionalColumn,
		displayLabels:    doc.Labels.Display,
		searchLabels:     doc.Labels.Search,
		tables:           doc.Tables,
		contextTables:    doc.SchemaContext.Tables,
		samples:          doc.SchemaContext.Samples,
	}, nil
}

// PositionalColumn is the name under which positional identifiers are
// projected and addressed.
func (c *Catalog) PositionalColumn() string {
	return c.positionalColumn
}

// PrimaryKey resolves the key column for any table name. It never fails:
// tables without an override use <Table>ID.
func (c *Catalog) PrimaryKey(table string) string {
	spec := c.tables[table]
	switch {
	case spec.Positional:
		return c.positionalColumn
	case spec.PrimaryKey != "":
		return spec.PrimaryKey
	default:
		return table + "ID"
	}
}

func (c *Catalog) IsPositional(table string) bool {
	return c.tables[table].Positional
}

func (c *Catalog) DisplayOverride(table string) string {
	return c.tables[table].Display
}

// Relations returns the inverse relations of table in declaration order.
func (c *Catalog) Relations(table string) []Relation {
	rels := c.tables[table].Relations
	out := make([]Relation, len(rels))
	copy(out, rels)
	return out
}

func (c *Catalog) Describe(table string) TableDescriptor {
	return TableDescriptor{
		Name:          table,
		PrimaryKey:    c.PrimaryKey(table),
		Positional:    c.IsPositional(table),
		DisplayColumn: c.DisplayOverride(table),
		Relations:     c.Relations(table),
	}
}

// ResolveDisplay picks the display column for a page whose first row has the
// given columns: override, then the first label-like column, then the key.
func (c *Catalog) ResolveDisplay(table string, firstRowColumns []string) string {
	if override := c.DisplayOverride(table); override != "" {
		return override
	}
	for _, column := range firstRowColumns {
		if containsAny(column, c.displayLabels) {
			return column
		}
	}
	return c.PrimaryKey(table)
}

// SearchColumns filters declared columns down to the ones free-text search
// runs over. This is a case-sensitive substring heuristic: "UserName"
// qualifies while "Username" does not.
func (c *Catalog) SearchColumns(table string, declared []string) []string {
	pk := c.PrimaryKey(table)
	override := c.DisplayOverride(table)
	seen := make(map[string]struct{}, len(declared))
	out := make([]string, 0, len(declared))
	for _, column := range declared {
		if _, dup := seen[column]; dup {
			continue
		}
		if column == pk || (override != "" && column == override) || containsAny(column, c.searchLabels) {
			seen[column] = struct{}{}
			out = append(out, column)
		}
	}
	return out
}

// ContextTables lists the tables whose DDL goes into the schema context.
func (c *Catalog) ContextTables() []string {
	out := make([]string, len(c.contextTables))
	copy(out, c.contextTables)
	return out
}

func (c *Catalog) Samples() []Sample {
	out := make([]Sample, len(c.samples))
	copy(out, c.samples)
	return out
}

func containsAny(value string, needles []string) bool {
	for _, needle := range needles {
		if needle != "" && strings.Contains(value, needle) {
			return true
		}
	}
	return false
}
