package catalog

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestPrimaryKeyRules(t *testing.T) {
	c := Default()
	cases := map[string]string{
		"Wine":      "WineID",
		"Winery":    "WineryID",
		"Region":    "RegionID",
		"Countries": "Code",
		"Grapes":    "rowid",
		"Harmonize": "rowid",
		"Vintages":  "rowid",
		"Cellar":    "CellarID",
	}
	for table, want := range cases {
		if got := c.PrimaryKey(table); got != want {
			t.Fatalf("PrimaryKey(%q) = %q, want %q", table, got, want)
		}
	}
	if !c.IsPositional("Grapes") || c.IsPositional("Wine") {
		t.Fatal("IsPositional() mismatch")
	}
}

func TestRelationsKeepDeclarationOrder(t *testing.T) {
	c := Default()
	got := c.Relations("Wine")
	want := []Relation{
		{Table: "Grapes", ForeignKey: "WineID", Display: "Grape"},
		{Table: "Harmonize", ForeignKey: "WineID", Display: "Harmonize"},
		{Table: "Vintages", ForeignKey: "WineID", Display: "Vintage"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Relations(Wine) = %#v", got)
	}
	if rels := c.Relations("Countries"); len(rels) != 1 || rels[0].Table != "Region" || rels[0].ForeignKey != "Code" {
		t.Fatalf("Relations(Countries) = %#v", rels)
	}
	if rels := c.Relations("Grapes"); len(rels) != 0 {
		t.Fatalf("Relations(Grapes) = %#v", rels)
	}
}

func TestResolveDisplay(t *testing.T) {
	c := Default()
	if got := c.ResolveDisplay("Grapes", []string{"rowid", "WineID", "Grape"}); got != "Grape" {
		t.Fatalf("ResolveDisplay(Grapes) = %q", got)
	}
	if got := c.ResolveDisplay("Grapes", nil); got != "Grape" {
		t.Fatalf("ResolveDisplay(Grapes, empty page) = %q", got)
	}
	if got := c.ResolveDisplay("Countries", []string{"Code", "Country"}); got != "Country" {
		t.Fatalf("ResolveDisplay(Countries) = %q", got)
	}
	if got := c.ResolveDisplay("Wine", []string{"WineID", "WineName", "Type"}); got != "WineName" {
		t.Fatalf("ResolveDisplay(Wine) = %q", got)
	}
	if got := c.ResolveDisplay("Wine", nil); got != "WineID" {
		t.Fatalf("ResolveDisplay(Wine, empty page) = %q", got)
	}
}

func TestSearchColumns(t *testing.T) {
	c := Default()
	declared := []string{"WineID", "WineName", "Type", "Elaborate", "ABV", "Body", "Code", "RegionID"}
	got := c.SearchColumns("Wine", declared)
	want := []string{"WineID", "WineName", "Type", "Code"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("SearchColumns(Wine) = %#v", got)
	}

	got = c.SearchColumns("Vintages", []string{"WineID", "Vintage"})
	if !reflect.DeepEqual(got, []string{"Vintage"}) {
		t.Fatalf("SearchColumns(Vintages) = %#v", got)
	}

	// Case-sensitive substring match: UserName and HostName qualify, Username does not.
	got = c.SearchColumns("Accounts", []string{"AccountsID", "Username", "UserName", "HostName", "Score"})
	if !reflect.DeepEqual(got, []string{"AccountsID", "UserName", "HostName"}) {
		t.Fatalf("SearchColumns(Accounts) = %#v", got)
	}
	if got := c.ResolveDisplay("Accounts", []string{"AccountsID", "Username"}); got != "AccountsID" {
		t.Fatalf("ResolveDisplay(Accounts) = %q", got)
	}

	if got := c.SearchColumns("Metrics", []string{"Value"}); len(got) != 0 {
		t.Fatalf("SearchColumns(Metrics) = %#v", got)
	}
}

func TestSchemaContextTargets(t *testing.T) {
	c := Default()
	if got := c.ContextTables(); len(got) != 7 || got[0] != "Wine" || got[6] != "Vintages" {
		t.Fatalf("ContextTables() = %#v", got)
	}
	samples := c.Samples()
	if len(samples) != 6 {
		t.Fatalf("Samples() len = %d", len(samples))
	}
	if samples[2] != (Sample{Table: "Countries", Column: "Country", Limit: 50}) {
		t.Fatalf("Samples()[2] = %#v", samples[2])
	}
}

func TestParseRejectsInvalidDocuments(t *testing.T) {
	docs := []string{
		"tables: [",
		"tables:\n  A:\n    positional: true\n    primary_key: X\n",
		"tables:\n  A:\n    relations:\n      - table: B\n",
		"schema_context:\n  samples:\n    - {table: A, column: B, limit: 0}\n",
	}
	for _, doc := range docs {
		if _, err := Parse([]byte(doc)); err == nil {
			t.Fatalf("Parse(%q) expected error", doc)
		}
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	doc := "positional_column: id\ntables:\n  Items:\n    positional: true\n"
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := c.PrimaryKey("Items"); got != "id" {
		t.Fatalf("PrimaryKey(Items) = %q", got)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("Load(missing) expected error")
	}
}
