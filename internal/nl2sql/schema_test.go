package nl2sql

import (
	"context"
	"strings"
	"testing"

	"github.com/xwines/xwines/internal/catalog"
	"github.com/xwines/xwines/internal/store/storetest"
)

func TestSchemaContextIncludesDDLAndSamples(t *testing.T) {
	st := storetest.OpenSeeded(t)
	sc := NewSchemaContext(st, catalog.Default(), nil)

	text := sc.Text(context.Background())
	for _, snippet := range []string{
		`CREATE TABLE "Countries" ( "Code" TEXT PRIMARY KEY, "Country" TEXT NOT NULL );`,
		"/* DATABASE DATA CONTEXT */",
		"-- Ex. values for Wine.Type: Red, Sparkling, White",
		"-- Ex. values for Countries.Country: France, Italy, Portugal, Spain",
		"-- Ex. values for Vintages.Vintage: 2010, 2015",
	} {
		if !strings.Contains(text, snippet) {
			t.Fatalf("schema context missing %q:\n%s", snippet, text)
		}
	}
	if strings.Index(text, `CREATE TABLE "Wine"`) > strings.Index(text, `CREATE TABLE "Winery"`) {
		t.Fatalf("tables out of order:\n%s", text)
	}
	if strings.Contains(text, "\n\n\n") {
		t.Fatalf("unexpected blank lines:\n%s", text)
	}
}

func TestSchemaContextIsFrozenAfterFirstBuild(t *testing.T) {
	st := storetest.OpenSeeded(t)
	sc := NewSchemaContext(st, catalog.Default(), nil)
	ctx := context.Background()

	first := sc.Text(ctx)
	storetest.Exec(t, st.DB(),
		`INSERT INTO "Countries" ("Code", "Country") VALUES ('AR', 'Argentina')`,
		`CREATE TABLE "Extra" ("ExtraID" INTEGER)`,
	)
	second := sc.Text(ctx)
	if first != second {
		t.Fatalf("schema context changed:\n%s\n---\n%s", first, second)
	}
	if strings.Contains(second, "Argentina") {
		t.Fatal("schema context picked up a later insert")
	}
}

func TestSchemaContextSkipsFailingSamplesAndMissingTables(t *testing.T) {
	st := storetest.OpenSeeded(t)
	cat, err := catalog.Parse([]byte(`
schema_context:
  tables: [Wine, Cellar]
  samples:
    - {table: Cellar, column: Shelf, limit: 5}
    - {table: Wine, column: Body, limit: 20}
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	text := NewSchemaContext(st, cat, nil).Text(context.Background())
	if strings.Contains(text, "Cellar") {
		t.Fatalf("schema context mentions missing table:\n%s", text)
	}
	if !strings.Contains(text, "-- Ex. values for Wine.Body: Full-bodied, Light-bodied, Medium-bodied") {
		t.Fatalf("schema context missing Body sample:\n%s", text)
	}
}

func TestSchemaContextSurvivesCancelledFirstCaller(t *testing.T) {
	st := storetest.OpenSeeded(t)
	sc := NewSchemaContext(st, catalog.Default(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	text := sc.Text(ctx)
	if !strings.Contains(text, `CREATE TABLE "Wine"`) {
		t.Fatalf("schema context built with cancelled ctx:\n%s", text)
	}
}
