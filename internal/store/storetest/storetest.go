// Package storetest opens migrated SQLite stores seeded with a small X-Wines
// fixture for package tests.
package storetest

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/xwines/xwines/internal/migrations"
	"github.com/xwines/xwines/internal/store/sqldb"
)

// Open returns an empty store with the wine schema applied. The database
// lives in a temp file so every pooled connection sees the same data.
func Open(t testing.TB) *sqldb.Store {
	t.Helper()

	ctx := context.Background()
	db, dialect, err := sqldb.Open(ctx, sqldb.DBConfig{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "xwines.db"),
	})
	if err != nil {
		t.Fatalf("sqldb.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if _, err := migrations.NewRunner(dialect).Up(ctx, db, 0); err != nil {
		t.Fatalf("migrations Up() error = %v", err)
	}
	return sqldb.New(db, dialect)
}

// OpenSeeded returns a store holding the fixture rows below.
//
// Wine 100 has three grapes, three vintages and no pairings. Wines 100 and
// 104 carry "Douro" in their names, in different case.
func OpenSeeded(t testing.TB) *sqldb.Store {
	t.Helper()
	st := Open(t)
	Exec(t, st.DB(), fixture...)
	return st
}

// Exec runs each statement and fails the test on the first error.
func Exec(t testing.TB, db *sql.DB, statements ...string) {
	t.Helper()
	for _, statement := range statements {
		if _, err := db.ExecContext(context.Background(), statement); err != nil {
			t.Fatalf("exec %q: %v", statement, err)
		}
	}
}

var fixture = []string{
	`INSERT INTO "Countries" ("Code", "Country") VALUES ('PT', 'Portugal'), ('FR', 'France'), ('ES', 'Spain'), ('IT', 'Italy')`,
	`INSERT INTO "Region" ("RegionID", "RegionName", "Code") VALUES
		(1, 'Douro', 'PT'), (2, 'Alentejo', 'PT'), (3, 'Bordeaux', 'FR'), (4, 'Rioja', 'ES'), (5, 'Toscana', 'IT')`,
	`INSERT INTO "Winery" ("WineryID", "WineryName", "Website") VALUES
		(10, 'Quinta do Crasto', 'https://quintadocrasto.pt'),
		(11, 'Herdade do Esporao', 'https://esporao.com'),
		(12, 'Chateau Margaux', NULL),
		(13, 'Bodegas Muga', NULL),
		(14, 'Global Vintners', NULL)`,
	`INSERT INTO "Wine" ("WineID", "WineName", "Type", "Elaborate", "Body", "Acidity", "ABV", "WineryID", "RegionID") VALUES
		(100, 'Crasto Douro Tinto', 'Red', 'Assemblage/Blend', 'Full-bodied', 'High', 14.0, 10, 1),
		(101, 'Esporao Reserva', 'Red', 'Assemblage/Blend', 'Full-bodied', 'Medium', 14.5, 11, 2),
		(102, 'Margaux Grand Vin', 'Red', 'Assemblage/Blend', 'Full-bodied', 'High', 13.5, 12, 3),
		(103, 'Muga Reserva', 'Red', 'Varietal/100%', 'Medium-bodied', 'High', 14.0, 13, 4),
		(104, 'douro branco', 'White', 'Varietal/100%', 'Light-bodied', 'High', 12.5, 10, 1),
		(105, 'Esporao Espumante', 'Sparkling', 'Varietal/100%', 'Light-bodied', 'High', 12.0, 11, 2),
		(106, 'Global Rosso', 'Red', 'Varietal/100%', 'Medium-bodied', 'Low', 13.0, 14, 5),
		(107, 'Global Tinto', 'Red', 'Varietal/100%', 'Medium-bodied', 'High', 13.0, 14, 2)`,
	`INSERT INTO "Grapes" ("WineID", "Grape") VALUES
		(100, 'Touriga Nacional'), (100, 'Touriga Franca'), (100, 'Tinta Roriz'),
		(101, 'Aragonez'), (102, 'Cabernet Sauvignon'), (102, 'Merlot'),
		(103, 'Tempranillo'), (104, 'Rabigato'), (105, 'Arinto'), (106, 'Sangiovese'), (107, 'Aragonez')`,
	`INSERT INTO "Harmonize" ("WineID", "Harmonize") VALUES
		(101, 'Beef'), (101, 'Poultry'), (102, 'Beef'), (103, 'Beef'), (103, 'Lamb'),
		(104, 'Fish'), (105, 'Poultry'), (106, 'Pasta')`,
	`INSERT INTO "Vintages" ("WineID", "Vintage") VALUES
		(100, 2015), (100, 2016), (100, 2017), (101, 2018), (102, 2010), (103, 2019), (104, 2021), (105, 2020)`,
}
