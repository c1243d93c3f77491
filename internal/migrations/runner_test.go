package migrations

import (
	"context"
	"path/filepath"
	"reflect"
	"regexp"
	"testing"
	"testing/fstest"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/xwines/xwines/internal/store"
	"github.com/xwines/xwines/internal/store/sqldb"
)

func TestUpSkipsAppliedVersionsAndRunsStatementsOneByOne(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	runner := &Runner{
		fsys: fstest.MapFS{
			"sql/000001_one.up.sql":   {Data: []byte(`CREATE TABLE "A" (x INTEGER);`)},
			"sql/000001_one.down.sql": {Data: []byte(`DROP TABLE "A";`)},
			"sql/000002_two.up.sql":   {Data: []byte("CREATE TABLE \"B\" (y INTEGER);\nCREATE INDEX \"b_y\" ON \"B\" (y);")},
			"sql/000002_two.down.sql": {Data: []byte(`DROP TABLE "B";`)},
		},
		dialect: store.Postgres,
	}

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS xwines_schema_migrations")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version FROM xwines_schema_migrations")).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(int64(1)))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE "B" (y INTEGER)`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`CREATE INDEX "b_y" ON "B" (y)`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO xwines_schema_migrations (version, name) VALUES ($1, $2)")).
		WithArgs(int64(2), "two").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	applied, err := runner.Up(context.Background(), db, 0)
	if err != nil {
		t.Fatalf("Up() error = %v", err)
	}
	if applied != 1 {
		t.Fatalf("Up() applied = %d, want 1", applied)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRunnerAppliesAndRollsBackWineSchemaOnSQLite(t *testing.T) {
	ctx := context.Background()
	db, dialect, err := sqldb.Open(ctx, sqldb.DBConfig{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "xwines.db"),
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	runner := NewRunner(dialect)
	applied, err := runner.Up(ctx, db, 0)
	if err != nil {
		t.Fatalf("Up() error = %v", err)
	}
	if applied != 2 {
		t.Fatalf("Up() applied = %d, want 2", applied)
	}

	st := sqldb.New(db, dialect)
	tables, err := st.ListTables(ctx)
	if err != nil {
		t.Fatalf("ListTables() error = %v", err)
	}
	if len(tables) != 7 {
		t.Fatalf("ListTables() = %#v", tables)
	}

	states, err := runner.Status(ctx, db)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	want := []State{
		{Version: 1, Name: "wine_schema", Applied: true},
		{Version: 2, Name: "lookup_indexes", Applied: true},
	}
	if !reflect.DeepEqual(states, want) {
		t.Fatalf("Status() = %#v", states)
	}

	again, err := runner.Up(ctx, db, 0)
	if err != nil || again != 0 {
		t.Fatalf("second Up() = %d, %v", again, err)
	}

	rolledBack, err := runner.Down(ctx, db, 2)
	if err != nil {
		t.Fatalf("Down() error = %v", err)
	}
	if rolledBack != 2 {
		t.Fatalf("Down() rolled back = %d, want 2", rolledBack)
	}
	tables, err = st.ListTables(ctx)
	if err != nil {
		t.Fatalf("ListTables() error = %v", err)
	}
	if len(tables) != 0 {
		t.Fatalf("ListTables() after Down = %#v", tables)
	}
}

func TestDownRollsBackNewestFirst(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	runner := &Runner{
		fsys: fstest.MapFS{
			"sql/000001_one.up.sql":   {Data: []byte(`CREATE TABLE "A" (x INTEGER);`)},
			"sql/000001_one.down.sql": {Data: []byte(`DROP TABLE "A";`)},
			"sql/000002_two.up.sql":   {Data: []byte(`CREATE TABLE "B" (y INTEGER);`)},
			"sql/000002_two.down.sql": {Data: []byte(`DROP TABLE "B";`)},
		},
		dialect: store.SQLite,
	}

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS xwines_schema_migrations")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version FROM xwines_schema_migrations")).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(int64(1)).AddRow(int64(2)))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DROP TABLE "B"`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM xwines_schema_migrations WHERE version = ?")).
		WithArgs(int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	rolledBack, err := runner.Down(context.Background(), db, 0)
	if err != nil {
		t.Fatalf("Down() error = %v", err)
	}
	if rolledBack != 1 {
		t.Fatalf("Down() rolled back = %d, want 1", rolledBack)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUnknownAppliedVersionIsAnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	runner := &Runner{
		fsys: fstest.MapFS{
			"sql/000001_one.up.sql":   {Data: []byte(`CREATE TABLE "A" (x INTEGER);`)},
			"sql/000001_one.down.sql": {Data: []byte(`DROP TABLE "A";`)},
		},
		dialect: store.SQLite,
	}
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS xwines_schema_migrations")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version FROM xwines_schema_migrations")).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(int64(9)))

	if _, err := runner.Up(context.Background(), db, 0); err == nil {
		t.Fatal("Up() expected error for a version without a script")
	}
}
