package migrate

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func writeMigration(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestUpAppliesPendingInOrder(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "0002_second.sql", "create table b(id int)")
	writeMigration(t, dir, "0001_first.sql", "create table a(id int)")
	writeMigration(t, dir, "notes.txt", "ignored")

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("create table if not exists schema_migrations")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("select name from schema_migrations")).
		WillReturnRows(sqlmock.NewRows([]string{"name"}))

	for _, m := range []struct{ name, body string }{
		{"0001_first.sql", "create table a(id int)"},
		{"0002_second.sql", "create table b(id int)"},
	} {
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(m.body)).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(regexp.QuoteMeta("insert into schema_migrations(name) values($1)")).
			WithArgs(m.name).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()
	}

	applied, err := NewManager(db, dir).Up(context.Background())
	if err != nil {
		t.Fatalf("Up: %v", err)
	}
	if len(applied) != 2 || applied[0] != "0001_first.sql" || applied[1] != "0002_second.sql" {
		t.Fatalf("applied = %v", applied)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestUpSkipsAlreadyApplied(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "0001_first.sql", "create table a(id int)")
	writeMigration(t, dir, "0002_second.sql", "create table b(id int)")

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("create table if not exists schema_migrations")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("select name from schema_migrations")).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("0001_first.sql"))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("create table b(id int)")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("insert into schema_migrations(name) values($1)")).
		WithArgs("0002_second.sql").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	applied, err := NewManager(db, dir).Up(context.Background())
	if err != nil {
		t.Fatalf("Up: %v", err)
	}
	if len(applied) != 1 || applied[0] != "0002_second.sql" {
		t.Fatalf("applied = %v", applied)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestUpRollsBackFailedMigration(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "0001_bad.sql", "create broken syntax")

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("create table if not exists schema_migrations")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("select name from schema_migrations")).
		WillReturnRows(sqlmock.NewRows([]string{"name"}))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("create broken syntax")).
		WillReturnError(context.DeadlineExceeded)
	mock.ExpectRollback()

	applied, err := NewManager(db, dir).Up(context.Background())
	if err == nil {
		t.Fatal("expected error from failing migration")
	}
	if len(applied) != 0 {
		t.Fatalf("applied = %v, want none", applied)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
