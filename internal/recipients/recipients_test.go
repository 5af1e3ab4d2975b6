package recipients

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestParseType(t *testing.T) {
	if got, ok := ParseType(" Client "); !ok || got != TypeClient {
		t.Fatalf("expected client, got %q %v", got, ok)
	}
	if got, ok := ParseType("jobseeker"); !ok || got != TypeJobseeker {
		t.Fatalf("expected jobseeker, got %q %v", got, ok)
	}
	if _, ok := ParseType("vendor"); ok {
		t.Fatalf("vendor should not be supported")
	}
}

func TestMemoryDirectoryResolve(t *testing.T) {
	dir := NewMemoryDirectory()
	dir.Add(Recipient{Type: TypeClient, ID: "c-1", DisplayName: "Acme", Email: "ops@acme.test"})

	got, err := dir.Resolve(context.Background(), TypeClient, "c-1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.Email != "ops@acme.test" {
		t.Fatalf("unexpected email %s", got.Email)
	}
	if _, err := dir.Resolve(context.Background(), TypeJobseeker, "c-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound across types, got %v", err)
	}
}

func TestPGDirectoryResolveJobseeker(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM jobseekers")).
		WithArgs("js-1").
		WillReturnRows(sqlmock.NewRows([]string{"name", "email"}).AddRow("Jane Doe ", "jane@example.com"))

	dir := &PGDirectory{DB: db}
	got, err := dir.Resolve(context.Background(), TypeJobseeker, "js-1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.DisplayName != "Jane Doe" || got.Email != "jane@example.com" {
		t.Fatalf("unexpected recipient %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGDirectoryResolveMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM clients")).
		WithArgs("c-9").
		WillReturnRows(sqlmock.NewRows([]string{"name", "email"}))

	dir := &PGDirectory{DB: db}
	if _, err := dir.Resolve(context.Background(), TypeClient, "c-9"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := dir.Resolve(context.Background(), Type("vendor"), "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown type, got %v", err)
	}
}
