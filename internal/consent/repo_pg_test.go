package consent

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"consent-backend/internal/recipients"
)

func newMockRepo(t *testing.T) (*PGRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return &PGRepo{DB: db}, mock
}

func recordRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "document_id", "recipient_type", "recipient_id", "token", "status",
		"sent_at", "completed_at", "consented_name", "ip_address", "created_at",
	})
}

func TestPGRepoCompleteRecordIsConditional(t *testing.T) {
	repo, mock := newMockRepo(t)
	at := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	stmt := regexp.QuoteMeta("WHERE id = $1 AND status = 'pending'\n  AND EXISTS (SELECT 1 FROM consent_documents d WHERE d.id = document_id AND d.is_active)")

	mock.ExpectExec(stmt).
		WithArgs("rec-1", at, "Jane Doe", "203.0.113.1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(stmt).
		WithArgs("rec-1", at, "Jane Doe", "203.0.113.1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	c := Completion{Name: "Jane Doe", IPAddress: "203.0.113.1", At: at}
	ok, err := repo.CompleteRecord(context.Background(), "rec-1", c)
	if err != nil || !ok {
		t.Fatalf("first complete: ok=%v err=%v", ok, err)
	}
	ok, err = repo.CompleteRecord(context.Background(), "rec-1", c)
	if err != nil || ok {
		t.Fatalf("second complete: ok=%v err=%v", ok, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoInsertRecordsMapsTokenConflict(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()
	recs := []Record{
		{ID: "r1", DocumentID: "d1", RecipientType: recipients.TypeClient, RecipientID: "A", Token: "t1", Status: StatusPending, SentAt: &now, CreatedAt: now},
		{ID: "r2", DocumentID: "d1", RecipientType: recipients.TypeClient, RecipientID: "B", Token: "t2", Status: StatusPending, CreatedAt: now},
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO consent_records (id, document_id, recipient_type, recipient_id, token, status, sent_at, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8), ($9, $10")).
		WithArgs("r1", "d1", "client", "A", "t1", "pending", now, now, "r2", "d1", "client", "B", "t2", "pending", nil, now).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "consent_records_token_key"})

	err := repo.InsertRecords(context.Background(), recs)
	if !errors.Is(err, ErrTokenConflict) {
		t.Fatalf("expected ErrTokenConflict, got %v", err)
	}

	mock.ExpectExec("INSERT INTO consent_records").
		WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "consent_records_document_id_fkey"})
	err = repo.InsertRecords(context.Background(), recs[:1])
	if err == nil || errors.Is(err, ErrTokenConflict) {
		t.Fatalf("expected raw error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetRecordByToken(t *testing.T) {
	repo, mock := newMockRepo(t)
	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	completed := created.Add(time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta("FROM consent_records WHERE token = $1")).
		WithArgs("tok").
		WillReturnRows(recordRows().AddRow("r1", "d1", "jobseeker", "js-1", "tok", "completed", nil, completed, "Jane Doe", "203.0.113.1", created))
	mock.ExpectQuery(regexp.QuoteMeta("FROM consent_records WHERE token = $1")).
		WithArgs("missing").
		WillReturnRows(recordRows())

	rec, err := repo.GetRecordByToken(context.Background(), "tok")
	if err != nil {
		t.Fatalf("GetRecordByToken: %v", err)
	}
	if rec.Status != StatusCompleted || rec.RecipientType != recipients.TypeJobseeker {
		t.Fatalf("unexpected record %+v", rec)
	}
	if rec.SentAt != nil || rec.CompletedAt == nil || !rec.CompletedAt.Equal(completed) {
		t.Fatalf("unexpected timestamps %+v", rec)
	}

	if _, err := repo.GetRecordByToken(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoListRecordsComposesFilters(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM consent_records WHERE document_id = $1 AND status = $2 AND consented_name ILIKE $3")).
		WithArgs("d1", "completed", "%jane%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE document_id = $1 AND status = $2 AND consented_name ILIKE $3 ORDER BY sent_at DESC, id DESC LIMIT $4 OFFSET $5")).
		WithArgs("d1", "completed", "%jane%", 10, 10).
		WillReturnRows(recordRows().AddRow("r1", "d1", "client", "A", "tok", "completed", now, now, "Jane Doe", "1.2.3.4", now))

	recs, total, err := repo.ListRecords(context.Background(), "d1",
		[]RecordPredicate{StatusIs{Status: StatusCompleted}, SearchTerm{Text: "jane"}},
		ListOptions{Sort: Sort{Column: "sent_at", Desc: true}, Offset: 10, Limit: 10})
	if err != nil {
		t.Fatalf("ListRecords: %v", err)
	}
	if total != 11 || len(recs) != 1 {
		t.Fatalf("unexpected total=%d len=%d", total, len(recs))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoListDocumentsRejectsUnknownSortColumn(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM consent_documents")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(regexp.QuoteMeta("FROM consent_documents ORDER BY created_at DESC, id DESC")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "file_name", "file_reference", "uploaded_by", "version", "is_active", "created_at"}))

	docs, total, err := repo.ListDocuments(context.Background(), nil, ListOptions{Sort: Sort{Column: "1; DROP TABLE consent_documents"}})
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if total != 0 || len(docs) != 0 {
		t.Fatalf("expected empty result")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoDocumentStatsAggregates(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE document_id IN ($1, $2)")).
		WithArgs("d1", "d2").
		WillReturnRows(sqlmock.NewRows([]string{"document_id", "recipient_type", "status", "count"}).
			AddRow("d1", "client", "pending", 2).
			AddRow("d1", "client", "completed", 1).
			AddRow("d1", "jobseeker", "pending", 1))

	stats, err := repo.DocumentStats(context.Background(), []string{"d1", "d2"})
	if err != nil {
		t.Fatalf("DocumentStats: %v", err)
	}
	st := stats["d1"]
	if st.Total != 4 || st.Pending != 3 || st.Completed != 1 {
		t.Fatalf("unexpected stats %+v", st)
	}
	if len(st.RecipientTypes) != 2 {
		t.Fatalf("unexpected recipient types %v", st.RecipientTypes)
	}
	if _, ok := stats["d2"]; ok {
		t.Fatalf("d2 has no records")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoDeactivateAndMarkSent(t *testing.T) {
	repo, mock := newMockRepo(t)
	at := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE consent_documents SET is_active = FALSE WHERE id = $1")).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE consent_records SET sent_at = $1 WHERE id IN ($2, $3)")).
		WithArgs(at, "r1", "r2").
		WillReturnResult(sqlmock.NewResult(0, 2))

	if err := repo.DeactivateDocument(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := repo.MarkSent(context.Background(), []string{"r1", "r2"}, at); err != nil {
		t.Fatalf("MarkSent: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
