package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"consent-backend/internal/consent"
	"consent-backend/internal/recipients"
)

type memoryWriter struct {
	entries []Entry
	err     error
}

func (w *memoryWriter) Write(_ context.Context, entries []Entry) error {
	if w.err != nil {
		return w.err
	}
	w.entries = append(w.entries, entries...)
	return nil
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newSubscriber(w Writer) *Subscriber {
	s := NewSubscriber(w)
	s.Now = func() time.Time { return fixedNow }
	return s
}

func TestCompletionRecordsSignerAndAddress(t *testing.T) {
	w := &memoryWriter{}
	s := newSubscriber(w)

	s.Handle(context.Background(), consent.ConsentCompleted{
		Record: consent.Record{
			ID:            "rec-1",
			RecipientType: recipients.TypeJobseeker,
			RecipientID:   "js-1",
			ConsentedName: "Jane Doe",
			IPAddress:     "203.0.113.9",
		},
		Document: consent.Document{ID: "doc-1", FileName: "Terms.pdf"},
	})

	require.Len(t, w.entries, 1)
	got := w.entries[0]
	require.Equal(t, "consent.completed", got.Action)
	require.Equal(t, "Jane Doe", got.Actor)
	require.Equal(t, "consent_record", got.EntityType)
	require.Equal(t, "rec-1", got.EntityID)
	require.Equal(t, "203.0.113.9", got.IPAddress)
	require.Equal(t, fixedNow, got.OccurredAt)
	require.Equal(t, "doc-1", got.Details["documentId"])
}

func TestResendWritesOneEntryPerRecord(t *testing.T) {
	w := &memoryWriter{}
	newSubscriber(w).Handle(context.Background(), consent.RecordsResent{
		Actor:   "admin-1",
		Records: []consent.Record{{ID: "r-1", DocumentID: "d-1"}, {ID: "r-2", DocumentID: "d-1"}},
	})

	require.Len(t, w.entries, 2)
	require.Equal(t, "admin-1", w.entries[1].Actor)
	require.Equal(t, "r-2", w.entries[1].EntityID)
}

func TestRequestAndDeactivationDefaultActor(t *testing.T) {
	w := &memoryWriter{}
	s := newSubscriber(w)
	s.Handle(context.Background(), consent.RequestCreated{
		Document: consent.Document{ID: "doc-1", FileName: "Terms.pdf", Version: 2},
		Records:  []consent.Record{{ID: "r-1", RecipientType: recipients.TypeClient}},
	})
	s.Handle(context.Background(), consent.DocumentDeactivated{Actor: "admin-2", Document: consent.Document{ID: "doc-1"}})

	require.Len(t, w.entries, 2)
	require.Equal(t, systemActor, w.entries[0].Actor)
	require.Equal(t, "client", w.entries[0].Details["recipientType"])
	require.Equal(t, 1, w.entries[0].Details["recipientCount"])
	require.Equal(t, "consent.document_deactivated", w.entries[1].Action)
	require.Equal(t, "admin-2", w.entries[1].Actor)
}

func TestWriterFailureIsSwallowed(t *testing.T) {
	s := newSubscriber(&memoryWriter{err: errors.New("db down")})
	require.NotPanics(t, func() {
		s.Handle(context.Background(), consent.DocumentDeactivated{Document: consent.Document{ID: "doc-1"}})
	})
}

func TestPGWriterInsertsInTransaction(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO activity_log").
		WithArgs("e-1", "consent.completed", "Jane Doe", "consent_record", "rec-1", "203.0.113.9", `{"documentId":"doc-1"}`, fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO activity_log").
		WithArgs("e-2", "consent.document_deactivated", "admin", "consent_document", "doc-1", nil, `{}`, fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	w := &PGWriter{DB: sqlDB}
	err = w.Write(context.Background(), []Entry{
		{ID: "e-1", Action: "consent.completed", Actor: "Jane Doe", EntityType: "consent_record", EntityID: "rec-1", IPAddress: "203.0.113.9", Details: map[string]any{"documentId": "doc-1"}, OccurredAt: fixedNow},
		{ID: "e-2", Action: "consent.document_deactivated", Actor: "admin", EntityType: "consent_document", EntityID: "doc-1", Details: map[string]any{}, OccurredAt: fixedNow},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGWriterRollsBackOnFailure(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO activity_log").WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	w := &PGWriter{DB: sqlDB}
	err = w.Write(context.Background(), []Entry{{ID: "e-1", Action: "a", Actor: "b", EntityType: "c", EntityID: "d", OccurredAt: fixedNow}})
	require.ErrorContains(t, err, "insert activity")
	require.NoError(t, mock.ExpectationsWereMet())
}
