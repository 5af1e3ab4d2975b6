package consent

import (
	"context"
	"time"
)

// ListOptions bounds a store listing. Limit 0 returns every match.
type ListOptions struct {
	Sort   Sort
	Offset int
	Limit  int
}

// DocumentStore persists consent documents.
type DocumentStore interface {
	CreateDocument(ctx context.Context, doc Document) error
	GetDocument(ctx context.Context, id string) (Document, error)
	// LatestVersion returns the highest version stored for fileName, or 0.
	LatestVersion(ctx context.Context, fileName string) (int, error)
	DeactivateDocument(ctx context.Context, id string) error
	DeleteDocument(ctx context.Context, id string) error
	ListDocuments(ctx context.Context, filters []DocumentPredicate, opts ListOptions) ([]Document, int, error)
	DocumentStats(ctx context.Context, ids []string) (map[string]DocumentStats, error)
}

// RecordStore persists consent records.
type RecordStore interface {
	// InsertRecords stores every record or none. A duplicate token yields ErrTokenConflict.
	InsertRecords(ctx context.Context, records []Record) error
	DeleteRecordsByDocument(ctx context.Context, documentID string) error
	GetRecord(ctx context.Context, id string) (Record, error)
	GetRecordByToken(ctx context.Context, token string) (Record, error)
	// GetRecords returns the records that exist among ids; unknown ids are skipped.
	GetRecords(ctx context.Context, ids []string) ([]Record, error)
	// CompleteRecord transitions a pending record to completed. It reports false
	// when the record was no longer pending.
	CompleteRecord(ctx context.Context, id string, c Completion) (bool, error)
	MarkSent(ctx context.Context, ids []string, at time.Time) error
	ListRecords(ctx context.Context, documentID string, filters []RecordPredicate, opts ListOptions) ([]Record, int, error)
}

// Repo is a store for both documents and records.
type Repo interface {
	DocumentStore
	RecordStore
}
