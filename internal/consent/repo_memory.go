package consent

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repo used in dev and tests.
type MemoryRepo struct {
	mu        sync.RWMutex
	documents map[string]Document
	records   map[string]Record
	byToken   map[string]string // token -> record id
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		documents: make(map[string]Document),
		records:   make(map[string]Record),
		byToken:   make(map[string]string),
	}
}

func (r *MemoryRepo) CreateDocument(ctx context.Context, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.documents[doc.ID] = doc
	return nil
}

func (r *MemoryRepo) GetDocument(ctx context.Context, id string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.documents[id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return doc, nil
}

func (r *MemoryRepo) LatestVersion(ctx context.Context, fileName string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	latest := 0
	for _, doc := range r.documents {
		if doc.FileName == fileName && doc.Version > latest {
			latest = doc.Version
		}
	}
	return latest, nil
}

func (r *MemoryRepo) DeactivateDocument(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.documents[id]
	if !ok {
		return ErrNotFound
	}
	doc.IsActive = false
	r.documents[id] = doc
	return nil
}

func (r *MemoryRepo) DeleteDocument(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.documents, id)
	return nil
}

func (r *MemoryRepo) ListDocuments(ctx context.Context, filters []DocumentPredicate, opts ListOptions) ([]Document, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	r.mu.RLock()
	matched := make([]Document, 0, len(r.documents))
	for _, doc := range r.documents {
		if matchDocument(doc, filters) {
			matched = append(matched, doc)
		}
	}
	r.mu.RUnlock()

	sortDocuments(matched, opts.Sort)
	return window(matched, opts), len(matched), nil
}

func (r *MemoryRepo) DocumentStats(ctx context.Context, ids []string) (map[string]DocumentStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]DocumentStats, len(ids))
	for _, rec := range r.records {
		if _, ok := wanted[rec.DocumentID]; !ok {
			continue
		}
		st := out[rec.DocumentID]
		st.Total++
		if rec.Status == StatusCompleted {
			st.Completed++
		} else {
			st.Pending++
		}
		if !st.HasRecipientType(rec.RecipientType) {
			st.RecipientTypes = append(st.RecipientTypes, rec.RecipientType)
			sort.Slice(st.RecipientTypes, func(i, j int) bool { return st.RecipientTypes[i] < st.RecipientTypes[j] })
		}
		out[rec.DocumentID] = st
	}
	return out, nil
}

func (r *MemoryRepo) InsertRecords(ctx context.Context, records []Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]struct{}, len(records))
	for _, rec := range records {
		if _, ok := r.documents[rec.DocumentID]; !ok {
			return ErrNotFound
		}
		if _, ok := r.byToken[rec.Token]; ok {
			return ErrTokenConflict
		}
		if _, ok := seen[rec.Token]; ok {
			return ErrTokenConflict
		}
		seen[rec.Token] = struct{}{}
	}
	for _, rec := range records {
		r.records[rec.ID] = rec
		r.byToken[rec.Token] = rec.ID
	}
	return nil
}

func (r *MemoryRepo) DeleteRecordsByDocument(ctx context.Context, documentID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, rec := range r.records {
		if rec.DocumentID == documentID {
			delete(r.byToken, rec.Token)
			delete(r.records, id)
		}
	}
	return nil
}

func (r *MemoryRepo) GetRecord(ctx context.Context, id string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (r *MemoryRepo) GetRecordByToken(ctx context.Context, token string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byToken[token]
	if !ok {
		return Record{}, ErrNotFound
	}
	return r.records[id], nil
}

func (r *MemoryRepo) GetRecords(ctx context.Context, ids []string) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Record, 0, len(ids))
	for _, id := range ids {
		if rec, ok := r.records[id]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *MemoryRepo) CompleteRecord(ctx context.Context, id string, c Completion) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok || rec.Status != StatusPending || !r.documents[rec.DocumentID].IsActive {
		return false, nil
	}
	at := c.At
	rec.Status = StatusCompleted
	rec.CompletedAt = &at
	rec.ConsentedName = c.Name
	rec.IPAddress = c.IPAddress
	r.records[id] = rec
	return true, nil
}

func (r *MemoryRepo) MarkSent(ctx context.Context, ids []string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		rec, ok := r.records[id]
		if !ok {
			continue
		}
		sent := at
		rec.SentAt = &sent
		r.records[id] = rec
	}
	return nil
}

func (r *MemoryRepo) ListRecords(ctx context.Context, documentID string, filters []RecordPredicate, opts ListOptions) ([]Record, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	r.mu.RLock()
	matched := make([]Record, 0)
	for _, rec := range r.records {
		if rec.DocumentID == documentID && matchRecord(rec, filters) {
			matched = append(matched, rec)
		}
	}
	r.mu.RUnlock()

	sortRecords(matched, opts.Sort)
	return window(matched, opts), len(matched), nil
}

func window[T any](items []T, opts ListOptions) []T {
	if opts.Offset >= len(items) {
		return []T{}
	}
	items = items[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(items) {
		items = items[:opts.Limit]
	}
	return items
}

func sortDocuments(docs []Document, s Sort) {
	if s.Column == "" {
		s = defaultDocumentSort
	}
	sort.SliceStable(docs, func(i, j int) bool {
		a, b := docs[i], docs[j]
		var c int
		switch s.Column {
		case "file_name":
			c = strings.Compare(a.FileName, b.FileName)
		case "file_reference":
			c = strings.Compare(a.FileReference, b.FileReference)
		case "uploaded_by":
			c = strings.Compare(a.UploadedBy, b.UploadedBy)
		case "version":
			c = a.Version - b.Version
		case "is_active":
			c = compareBool(a.IsActive, b.IsActive)
		case "id":
			c = strings.Compare(a.ID, b.ID)
		default:
			c = a.CreatedAt.Compare(b.CreatedAt)
		}
		if c == 0 {
			c = strings.Compare(a.ID, b.ID)
		}
		if s.Desc {
			return c > 0
		}
		return c < 0
	})
}

func sortRecords(recs []Record, s Sort) {
	if s.Column == "" {
		s = defaultRecordSort
	}
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		var c int
		switch s.Column {
		case "status":
			c = strings.Compare(string(a.Status), string(b.Status))
		case "recipient_type":
			c = strings.Compare(string(a.RecipientType), string(b.RecipientType))
		case "recipient_id":
			c = strings.Compare(a.RecipientID, b.RecipientID)
		case "document_id":
			c = strings.Compare(a.DocumentID, b.DocumentID)
		case "consented_name":
			c = strings.Compare(a.ConsentedName, b.ConsentedName)
		case "ip_address":
			c = strings.Compare(a.IPAddress, b.IPAddress)
		case "sent_at":
			c = compareTimePtr(a.SentAt, b.SentAt)
		case "completed_at":
			c = compareTimePtr(a.CompletedAt, b.CompletedAt)
		case "id":
			c = strings.Compare(a.ID, b.ID)
		default:
			c = a.CreatedAt.Compare(b.CreatedAt)
		}
		if c == 0 {
			c = strings.Compare(a.ID, b.ID)
		}
		if s.Desc {
			return c > 0
		}
		return c < 0
	})
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}

// nil sorts as the greatest value, matching Postgres null ordering.
func compareTimePtr(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	default:
		return a.Compare(*b)
	}
}

var _ Repo = (*MemoryRepo)(nil)
