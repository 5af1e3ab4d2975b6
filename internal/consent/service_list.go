package consent

import (
	"context"
	"fmt"
)

// ListDocuments returns a page of documents with their record stats. The
// recipient-type filter is derived from records, so it is applied after the
// store query and before paginating.
func (s *Service) ListDocuments(ctx context.Context, q DocumentQuery) (Page[DocumentSummary], error) {
	page := q.Page.normalized()
	opts := ListOptions{Sort: q.Sort, Offset: page.Offset(), Limit: page.Limit}
	if q.RecipientType != "" {
		opts.Offset, opts.Limit = 0, 0
	}

	docs, total, err := s.Documents.ListDocuments(ctx, q.Filters, opts)
	if err != nil {
		return Page[DocumentSummary]{}, fmt.Errorf("%w: list documents: %w", ErrPersistence, err)
	}
	stats, err := s.Documents.DocumentStats(ctx, documentIDs(docs))
	if err != nil {
		return Page[DocumentSummary]{}, fmt.Errorf("%w: document stats: %w", ErrPersistence, err)
	}

	items := make([]DocumentSummary, 0, len(docs))
	for _, doc := range docs {
		st := stats[doc.ID]
		if q.RecipientType != "" && !st.HasRecipientType(q.RecipientType) {
			continue
		}
		items = append(items, DocumentSummary{Document: doc, Stats: st})
	}
	if q.RecipientType != "" {
		total = len(items)
		items = window(items, ListOptions{Offset: page.Offset(), Limit: page.Limit})
	}
	return newPage(items, total, page), nil
}

// GetDocument returns one document with its record stats.
func (s *Service) GetDocument(ctx context.Context, id string) (DocumentSummary, error) {
	doc, err := s.getDocument(ctx, id)
	if err != nil {
		return DocumentSummary{}, err
	}
	stats, err := s.Documents.DocumentStats(ctx, []string{doc.ID})
	if err != nil {
		return DocumentSummary{}, fmt.Errorf("%w: document stats: %w", ErrPersistence, err)
	}
	return DocumentSummary{Document: doc, Stats: stats[doc.ID]}, nil
}

// ListRecords returns a page of one document's records.
func (s *Service) ListRecords(ctx context.Context, documentID string, q RecordQuery) (Page[Record], error) {
	if _, err := s.getDocument(ctx, documentID); err != nil {
		return Page[Record]{}, err
	}
	page := q.Page.normalized()
	recs, total, err := s.Records.ListRecords(ctx, documentID, q.Filters, ListOptions{
		Sort:   q.Sort,
		Offset: page.Offset(),
		Limit:  page.Limit,
	})
	if err != nil {
		return Page[Record]{}, fmt.Errorf("%w: list records: %w", ErrPersistence, err)
	}
	return newPage(recs, total, page), nil
}

func documentIDs(docs []Document) []string {
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	return ids
}
