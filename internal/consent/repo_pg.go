package consent

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"consent-backend/internal/recipients"
)

const (
	uniqueViolation    = "23505"
	tokenConstraint    = "consent_records_token_key"
	documentColumns    = "id, file_name, file_reference, uploaded_by, version, is_active, created_at"
	recordColumns      = "id, document_id, recipient_type, recipient_id, token, status, sent_at, completed_at, consented_name, ip_address, created_at"
	recordInsertParams = 8
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

func (r *PGRepo) CreateDocument(ctx context.Context, doc Document) error {
	const query = `
INSERT INTO consent_documents (id, file_name, file_reference, uploaded_by, version, is_active, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.DB.ExecContext(ctx, query,
		doc.ID,
		doc.FileName,
		doc.FileReference,
		doc.UploadedBy,
		doc.Version,
		doc.IsActive,
		doc.CreatedAt,
	)
	return err
}

func (r *PGRepo) GetDocument(ctx context.Context, id string) (Document, error) {
	query := `SELECT ` + documentColumns + ` FROM consent_documents WHERE id = $1 LIMIT 1`
	doc, err := scanDocument(r.DB.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	return doc, err
}

func (r *PGRepo) LatestVersion(ctx context.Context, fileName string) (int, error) {
	const query = `SELECT COALESCE(MAX(version), 0) FROM consent_documents WHERE file_name = $1`
	var version int
	if err := r.DB.QueryRowContext(ctx, query, fileName).Scan(&version); err != nil {
		return 0, err
	}
	return version, nil
}

func (r *PGRepo) DeactivateDocument(ctx context.Context, id string) error {
	const query = `UPDATE consent_documents SET is_active = FALSE WHERE id = $1`
	res, err := r.DB.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepo) DeleteDocument(ctx context.Context, id string) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM consent_documents WHERE id = $1`, id)
	return err
}

func (r *PGRepo) ListDocuments(ctx context.Context, filters []DocumentPredicate, opts ListOptions) ([]Document, int, error) {
	var w whereClause
	for _, f := range filters {
		f.documentSQL(&w)
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM consent_documents`+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + documentColumns + ` FROM consent_documents` + w.String() +
		orderBy(opts.Sort, DocumentFields, defaultDocumentSort) + limitOffset(&w, opts)
	rows, err := r.DB.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	docs := make([]Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, 0, err
		}
		docs = append(docs, doc)
	}
	return docs, total, rows.Err()
}

func (r *PGRepo) DocumentStats(ctx context.Context, ids []string) (map[string]DocumentStats, error) {
	out := make(map[string]DocumentStats, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	placeholders, args := inList(ids, 1)
	query := `
SELECT document_id, recipient_type, status, COUNT(*)
FROM consent_records
WHERE document_id IN (` + placeholders + `)
GROUP BY document_id, recipient_type, status
ORDER BY document_id, recipient_type`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			docID, rtype, status string
			count                int
		)
		if err := rows.Scan(&docID, &rtype, &status, &count); err != nil {
			return nil, err
		}
		st := out[docID]
		st.Total += count
		if Status(status) == StatusCompleted {
			st.Completed += count
		} else {
			st.Pending += count
		}
		if t := recipients.Type(rtype); !st.HasRecipientType(t) {
			st.RecipientTypes = append(st.RecipientTypes, t)
		}
		out[docID] = st
	}
	return out, rows.Err()
}

func (r *PGRepo) InsertRecords(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	var b strings.Builder
	b.WriteString(`INSERT INTO consent_records (id, document_id, recipient_type, recipient_id, token, status, sent_at, created_at) VALUES `)
	args := make([]any, 0, len(records)*recordInsertParams)
	for i, rec := range records {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := 0; j < recordInsertParams; j++ {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString("$" + strconv.Itoa(i*recordInsertParams+j+1))
		}
		b.WriteString(")")
		args = append(args, rec.ID, rec.DocumentID, string(rec.RecipientType), rec.RecipientID, rec.Token, string(rec.Status), nullableTime(rec.SentAt), rec.CreatedAt)
	}

	if _, err := r.DB.ExecContext(ctx, b.String(), args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == tokenConstraint {
			return ErrTokenConflict
		}
		return err
	}
	return nil
}

func (r *PGRepo) DeleteRecordsByDocument(ctx context.Context, documentID string) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM consent_records WHERE document_id = $1`, documentID)
	return err
}

func (r *PGRepo) GetRecord(ctx context.Context, id string) (Record, error) {
	query := `SELECT ` + recordColumns + ` FROM consent_records WHERE id = $1 LIMIT 1`
	rec, err := scanRecord(r.DB.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

func (r *PGRepo) GetRecordByToken(ctx context.Context, token string) (Record, error) {
	query := `SELECT ` + recordColumns + ` FROM consent_records WHERE token = $1 LIMIT 1`
	rec, err := scanRecord(r.DB.QueryRowContext(ctx, query, token))
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

func (r *PGRepo) GetRecords(ctx context.Context, ids []string) ([]Record, error) {
	if len(ids) == 0 {
		return []Record{}, nil
	}
	placeholders, args := inList(ids, 1)
	query := `SELECT ` + recordColumns + ` FROM consent_records WHERE id IN (` + placeholders + `) ORDER BY created_at, id`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Record, 0, len(ids))
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *PGRepo) CompleteRecord(ctx context.Context, id string, c Completion) (bool, error) {
	const query = `
UPDATE consent_records
SET status = 'completed', completed_at = $2, consented_name = $3, ip_address = $4
WHERE id = $1 AND status = 'pending'
  AND EXISTS (SELECT 1 FROM consent_documents d WHERE d.id = document_id AND d.is_active)`
	res, err := r.DB.ExecContext(ctx, query, id, c.At, c.Name, c.IPAddress)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *PGRepo) MarkSent(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders, args := inList(ids, 2)
	query := `UPDATE consent_records SET sent_at = $1 WHERE id IN (` + placeholders + `)`
	_, err := r.DB.ExecContext(ctx, query, append([]any{at}, args...)...)
	return err
}

func (r *PGRepo) ListRecords(ctx context.Context, documentID string, filters []RecordPredicate, opts ListOptions) ([]Record, int, error) {
	var w whereClause
	w.add("document_id = ?", documentID)
	for _, f := range filters {
		f.recordSQL(&w)
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM consent_records`+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + recordColumns + ` FROM consent_records` + w.String() +
		orderBy(opts.Sort, RecordFields, defaultRecordSort) + limitOffset(&w, opts)
	rows, err := r.DB.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	recs := make([]Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		recs = append(recs, rec)
	}
	return recs, total, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (Document, error) {
	var doc Document
	err := row.Scan(
		&doc.ID,
		&doc.FileName,
		&doc.FileReference,
		&doc.UploadedBy,
		&doc.Version,
		&doc.IsActive,
		&doc.CreatedAt,
	)
	return doc, err
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		rec           Record
		rtype, status string
		sentAt        sql.NullTime
		completedAt   sql.NullTime
		consentedName sql.NullString
		ipAddress     sql.NullString
	)
	err := row.Scan(
		&rec.ID,
		&rec.DocumentID,
		&rtype,
		&rec.RecipientID,
		&rec.Token,
		&status,
		&sentAt,
		&completedAt,
		&consentedName,
		&ipAddress,
		&rec.CreatedAt,
	)
	if err != nil {
		return Record{}, err
	}
	rec.RecipientType = recipients.Type(rtype)
	rec.Status = Status(status)
	if sentAt.Valid {
		t := sentAt.Time
		rec.SentAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		rec.CompletedAt = &t
	}
	rec.ConsentedName = consentedName.String
	rec.IPAddress = ipAddress.String
	return rec, nil
}

// orderBy renders ORDER BY for a whitelisted column, with id as a tiebreaker.
func orderBy(s Sort, fields FieldMap, def Sort) string {
	if _, ok := fields.External(s.Column); !ok {
		s = def
	}
	dir := "ASC"
	if s.Desc {
		dir = "DESC"
	}
	return fmt.Sprintf(" ORDER BY %s %s, id %s", s.Column, dir, dir)
}

func limitOffset(w *whereClause, opts ListOptions) string {
	if opts.Limit <= 0 {
		if opts.Offset > 0 {
			w.args = append(w.args, opts.Offset)
			return " OFFSET $" + strconv.Itoa(len(w.args))
		}
		return ""
	}
	w.args = append(w.args, opts.Limit, opts.Offset)
	n := len(w.args)
	return " LIMIT $" + strconv.Itoa(n-1) + " OFFSET $" + strconv.Itoa(n)
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func inList(values []string, start int) (string, []any) {
	parts := make([]string, len(values))
	args := make([]any, len(values))
	for i, v := range values {
		parts[i] = "$" + strconv.Itoa(start+i)
		args[i] = v
	}
	return strings.Join(parts, ", "), args
}

var _ Repo = (*PGRepo)(nil)
