package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"consent-backend/internal/consent"
	"consent-backend/internal/shared/telemetry"
)

const systemActor = "system"

// Entry is one activity log row.
type Entry struct {
	ID         string
	Action     string
	Actor      string
	EntityType string
	EntityID   string
	IPAddress  string
	Details    map[string]any
	OccurredAt time.Time
}

// Writer persists activity entries.
type Writer interface {
	Write(ctx context.Context, entries []Entry) error
}

// PGWriter appends entries to the activity_log table.
type PGWriter struct {
	DB *sql.DB
}

func (w *PGWriter) Write(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := w.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin activity tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const q = `INSERT INTO activity_log (id, action, actor, entity_type, entity_id, ip_address, details, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	for _, e := range entries {
		details, err := json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("encode activity details: %w", err)
		}
		var ip sql.NullString
		if e.IPAddress != "" {
			ip = sql.NullString{String: e.IPAddress, Valid: true}
		}
		if _, err := tx.ExecContext(ctx, q, e.ID, e.Action, e.Actor, e.EntityType, e.EntityID, ip, string(details), e.OccurredAt); err != nil {
			return fmt.Errorf("insert activity: %w", err)
		}
	}
	return tx.Commit()
}

// Subscriber records consent events as activity entries. Every event is logged;
// entries are also persisted when a Writer is configured. Failures never reach
// the operation that published the event.
type Subscriber struct {
	Writer Writer
	Now    func() time.Time
}

func NewSubscriber(w Writer) *Subscriber {
	return &Subscriber{Writer: w, Now: time.Now}
}

func (s *Subscriber) Handle(ctx context.Context, ev consent.Event) {
	entries := s.entries(ev)
	for _, e := range entries {
		fields := map[string]any{
			"action":      e.Action,
			"actor":       e.Actor,
			"entity_type": e.EntityType,
			"entity_id":   e.EntityID,
		}
		if e.IPAddress != "" {
			fields["ip_address"] = e.IPAddress
		}
		telemetry.Info("audit.activity", fields)
	}
	if s.Writer == nil || len(entries) == 0 {
		return
	}
	if err := s.Writer.Write(context.WithoutCancel(ctx), entries); err != nil {
		telemetry.Error("audit.write_failed", map[string]any{
			"event":   ev.EventName(),
			"entries": len(entries),
			"error":   err.Error(),
		})
	}
}

func (s *Subscriber) entries(ev consent.Event) []Entry {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	at := now().UTC()
	entry := func(action, actor, entityType, entityID string, details map[string]any) Entry {
		if actor == "" {
			actor = systemActor
		}
		return Entry{
			ID:         uuid.NewString(),
			Action:     action,
			Actor:      actor,
			EntityType: entityType,
			EntityID:   entityID,
			Details:    details,
			OccurredAt: at,
		}
	}

	switch e := ev.(type) {
	case consent.RequestCreated:
		recipientType := ""
		if len(e.Records) > 0 {
			recipientType = string(e.Records[0].RecipientType)
		}
		return []Entry{entry("consent.request_created", e.Actor, "consent_document", e.Document.ID, map[string]any{
			"fileName":       e.Document.FileName,
			"version":        e.Document.Version,
			"recipientType":  recipientType,
			"recipientCount": len(e.Records),
		})}
	case consent.RecordsResent:
		out := make([]Entry, 0, len(e.Records))
		for _, rec := range e.Records {
			out = append(out, entry("consent.record_resent", e.Actor, "consent_record", rec.ID, map[string]any{
				"documentId": rec.DocumentID,
				"status":     string(rec.Status),
			}))
		}
		return out
	case consent.ConsentCompleted:
		ent := entry("consent.completed", e.Record.ConsentedName, "consent_record", e.Record.ID, map[string]any{
			"documentId":    e.Document.ID,
			"fileName":      e.Document.FileName,
			"recipientType": string(e.Record.RecipientType),
			"recipientId":   e.Record.RecipientID,
		})
		ent.IPAddress = e.Record.IPAddress
		return []Entry{ent}
	case consent.DocumentDeactivated:
		return []Entry{entry("consent.document_deactivated", e.Actor, "consent_document", e.Document.ID, map[string]any{
			"fileName": e.Document.FileName,
		})}
	}
	return nil
}

var _ consent.Subscriber = (*Subscriber)(nil)
