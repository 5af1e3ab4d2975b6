package consent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"consent-backend/internal/recipients"
	"consent-backend/internal/shared/metrics"
	"consent-backend/internal/shared/telemetry"
)

const (
	minSignerNameRunes = 2
	maxSignerNameRunes = 200
	tokenMintAttempts  = 3
)

// Service orchestrates the consent workflow: request creation, token lookup,
// submission and resend.
type Service struct {
	Documents  DocumentStore
	Records    RecordStore
	Recipients recipients.Resolver
	Events     *Bus

	// AllowResendCompleted lets Resend re-notify records that are already completed.
	AllowResendCompleted bool

	Now      func() time.Time
	NewToken func() (string, error)
}

// NewService builds a Service over one Repo.
func NewService(repo Repo, resolver recipients.Resolver, bus *Bus) *Service {
	return &Service{
		Documents:            repo,
		Records:              repo,
		Recipients:           resolver,
		Events:               bus,
		AllowResendCompleted: true,
	}
}

// CreateRequestInput describes a new consent request.
type CreateRequestInput struct {
	FileName      string
	FileReference string
	UploadedBy    string
	RecipientType string
	RecipientIDs  []string
}

// CreateResult is returned by CreateRequest.
type CreateResult struct {
	DocumentID  string
	RecordCount int
}

// CreateRequest stores a document and one pending record per distinct recipient.
// It is all or nothing: a record insert failure removes the document again.
func (s *Service) CreateRequest(ctx context.Context, in CreateRequestInput) (CreateResult, error) {
	fileName := strings.TrimSpace(in.FileName)
	fileRef := strings.TrimSpace(in.FileReference)
	uploadedBy := strings.TrimSpace(in.UploadedBy)
	if fileName == "" || fileRef == "" {
		return CreateResult{}, fmt.Errorf("%w: fileName and fileReference are required", ErrInvalidInput)
	}
	if uploadedBy == "" {
		return CreateResult{}, fmt.Errorf("%w: uploadedBy is required", ErrInvalidInput)
	}
	rtype, ok := recipients.ParseType(in.RecipientType)
	if !ok {
		return CreateResult{}, fmt.Errorf("%w: %q", ErrRecipientTypeUnsupported, in.RecipientType)
	}
	recipientIDs := distinct(in.RecipientIDs)
	if len(recipientIDs) == 0 {
		return CreateResult{}, fmt.Errorf("%w: at least one recipient is required", ErrInvalidInput)
	}

	latest, err := s.Documents.LatestVersion(ctx, fileName)
	if err != nil {
		return CreateResult{}, fmt.Errorf("%w: latest version: %w", ErrPersistence, err)
	}

	now := s.now()
	doc := Document{
		ID:            uuid.NewString(),
		FileName:      fileName,
		FileReference: fileRef,
		UploadedBy:    uploadedBy,
		Version:       latest + 1,
		IsActive:      true,
		CreatedAt:     now,
	}
	if err := s.Documents.CreateDocument(ctx, doc); err != nil {
		return CreateResult{}, fmt.Errorf("%w: create document: %w", ErrPersistence, err)
	}

	records, err := s.insertRecords(ctx, doc, rtype, recipientIDs, now)
	if err != nil {
		s.compensate(ctx, doc.ID, err)
		return CreateResult{}, fmt.Errorf("%w: create records: %w", ErrPersistence, err)
	}

	metrics.IncRequestsCreated(len(records))
	telemetry.Info("consent.request.created", map[string]any{
		"document_id":    doc.ID,
		"file_name":      doc.FileName,
		"version":        doc.Version,
		"recipient_type": string(rtype),
		"record_count":   len(records),
		"actor":          uploadedBy,
	})
	s.Events.Publish(ctx, RequestCreated{Actor: uploadedBy, Document: doc, Records: records})

	return CreateResult{DocumentID: doc.ID, RecordCount: len(records)}, nil
}

func (s *Service) insertRecords(ctx context.Context, doc Document, rtype recipients.Type, recipientIDs []string, now time.Time) ([]Record, error) {
	var lastErr error
	for attempt := 1; attempt <= tokenMintAttempts; attempt++ {
		records := make([]Record, 0, len(recipientIDs))
		for _, rid := range recipientIDs {
			token, err := s.newToken()
			if err != nil {
				return nil, err
			}
			sentAt := now
			records = append(records, Record{
				ID:            uuid.NewString(),
				DocumentID:    doc.ID,
				RecipientType: rtype,
				RecipientID:   rid,
				Token:         token,
				Status:        StatusPending,
				SentAt:        &sentAt,
				CreatedAt:     now,
			})
		}

		err := s.Records.InsertRecords(ctx, records)
		if err == nil {
			return records, nil
		}
		if !errors.Is(err, ErrTokenConflict) {
			return nil, err
		}
		lastErr = err
		telemetry.Warn("consent.token.collision", map[string]any{
			"document_id": doc.ID,
			"attempt":     attempt,
		})
	}
	return nil, lastErr
}

// compensate removes a half-created request. It runs detached from ctx so a
// cancelled request still cleans up.
func (s *Service) compensate(ctx context.Context, documentID string, cause error) {
	cleanup := context.WithoutCancel(ctx)
	fields := map[string]any{
		"document_id": documentID,
		"cause":       cause.Error(),
	}
	if err := s.Records.DeleteRecordsByDocument(cleanup, documentID); err != nil {
		fields["records_err"] = err.Error()
	}
	if err := s.Documents.DeleteDocument(cleanup, documentID); err != nil {
		fields["document_err"] = err.Error()
	}
	telemetry.Error("consent.request.compensated", fields)
}

// View is what a recipient sees when opening their link.
type View struct {
	Record    Record
	Document  Document
	Recipient recipients.Recipient
}

// View resolves a token to its record, document and recipient.
func (s *Service) View(ctx context.Context, token string) (View, error) {
	rec, doc, err := s.lookup(ctx, token)
	if err != nil {
		return View{}, err
	}
	return View{Record: rec, Document: doc, Recipient: s.resolve(ctx, rec)}, nil
}

// DocumentForToken returns the active document a token grants access to.
func (s *Service) DocumentForToken(ctx context.Context, token string) (Document, error) {
	_, doc, err := s.lookup(ctx, token)
	return doc, err
}

// SubmitInput is a signer's attestation.
type SubmitInput struct {
	Token     string
	Name      string
	IPAddress string
}

// Submit completes the record behind the token. Concurrent submissions for the
// same token complete it at most once; losers get ErrAlreadyCompleted.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (Record, error) {
	rec, doc, err := s.lookup(ctx, in.Token)
	if err != nil {
		return Record{}, err
	}
	if rec.Status == StatusCompleted {
		return Record{}, ErrAlreadyCompleted
	}
	name, err := signerName(in.Name)
	if err != nil {
		return Record{}, err
	}
	ip := strings.TrimSpace(in.IPAddress)
	if ip == "" {
		ip = unknownAddress
	}

	completion := Completion{Name: name, IPAddress: ip, At: s.now()}
	ok, err := s.Records.CompleteRecord(ctx, rec.ID, completion)
	if err != nil {
		return Record{}, fmt.Errorf("%w: complete record: %w", ErrPersistence, err)
	}
	if !ok {
		if current, err := s.Documents.GetDocument(ctx, doc.ID); err == nil && !current.IsActive {
			return Record{}, ErrDocumentInactive
		}
		metrics.IncSubmitConflict()
		telemetry.Warn("consent.submit.conflict", map[string]any{
			"record_id":   rec.ID,
			"document_id": rec.DocumentID,
		})
		return Record{}, ErrAlreadyCompleted
	}

	rec.Status = StatusCompleted
	rec.CompletedAt = &completion.At
	rec.ConsentedName = completion.Name
	rec.IPAddress = completion.IPAddress

	metrics.IncConsentCompleted()
	telemetry.Info("consent.completed", map[string]any{
		"record_id":         rec.ID,
		"document_id":       rec.DocumentID,
		"recipient_type":    string(rec.RecipientType),
		"status_transition": "pending->completed",
		"ip_address":        rec.IPAddress,
	})
	s.Events.Publish(ctx, ConsentCompleted{Record: rec, Document: doc})

	return rec, nil
}

// ResendResult lists which ids were re-notified and which were skipped.
type ResendResult struct {
	Resent  []string
	Skipped []string
}

// Resend bumps sentAt and re-notifies each known record. Unknown ids are skipped.
func (s *Service) Resend(ctx context.Context, actor string, ids []string) (ResendResult, error) {
	ids = distinct(ids)
	if len(ids) == 0 {
		return ResendResult{}, fmt.Errorf("%w: at least one record id is required", ErrInvalidInput)
	}

	found, err := s.Records.GetRecords(ctx, ids)
	if err != nil {
		return ResendResult{}, fmt.Errorf("%w: load records: %w", ErrPersistence, err)
	}
	byID := make(map[string]Record, len(found))
	for _, rec := range found {
		byID[rec.ID] = rec
	}

	result := ResendResult{Resent: []string{}, Skipped: []string{}}
	docs := make(map[string]Document)
	eligible := make([]Record, 0, len(found))
	for _, id := range ids {
		rec, ok := byID[id]
		if !ok || (rec.Status == StatusCompleted && !s.AllowResendCompleted) {
			result.Skipped = append(result.Skipped, id)
			continue
		}
		if _, ok := docs[rec.DocumentID]; !ok {
			doc, err := s.Documents.GetDocument(ctx, rec.DocumentID)
			if errors.Is(err, ErrNotFound) {
				result.Skipped = append(result.Skipped, id)
				continue
			}
			if err != nil {
				return ResendResult{}, fmt.Errorf("%w: load document: %w", ErrPersistence, err)
			}
			docs[rec.DocumentID] = doc
		}
		if !docs[rec.DocumentID].IsActive {
			result.Skipped = append(result.Skipped, id)
			continue
		}
		eligible = append(eligible, rec)
	}
	if len(eligible) == 0 {
		return result, nil
	}

	now := s.now()
	sentIDs := make([]string, len(eligible))
	for i := range eligible {
		sentIDs[i] = eligible[i].ID
		sentAt := now
		eligible[i].SentAt = &sentAt
	}
	if err := s.Records.MarkSent(ctx, sentIDs, now); err != nil {
		return ResendResult{}, fmt.Errorf("%w: mark sent: %w", ErrPersistence, err)
	}
	result.Resent = sentIDs

	metrics.IncRecordsResent(len(eligible))
	telemetry.Info("consent.records.resent", map[string]any{
		"resent":  len(eligible),
		"skipped": len(result.Skipped),
		"actor":   actor,
	})
	s.Events.Publish(ctx, RecordsResent{Actor: actor, Records: eligible, Documents: docs})

	return result, nil
}

// DeactivateDocument permanently disables a document. Repeating it is a no-op.
func (s *Service) DeactivateDocument(ctx context.Context, actor, id string) (Document, error) {
	doc, err := s.getDocument(ctx, id)
	if err != nil {
		return Document{}, err
	}
	if !doc.IsActive {
		return doc, nil
	}
	if err := s.Documents.DeactivateDocument(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return Document{}, ErrNotFound
		}
		return Document{}, fmt.Errorf("%w: deactivate document: %w", ErrPersistence, err)
	}
	doc.IsActive = false

	telemetry.Info("consent.document.deactivated", map[string]any{
		"document_id": doc.ID,
		"actor":       actor,
	})
	s.Events.Publish(ctx, DocumentDeactivated{Actor: actor, Document: doc})
	return doc, nil
}

// RecordForDelivery loads a record and its document for an out-of-process notification.
func (s *Service) RecordForDelivery(ctx context.Context, recordID string) (Record, Document, error) {
	rec, err := s.Records.GetRecord(ctx, recordID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Record{}, Document{}, ErrNotFound
		}
		return Record{}, Document{}, fmt.Errorf("%w: load record: %w", ErrPersistence, err)
	}
	doc, err := s.getDocument(ctx, rec.DocumentID)
	if err != nil {
		return Record{}, Document{}, err
	}
	return rec, doc, nil
}

// lookup validates a token and returns its record and active document.
func (s *Service) lookup(ctx context.Context, token string) (Record, Document, error) {
	token = strings.TrimSpace(token)
	if !WellFormedToken(token) {
		return Record{}, Document{}, ErrNotFound
	}
	rec, err := s.Records.GetRecordByToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Record{}, Document{}, ErrNotFound
		}
		return Record{}, Document{}, fmt.Errorf("%w: lookup token: %w", ErrPersistence, err)
	}
	if !tokensEqual(rec.Token, token) {
		return Record{}, Document{}, ErrNotFound
	}
	doc, err := s.getDocument(ctx, rec.DocumentID)
	if err != nil {
		return Record{}, Document{}, err
	}
	if !doc.IsActive {
		return Record{}, Document{}, ErrDocumentInactive
	}
	return rec, doc, nil
}

func (s *Service) getDocument(ctx context.Context, id string) (Document, error) {
	doc, err := s.Documents.GetDocument(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Document{}, ErrNotFound
		}
		return Document{}, fmt.Errorf("%w: load document: %w", ErrPersistence, err)
	}
	return doc, nil
}

// resolve looks up the recipient; failures degrade to an empty contact.
func (s *Service) resolve(ctx context.Context, rec Record) recipients.Recipient {
	fallback := recipients.Recipient{Type: rec.RecipientType, ID: rec.RecipientID}
	if s.Recipients == nil {
		return fallback
	}
	r, err := s.Recipients.Resolve(ctx, rec.RecipientType, rec.RecipientID)
	if err != nil {
		if !errors.Is(err, recipients.ErrNotFound) {
			telemetry.Warn("consent.recipient.resolve_failed", map[string]any{
				"record_id":      rec.ID,
				"recipient_type": string(rec.RecipientType),
				"err":            err.Error(),
			})
		}
		return fallback
	}
	return r
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) newToken() (string, error) {
	if s.NewToken != nil {
		return s.NewToken()
	}
	return NewToken()
}

func signerName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	n := utf8.RuneCountInString(name)
	if n < minSignerNameRunes {
		return "", fmt.Errorf("%w: name must be at least %d characters", ErrInvalidInput, minSignerNameRunes)
	}
	if n > maxSignerNameRunes {
		return "", fmt.Errorf("%w: name must be at most %d characters", ErrInvalidInput, maxSignerNameRunes)
	}
	return name, nil
}

func distinct(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
