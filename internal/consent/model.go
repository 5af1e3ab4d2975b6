package consent

import (
	"strings"
	"time"

	"consent-backend/internal/recipients"
)

// Status is the state of a consent record. The only legal transition is
// StatusPending to StatusCompleted.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// ParseStatus trims and lower-cases raw and reports whether it names a known status.
func ParseStatus(raw string) (Status, bool) {
	switch s := Status(strings.ToLower(strings.TrimSpace(raw))); s {
	case StatusPending, StatusCompleted:
		return s, true
	}
	return "", false
}

// Document is an uploaded artifact that recipients acknowledge.
type Document struct {
	ID            string
	FileName      string
	FileReference string
	UploadedBy    string
	Version       int
	IsActive      bool
	CreatedAt     time.Time
}

// Record tracks one recipient's progress against a document.
type Record struct {
	ID            string
	DocumentID    string
	RecipientType recipients.Type
	RecipientID   string
	Token         string
	Status        Status
	SentAt        *time.Time
	CompletedAt   *time.Time
	ConsentedName string
	IPAddress     string
	CreatedAt     time.Time
}

// Completion holds the attestation written by a successful submission.
type Completion struct {
	Name      string
	IPAddress string
	At        time.Time
}

// DocumentStats summarizes the records attached to a document.
type DocumentStats struct {
	Total          int
	Pending        int
	Completed      int
	RecipientTypes []recipients.Type
}

// HasRecipientType reports whether any record of the document targets t.
func (s DocumentStats) HasRecipientType(t recipients.Type) bool {
	for _, rt := range s.RecipientTypes {
		if rt == t {
			return true
		}
	}
	return false
}

// DocumentSummary is a document together with its record stats.
type DocumentSummary struct {
	Document Document
	Stats    DocumentStats
}
