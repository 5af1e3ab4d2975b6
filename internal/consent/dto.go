package consent

import "time"

type createRequestBody struct {
	FileName      string   `json:"fileName"`
	FileReference string   `json:"fileReference"`
	RecipientType string   `json:"recipientType"`
	RecipientIDs  []string `json:"recipientIds"`
}

type createRequestResponse struct {
	DocumentID  string `json:"documentId"`
	RecordCount int    `json:"recordCount"`
}

type resendBody struct {
	RecordIDs []string `json:"recordIds"`
}

type resendResponse struct {
	Resent  []string `json:"resent"`
	Skipped []string `json:"skipped"`
}

type submitBody struct {
	Token string `json:"token"`
	Name  string `json:"name"`
}

// DocumentResponse is the admin representation of a consent document.
type DocumentResponse struct {
	ID             string    `json:"id"`
	FileName       string    `json:"fileName"`
	FileReference  string    `json:"fileReference"`
	UploadedBy     string    `json:"uploadedBy"`
	Version        int       `json:"version"`
	IsActive       bool      `json:"isActive"`
	CreatedAt      time.Time `json:"createdAt"`
	TotalRecords   int       `json:"totalRecords"`
	Pending        int       `json:"pending"`
	Completed      int       `json:"completed"`
	RecipientTypes []string  `json:"recipientTypes"`
}

// RecordResponse is the admin representation of a consent record. The token is
// never returned.
type RecordResponse struct {
	ID            string     `json:"id"`
	DocumentID    string     `json:"documentId"`
	RecipientType string     `json:"recipientType"`
	RecipientID   string     `json:"recipientId"`
	Status        string     `json:"status"`
	SentAt        *time.Time `json:"sentAt"`
	CompletedAt   *time.Time `json:"completedAt"`
	ConsentedName string     `json:"consentedName,omitempty"`
	IPAddress     string     `json:"ipAddress,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

type pageMeta struct {
	Page       int    `json:"page"`
	Limit      int    `json:"limit"`
	Total      int    `json:"total"`
	TotalPages int    `json:"totalPages"`
	Sort       string `json:"sort,omitempty"`
}

type listResponse[T any] struct {
	Items []T      `json:"items"`
	Meta  pageMeta `json:"meta"`
}

type publicDocument struct {
	FileName  string    `json:"fileName"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	FileURL   string    `json:"fileUrl"`
}

type publicRecipient struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

type publicViewResponse struct {
	Status        string          `json:"status"`
	RecipientType string          `json:"recipientType"`
	CompletedAt   *time.Time      `json:"completedAt"`
	ConsentedName string          `json:"consentedName,omitempty"`
	Document      publicDocument  `json:"document"`
	Recipient     publicRecipient `json:"recipient"`
}

type submitResponse struct {
	Status        string     `json:"status"`
	CompletedAt   *time.Time `json:"completedAt"`
	ConsentedName string     `json:"consentedName"`
}

func toDocumentResponse(s DocumentSummary) DocumentResponse {
	types := make([]string, 0, len(s.Stats.RecipientTypes))
	for _, t := range s.Stats.RecipientTypes {
		types = append(types, string(t))
	}
	return DocumentResponse{
		ID:             s.Document.ID,
		FileName:       s.Document.FileName,
		FileReference:  s.Document.FileReference,
		UploadedBy:     s.Document.UploadedBy,
		Version:        s.Document.Version,
		IsActive:       s.Document.IsActive,
		CreatedAt:      s.Document.CreatedAt,
		TotalRecords:   s.Stats.Total,
		Pending:        s.Stats.Pending,
		Completed:      s.Stats.Completed,
		RecipientTypes: types,
	}
}

func toRecordResponse(r Record) RecordResponse {
	return RecordResponse{
		ID:            r.ID,
		DocumentID:    r.DocumentID,
		RecipientType: string(r.RecipientType),
		RecipientID:   r.RecipientID,
		Status:        string(r.Status),
		SentAt:        r.SentAt,
		CompletedAt:   r.CompletedAt,
		ConsentedName: r.ConsentedName,
		IPAddress:     r.IPAddress,
		CreatedAt:     r.CreatedAt,
	}
}

func toPublicView(v View, fileURL string) publicViewResponse {
	return publicViewResponse{
		Status:        string(v.Record.Status),
		RecipientType: string(v.Record.RecipientType),
		CompletedAt:   v.Record.CompletedAt,
		ConsentedName: v.Record.ConsentedName,
		Document: publicDocument{
			FileName:  v.Document.FileName,
			Version:   v.Document.Version,
			CreatedAt: v.Document.CreatedAt,
			FileURL:   fileURL,
		},
		Recipient: publicRecipient{Name: v.Recipient.DisplayName, Email: v.Recipient.Email},
	}
}

func mapList[T, R any](p Page[T], sort string, fn func(T) R) listResponse[R] {
	items := make([]R, 0, len(p.Items))
	for _, it := range p.Items {
		items = append(items, fn(it))
	}
	return listResponse[R]{
		Items: items,
		Meta: pageMeta{
			Page:       p.Page,
			Limit:      p.Limit,
			Total:      p.Total,
			TotalPages: p.TotalPages,
			Sort:       sort,
		},
	}
}
