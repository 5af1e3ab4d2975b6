package consent

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"consent-backend/internal/recipients"
	"consent-backend/internal/shared/server/middleware"
	"consent-backend/internal/shared/server/respond"
)

// Handler exposes the admin consent endpoints.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches admin routes to an authenticated group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/consent/requests", h.createRequest)
	rg.GET("/consent/documents", h.listDocuments)
	rg.GET("/consent/documents/:id", h.getDocument)
	rg.GET("/consent/documents/:id/records", h.listRecords)
	rg.POST("/consent/documents/:id/deactivate", h.deactivate)
	rg.POST("/consent/records/resend", h.resend)
}

func (h *Handler) createRequest(c *gin.Context) {
	var req createRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	res, err := h.Svc.CreateRequest(c.Request.Context(), CreateRequestInput{
		FileName:      req.FileName,
		FileReference: req.FileReference,
		UploadedBy:    actor(c),
		RecipientType: req.RecipientType,
		RecipientIDs:  req.RecipientIDs,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.Set(middleware.DocumentIDKey, res.DocumentID)
	respond.Created(c, createRequestResponse{DocumentID: res.DocumentID, RecordCount: res.RecordCount})
}

func (h *Handler) listDocuments(c *gin.Context) {
	page, err := ParsePage(c.Query("page"), c.Query("limit"))
	if err != nil {
		writeError(c, err)
		return
	}
	sort, err := ParseSort(c.Query("sort"), DocumentFields, defaultDocumentSort)
	if err != nil {
		writeError(c, err, DocumentFields.Names())
		return
	}

	q := DocumentQuery{Sort: sort, Page: page}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		q.Filters = append(q.Filters, SearchTerm{Text: search})
	}
	if raw := strings.TrimSpace(c.Query("active")); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "active must be true or false", nil)
			return
		}
		q.Filters = append(q.Filters, ActiveIs{Active: active})
	}
	if raw := c.Query("date"); raw != "" {
		day, err := ParseDay(raw)
		if err != nil {
			writeError(c, err)
			return
		}
		q.Filters = append(q.Filters, day)
	}
	if raw := c.Query("recipientType"); raw != "" {
		t, ok := recipients.ParseType(raw)
		if !ok {
			writeError(c, ErrRecipientTypeUnsupported)
			return
		}
		q.RecipientType = t
	}

	res, err := h.Svc.ListDocuments(c.Request.Context(), q)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, mapList(res, sort.External(DocumentFields), toDocumentResponse))
}

func (h *Handler) getDocument(c *gin.Context) {
	id := c.Param("id")
	c.Set(middleware.DocumentIDKey, id)
	doc, err := h.Svc.GetDocument(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, toDocumentResponse(doc))
}

func (h *Handler) listRecords(c *gin.Context) {
	documentID := c.Param("id")
	c.Set(middleware.DocumentIDKey, documentID)

	page, err := ParsePage(c.Query("page"), c.Query("limit"))
	if err != nil {
		writeError(c, err)
		return
	}
	sort, err := ParseSort(c.Query("sort"), RecordFields, defaultRecordSort)
	if err != nil {
		writeError(c, err, RecordFields.Names())
		return
	}

	q := RecordQuery{Sort: sort, Page: page}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		q.Filters = append(q.Filters, SearchTerm{Text: search})
	}
	if raw := c.Query("status"); raw != "" {
		status, ok := ParseStatus(raw)
		if !ok {
			respond.Error(c, http.StatusBadRequest, "validation_error", "status must be pending or completed", nil)
			return
		}
		q.Filters = append(q.Filters, StatusIs{Status: status})
	}
	if raw := c.Query("recipientType"); raw != "" {
		t, ok := recipients.ParseType(raw)
		if !ok {
			writeError(c, ErrRecipientTypeUnsupported)
			return
		}
		q.Filters = append(q.Filters, RecipientTypeIs{Type: t})
	}
	if raw := c.Query("date"); raw != "" {
		day, err := ParseDay(raw)
		if err != nil {
			writeError(c, err)
			return
		}
		q.Filters = append(q.Filters, day)
	}

	res, err := h.Svc.ListRecords(c.Request.Context(), documentID, q)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, mapList(res, sort.External(RecordFields), toRecordResponse))
}

func (h *Handler) deactivate(c *gin.Context) {
	id := c.Param("id")
	c.Set(middleware.DocumentIDKey, id)
	doc, err := h.Svc.DeactivateDocument(c.Request.Context(), actor(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	summary, err := h.Svc.GetDocument(c.Request.Context(), doc.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, toDocumentResponse(summary))
}

func (h *Handler) resend(c *gin.Context) {
	var req resendBody
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	res, err := h.Svc.Resend(c.Request.Context(), actor(c), req.RecordIDs)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, resendResponse{Resent: res.Resent, Skipped: res.Skipped})
}

func actor(c *gin.Context) string {
	if id := middleware.UserIDFromContext(c); id != "" {
		return id
	}
	return middleware.UserEmailFromContext(c)
}

// writeError maps workflow errors onto the HTTP error envelope. Optional details
// are attached to validation errors.
func writeError(c *gin.Context, err error, details ...any) {
	var detail any
	if len(details) > 0 {
		detail = details[0]
	}
	switch {
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), detail)
	case errors.Is(err, ErrRecipientTypeUnsupported):
		respond.Error(c, http.StatusBadRequest, "recipient_type_unsupported", "recipientType must be one of client, jobseeker", nil)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "not found", nil)
	case errors.Is(err, ErrDocumentInactive):
		respond.Error(c, http.StatusGone, "document_inactive", "this consent document is no longer active", nil)
	case errors.Is(err, ErrAlreadyCompleted):
		respond.Error(c, http.StatusConflict, "already_completed", "consent has already been submitted", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "internal error", nil)
	}
}
