package consent

import (
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	"consent-backend/internal/shared/server/middleware"
	"consent-backend/internal/shared/server/respond"
	"consent-backend/internal/shared/storage/object"
	"consent-backend/internal/shared/telemetry"
)

const publicFilePath = "/api/v1/public/consent/file"

// PublicHandler exposes the token-scoped recipient endpoints.
type PublicHandler struct {
	Svc   *Service
	Files object.ObjectStore
}

// NewPublicHandler constructs a PublicHandler. files may be nil when document
// bytes are served elsewhere.
func NewPublicHandler(svc *Service, files object.ObjectStore) *PublicHandler {
	return &PublicHandler{Svc: svc, Files: files}
}

// RegisterRoutes attaches public routes to an unauthenticated group.
func (h *PublicHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/public/consent", h.view)
	rg.GET("/public/consent/file", h.file)
	rg.POST("/public/consent/submit", h.submit)
}

func (h *PublicHandler) view(c *gin.Context) {
	token := c.Query("token")
	v, err := h.Svc.View(c.Request.Context(), token)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Set(middleware.RecordIDKey, v.Record.ID)
	c.Set(middleware.DocumentIDKey, v.Document.ID)

	fileURL := ""
	if h.Files != nil {
		fileURL = publicFilePath + "?token=" + url.QueryEscape(strings.TrimSpace(token))
	}
	respond.OK(c, toPublicView(v, fileURL))
}

func (h *PublicHandler) file(c *gin.Context) {
	if h.Files == nil {
		respond.Error(c, http.StatusNotFound, "not_found", "not found", nil)
		return
	}
	doc, err := h.Svc.DocumentForToken(c.Request.Context(), c.Query("token"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.Set(middleware.DocumentIDKey, doc.ID)

	rc, err := h.Files.Open(c.Request.Context(), doc.FileReference)
	if err != nil {
		telemetry.Error("consent.file.open_failed", map[string]any{
			"document_id": doc.ID,
			"err":         err.Error(),
		})
		respond.Error(c, http.StatusNotFound, "not_found", "document file unavailable", nil)
		return
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(strings.ToLower(path.Ext(doc.FileName)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Type", contentType)
	c.Header("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": doc.FileName}))
	c.Header("Cache-Control", "no-store")
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, rc); err != nil {
		telemetry.Warn("consent.file.stream_interrupted", map[string]any{
			"document_id": doc.ID,
			"err":         err.Error(),
		})
	}
}

func (h *PublicHandler) submit(c *gin.Context) {
	var req submitBody
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	rec, err := h.Svc.Submit(c.Request.Context(), SubmitInput{
		Token:     req.Token,
		Name:      req.Name,
		IPAddress: ClientAddress(c.Request),
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.Set(middleware.RecordIDKey, rec.ID)
	c.Set(middleware.DocumentIDKey, rec.DocumentID)
	c.Set(middleware.StatusTransitionKey, "pending->completed")
	respond.OK(c, submitResponse{
		Status:        string(rec.Status),
		CompletedAt:   rec.CompletedAt,
		ConsentedName: rec.ConsentedName,
	})
}
