package uploads

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"consent-backend/internal/inspect"
	"consent-backend/internal/shared/server/middleware"
	"consent-backend/internal/shared/server/respond"
	"consent-backend/internal/shared/storage/object"
	"consent-backend/internal/shared/telemetry"
	"consent-backend/internal/shared/util"
)

const maxUploadBytes = 10 << 20

var allowedContentTypes = map[string]struct{}{
	inspect.MimePDF:  {},
	inspect.MimeDOCX: {},
}

// Presigner issues direct-to-bucket upload URLs.
type Presigner interface {
	PresignPut(ctx context.Context, key, contentType string) (url string, objectKey string, err error)
	TTL() time.Duration
}

// Handler accepts consent document uploads. The returned fileReference is what
// operators pass to consent request creation.
type Handler struct {
	Store     object.ObjectStore
	Presigner Presigner
}

func NewHandler(store object.ObjectStore, presigner Presigner) *Handler {
	return &Handler{Store: store, Presigner: presigner}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/consent/uploads", h.upload)
	rg.POST("/consent/uploads/presign", h.presign)
}

type uploadResponse struct {
	FileName      string `json:"fileName"`
	FileReference string `json:"fileReference"`
	MimeType      string `json:"mimeType"`
	SizeBytes     int64  `json:"sizeBytes"`
	PageCount     int    `json:"pageCount"`
}

func (h *Handler) upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", nil)
		return
	}
	fileName := strings.TrimSpace(fileHeader.Filename)
	if _, err := util.SanitizeFileName(fileName); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid file name", nil)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	defer file.Close()

	ctx := c.Request.Context()
	namespace := middleware.UserIDFromContext(c)
	var content bytes.Buffer
	stored, err := h.Store.Put(ctx, namespace, fileName, io.TeeReader(file, &content))
	if err != nil {
		telemetry.Error("uploads.store_failed", map[string]any{
			"file_name":  fileName,
			"error":      err.Error(),
			"request_id": c.GetString("requestId"),
		})
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to store file", nil)
		return
	}

	info, err := inspect.Inspect(ctx, content.Bytes(), stored.MimeType, fileName)
	if err != nil {
		if delErr := h.Store.Delete(context.WithoutCancel(ctx), stored.Key); delErr != nil {
			telemetry.Warn("uploads.cleanup_failed", map[string]any{"key": stored.Key, "error": delErr.Error()})
		}
		switch {
		case errors.Is(err, inspect.ErrUnsupported):
			respond.Error(c, http.StatusBadRequest, "validation_error", "file must be a PDF or DOCX document", nil)
		case errors.Is(err, inspect.ErrUnreadable):
			respond.Error(c, http.StatusBadRequest, "validation_error", "file could not be read", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to inspect file", nil)
		}
		return
	}

	telemetry.Info("uploads.stored", map[string]any{
		"key":        stored.Key,
		"mime_type":  info.MimeType,
		"size_bytes": stored.SizeBytes,
		"page_count": info.PageCount,
	})
	respond.Created(c, uploadResponse{
		FileName:      fileName,
		FileReference: stored.Key,
		MimeType:      info.MimeType,
		SizeBytes:     stored.SizeBytes,
		PageCount:     info.PageCount,
	})
}

type presignRequest struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	SizeBytes   int64  `json:"sizeBytes"`
}

type presignResponse struct {
	UploadURL        string `json:"uploadUrl"`
	FileReference    string `json:"fileReference"`
	ExpiresInSeconds int64  `json:"expiresInSeconds"`
}

func (h *Handler) presign(c *gin.Context) {
	if h.Presigner == nil {
		respond.Error(c, http.StatusNotImplemented, "uploads_not_configured", "direct uploads are not configured", nil)
		return
	}

	var req presignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	req.FileName = strings.TrimSpace(req.FileName)
	req.ContentType = strings.ToLower(strings.TrimSpace(req.ContentType))

	if req.FileName == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "fileName is required", nil)
		return
	}
	if _, ok := allowedContentTypes[req.ContentType]; !ok {
		respond.Error(c, http.StatusBadRequest, "validation_error", "contentType is not allowed", nil)
		return
	}
	if req.SizeBytes <= 0 || req.SizeBytes > maxUploadBytes {
		respond.Error(c, http.StatusBadRequest, "validation_error", "sizeBytes exceeds limit", nil)
		return
	}
	key, err := object.NewKey(middleware.UserIDFromContext(c), req.FileName)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid fileName", nil)
		return
	}
	uploadURL, objectKey, err := h.Presigner.PresignPut(c.Request.Context(), key, req.ContentType)
	if err != nil {
		telemetry.Error("uploads.presign_failed", map[string]any{
			"error":        err.Error(),
			"key":          key,
			"content_type": req.ContentType,
			"size_bytes":   req.SizeBytes,
			"request_id":   c.GetString("requestId"),
		})
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to generate upload url", nil)
		return
	}

	respond.OK(c, presignResponse{
		UploadURL:        uploadURL,
		FileReference:    objectKey,
		ExpiresInSeconds: int64(h.Presigner.TTL().Seconds()),
	})
}
