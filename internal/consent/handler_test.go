package consent

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"consent-backend/internal/recipients"
	"consent-backend/internal/shared/storage/object"
)

type stubFiles struct {
	data map[string]string
}

func (s stubFiles) Put(context.Context, string, string, io.Reader) (object.Stored, error) {
	return object.Stored{}, nil
}

func (s stubFiles) Open(_ context.Context, key string) (io.ReadCloser, error) {
	body, ok := s.data[key]
	if !ok {
		return nil, object.ErrInvalidKey
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func (s stubFiles) Delete(context.Context, string) error { return nil }

type testServer struct {
	router *gin.Engine
	svc    *Service
	repo   *MemoryRepo
}

func newTestServer(t *testing.T) testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := NewMemoryRepo()
	dir := recipients.NewMemoryDirectory()
	dir.Add(recipients.Recipient{Type: recipients.TypeClient, ID: "A", DisplayName: "Acme Ltd", Email: "a@acme.test"})
	svc := NewService(repo, dir, nil)

	router := gin.New()
	api := router.Group("/api/v1")
	admin := api.Group("")
	admin.Use(func(c *gin.Context) {
		c.Set("userId", "admin-1")
		c.Next()
	})
	NewHandler(svc).RegisterRoutes(admin)
	NewPublicHandler(svc, stubFiles{data: map[string]string{"ns/handbook.pdf": "%PDF-1.4 handbook"}}).RegisterRoutes(api)

	return testServer{router: router, svc: svc, repo: repo}
}

func (ts testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", "203.0.113.50, 10.0.0.1")
	resp := httptest.NewRecorder()
	ts.router.ServeHTTP(resp, req)
	return resp
}

func (ts testServer) createRequest(t *testing.T) (string, []Record) {
	t.Helper()
	resp := ts.do(t, http.MethodPost, "/api/v1/consent/requests", map[string]any{
		"fileName":      "Handbook v1",
		"fileReference": "ns/handbook.pdf",
		"recipientType": "client",
		"recipientIds":  []string{"A", "B"},
	})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	var out createRequestResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	require.Equal(t, 2, out.RecordCount)

	recs, _, err := ts.repo.ListRecords(context.Background(), out.DocumentID, nil, ListOptions{Sort: Sort{Column: "recipient_id"}})
	require.NoError(t, err)
	return out.DocumentID, recs
}

func errorCode(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	return body.Error.Code
}

func TestCreateRequestEndpoint(t *testing.T) {
	ts := newTestServer(t)
	docID, recs := ts.createRequest(t)
	require.Len(t, recs, 2)

	doc, err := ts.repo.GetDocument(context.Background(), docID)
	require.NoError(t, err)
	require.Equal(t, "admin-1", doc.UploadedBy)

	resp := ts.do(t, http.MethodPost, "/api/v1/consent/requests", map[string]any{
		"fileName": "x", "fileReference": "y", "recipientType": "vendor", "recipientIds": []string{"A"},
	})
	require.Equal(t, http.StatusBadRequest, resp.Code)
	require.Equal(t, "recipient_type_unsupported", errorCode(t, resp))

	resp = ts.do(t, http.MethodPost, "/api/v1/consent/requests", map[string]any{
		"fileName": "x", "fileReference": "y", "recipientType": "client", "recipientIds": []string{},
	})
	require.Equal(t, http.StatusBadRequest, resp.Code)
	require.Equal(t, "validation_error", errorCode(t, resp))
}

func TestPublicViewAndSubmit(t *testing.T) {
	ts := newTestServer(t)
	_, recs := ts.createRequest(t)
	a := recs[0]
	require.Equal(t, "A", a.RecipientID)

	resp := ts.do(t, http.MethodGet, "/api/v1/public/consent?token="+a.Token, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var view publicViewResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &view))
	require.Equal(t, "pending", view.Status)
	require.Equal(t, "Acme Ltd", view.Recipient.Name)
	require.Equal(t, "Handbook v1", view.Document.FileName)
	require.Contains(t, view.Document.FileURL, "/api/v1/public/consent/file?token=")
	require.NotContains(t, resp.Body.String(), "ns/handbook.pdf")

	resp = ts.do(t, http.MethodPost, "/api/v1/public/consent/submit", map[string]string{"token": a.Token, "name": "Jane Doe"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var submitted submitResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &submitted))
	require.Equal(t, "completed", submitted.Status)
	require.Equal(t, "Jane Doe", submitted.ConsentedName)

	stored, err := ts.repo.GetRecord(context.Background(), a.ID)
	require.NoError(t, err)
	require.Equal(t, "203.0.113.50", stored.IPAddress)

	resp = ts.do(t, http.MethodPost, "/api/v1/public/consent/submit", map[string]string{"token": a.Token, "name": "Jane Doe"})
	require.Equal(t, http.StatusConflict, resp.Code)
	require.Equal(t, "already_completed", errorCode(t, resp))
}

func TestPublicErrorsDistinguishInactiveFromUnknown(t *testing.T) {
	ts := newTestServer(t)
	docID, recs := ts.createRequest(t)

	unknown := strings.Repeat("0", 64)
	resp := ts.do(t, http.MethodGet, "/api/v1/public/consent?token="+unknown, nil)
	require.Equal(t, http.StatusNotFound, resp.Code)
	resp = ts.do(t, http.MethodPost, "/api/v1/public/consent/submit", map[string]string{"token": unknown, "name": "Jane Doe"})
	require.Equal(t, http.StatusNotFound, resp.Code)

	resp = ts.do(t, http.MethodPost, "/api/v1/consent/documents/"+docID+"/deactivate", nil)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = ts.do(t, http.MethodGet, "/api/v1/public/consent?token="+recs[1].Token, nil)
	require.Equal(t, http.StatusGone, resp.Code)
	require.Equal(t, "document_inactive", errorCode(t, resp))

	resp = ts.do(t, http.MethodGet, "/api/v1/public/consent/file?token="+recs[1].Token, nil)
	require.Equal(t, http.StatusGone, resp.Code)
}

func TestPublicFileStreamsDocument(t *testing.T) {
	ts := newTestServer(t)
	_, recs := ts.createRequest(t)

	resp := ts.do(t, http.MethodGet, "/api/v1/public/consent/file?token="+recs[0].Token, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, "%PDF-1.4 handbook", resp.Body.String())
	require.Contains(t, resp.Header().Get("Content-Disposition"), "inline")
}

func TestSubmitRejectsShortName(t *testing.T) {
	ts := newTestServer(t)
	_, recs := ts.createRequest(t)

	resp := ts.do(t, http.MethodPost, "/api/v1/public/consent/submit", map[string]string{"token": recs[0].Token, "name": " "})
	require.Equal(t, http.StatusBadRequest, resp.Code)
	require.Equal(t, "validation_error", errorCode(t, resp))
}

func TestAdminListingsAndResend(t *testing.T) {
	ts := newTestServer(t)
	docID, recs := ts.createRequest(t)

	resp := ts.do(t, http.MethodGet, "/api/v1/consent/documents?recipientType=client&active=true&sort=-createdAt", nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var docs listResponse[DocumentResponse]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &docs))
	require.Len(t, docs.Items, 1)
	require.Equal(t, 2, docs.Items[0].Pending)
	require.Equal(t, "-createdAt", docs.Meta.Sort)

	resp = ts.do(t, http.MethodGet, "/api/v1/consent/documents?sort=token", nil)
	require.Equal(t, http.StatusBadRequest, resp.Code)

	resp = ts.do(t, http.MethodGet, "/api/v1/consent/documents/"+docID+"/records?status=pending&page=1&limit=1", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var records listResponse[RecordResponse]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &records))
	require.Len(t, records.Items, 1)
	require.Equal(t, 2, records.Meta.Total)
	require.Equal(t, 2, records.Meta.TotalPages)
	require.NotContains(t, resp.Body.String(), recs[0].Token)

	resp = ts.do(t, http.MethodGet, "/api/v1/consent/documents/"+docID+"/records?status=signed", nil)
	require.Equal(t, http.StatusBadRequest, resp.Code)
	resp = ts.do(t, http.MethodGet, "/api/v1/consent/documents/"+docID+"/records?page=0", nil)
	require.Equal(t, http.StatusBadRequest, resp.Code)
	resp = ts.do(t, http.MethodGet, "/api/v1/consent/documents/missing", nil)
	require.Equal(t, http.StatusNotFound, resp.Code)

	resp = ts.do(t, http.MethodPost, "/api/v1/consent/records/resend", map[string]any{"recordIds": []string{recs[0].ID, "nonexistent-id"}})
	require.Equal(t, http.StatusOK, resp.Code)
	var resent resendResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &resent))
	require.Equal(t, []string{recs[0].ID}, resent.Resent)
	require.Equal(t, []string{"nonexistent-id"}, resent.Skipped)

	resp = ts.do(t, http.MethodPost, "/api/v1/consent/records/resend", map[string]any{"recordIds": []string{}})
	require.Equal(t, http.StatusBadRequest, resp.Code)
}
