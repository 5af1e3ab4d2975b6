package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"consent-backend/internal/shared/auth"
)

func newAdminRouter(t *testing.T) (*gin.Engine, *auth.Signer) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	signer, err := auth.NewSigner("test-secret", "dev")
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	router := gin.New()
	router.Use(AdminAuth(signer, []string{"admin"}))
	router.GET("/api/v1/consent/documents", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"userId": UserIDFromContext(c)})
	})
	router.OPTIONS("/api/v1/consent/documents", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return router, signer
}

func TestAdminAuthAllowsOptionsWithoutIdentity(t *testing.T) {
	router, _ := newAdminRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/consent/documents", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}
}

func TestAdminAuthRejectsMissingToken(t *testing.T) {
	router, _ := newAdminRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/consent/documents", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestAdminAuthChecksRole(t *testing.T) {
	router, signer := newAdminRouter(t)

	viewer, err := signer.Sign(auth.Claims{Role: "viewer", RegisteredClaims: jwt.RegisteredClaims{Subject: "u-1"}})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/consent/documents", nil)
	req.Header.Set("Authorization", "Bearer "+viewer)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.Code)
	}

	admin, err := signer.Sign(auth.Claims{Role: "Admin", RegisteredClaims: jwt.RegisteredClaims{Subject: "u-2"}})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	req = httptest.NewRequest(http.MethodGet, "/api/v1/consent/documents", nil)
	req.Header.Set("Authorization", "Bearer "+admin)
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}
