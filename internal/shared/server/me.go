package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"consent-backend/internal/shared/server/middleware"
	"consent-backend/internal/shared/server/respond"
)

// registerMeRoutes attaches the /me endpoint, which lets the admin UI confirm
// its session and role.
func registerMeRoutes(rg *gin.RouterGroup) {
	rg.GET("/me", meHandler)
}

func meHandler(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	if userID == "" {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
		return
	}

	response := gin.H{
		"userId": userID,
		"role":   middleware.UserRoleFromContext(c),
	}
	if email := middleware.UserEmailFromContext(c); email != "" {
		response["email"] = email
	}

	respond.JSON(c, http.StatusOK, response)
}
