package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/linkbio/linkbio/pkg/linkbio/models"
	"github.com/linkbio/linkbio/pkg/linkbio/response"
)

const (
	// ContextKeyUserID is the key for user ID in gin context
	ContextKeyUserID = "user_id"
	// ContextKeyProfileID is the key for the owner's profile ID in gin context
	ContextKeyProfileID = "profile_id"
	// ContextKeyEmail is the key for email in gin context
	ContextKeyEmail = "email"
	// ContextKeySystemRole is the key for system role in gin context
	ContextKeySystemRole = "system_role"
)

// AuthMiddleware validates JWT tokens and sets user info in context
func AuthMiddleware(issuer *TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			response.AbortError(c, http.StatusUnauthorized, response.KindUnauthorized, "Authorization header required")
			return
		}

		claims, err := issuer.ValidateToken(tokenString)
		if err != nil {
			msg := "Invalid token"
			if err == ErrExpiredToken {
				msg = "Token has expired"
			}
			response.AbortError(c, http.StatusUnauthorized, response.KindUnauthorized, msg)
			return
		}

		// Set user info in context
		c.Set(ContextKeyUserID, claims.UserID)
		c.Set(ContextKeyProfileID, claims.ProfileID)
		c.Set(ContextKeyEmail, claims.Email)
		c.Set(ContextKeySystemRole, claims.SystemRole)

		c.Next()
	}
}

// bearerToken reads "Authorization: Bearer <token>". EventSource clients
// cannot set headers, so an access_token query parameter is accepted too.
func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return c.Query("access_token")
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return parts[1]
}

// RequireAdmin middleware checks if the user has admin system role
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get(ContextKeySystemRole)
		if !exists {
			response.AbortError(c, http.StatusUnauthorized, response.KindUnauthorized, "Authentication required")
			return
		}

		if role != string(models.SystemRoleAdmin) {
			response.AbortError(c, http.StatusForbidden, response.KindForbidden, "Admin access required")
			return
		}

		c.Next()
	}
}

// GetUserID returns the user ID from the gin context
func GetUserID(c *gin.Context) (uint, bool) {
	userID, exists := c.Get(ContextKeyUserID)
	if !exists {
		return 0, false
	}
	return userID.(uint), true
}

// GetProfileID returns the owner's profile ID from the gin context
func GetProfileID(c *gin.Context) (uint, bool) {
	profileID, exists := c.Get(ContextKeyProfileID)
	if !exists {
		return 0, false
	}
	id := profileID.(uint)
	return id, id != 0
}

// GetEmail returns the email from the gin context
func GetEmail(c *gin.Context) (string, bool) {
	email, exists := c.Get(ContextKeyEmail)
	if !exists {
		return "", false
	}
	return email.(string), true
}

// GetSystemRole returns the system role from the gin context
func GetSystemRole(c *gin.Context) (string, bool) {
	role, exists := c.Get(ContextKeySystemRole)
	if !exists {
		return "", false
	}
	return role.(string), true
}
