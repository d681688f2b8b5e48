package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// ContextKeyUserID is the key for user ID in gin context
	ContextKeyUserID = "user_id"
	// ContextKeyEmail is the key for email in gin context
	ContextKeyEmail = "email"
	// ContextKeyIsStaff is the key for the staff flag in gin context
	ContextKeyIsStaff = "is_staff"
)

// Messages returned by the API when a request is not authenticated
const (
	MsgNoCredentials = "Authentication credentials were not provided."
	MsgInvalidToken  = "Invalid token"
	MsgExpiredToken  = "Token has expired"
)

// BearerToken extracts the token of an "Authorization: Bearer <token>" header
func BearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// Deny rejects an unauthenticated API request. The API fails closed with 403.
func Deny(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": message})
}

// DenyToken rejects a request carrying a bad or expired token
func DenyToken(c *gin.Context, err error) {
	if errors.Is(err, ErrExpiredToken) {
		Deny(c, MsgExpiredToken)
		return
	}
	Deny(c, MsgInvalidToken)
}

// AuthMiddleware validates JWT tokens and sets user info in context
func AuthMiddleware(tokens *TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := BearerToken(c)
		if !ok {
			Deny(c, MsgNoCredentials)
			return
		}

		claims, err := tokens.ValidateToken(tokenString)
		if err != nil {
			DenyToken(c, err)
			return
		}

		SetUser(c, claims.UserID, claims.Email, claims.IsStaff)
		c.Next()
	}
}

// SetUser stores the authenticated user in the gin context
func SetUser(c *gin.Context, userID uint, email string, isStaff bool) {
	c.Set(ContextKeyUserID, userID)
	c.Set(ContextKeyEmail, email)
	c.Set(ContextKeyIsStaff, isStaff)
}

// GetUserID returns the user ID from the gin context
func GetUserID(c *gin.Context) (uint, bool) {
	userID, exists := c.Get(ContextKeyUserID)
	if !exists {
		return 0, false
	}
	id, ok := userID.(uint)
	return id, ok
}

// GetEmail returns the email from the gin context
func GetEmail(c *gin.Context) (string, bool) {
	email, exists := c.Get(ContextKeyEmail)
	if !exists {
		return "", false
	}
	s, ok := email.(string)
	return s, ok
}
