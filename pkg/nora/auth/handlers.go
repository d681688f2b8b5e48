package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/norahq/nora/pkg/nora/log"
	"github.com/norahq/nora/pkg/nora/models"
	"gorm.io/gorm"
)

// Handler handles authentication requests
type Handler struct {
	db                *gorm.DB
	tokens            *TokenManager
	logger            *log.Logger
	allowRegistration bool
}

// NewHandler creates a new auth handler
func NewHandler(db *gorm.DB, tokens *TokenManager, logger *log.Logger, allowRegistration bool) *Handler {
	return &Handler{db: db, tokens: tokens, logger: logger, allowRegistration: allowRegistration}
}

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name" binding:"required"`
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest carries the token to exchange
type RefreshRequest struct {
	Token string `json:"token" binding:"required"`
}

// AuthResponse represents the authentication response
type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

// UserResponse represents user data in responses
type UserResponse struct {
	ID      uint   `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	IsStaff bool   `json:"is_staff"`
}

func toUserResponse(user *models.User) UserResponse {
	return UserResponse{
		ID:      user.ID,
		Email:   user.Email,
		Name:    user.Name,
		IsStaff: user.IsStaff,
	}
}

// Authenticate checks credentials and returns the active user they belong to
func Authenticate(db *gorm.DB, email, password string) (*models.User, error) {
	var user models.User
	if err := db.Where("email = ? AND active = ?", email, true).First(&user).Error; err != nil {
		return nil, err
	}
	if !CheckPassword(password, user.PasswordHash) {
		return nil, errors.New("invalid password")
	}
	return &user, nil
}

// Register handles staff registration when it is enabled
func (h *Handler) Register(c *gin.Context) {
	if !h.allowRegistration {
		c.JSON(http.StatusForbidden, gin.H{"error": "Registration is disabled"})
		return
	}

	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var existingUser models.User
	if err := h.db.Where("email = ?", req.Email).First(&existingUser).Error; err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
		return
	}

	hashedPassword, err := HashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process password"})
		return
	}

	user := models.User{
		Email:        req.Email,
		PasswordHash: hashedPassword,
		Name:         req.Name,
		IsStaff:      true,
	}
	if err := h.db.Create(&user).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	token, err := h.tokens.GenerateToken(user.ID, user.Email, user.IsStaff)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusCreated, AuthResponse{Token: token, User: toUserResponse(&user)})
}

// Login exchanges email and password for a JWT token
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := Authenticate(h.db, req.Email, req.Password)
	if err != nil {
		h.logger.LogAuth(0, req.Email, "token", false)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	token, err := h.tokens.GenerateToken(user.ID, user.Email, user.IsStaff)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	h.logger.LogAuth(user.ID, user.Email, "token", true)
	c.JSON(http.StatusOK, AuthResponse{Token: token, User: toUserResponse(user)})
}

// Refresh exchanges a still-valid token for a new one
func (h *Handler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, claims, err := h.tokens.RefreshToken(req.Token)
	if err != nil {
		DenyToken(c, err)
		return
	}

	var user models.User
	if err := h.db.Where("id = ? AND active = ?", claims.UserID, true).First(&user).Error; err != nil {
		Deny(c, MsgInvalidToken)
		return
	}

	c.JSON(http.StatusOK, AuthResponse{Token: token, User: toUserResponse(&user)})
}

// Me returns the current authenticated user
func (h *Handler) Me(c *gin.Context) {
	userID, exists := GetUserID(c)
	if !exists {
		Deny(c, MsgNoCredentials)
		return
	}

	var user models.User
	if err := h.db.First(&user, userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	c.JSON(http.StatusOK, toUserResponse(&user))
}

// Logout handles user logout (client-side token invalidation)
func (h *Handler) Logout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

// RegisterRoutes registers auth routes on the given router group.
// protect guards the routes that need a caller identity.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, protect gin.HandlerFunc) {
	rg.POST("/register", h.Register)
	rg.POST("/login", h.Login)
	rg.POST("/refresh", h.Refresh)
	rg.POST("/logout", h.Logout)
	rg.GET("/me", protect, h.Me)
}

// RegisterTokenRoutes registers the token endpoints at their legacy paths
func (h *Handler) RegisterTokenRoutes(r gin.IRoutes) {
	r.POST("/api-token-auth/", h.Login)
	r.POST("/api-token-refresh/", h.Refresh)
}
