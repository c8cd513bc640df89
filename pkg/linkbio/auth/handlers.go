package auth

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/linkbio/linkbio/pkg/linkbio/models"
	"github.com/linkbio/linkbio/pkg/linkbio/response"
	"github.com/linkbio/linkbio/pkg/linkbio/store"
)

// Accounts is the part of the store used for authentication
type Accounts interface {
	CreateAccount(ctx context.Context, in store.AccountInput) (models.User, models.Profile, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	GetUserByID(ctx context.Context, id uint) (models.User, error)
	GetProfileByUserID(ctx context.Context, userID uint) (models.Profile, error)
}

// Sessions drops server-side state kept for a signed-in owner
type Sessions interface {
	Evict(profileID uint)
}

// Handler handles authentication requests
type Handler struct {
	accounts Accounts
	issuer   *TokenIssuer
	sessions Sessions
}

// NewHandler creates a new auth handler
func NewHandler(accounts Accounts, issuer *TokenIssuer) *Handler {
	return &Handler{accounts: accounts, issuer: issuer}
}

// WithSessions makes Logout evict the owner's sessions
func (h *Handler) WithSessions(sessions Sessions) *Handler {
	h.sessions = sessions
	return h
}

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name" binding:"required"`
	Username string `json:"username" binding:"required"`
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse represents the authentication response
type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

// UserResponse represents user data in responses
type UserResponse struct {
	ID         uint   `json:"id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	SystemRole string `json:"system_role"`
	ProfileID  uint   `json:"profile_id"`
	Username   string `json:"username"`
}

func userResponse(user models.User, profile models.Profile) UserResponse {
	return UserResponse{
		ID:         user.ID,
		Email:      user.Email,
		Name:       user.Name,
		SystemRole: string(user.SystemRole),
		ProfileID:  profile.ID,
		Username:   profile.Username,
	}
}

// Register handles owner registration
// @Summary Register a new owner
// @Description Create a user account with its public profile and receive a JWT token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration details"
// @Success 201 {object} AuthResponse
// @Failure 400 {object} response.Envelope "Validation error"
// @Failure 409 {object} response.Envelope "Email or username already registered"
// @Router /auth/register [post]
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Invalid(c, err)
		return
	}

	// Hash password
	hashedPassword, err := HashPassword(req.Password)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, string(store.KindInternal), "Failed to process password")
		return
	}

	user, profile, err := h.accounts.CreateAccount(c.Request.Context(), store.AccountInput{
		Email:        req.Email,
		PasswordHash: hashedPassword,
		Name:         req.Name,
		Username:     req.Username,
	})
	if err != nil {
		response.Fail(c, err)
		return
	}

	// Generate token
	token, err := h.issuer.GenerateToken(user.ID, profile.ID, user.Email, string(user.SystemRole))
	if err != nil {
		response.Error(c, http.StatusInternalServerError, string(store.KindInternal), "Failed to generate token")
		return
	}

	response.OK(c, http.StatusCreated, AuthResponse{Token: token, User: userResponse(user, profile)})
}

// Login handles user login
// @Summary Login
// @Description Authenticate with email and password to receive a JWT token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login credentials"
// @Success 200 {object} AuthResponse
// @Failure 400 {object} response.Envelope "Validation error"
// @Failure 401 {object} response.Envelope "Invalid credentials"
// @Router /auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Invalid(c, err)
		return
	}

	ctx := c.Request.Context()
	user, err := h.accounts.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if store.IsNotFound(err) {
			response.Error(c, http.StatusUnauthorized, response.KindUnauthorized, "Invalid email or password")
			return
		}
		response.Fail(c, err)
		return
	}

	// Check password
	if !CheckPassword(req.Password, user.PasswordHash) {
		response.Error(c, http.StatusUnauthorized, response.KindUnauthorized, "Invalid email or password")
		return
	}

	profile, err := h.accounts.GetProfileByUserID(ctx, user.ID)
	if err != nil && !store.IsNotFound(err) {
		response.Fail(c, err)
		return
	}

	// Generate token
	token, err := h.issuer.GenerateToken(user.ID, profile.ID, user.Email, string(user.SystemRole))
	if err != nil {
		response.Error(c, http.StatusInternalServerError, string(store.KindInternal), "Failed to generate token")
		return
	}

	response.OK(c, http.StatusOK, AuthResponse{Token: token, User: userResponse(user, profile)})
}

// Me returns the current authenticated user
// @Summary Get current user
// @Description Get the authenticated user and their profile handle
// @Tags auth
// @Produce json
// @Success 200 {object} UserResponse
// @Failure 401 {object} response.Envelope "Authentication required"
// @Security BearerAuth
// @Router /auth/me [get]
func (h *Handler) Me(c *gin.Context) {
	userID, exists := GetUserID(c)
	if !exists {
		response.Error(c, http.StatusUnauthorized, response.KindUnauthorized, "Authentication required")
		return
	}

	user, err := h.accounts.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		response.Fail(c, err)
		return
	}

	var profile models.Profile
	if user.Profile != nil {
		profile = *user.Profile
	}
	response.OK(c, http.StatusOK, userResponse(user, profile))
}

// Logout handles user logout. The token itself is discarded client-side;
// a valid token also releases the owner's dashboard session.
// @Summary Logout
// @Description Logout the current user (client-side token invalidation)
// @Tags auth
// @Produce json
// @Success 200 {object} response.Envelope "Logged out successfully"
// @Router /auth/logout [post]
func (h *Handler) Logout(c *gin.Context) {
	if tokenString := bearerToken(c); tokenString != "" && h.sessions != nil {
		if claims, err := h.issuer.ValidateToken(tokenString); err == nil {
			h.sessions.Evict(claims.ProfileID)
		}
	}
	response.OK(c, http.StatusOK, gin.H{"message": "Logged out successfully"})
}

// RegisterRoutes registers auth routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/register", h.Register)
	rg.POST("/login", h.Login)
	rg.POST("/logout", h.Logout)
	rg.GET("/me", AuthMiddleware(h.issuer), h.Me)
}
