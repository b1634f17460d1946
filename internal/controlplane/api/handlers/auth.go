package handlers

import (
	"errors"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/docspp/cluster/internal/controlplane/api/auth"
	"github.com/docspp/cluster/internal/controlplane/api/middleware"
	"github.com/docspp/cluster/internal/logger"
)

// AdminCredential is the single operator login configured for the Name
// Node's admin API. There is no multi-tenant user store: the cluster's
// only notion of identity below the admin API is the asserted username a
// client sends on CLIENT_REGISTER, which the Name Node checks against
// file ACLs, not against this credential.
type AdminCredential struct {
	Username     string
	PasswordHash string // bcrypt hash
}

// AuthHandler handles authentication-related API endpoints.
type AuthHandler struct {
	credential AdminCredential
	jwtService *auth.JWTService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(credential AdminCredential, jwtService *auth.JWTService) *AuthHandler {
	return &AuthHandler{
		credential: credential,
		jwtService: jwtService,
	}
}

// LoginRequest is the request body for POST /api/v1/auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is the response body for POST /api/v1/auth/login.
type LoginResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int64     `json:"expires_in"`
	ExpiresAt    time.Time `json:"expires_at"`
	Username     string    `json:"username"`
}

// RefreshRequest is the request body for POST /api/v1/auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Login handles POST /api/v1/auth/login.
// Authenticates the operator against the configured admin credential and
// returns a JWT token pair.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if req.Username == "" || req.Password == "" {
		BadRequest(w, "Username and password are required")
		return
	}

	if req.Username != h.credential.Username {
		Unauthorized(w, "Invalid username or password")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(h.credential.PasswordHash), []byte(req.Password)); err != nil {
		Unauthorized(w, "Invalid username or password")
		return
	}

	tokenPair, err := h.jwtService.GenerateTokenPair(req.Username)
	if err != nil {
		InternalServerError(w, "Failed to generate token")
		return
	}

	WriteJSONOK(w, LoginResponse{
		AccessToken:  tokenPair.AccessToken,
		RefreshToken: tokenPair.RefreshToken,
		TokenType:    tokenPair.TokenType,
		ExpiresIn:    tokenPair.ExpiresIn,
		ExpiresAt:    tokenPair.ExpiresAt,
		Username:     req.Username,
	})
}

// Refresh handles POST /api/v1/auth/refresh.
// Returns a new token pair using a valid refresh token.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if req.RefreshToken == "" {
		BadRequest(w, "Refresh token is required")
		return
	}

	claims, err := h.jwtService.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) {
			Unauthorized(w, "Refresh token has expired")
			return
		}
		Unauthorized(w, "Invalid refresh token")
		return
	}

	if claims.Username != h.credential.Username {
		Unauthorized(w, "Credential no longer valid")
		return
	}

	tokenPair, err := h.jwtService.GenerateTokenPair(claims.Username)
	if err != nil {
		InternalServerError(w, "Failed to generate token")
		return
	}

	logger.DebugCtx(r.Context(), "admin token refreshed", "username", claims.Username)

	WriteJSONOK(w, LoginResponse{
		AccessToken:  tokenPair.AccessToken,
		RefreshToken: tokenPair.RefreshToken,
		TokenType:    tokenPair.TokenType,
		ExpiresIn:    tokenPair.ExpiresIn,
		ExpiresAt:    tokenPair.ExpiresAt,
		Username:     claims.Username,
	})
}

// Me handles GET /api/v1/auth/me.
// Returns the current authenticated operator's username.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		Unauthorized(w, "Authentication required")
		return
	}

	WriteJSONOK(w, struct {
		Username string `json:"username"`
	}{Username: claims.Username})
}
