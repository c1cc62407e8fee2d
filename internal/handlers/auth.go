package handlers

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"assetvision/internal/auth"
	apperrors "assetvision/internal/errors"
	"assetvision/internal/repository"
)

// AuthHandler handles login.
type AuthHandler struct {
	userRepo     *repository.UserRepository
	tokenManager *auth.TokenManager
	log          zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(userRepo *repository.UserRepository, tm *auth.TokenManager, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		userRepo:     userRepo,
		tokenManager: tm,
		log:          log.With().Str("handler", "auth").Logger(),
	}
}

// tokenResponse is the login response body.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Login exchanges form credentials for a bearer token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, h.log, apperrors.Validation("invalid form data"))
		return
	}

	username := strings.TrimSpace(r.FormValue("username"))
	password := r.FormValue("password")
	if username == "" || password == "" {
		writeError(w, h.log, apperrors.Validation("username and password are required"))
		return
	}

	user, err := h.userRepo.GetByUsername(username)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	if user == nil || !auth.CheckPassword(password, user.PasswordHash) {
		writeError(w, h.log, apperrors.Unauthorized("incorrect username or password"))
		return
	}

	session, err := h.tokenManager.Issue(user.ID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	h.log.Info().Str("username", username).Msg("login")
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: session.ID,
		TokenType:   "bearer",
	})
}
