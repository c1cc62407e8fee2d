package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"assetvision/internal/auth"
	apperrors "assetvision/internal/errors"
	"assetvision/internal/middleware"
	"assetvision/internal/models"
	"assetvision/internal/repository"
)

// UserHandler handles user CRUD.
type UserHandler struct {
	userRepo     *repository.UserRepository
	tokenManager *auth.TokenManager
	log          zerolog.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(userRepo *repository.UserRepository, tm *auth.TokenManager, log zerolog.Logger) *UserHandler {
	return &UserHandler{
		userRepo:     userRepo,
		tokenManager: tm,
		log:          log.With().Str("handler", "users").Logger(),
	}
}

// createUserRequest is the registration payload. Roles are not accepted
// here; registration is unauthenticated and new users always start with the
// user role. An admin grants further roles through Update.
type createUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email,omitempty"`
}

// Create registers a new user.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		writeError(w, h.log, apperrors.ValidationField("username", "username is required"))
		return
	}
	if len(req.Password) < 8 {
		writeError(w, h.log, apperrors.ValidationField("password", "password must be at least 8 characters"))
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	user := &models.User{
		Username:     req.Username,
		PasswordHash: hash,
		Email:        strings.TrimSpace(req.Email),
		Roles:        []string{"user"},
	}
	if _, err := h.userRepo.Create(user); err != nil {
		writeError(w, h.log, err)
		return
	}

	h.log.Info().Str("username", user.Username).Msg("user created")
	writeJSON(w, http.StatusCreated, user)
}

// Get returns one user by username.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	user, err := h.userRepo.GetByUsername(username)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	if user == nil {
		writeError(w, h.log, apperrors.NotFoundf("user %s not found", username))
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// List returns all users.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.userRepo.GetAll()
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// Update applies a partial update to a user. A password change revokes the
// user's existing tokens.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	var patch models.UserPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, h.log, err)
		return
	}
	if patch.Empty() {
		writeError(w, h.log, apperrors.Validation("no fields to update"))
		return
	}
	if patch.Roles != nil && !middleware.GetUser(r).HasRole("admin") {
		writeError(w, h.log, apperrors.Forbidden("only admins can change roles"))
		return
	}

	passwordHash := ""
	if patch.Password != nil {
		if len(*patch.Password) < 8 {
			writeError(w, h.log, apperrors.ValidationField("password", "password must be at least 8 characters"))
			return
		}
		hash, err := auth.HashPassword(*patch.Password)
		if err != nil {
			writeError(w, h.log, err)
			return
		}
		passwordHash = hash
	}

	user, err := h.userRepo.Update(username, &patch, passwordHash)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	if patch.Password != nil {
		if err := h.tokenManager.RevokeByUserID(user.ID); err != nil {
			h.log.Error().Err(err).Str("username", username).Msg("revoking tokens after password change")
		}
	}

	h.log.Info().Str("username", username).Msg("user updated")
	writeJSON(w, http.StatusOK, user)
}

// Delete removes a user and revokes their tokens.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	user, err := h.userRepo.GetByUsername(username)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	if user == nil {
		writeError(w, h.log, apperrors.NotFoundf("user %s not found", username))
		return
	}

	if err := h.tokenManager.RevokeByUserID(user.ID); err != nil {
		writeError(w, h.log, err)
		return
	}
	if err := h.userRepo.Delete(username); err != nil {
		writeError(w, h.log, err)
		return
	}

	h.log.Info().Str("username", username).Msg("user deleted")
	writeJSON(w, http.StatusOK, map[string]string{"deleted": username})
}
