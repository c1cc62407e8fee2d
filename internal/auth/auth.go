// Package auth provides password hashing and bearer-token management.
package auth

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"assetvision/internal/database"
	"assetvision/internal/models"
)

const (
	// DefaultTokenDuration is the default bearer-token lifetime.
	DefaultTokenDuration = 24 * time.Hour

	// BcryptCost is the bcrypt hashing cost.
	BcryptCost = 12
)

var (
	// ErrInvalidCredentials is returned when login credentials are invalid.
	ErrInvalidCredentials = errors.New("incorrect username or password")

	// ErrTokenExpired is returned when a token has expired.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenNotFound is returned when a token doesn't exist.
	ErrTokenNotFound = errors.New("token not found")
)

// HashPassword hashes a password using bcrypt.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(bytes), nil
}

// CheckPassword compares a password with a hash.
func CheckPassword(password, hash string) bool {
	if password == "" || hash == "" {
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// TokenManager issues and validates opaque bearer tokens backed by the
// sessions table.
type TokenManager struct {
	db       *database.DB
	duration time.Duration
}

// NewTokenManager creates a new TokenManager.
func NewTokenManager(db *database.DB) *TokenManager {
	return &TokenManager{
		db:       db,
		duration: DefaultTokenDuration,
	}
}

// WithDuration sets a custom token duration.
func (tm *TokenManager) WithDuration(d time.Duration) *TokenManager {
	tm.duration = d
	return tm
}

// Issue creates a new bearer token for a user.
func (tm *TokenManager) Issue(userID int64) (*models.Session, error) {
	id, err := generateTokenID()
	if err != nil {
		return nil, err
	}

	session := &models.Session{
		ID:        id,
		UserID:    userID,
		ExpiresAt: time.Now().Add(tm.duration),
		CreatedAt: time.Now(),
	}

	query := `
		INSERT INTO sessions (id, user_id, expires_at, created_at)
		VALUES (?, ?, ?, ?)
	`
	_, err = tm.db.Exec(query, session.ID, session.UserID, session.ExpiresAt, session.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	return session, nil
}

// Get retrieves a session by token. Returns nil if not found.
func (tm *TokenManager) Get(id string) (*models.Session, error) {
	query := `
		SELECT id, user_id, expires_at, created_at
		FROM sessions
		WHERE id = ?
	`

	session := &models.Session{}
	err := tm.db.QueryRow(query, id).Scan(
		&session.ID,
		&session.UserID,
		&session.ExpiresAt,
		&session.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting session: %w", err)
	}

	return session, nil
}

// Validate checks if a token is valid and returns the user ID.
func (tm *TokenManager) Validate(id string) (int64, error) {
	session, err := tm.Get(id)
	if err != nil {
		return 0, err
	}
	if session == nil {
		return 0, ErrTokenNotFound
	}
	if session.IsExpired() {
		// Clean up the expired session
		tm.Revoke(id)
		return 0, ErrTokenExpired
	}
	return session.UserID, nil
}

// Revoke removes a token.
func (tm *TokenManager) Revoke(id string) error {
	query := `DELETE FROM sessions WHERE id = ?`
	_, err := tm.db.Exec(query, id)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// RevokeByUserID removes all tokens for a user.
func (tm *TokenManager) RevokeByUserID(userID int64) error {
	query := `DELETE FROM sessions WHERE user_id = ?`
	_, err := tm.db.Exec(query, userID)
	if err != nil {
		return fmt.Errorf("deleting user sessions: %w", err)
	}
	return nil
}

// CleanExpired removes all expired tokens and returns the count.
func (tm *TokenManager) CleanExpired() (int64, error) {
	query := `DELETE FROM sessions WHERE expires_at < ?`
	result, err := tm.db.Exec(query, time.Now())
	if err != nil {
		return 0, fmt.Errorf("cleaning expired sessions: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting affected rows: %w", err)
	}

	return count, nil
}

// generateTokenID creates a cryptographically secure token.
func generateTokenID() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}
