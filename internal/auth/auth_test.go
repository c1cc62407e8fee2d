package auth

import (
	"path/filepath"
	"testing"
	"time"

	"assetvision/internal/database"
	"assetvision/internal/models"
)

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	db, err := database.New(dbPath)
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}

	if err := db.RunMigrations(); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func createTestUser(t *testing.T, db *database.DB) int64 {
	t.Helper()
	result, err := db.Exec(
		`INSERT INTO users (username, password_hash, email) VALUES (?, ?, ?)`,
		"tester", "hash", "tester@example.com",
	)
	if err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	id, _ := result.LastInsertId()
	return id
}

func TestHashPassword_AndCheck(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if hash == "correct horse battery staple" {
		t.Error("HashPassword() returned the plaintext")
	}

	if !CheckPassword("correct horse battery staple", hash) {
		t.Error("CheckPassword() = false for correct password")
	}
	if CheckPassword("wrong password", hash) {
		t.Error("CheckPassword() = true for wrong password")
	}
}

func TestCheckPassword_EmptyInputs_ReturnsFalse(t *testing.T) {
	if CheckPassword("", "somehash") {
		t.Error("CheckPassword() = true for empty password")
	}
	if CheckPassword("password", "") {
		t.Error("CheckPassword() = true for empty hash")
	}
}

func TestTokenManager_Issue_ReturnsToken(t *testing.T) {
	db := setupTestDB(t)
	userID := createTestUser(t, db)
	tm := NewTokenManager(db)

	session, err := tm.Issue(userID)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if len(session.ID) != 64 {
		t.Errorf("token length = %d, want 64 hex chars", len(session.ID))
	}
	if session.UserID != userID {
		t.Errorf("session.UserID = %d, want %d", session.UserID, userID)
	}
}

func TestTokenManager_Validate_ValidToken_ReturnsUserID(t *testing.T) {
	db := setupTestDB(t)
	userID := createTestUser(t, db)
	tm := NewTokenManager(db)

	session, err := tm.Issue(userID)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	got, err := tm.Validate(session.ID)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if got != userID {
		t.Errorf("Validate() = %d, want %d", got, userID)
	}
}

func TestTokenManager_Validate_UnknownToken_ReturnsError(t *testing.T) {
	db := setupTestDB(t)
	tm := NewTokenManager(db)

	_, err := tm.Validate("nonexistent")
	if err != ErrTokenNotFound {
		t.Errorf("Validate() error = %v, want ErrTokenNotFound", err)
	}
}

func TestTokenManager_Validate_ExpiredToken_ReturnsError(t *testing.T) {
	db := setupTestDB(t)
	userID := createTestUser(t, db)
	tm := NewTokenManager(db).WithDuration(-time.Hour)

	session, err := tm.Issue(userID)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	_, err = tm.Validate(session.ID)
	if err != ErrTokenExpired {
		t.Errorf("Validate() error = %v, want ErrTokenExpired", err)
	}

	// The expired session is cleaned up on access.
	got, err := tm.Get(session.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != nil {
		t.Error("expired session was not removed")
	}
}

func TestTokenManager_Revoke_RemovesToken(t *testing.T) {
	db := setupTestDB(t)
	userID := createTestUser(t, db)
	tm := NewTokenManager(db)

	session, err := tm.Issue(userID)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	if err := tm.Revoke(session.ID); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}

	_, err = tm.Validate(session.ID)
	if err != ErrTokenNotFound {
		t.Errorf("Validate() after Revoke() error = %v, want ErrTokenNotFound", err)
	}
}

func TestTokenManager_RevokeByUserID_RemovesAllTokens(t *testing.T) {
	db := setupTestDB(t)
	userID := createTestUser(t, db)
	tm := NewTokenManager(db)

	s1, _ := tm.Issue(userID)
	s2, _ := tm.Issue(userID)

	if err := tm.RevokeByUserID(userID); err != nil {
		t.Fatalf("RevokeByUserID() error = %v", err)
	}

	for _, id := range []string{s1.ID, s2.ID} {
		if _, err := tm.Validate(id); err != ErrTokenNotFound {
			t.Errorf("Validate(%s) error = %v, want ErrTokenNotFound", id, err)
		}
	}
}

func TestTokenManager_CleanExpired_RemovesOnlyExpired(t *testing.T) {
	db := setupTestDB(t)
	userID := createTestUser(t, db)

	expired := NewTokenManager(db).WithDuration(-time.Hour)
	live := NewTokenManager(db)

	if _, err := expired.Issue(userID); err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	liveSession, err := live.Issue(userID)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	count, err := live.CleanExpired()
	if err != nil {
		t.Fatalf("CleanExpired() error = %v", err)
	}
	if count != 1 {
		t.Errorf("CleanExpired() count = %d, want 1", count)
	}

	if _, err := live.Validate(liveSession.ID); err != nil {
		t.Errorf("live session was removed: %v", err)
	}
}

func TestModelsSession_IsExpired(t *testing.T) {
	s := &models.Session{ExpiresAt: time.Now().Add(time.Hour)}
	if s.IsExpired() {
		t.Error("future session reported expired")
	}

	s.ExpiresAt = time.Now().Add(-time.Hour)
	if !s.IsExpired() {
		t.Error("past session reported live")
	}
}
