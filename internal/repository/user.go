package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"assetvision/internal/database"
	apperrors "assetvision/internal/errors"
	"assetvision/internal/models"
)

// UserRepository handles user data operations.
type UserRepository struct {
	db *database.DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user and returns the ID.
// Returns a Conflict error when the username is taken.
func (r *UserRepository) Create(user *models.User) (int64, error) {
	roles := user.Roles
	if len(roles) == 0 {
		roles = []string{"user"}
	}
	rolesJSON, err := json.Marshal(roles)
	if err != nil {
		return 0, fmt.Errorf("encoding roles: %w", err)
	}

	now := time.Now()
	result, err := r.db.Exec(`
		INSERT INTO users (username, password_hash, email, roles, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, user.Username, user.PasswordHash, user.Email, string(rolesJSON), now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, apperrors.Conflict(fmt.Sprintf("user %s already exists", user.Username))
		}
		return 0, fmt.Errorf("creating user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting last insert id: %w", err)
	}

	return id, nil
}

// GetByID retrieves a user by ID. Returns nil if not found.
func (r *UserRepository) GetByID(id int64) (*models.User, error) {
	row := r.db.QueryRow(`
		SELECT id, username, password_hash, COALESCE(email, ''), roles, created_at, updated_at
		FROM users
		WHERE id = ?
	`, id)

	return scanUser(row)
}

// GetByUsername retrieves a user by username. Returns nil if not found.
func (r *UserRepository) GetByUsername(username string) (*models.User, error) {
	row := r.db.QueryRow(`
		SELECT id, username, password_hash, COALESCE(email, ''), roles, created_at, updated_at
		FROM users
		WHERE username = ?
	`, username)

	return scanUser(row)
}

// GetAll retrieves all users ordered by username.
func (r *UserRepository) GetAll() ([]*models.User, error) {
	rows, err := r.db.Query(`
		SELECT id, username, password_hash, COALESCE(email, ''), roles, created_at, updated_at
		FROM users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("getting all users: %w", err)
	}
	defer rows.Close()

	users := make([]*models.User, 0)
	for rows.Next() {
		user, err := scanUserRow(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	return users, rows.Err()
}

// Update applies a validated patch to a user and returns the updated record.
// Password changes arrive pre-hashed in patch-derived form via passwordHash;
// pass the empty string to leave the password untouched.
func (r *UserRepository) Update(username string, patch *models.UserPatch, passwordHash string) (*models.User, error) {
	set := "updated_at = ?"
	args := []any{time.Now()}

	if patch.Email != nil {
		set += ", email = ?"
		args = append(args, *patch.Email)
	}
	if passwordHash != "" {
		set += ", password_hash = ?"
		args = append(args, passwordHash)
	}
	if patch.Roles != nil {
		rolesJSON, err := json.Marshal(*patch.Roles)
		if err != nil {
			return nil, fmt.Errorf("encoding roles: %w", err)
		}
		set += ", roles = ?"
		args = append(args, string(rolesJSON))
	}
	args = append(args, username)

	result, err := r.db.Exec("UPDATE users SET "+set+" WHERE username = ?", args...)
	if err != nil {
		return nil, fmt.Errorf("updating user: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("getting affected rows: %w", err)
	}
	if affected == 0 {
		return nil, apperrors.NotFoundf("user %s not found", username)
	}

	return r.GetByUsername(username)
}

// Delete removes a user by username.
func (r *UserRepository) Delete(username string) error {
	result, err := r.db.Exec(`DELETE FROM users WHERE username = ?`, username)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting affected rows: %w", err)
	}
	if affected == 0 {
		return apperrors.NotFoundf("user %s not found", username)
	}
	return nil
}

// CountAll returns the total number of users.
func (r *UserRepository) CountAll() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return count, nil
}

func scanUser(row *sql.Row) (*models.User, error) {
	user, err := scanUserRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return user, err
}

func scanUserRow(s scanner) (*models.User, error) {
	user := &models.User{}
	var rolesJSON string

	err := s.Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.Email,
		&rolesJSON,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(rolesJSON), &user.Roles); err != nil {
		return nil, fmt.Errorf("decoding roles for %s: %w", user.Username, err)
	}

	return user, nil
}
