package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"cardtalk/api/apperrors"
	"cardtalk/api/models"
)

type UserStore struct {
	db *sql.DB
}

// NewUserStore creates a new UserStore instance.
func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

// CreateAdmin inserts or replaces an admin account.
func (s *UserStore) CreateAdmin(ctx context.Context, admin *models.AdminUser) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO admins (username, hashed_password, permissions, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (username) DO UPDATE
		SET hashed_password = EXCLUDED.hashed_password, permissions = EXCLUDED.permissions`,
		admin.Username, admin.HashedPassword, pq.Array(admin.Permissions), admin.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}
	return nil
}

func (s *UserStore) GetAdmin(ctx context.Context, username string) (*models.AdminUser, error) {
	admin := &models.AdminUser{}
	var permissions pq.StringArray
	err := s.db.QueryRowContext(ctx, `
		SELECT username, hashed_password, permissions, created_at
		FROM admins
		WHERE username = $1`, username).
		Scan(&admin.Username, &admin.HashedPassword, &permissions, &admin.CreatedAt)
	if err != nil {
		return nil, notFoundOr(err, "admin", "get admin")
	}
	admin.Permissions = []string(permissions)
	return admin, nil
}

func (s *UserStore) CreateMember(ctx context.Context, m *models.Member) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO members (email, display_name, hashed_password, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		m.Email, m.DisplayName, m.HashedPassword, m.IsActive, m.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.Conflict("email already registered")
		}
		return fmt.Errorf("failed to create member: %w", err)
	}
	return nil
}

func (s *UserStore) GetMember(ctx context.Context, email string) (*models.Member, error) {
	m := &models.Member{}
	var lockoutUntil, lastLogin sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT email, display_name, hashed_password, is_active, failed_login_attempts,
		       lockout_until, last_login, created_at
		FROM members
		WHERE email = $1`, email).
		Scan(&m.Email, &m.DisplayName, &m.HashedPassword, &m.IsActive, &m.FailedLoginAttempts,
			&lockoutUntil, &lastLogin, &m.CreatedAt)
	if err != nil {
		return nil, notFoundOr(err, "member", "get member")
	}
	m.LockoutUntil = timePtr(lockoutUntil)
	m.LastLogin = timePtr(lastLogin)
	return m, nil
}

// RecordFailedLogin stores the failure count and, when set, the lockout expiry.
func (s *UserStore) RecordFailedLogin(ctx context.Context, email string, attempts int, lockoutUntil *time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE members SET failed_login_attempts = $2, lockout_until = $3 WHERE email = $1`,
		email, attempts, lockoutUntil)
	if err != nil {
		return fmt.Errorf("record failed login: %w", err)
	}
	return nil
}

// RecordLogin clears the lockout state. A non-nil at also stamps last_login.
func (s *UserStore) RecordLogin(ctx context.Context, email string, at *time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE members
		SET failed_login_attempts = 0, lockout_until = NULL, last_login = COALESCE($2, last_login)
		WHERE email = $1`,
		email, at)
	if err != nil {
		return fmt.Errorf("record login: %w", err)
	}
	return nil
}
