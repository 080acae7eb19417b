package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"cardtalk/api/apperrors"
	"cardtalk/api/logger"
	"cardtalk/api/models"
)

// LockoutPolicy controls member account lockout after repeated failed logins.
type LockoutPolicy struct {
	Enabled     bool
	MaxAttempts int
	Duration    time.Duration
}

type Auth struct {
	users    UserRepository
	lockout  LockoutPolicy
	log      *logger.Logger
	now      func() time.Time
	hashCost int
}

func NewAuth(users UserRepository, lockout LockoutPolicy, log *logger.Logger) *Auth {
	if lockout.MaxAttempts < 1 {
		lockout.MaxAttempts = 1
	}
	return &Auth{
		users:    users,
		lockout:  lockout,
		log:      log.With("service", "Auth"),
		now:      time.Now,
		hashCost: bcrypt.DefaultCost,
	}
}

var errInvalidCredentials = apperrors.Unauthenticated("Invalid credentials")

func (a *Auth) AuthenticateAdmin(ctx context.Context, username, password string) (*models.AdminUser, error) {
	admin, err := a.users.GetAdmin(ctx, strings.TrimSpace(username))
	if err != nil {
		if apperrors.Is(err, apperrors.KindNotFound) {
			a.log.Info("admin login failed", "username", username, "reason", "unknown user")
			return nil, errInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword(admin.HashedPassword, []byte(password)); err != nil {
		a.log.Info("admin login failed", "username", username, "reason", "password mismatch")
		return nil, errInvalidCredentials
	}
	return admin, nil
}

// CreateAdmin creates or resets an admin account.
func (a *Auth) CreateAdmin(ctx context.Context, username, password string, permissions []string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return apperrors.InvalidArgument("username and password are required")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), a.hashCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	if permissions == nil {
		permissions = []string{}
	}
	return a.users.CreateAdmin(ctx, &models.AdminUser{
		Username:       username,
		HashedPassword: hashed,
		Permissions:    permissions,
		CreatedAt:      a.now().UTC(),
	})
}

func (a *Auth) RegisterMember(ctx context.Context, req models.RegisterRequest) (*models.Member, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	displayName := strings.TrimSpace(req.DisplayName)
	if email == "" || displayName == "" {
		return nil, apperrors.InvalidArgument("email and display name are required")
	}
	if len(req.Password) < 8 {
		return nil, apperrors.InvalidArgument("password must be at least 8 characters")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), a.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash member password: %w", err)
	}

	m := &models.Member{
		Email:          email,
		DisplayName:    displayName,
		HashedPassword: hashed,
		IsActive:       true,
		CreatedAt:      a.now().UTC(),
	}
	if err := a.users.CreateMember(ctx, m); err != nil {
		return nil, err
	}
	a.log.Info("member registered", "email", email)
	return m, nil
}

// AuthenticateMember checks a member's password, applying the lockout policy.
// A locked account is rejected before the password is checked.
func (a *Auth) AuthenticateMember(ctx context.Context, email, password string) (*models.Member, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	m, err := a.users.GetMember(ctx, email)
	if err != nil {
		if apperrors.Is(err, apperrors.KindNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, err
	}

	now := a.now().UTC()
	if a.lockout.Enabled && m.LockoutUntil != nil {
		if now.Before(*m.LockoutUntil) {
			return nil, apperrors.Locked(fmt.Sprintf(
				"Account locked. Try again in %d minutes.", minutesUntil(now, *m.LockoutUntil)))
		}
		// Expired lock: start counting afresh.
		if err := a.users.RecordLogin(ctx, email, nil); err != nil {
			return nil, err
		}
		m.FailedLoginAttempts = 0
		m.LockoutUntil = nil
	}

	if err := bcrypt.CompareHashAndPassword(m.HashedPassword, []byte(password)); err != nil {
		return nil, a.failedLogin(ctx, m, now)
	}
	if !m.IsActive {
		return nil, apperrors.Unauthorized("Account is deactivated")
	}

	if err := a.users.RecordLogin(ctx, email, &now); err != nil {
		return nil, err
	}
	m.FailedLoginAttempts = 0
	m.LastLogin = &now
	return m, nil
}

func (a *Auth) failedLogin(ctx context.Context, m *models.Member, now time.Time) error {
	if !a.lockout.Enabled {
		return errInvalidCredentials
	}
	attempts := m.FailedLoginAttempts + 1
	if attempts >= a.lockout.MaxAttempts {
		until := now.Add(a.lockout.Duration)
		if err := a.users.RecordFailedLogin(ctx, m.Email, attempts, &until); err != nil {
			return err
		}
		a.log.Warn("member locked out", "email", m.Email, "attempts", attempts, "until", until)
		return apperrors.Locked(fmt.Sprintf(
			"Too many failed attempts. Account locked for %d minutes.", minutesUntil(now, until)))
	}
	if err := a.users.RecordFailedLogin(ctx, m.Email, attempts, nil); err != nil {
		return err
	}
	return errInvalidCredentials
}

func minutesUntil(now, until time.Time) int {
	return int(math.Ceil(until.Sub(now).Minutes()))
}
