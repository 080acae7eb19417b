package models

import "time"

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type MemberLoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RegisterRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
	DisplayName string `json:"displayName" binding:"required"`
}

type AdminUser struct {
	Username       string    `json:"username"`
	HashedPassword []byte    `json:"-"`
	Permissions    []string  `json:"permissions"`
	CreatedAt      time.Time `json:"created_at"`
}

type Member struct {
	Email               string     `json:"email"`
	DisplayName         string     `json:"displayName"`
	HashedPassword      []byte     `json:"-"`
	IsActive            bool       `json:"isActive"`
	FailedLoginAttempts int        `json:"failedLoginAttempts"`
	LockoutUntil        *time.Time `json:"lockoutUntil,omitempty"`
	LastLogin           *time.Time `json:"lastLogin,omitempty"`
	CreatedAt           time.Time  `json:"createdAt"`
}
