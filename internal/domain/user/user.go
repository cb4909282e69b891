package user

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Role discriminates the kinds of account in the system.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleRider  Role = "rider"
	RoleDriver Role = "driver"
)

// IsValid validates the role
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleRider, RoleDriver:
		return true
	}
	return false
}

// User is the identity record shared by all roles. Accounts are blocked or
// deactivated, never physically deleted.
type User struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	IsActive     bool      `json:"is_active"`
	IsBlocked    bool      `json:"is_blocked"`
	BlockReason  string    `json:"block_reason,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CanAuthenticate reports whether the account may hold a session.
func (u *User) CanAuthenticate() bool {
	return u.IsActive && !u.IsBlocked
}

// ListFilter narrows admin user listings.
type ListFilter struct {
	Role   Role
	Search string
	Page   int
	Limit  int
}

// Repository defines the interface for user data access
type Repository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	EmailOrPhoneInUse(ctx context.Context, email, phone string, excludeID uuid.UUID) (bool, error)
	Update(ctx context.Context, user *User) error
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) (*User, error)
	SetBlocked(ctx context.Context, id uuid.UUID, blocked bool, reason string) (*User, error)
	List(ctx context.Context, filter ListFilter) ([]*User, int, error)
}
