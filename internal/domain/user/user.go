package user

import (
	"context"
	"time"

	"github.com/xenking/webshop/internal/domain/fault"
)

// Role is the authorization level of a user.
type Role string

const (
	// RoleCustomer is the default role for registered shoppers.
	RoleCustomer Role = "customer"
	// RoleAdmin is held by operators and fulfillment staff.
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleCustomer || r == RoleAdmin
}

var (
	// ErrNotFound is returned when a user does not exist or was deleted.
	ErrNotFound = fault.New(fault.NotFound, "user not found")
	// ErrEmailTaken is returned on registration with an already used email.
	ErrEmailTaken = fault.New(fault.Conflict, "email already registered")
)

// User is a registered shop customer or operator.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    *time.Time
}

// Deleted reports whether the user was soft-deleted.
func (u *User) Deleted() bool {
	return u.DeletedAt != nil
}

// Repository defines persistence operations for users.
//
// GetByID and GetByEmail return soft-deleted users too; callers decide how to
// treat them. Both return ErrNotFound for unknown users.
type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context) ([]User, error)
	Update(ctx context.Context, id string, fn func(u *User) error) (*User, error)
}
