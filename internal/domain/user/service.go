package user

import (
	"context"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/webshop/internal/domain/fault"
)

const (
	minPasswordLen = 8
	maxPasswordLen = 72 // bcrypt input limit
	maxNameLen     = 100
)

var (
	errUnauthenticated = fault.New(fault.Unauthorized, "authentication required")
	errForbidden       = fault.New(fault.Forbidden, "not allowed to access this user")
)

// Actor is the caller of a user operation as resolved by the auth guard.
type Actor interface {
	IsAuthenticated() bool
	HasElevatedPrivilege() bool
	Subject() string
}

// Hasher turns a plaintext password into storable credential material.
type Hasher interface {
	Hash(password string) (string, error)
}

// RegisterRequest holds the input for creating a user account.
type RegisterRequest struct {
	Email    string
	Password string
	Name     string
}

// ProfileUpdate holds the mutable profile fields. Nil fields are left as is.
type ProfileUpdate struct {
	Name     *string
	Password *string
}

// Service implements registration and profile management.
type Service struct {
	users  Repository
	hasher Hasher
	now    func() time.Time
}

// NewService creates a user Service.
func NewService(users Repository, hasher Hasher) *Service {
	return &Service{
		users:  users,
		hasher: hasher,
		now:    time.Now,
	}
}

// Register validates the request and creates a customer account.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	email, err := NormalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	name, err := validateName(req.Name)
	if err != nil {
		return nil, err
	}
	if err := validatePassword(req.Password); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}

	now := s.now().UTC()
	u := &User{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Role:         RoleCustomer,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, errors.Wrap(err, "create user")
	}

	zctx.From(ctx).Info("User registered", zap.String("user_id", u.ID))
	return u, nil
}

// Get returns a user. An empty id resolves to the caller.
func (s *Service) Get(ctx context.Context, actor Actor, id string) (*User, error) {
	if id == "" {
		id = actor.Subject()
	}
	if err := authorize(actor, id); err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get user %s", id)
	}
	if u.Deleted() {
		return nil, ErrNotFound
	}
	return u, nil
}

// List returns all active users. Requires elevated privilege.
func (s *Service) List(ctx context.Context, actor Actor) ([]User, error) {
	if !actor.IsAuthenticated() {
		return nil, errUnauthenticated
	}
	if !actor.HasElevatedPrivilege() {
		return nil, errForbidden
	}
	all, err := s.users.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list users")
	}
	active := all[:0]
	for _, u := range all {
		if !u.Deleted() {
			active = append(active, u)
		}
	}
	return active, nil
}

// UpdateProfile changes the name and/or password of a user.
func (s *Service) UpdateProfile(ctx context.Context, actor Actor, id string, upd ProfileUpdate) (*User, error) {
	if id == "" {
		id = actor.Subject()
	}
	if err := authorize(actor, id); err != nil {
		return nil, err
	}

	var name, hash string
	if upd.Name != nil {
		n, err := validateName(*upd.Name)
		if err != nil {
			return nil, err
		}
		name = n
	}
	if upd.Password != nil {
		if err := validatePassword(*upd.Password); err != nil {
			return nil, err
		}
		h, err := s.hasher.Hash(*upd.Password)
		if err != nil {
			return nil, errors.Wrap(err, "hash password")
		}
		hash = h
	}

	now := s.now().UTC()
	u, err := s.users.Update(ctx, id, func(u *User) error {
		if u.Deleted() {
			return ErrNotFound
		}
		if name != "" {
			u.Name = name
		}
		if hash != "" {
			u.PasswordHash = hash
		}
		u.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "update user %s", id)
	}
	return u, nil
}

// Delete soft-deletes a user. Deleting an already deleted user is a no-op.
func (s *Service) Delete(ctx context.Context, actor Actor, id string) error {
	if id == "" {
		id = actor.Subject()
	}
	if err := authorize(actor, id); err != nil {
		return err
	}
	now := s.now().UTC()
	_, err := s.users.Update(ctx, id, func(u *User) error {
		if u.Deleted() {
			return nil
		}
		u.DeletedAt = &now
		u.UpdatedAt = now
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "delete user %s", id)
	}
	zctx.From(ctx).Info("User deleted", zap.String("user_id", id))
	return nil
}

func authorize(actor Actor, id string) error {
	if !actor.IsAuthenticated() {
		return errUnauthenticated
	}
	if actor.Subject() != id && !actor.HasElevatedPrivilege() {
		return errForbidden
	}
	return nil
}

// NormalizeEmail validates an email address and returns its canonical
// (trimmed, lower-cased) form.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", fault.Invalid("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fault.Invalid("email %q is malformed", email)
	}
	return email, nil
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fault.Invalid("name is required")
	}
	if utf8.RuneCountInString(name) > maxNameLen {
		return "", fault.Invalid("name must be at most %d characters", maxNameLen)
	}
	return name, nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLen {
		return fault.Invalid("password must be at least %d characters", minPasswordLen)
	}
	if len(password) > maxPasswordLen {
		return fault.Invalid("password must be at most %d bytes", maxPasswordLen)
	}
	return nil
}
