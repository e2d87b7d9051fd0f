package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/xenking/webshop/internal/domain/user"
)

var _ user.Repository = (*UserRepository)(nil)

// UserRepository implements user.Repository in memory.
type UserRepository struct {
	keys    *keyLock
	mu      sync.RWMutex
	byID    map[string]user.User
	byEmail map[string]string
}

// NewUserRepository returns an empty UserRepository.
func NewUserRepository() *UserRepository {
	return &UserRepository{
		keys:    newKeyLock(),
		byID:    make(map[string]user.User),
		byEmail: make(map[string]string),
	}
}

// Create stores a new user. Returns user.ErrEmailTaken for a duplicate email.
func (r *UserRepository) Create(_ context.Context, u *user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	email := strings.ToLower(u.Email)
	if _, ok := r.byEmail[email]; ok {
		return user.ErrEmailTaken
	}
	r.byID[u.ID] = cloneUser(*u)
	r.byEmail[email] = u.ID
	return nil
}

// GetByID returns a user by id.
func (r *UserRepository) GetByID(_ context.Context, id string) (*user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	c := cloneUser(u)
	return &c, nil
}

// GetByEmail returns a user by email (case-insensitive).
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	r.mu.RLock()
	id, ok := r.byEmail[strings.ToLower(email)]
	r.mu.RUnlock()
	if !ok {
		return nil, user.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

// List returns all users ordered by creation time.
func (r *UserRepository) List(_ context.Context) ([]user.User, error) {
	r.mu.RLock()
	out := make([]user.User, 0, len(r.byID))
	for _, u := range r.byID {
		out = append(out, cloneUser(u))
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Update applies fn to a user under the user's lock.
func (r *UserRepository) Update(ctx context.Context, id string, fn func(u *user.User) error) (*user.User, error) {
	unlock := r.keys.Lock(id)
	defer unlock()

	u, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(u); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.byID[id] = cloneUser(*u)
	r.mu.Unlock()
	return u, nil
}

func cloneUser(u user.User) user.User {
	if u.DeletedAt != nil {
		t := *u.DeletedAt
		u.DeletedAt = &t
	}
	return u
}
