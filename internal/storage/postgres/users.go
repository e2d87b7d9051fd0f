package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/webshop/internal/domain/user"
)

const (
	userColumns = `id, email, name, password_hash, role, created_at, updated_at, deleted_at`

	createUserSQL = `INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	getUserByIDSQL = `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	getUserByIDForUpdateSQL = getUserByIDSQL + ` FOR UPDATE`

	getUserByEmailSQL = `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`

	listUsersSQL = `SELECT ` + userColumns + ` FROM users ORDER BY created_at, id`

	updateUserSQL = `UPDATE users
		SET name = $2, password_hash = $3, role = $4, updated_at = $5, deleted_at = $6
		WHERE id = $1`
)

var _ user.Repository = (*UserRepository)(nil)

// UserRepository implements user.Repository backed by PostgreSQL.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// Create inserts a user. A duplicate email yields user.ErrEmailTaken.
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	_, err := r.pool.Exec(ctx, createUserSQL,
		u.ID, u.Email, u.Name, u.PasswordHash, string(u.Role), u.CreatedAt, u.UpdatedAt, u.DeletedAt,
	)
	if isUniqueViolation(err) {
		return user.ErrEmailTaken
	}
	if err != nil {
		return errors.Wrapf(err, "insert user %q", u.ID)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*user.User, error) {
	return getUser(ctx, r.pool, getUserByIDSQL, id)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	return getUser(ctx, r.pool, getUserByEmailSQL, email)
}

func (r *UserRepository) List(ctx context.Context) ([]user.User, error) {
	rows, err := r.pool.Query(ctx, listUsersSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list users")
	}
	return pgx.CollectRows(rows, scanUser)
}

func (r *UserRepository) Update(ctx context.Context, id string, fn func(u *user.User) error) (*user.User, error) {
	var out *user.User
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		u, err := getUser(ctx, tx, getUserByIDForUpdateSQL, id)
		if err != nil {
			return err
		}
		if err := fn(u); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, updateUserSQL,
			u.ID, u.Name, u.PasswordHash, string(u.Role), u.UpdatedAt, u.DeletedAt,
		); err != nil {
			return errors.Wrapf(err, "update user %q", id)
		}
		out = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func getUser(ctx context.Context, q querier, sql, arg string) (*user.User, error) {
	rows, err := q.Query(ctx, sql, arg)
	if err != nil {
		return nil, errors.Wrapf(err, "get user %q", arg)
	}
	u, err := pgx.CollectExactlyOneRow(rows, scanUser)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, user.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get user %q", arg)
	}
	return &u, nil
}

func scanUser(row pgx.CollectableRow) (user.User, error) {
	var (
		u    user.User
		role string
	)
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &role, &u.CreatedAt, &u.UpdatedAt, &u.DeletedAt)
	u.Role = user.Role(role)
	return u, err
}
