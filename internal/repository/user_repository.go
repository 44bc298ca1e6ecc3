package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shiva/ridepool/internal/model"
)

// UserRepository owns the users table.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new user repository.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

const userColumns = `id, mobile, name, email, role, is_verified, avatar, bio`

func scanUser(row pgx.Row) (*model.User, error) {
	u := &model.User{}
	err := row.Scan(&u.ID, &u.Mobile, &u.Name, &u.Email, &u.Role, &u.IsVerified, &u.Avatar, &u.Bio)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// CreateUser inserts a user. Mobile must be unique.
func (r *UserRepository) CreateUser(ctx context.Context, u *model.User) (*model.User, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO users (mobile, name, email, role, is_verified, avatar, bio)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id`,
		u.Mobile, u.Name, u.Email, u.Role, u.IsVerified, u.Avatar, u.Bio,
	).Scan(&u.ID)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// GetUser fetches a user by id.
func (r *UserRepository) GetUser(ctx context.Context, id int64) (*model.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return u, nil
}

// GetUserByMobile fetches a user by mobile number.
func (r *UserRepository) GetUserByMobile(ctx context.Context, mobile string) (*model.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE mobile = $1`, mobile)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user by mobile: %w", err)
	}
	return u, nil
}
