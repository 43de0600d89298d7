package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"github.com/sumire/recipebox/internal/domain"
)

const userColumns = `id, username, email, password_hash, hashed_refresh_token, name, image,
	provider, provider_id, created_at, updated_at`

const uniqueViolation = "23505"

// Constraint names from the users migration, mapped to the field they guard.
var uniqueFields = map[string]string{
	"users_username_key":             "username",
	"users_email_key":                "email",
	"users_provider_provider_id_key": "provider account",
}

// UserRepository handles user data access operations.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Ping checks database connectivity.
func (r *UserRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// FindByUsername retrieves a user by username.
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.get(ctx, "find user by username "+username,
		`SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

// FindByEmail retrieves a user by email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.get(ctx, "find user by email",
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

// FindByUsernameOrEmail retrieves a user holding either the username or the
// email. When both belong to different users the username owner is returned.
func (r *UserRepository) FindByUsernameOrEmail(ctx context.Context, username, email string) (*domain.User, error) {
	return r.get(ctx, "find user by username or email",
		`SELECT `+userColumns+` FROM users
		 WHERE username = $1 OR email = $2
		 ORDER BY (username = $1) DESC
		 LIMIT 1`, username, email)
}

// FindByProviderID retrieves a user by their OAuth provider and provider ID.
func (r *UserRepository) FindByProviderID(ctx context.Context, provider domain.AuthProvider, providerID string) (*domain.User, error) {
	return r.get(ctx, fmt.Sprintf("find user by provider %s/%s", provider, providerID),
		`SELECT `+userColumns+` FROM users WHERE provider = $1 AND provider_id = $2`, provider, providerID)
}

// List returns all users ordered by username.
func (r *UserRepository) List(ctx context.Context) ([]domain.User, error) {
	users := []domain.User{}
	if err := r.db.SelectContext(ctx, &users, `SELECT `+userColumns+` FROM users ORDER BY username`); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// Create inserts a new user and returns the stored row.
func (r *UserRepository) Create(ctx context.Context, user domain.User) (*domain.User, error) {
	var result domain.User
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO users (username, email, password_hash, name, image, provider, provider_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+userColumns,
		user.Username, user.Email, user.PasswordHash, user.Name, user.Image, user.Provider, user.ProviderID,
	).StructScan(&result)
	if err != nil {
		return nil, mapWriteError("create user", err)
	}
	return &result, nil
}

// LinkProvider attaches an OAuth identity to an existing user. A nil image
// keeps the stored one.
func (r *UserRepository) LinkProvider(ctx context.Context, username string, provider domain.AuthProvider, providerID string, image *string) (*domain.User, error) {
	var result domain.User
	err := r.db.QueryRowxContext(ctx,
		`UPDATE users
		 SET provider = $2, provider_id = $3, image = COALESCE($4, image), updated_at = NOW()
		 WHERE username = $1
		 RETURNING `+userColumns,
		username, provider, providerID, image,
	).StructScan(&result)
	if err != nil {
		return nil, mapWriteError("link provider for "+username, err)
	}
	return &result, nil
}

// UpdateProfile changes display fields. Nil fields are left as they are.
func (r *UserRepository) UpdateProfile(ctx context.Context, username string, update domain.ProfileUpdate) (*domain.User, error) {
	var result domain.User
	err := r.db.QueryRowxContext(ctx,
		`UPDATE users
		 SET name = COALESCE($2, name), image = COALESCE($3, image), updated_at = NOW()
		 WHERE username = $1
		 RETURNING `+userColumns,
		username, update.Name, update.Image,
	).StructScan(&result)
	if err != nil {
		return nil, mapWriteError("update profile for "+username, err)
	}
	return &result, nil
}

// SetRefreshTokenHash overwrites the stored refresh token hash. A nil hash
// ends the session.
func (r *UserRepository) SetRefreshTokenHash(ctx context.Context, username string, hash *string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET hashed_refresh_token = $2, updated_at = NOW() WHERE username = $1`,
		username, hash)
	if err != nil {
		return fmt.Errorf("set refresh token for %s: %w", username, err)
	}
	return requireRow(res, "set refresh token for "+username)
}

// SwapRefreshTokenHash replaces oldHash with newHash only if oldHash is still
// the stored value. It returns domain.ErrNotFound when another writer got
// there first.
func (r *UserRepository) SwapRefreshTokenHash(ctx context.Context, username, oldHash, newHash string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET hashed_refresh_token = $3, updated_at = NOW()
		 WHERE username = $1 AND hashed_refresh_token = $2`,
		username, oldHash, newHash)
	if err != nil {
		return fmt.Errorf("swap refresh token for %s: %w", username, err)
	}
	return requireRow(res, "swap refresh token for "+username)
}

// Delete removes a user.
func (r *UserRepository) Delete(ctx context.Context, username string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE username = $1`, username)
	if err != nil {
		return fmt.Errorf("delete user %s: %w", username, err)
	}
	return requireRow(res, "delete user "+username)
}

func (r *UserRepository) get(ctx context.Context, op, query string, args ...any) (*domain.User, error) {
	var user domain.User
	if err := r.db.GetContext(ctx, &user, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &user, nil
}

func requireRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func mapWriteError(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		field, ok := uniqueFields[pgErr.ConstraintName]
		if !ok {
			field = "value"
		}
		return domain.Errorf(domain.ErrConflict, "%s already exists", field)
	}
	return fmt.Errorf("%s: %w", op, err)
}
