package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/gocomet/ride-booking/internal/domain/user"
	"github.com/gocomet/ride-booking/pkg/errors"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const userColumns = `id, name, email, phone, password_hash, role, is_active, is_blocked, COALESCE(block_reason, ''), created_at, updated_at`

// UserRepo implements user.Repository on PostgreSQL.
type UserRepo struct {
	db *sql.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

var _ user.Repository = (*UserRepo)(nil)

func scanUser(row interface{ Scan(...interface{}) error }) (*user.User, error) {
	var u user.User
	err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.Phone, &u.PasswordHash, &u.Role,
		&u.IsActive, &u.IsBlocked, &u.BlockReason, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// isUniqueViolation reports whether the error is a Postgres unique-index hit.
func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return false
}

// Create inserts a new user row.
func (r *UserRepo) Create(ctx context.Context, u *user.User) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO users (id, name, email, phone, password_hash, role, is_active, is_blocked)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE, FALSE)
		RETURNING created_at, updated_at
	`, u.ID, u.Name, u.Email, u.Phone, u.PasswordHash, u.Role).Scan(&u.CreatedAt, &u.UpdatedAt)

	if isUniqueViolation(err) {
		return errors.ErrDuplicateUser
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetByID fetches a user by primary key.
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)

	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, errors.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// GetByEmail fetches a user by email, hash included, for login.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, strings.ToLower(email))

	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, errors.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// EmailOrPhoneInUse reports whether another account already holds the email
// or phone.
func (r *UserRepo) EmailOrPhoneInUse(ctx context.Context, email, phone string, excludeID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM users
			WHERE (email = $1 OR phone = $2) AND id <> $3
		)
	`, strings.ToLower(email), phone, excludeID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check email/phone: %w", err)
	}
	return exists, nil
}

// Update persists profile changes (name, email, phone).
func (r *UserRepo) Update(ctx context.Context, u *user.User) error {
	err := r.db.QueryRowContext(ctx, `
		UPDATE users
		SET name = $2, email = $3, phone = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`, u.ID, u.Name, strings.ToLower(u.Email), u.Phone).Scan(&u.UpdatedAt)

	if err == sql.ErrNoRows {
		return errors.ErrUserNotFound
	}
	if isUniqueViolation(err) {
		return errors.ErrDuplicateUser
	}
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

// UpdatePassword replaces the stored password hash.
func (r *UserRepo) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET password_hash = $2, updated_at = NOW()
		WHERE id = $1
	`, id, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.ErrUserNotFound
	}
	return nil
}

// SetActive flips the active flag.
func (r *UserRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) (*user.User, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE users
		SET is_active = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+userColumns,
		id, active)

	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, errors.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("set active: %w", err)
	}
	return u, nil
}

// SetBlocked flips the block flag, clearing the reason on unblock.
func (r *UserRepo) SetBlocked(ctx context.Context, id uuid.UUID, blocked bool, reason string) (*user.User, error) {
	if !blocked {
		reason = ""
	}

	row := r.db.QueryRowContext(ctx, `
		UPDATE users
		SET is_blocked = $2, block_reason = NULLIF($3, ''), updated_at = NOW()
		WHERE id = $1
		RETURNING `+userColumns,
		id, blocked, reason)

	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, errors.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("set blocked: %w", err)
	}
	return u, nil
}

// List returns a page of users with optional role filter and name/email/phone
// search.
func (r *UserRepo) List(ctx context.Context, filter user.ListFilter) ([]*user.User, int, error) {
	where := []string{"TRUE"}
	args := []interface{}{}

	if filter.Role != "" {
		args = append(args, filter.Role)
		where = append(where, fmt.Sprintf("role = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR email ILIKE $%d OR phone ILIKE $%d)", n, n, n))
	}

	whereClause := strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE `+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	args = append(args, filter.Limit, (filter.Page-1)*filter.Limit)
	query := fmt.Sprintf(
		`SELECT %s FROM users WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		userColumns, whereClause, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []*user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows error: %w", err)
	}

	return users, total, nil
}
