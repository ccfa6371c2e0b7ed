package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mouldconnect/apiserver/types"
)

const userColumns = `id, user_code, username, email, name, password_hash, mobile,
		is_email_verified, otp, otp_expires_at, is_deleted, is_admin, created_at, updated_at`

// UserRepository handles persistence for users.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (types.User, error) {
	var user types.User
	err := row.Scan(
		&user.ID,
		&user.UserCode,
		&user.Username,
		&user.Email,
		&user.Name,
		&user.PasswordHash,
		&user.Mobile,
		&user.EmailVerified,
		&user.OTP,
		&user.OTPExpiresAt,
		&user.Deleted,
		&user.Admin,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	return user, err
}

func (r *UserRepository) GetByID(ctx context.Context, id int) (types.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1 AND is_deleted = FALSE`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, fmt.Errorf("get user %d: %w", id, err)
	}
	return user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE email = $1 AND is_deleted = FALSE`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, fmt.Errorf("get user by email: %w", err)
	}
	return user, nil
}

// FindConflicting returns every non-deleted user sharing the username, email
// or mobile number.
func (r *UserRepository) FindConflicting(ctx context.Context, username, email, mobile string) ([]types.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE is_deleted = FALSE AND (username = $1 OR email = $2 OR mobile = $3)
		ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, username, email, mobile)
	if err != nil {
		return nil, fmt.Errorf("find conflicting users: %w", err)
	}
	defer rows.Close()

	var users []types.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conflicting user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find conflicting users: %w", err)
	}
	return users, nil
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	const query = `
		INSERT INTO users (user_code, username, email, name, password_hash, mobile,
			is_email_verified, otp, otp_expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		user.UserCode,
		user.Username,
		user.Email,
		user.Name,
		user.PasswordHash,
		user.Mobile,
		user.EmailVerified,
		user.OTP,
		user.OTPExpiresAt,
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID); err != nil {
		return types.User{}, translate(err)
	}
	return user, nil
}

// SetOTP stores a new code and expiry for an unverified user.
func (r *UserRepository) SetOTP(ctx context.Context, id int, otp string, expiresAt time.Time) error {
	const query = `
		UPDATE users
		SET otp = $1,
			otp_expires_at = $2,
			updated_at = $3
		WHERE id = $4 AND is_deleted = FALSE AND is_email_verified = FALSE`
	result, err := r.db.ExecContext(ctx, query, otp, expiresAt, time.Now(), id)
	if err != nil {
		return fmt.Errorf("set otp: %w", translate(err))
	}
	return expectAffected(result)
}

// MarkVerified flips the verification flag and clears the OTP pair, but only
// while the stored code still equals otp. It returns ErrNotFound when the
// user is gone, already verified, or the code was rotated concurrently.
func (r *UserRepository) MarkVerified(ctx context.Context, id int, otp string) error {
	const query = `
		UPDATE users
		SET is_email_verified = TRUE,
			otp = NULL,
			otp_expires_at = NULL,
			updated_at = $1
		WHERE id = $2 AND is_deleted = FALSE AND is_email_verified = FALSE AND otp = $3`
	result, err := r.db.ExecContext(ctx, query, time.Now(), id, otp)
	if err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}
	return expectAffected(result)
}

// UpdateDetails writes the display name and mobile number. The password hash
// is never part of this write.
func (r *UserRepository) UpdateDetails(ctx context.Context, id int, name, mobile string) (types.User, error) {
	query := `
		UPDATE users
		SET name = $1,
			mobile = $2,
			updated_at = $3
		WHERE id = $4 AND is_deleted = FALSE
		RETURNING ` + userColumns
	user, err := scanUser(r.db.QueryRowContext(ctx, query, name, mobile, time.Now(), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, translate(err)
	}
	return user, nil
}

func expectAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
