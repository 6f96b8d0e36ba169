package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/zeroclaw-labs/platform/internal/apperr"
)

func (q *Queries) CreateUser(ctx context.Context, email, displayName string) (User, error) {
	var u User
	err := q.db.QueryRow(ctx, `
		INSERT INTO users (id, email, display_name, is_super_admin, created_at)
		VALUES (gen_random_uuid(), $1, $2, false, now())
		RETURNING id, email, display_name, is_super_admin, password_hash, created_at`,
		email, displayName).Scan(&u.ID, &u.Email, &u.DisplayName, &u.IsSuperAdmin, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return User{}, apperr.Conflict(fmt.Sprintf("user %q already exists", email))
		}
		return User{}, fmt.Errorf("inserting user: %w", err)
	}
	return u, nil
}

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var u User
	err := q.db.QueryRow(ctx, `
		SELECT id, email, display_name, is_super_admin, password_hash, created_at FROM users WHERE email = $1`, email).
		Scan(&u.ID, &u.Email, &u.DisplayName, &u.IsSuperAdmin, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return User{}, apperr.NotFound("user not found")
		}
		return User{}, fmt.Errorf("querying user: %w", err)
	}
	return u, nil
}

func (q *Queries) GetUser(ctx context.Context, id uuid.UUID) (User, error) {
	var u User
	err := q.db.QueryRow(ctx, `
		SELECT id, email, display_name, is_super_admin, password_hash, created_at FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Email, &u.DisplayName, &u.IsSuperAdmin, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return User{}, apperr.NotFound("user not found")
		}
		return User{}, fmt.Errorf("querying user: %w", err)
	}
	return u, nil
}

// IsSuperAdmin re-reads the super-admin flag directly — callers must never
// trust a cached or token-carried value, per spec.md §4.3.
func (q *Queries) IsSuperAdmin(ctx context.Context, userID uuid.UUID) (bool, error) {
	var v bool
	err := q.db.QueryRow(ctx, `SELECT is_super_admin FROM users WHERE id = $1`, userID).Scan(&v)
	if err != nil {
		if isNoRows(err) {
			return false, apperr.NotFound("user not found")
		}
		return false, fmt.Errorf("querying is_super_admin: %w", err)
	}
	return v, nil
}

func (q *Queries) UpdateDisplayName(ctx context.Context, userID uuid.UUID, displayName string) error {
	tag, err := q.db.Exec(ctx, `UPDATE users SET display_name = $1 WHERE id = $2`, displayName, userID)
	if err != nil {
		return fmt.Errorf("updating display name: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("user not found")
	}
	return nil
}

// SetPasswordHash sets (or clears, if hash is nil) the bootstrap local-admin
// password. Only ever used for the single seeded super-admin account — every
// other user authenticates via OTP or OIDC.
func (q *Queries) SetPasswordHash(ctx context.Context, userID uuid.UUID, hash *string) error {
	tag, err := q.db.Exec(ctx, `UPDATE users SET password_hash = $1 WHERE id = $2`, hash, userID)
	if err != nil {
		return fmt.Errorf("setting password hash: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("user not found")
	}
	return nil
}

// ListUsers returns every platform user, newest first, for the super-admin
// user-management surface.
func (q *Queries) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, email, display_name, is_super_admin, password_hash, created_at
		FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Email, &u.DisplayName, &u.IsSuperAdmin, &u.PasswordHash, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning user row: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// UpdateUserAdminFields applies the super-admin-only PATCH /users/{id}
// fields: display name and the is_super_admin flag, either independently
// settable. Callers pass nil for a field left unchanged.
func (q *Queries) UpdateUserAdminFields(ctx context.Context, userID uuid.UUID, displayName *string, isSuperAdmin *bool) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE users SET
			display_name = COALESCE($1, display_name),
			is_super_admin = COALESCE($2, is_super_admin)
		WHERE id = $3`, displayName, isSuperAdmin, userID)
	if err != nil {
		return fmt.Errorf("updating user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("user not found")
	}
	return nil
}

// DeleteUser removes a user row outright, mirroring the original's
// unconditional DELETE. The membership and audit schemas declare ON DELETE
// CASCADE / SET NULL on user_id so no orphaned rows remain.
func (q *Queries) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("user not found")
	}
	return nil
}

// EnsureSuperAdmin creates the bootstrap super-admin user if no row with the
// given email exists yet, or promotes an existing user. Nothing in the
// application startup path calls it.
func (q *Queries) EnsureSuperAdmin(ctx context.Context, email, displayName string, passwordHash string) (User, error) {
	var u User
	err := q.db.QueryRow(ctx, `
		INSERT INTO users (id, email, display_name, is_super_admin, password_hash, created_at)
		VALUES (gen_random_uuid(), $1, $2, true, $3, now())
		ON CONFLICT (email) DO UPDATE SET is_super_admin = true, password_hash = $3
		RETURNING id, email, display_name, is_super_admin, password_hash, created_at`,
		email, displayName, passwordHash).
		Scan(&u.ID, &u.Email, &u.DisplayName, &u.IsSuperAdmin, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		return User{}, fmt.Errorf("ensuring super admin: %w", err)
	}
	return u, nil
}
