package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/zeroclaw-labs/platform/internal/apperr"
)

// CreateOTP invalidates any unused prior OTPs for the user and inserts the
// new one in a single write, matching the original's request_otp handler.
func (q *Queries) CreateOTP(ctx context.Context, userID uuid.UUID, hash, salt string, ttl time.Duration) (OTPToken, error) {
	_, err := q.db.Exec(ctx, `UPDATE otp_tokens SET used = true WHERE user_id = $1 AND used = false`, userID)
	if err != nil {
		return OTPToken{}, fmt.Errorf("invalidating prior otps: %w", err)
	}

	var t OTPToken
	t.UserID = userID
	err = q.db.QueryRow(ctx, `
		INSERT INTO otp_tokens (id, user_id, hash, salt, expires_at, used, attempts, created_at)
		VALUES (gen_random_uuid(), $1, $2, $3, now() + $4::interval, false, 0, now())
		RETURNING id, expires_at, used, attempts, created_at`,
		userID, hash, salt, ttl.String()).
		Scan(&t.ID, &t.ExpiresAt, &t.Used, &t.Attempts, &t.CreatedAt)
	if err != nil {
		return OTPToken{}, fmt.Errorf("inserting otp: %w", err)
	}
	t.Hash = hash
	t.Salt = salt
	return t, nil
}

// LatestValidOTP returns the most recent unused, unexpired OTP for a user
// with fewer than the configured max attempts. Returns apperr.Unauthorized
// if none qualifies, so callers answer it the same way as a wrong code.
func (q *Queries) LatestValidOTP(ctx context.Context, userID uuid.UUID, maxAttempts int) (OTPToken, error) {
	var t OTPToken
	t.UserID = userID
	err := q.db.QueryRow(ctx, `
		SELECT id, hash, salt, expires_at, used, attempts, created_at
		FROM otp_tokens
		WHERE user_id = $1 AND used = false AND expires_at > now() AND attempts < $2
		ORDER BY created_at DESC LIMIT 1`, userID, maxAttempts).
		Scan(&t.ID, &t.Hash, &t.Salt, &t.ExpiresAt, &t.Used, &t.Attempts, &t.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return OTPToken{}, apperr.Unauthorized("invalid or expired code")
		}
		return OTPToken{}, fmt.Errorf("querying latest otp: %w", err)
	}
	return t, nil
}

// IncrementOTPAttempts is called before returning Unauthorized on a failed
// verification, so attempts are recorded even on bad input.
func (q *Queries) IncrementOTPAttempts(ctx context.Context, otpID uuid.UUID) error {
	_, err := q.db.Exec(ctx, `UPDATE otp_tokens SET attempts = attempts + 1 WHERE id = $1`, otpID)
	if err != nil {
		return fmt.Errorf("incrementing otp attempts: %w", err)
	}
	return nil
}

func (q *Queries) MarkOTPUsed(ctx context.Context, otpID uuid.UUID) error {
	_, err := q.db.Exec(ctx, `UPDATE otp_tokens SET used = true WHERE id = $1`, otpID)
	if err != nil {
		return fmt.Errorf("marking otp used: %w", err)
	}
	return nil
}
