// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"

	"codeberg.org/oliverandrich/certissuer/internal/models"
)

// GetVerification retrieves the verification record for an email.
func (r *Repository) GetVerification(ctx context.Context, email string) (*models.Verification, error) {
	var v models.Verification
	err := r.db.GetContext(ctx, &v, r.q(`SELECT * FROM verifications WHERE email = ?`), email)
	if err != nil {
		return nil, wrapError(err)
	}
	return &v, nil
}

// ResetVerification stores a fresh code for the email and clears the
// verified flag, creating the record if it does not exist.
func (r *Repository) ResetVerification(ctx context.Context, email string, code int) error {
	_, err := r.db.ExecContext(ctx, r.q(
		`INSERT INTO verifications (email, code, verified, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (email) DO UPDATE SET code = excluded.code, verified = excluded.verified, updated_at = excluded.updated_at`),
		email, code, false, r.now())
	return wrapError(err)
}

// UpsertVerificationCode overwrites the code for the email, creating an
// unverified record if none exists. An existing verified flag is kept.
func (r *Repository) UpsertVerificationCode(ctx context.Context, email string, code int) error {
	_, err := r.db.ExecContext(ctx, r.q(
		`INSERT INTO verifications (email, code, verified, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (email) DO UPDATE SET code = excluded.code, updated_at = excluded.updated_at`),
		email, code, false, r.now())
	return wrapError(err)
}

// MarkVerified flips the verified flag for the email from false to true.
// It reports whether the flag changed; an already verified record is not
// an error.
func (r *Repository) MarkVerified(ctx context.Context, email string) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.q(
		`UPDATE verifications SET verified = ?, updated_at = ? WHERE email = ? AND verified = ?`),
		true, r.now(), email, false)
	if err != nil {
		return false, wrapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
