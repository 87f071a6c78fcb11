// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"

	"codeberg.org/oliverandrich/certissuer/internal/models"
)

// GetAccountByEmail retrieves an account by its email address.
func (r *Repository) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	var account models.Account
	err := r.db.GetContext(ctx, &account, r.q(`SELECT * FROM accounts WHERE email = ?`), email)
	if err != nil {
		return nil, wrapError(err)
	}
	return &account, nil
}

// InsertAccount stores a new account unless one with the same email or
// account id exists, in which case ErrAlreadyExists is returned.
// CreatedAt and UpdatedAt are set on the passed account.
func (r *Repository) InsertAccount(ctx context.Context, account *models.Account) error {
	now := r.now()
	res, err := r.db.ExecContext(ctx, r.q(
		`INSERT INTO accounts (email, account_id, name, organization, password_hash, approved, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT DO NOTHING`),
		account.Email, account.AccountID, account.Name, account.Organization,
		account.PasswordHash, account.Approved, now, now)
	if err != nil {
		return wrapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAlreadyExists
	}
	account.CreatedAt = now
	account.UpdatedAt = now
	return nil
}

// UpdateAccountPassword replaces the password hash of an account.
func (r *Repository) UpdateAccountPassword(ctx context.Context, email, passwordHash string) error {
	return expectOne(r.db.ExecContext(ctx, r.q(
		`UPDATE accounts SET password_hash = ?, updated_at = ? WHERE email = ?`),
		passwordHash, r.now(), email))
}

// SetAccountApproved sets or clears the approval flag of an account.
func (r *Repository) SetAccountApproved(ctx context.Context, email string, approved bool) error {
	return expectOne(r.db.ExecContext(ctx, r.q(
		`UPDATE accounts SET approved = ?, updated_at = ? WHERE email = ?`),
		approved, r.now(), email))
}

// ListAccounts returns all accounts, optionally only those still awaiting approval.
func (r *Repository) ListAccounts(ctx context.Context, pendingOnly bool) ([]models.Account, error) {
	query := `SELECT * FROM accounts ORDER BY created_at`
	var args []any
	if pendingOnly {
		query = `SELECT * FROM accounts WHERE approved = ? ORDER BY created_at`
		args = append(args, false)
	}
	var accounts []models.Account
	if err := r.db.SelectContext(ctx, &accounts, r.q(query), args...); err != nil {
		return nil, wrapError(err)
	}
	return accounts, nil
}
