// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"

	"codeberg.org/oliverandrich/certissuer/internal/models"
)

// GetIssuance retrieves an issuance by certificate number.
func (r *Repository) GetIssuance(ctx context.Context, certificateNumber string) (*models.Issuance, error) {
	var issuance models.Issuance
	err := r.db.GetContext(ctx, &issuance, r.q(`SELECT * FROM issuances WHERE certificate_number = ?`), certificateNumber)
	if err != nil {
		return nil, wrapError(err)
	}
	return &issuance, nil
}

// InsertIssuance stores a new issuance. A second insert for the same
// certificate number fails with ErrAlreadyExists.
func (r *Repository) InsertIssuance(ctx context.Context, issuance *models.Issuance) error {
	_, err := r.db.ExecContext(ctx, r.q(
		`INSERT INTO issuances (certificate_number, account_id, organization, transaction_hash, certificate_hash,
		 name, course, grant_date, expiration_date, issue_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		issuance.CertificateNumber, issuance.AccountID, issuance.Organization, issuance.TransactionHash,
		issuance.CertificateHash, issuance.Name, issuance.Course, issuance.GrantDate, issuance.ExpirationDate,
		issuance.IssueDate)
	return wrapError(err)
}
