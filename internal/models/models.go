// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package models holds the records persisted by the repository.
package models

import "time"

// Account is an issuer identity bound to a unique email address.
type Account struct { //nolint:govet // fieldalignment not critical for models
	Email        string    `db:"email" json:"email"`
	AccountID    string    `db:"account_id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Organization string    `db:"organization" json:"organization"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Approved     bool      `db:"approved" json:"approved"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// AccountView is the subset of an Account that is safe to return to clients.
type AccountView struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Organization string `json:"organization"`
	Email        string `json:"email"`
	Approved     bool   `json:"approved"`
}

// View strips credentials from the account.
func (a *Account) View() AccountView {
	return AccountView{
		ID:           a.AccountID,
		Name:         a.Name,
		Organization: a.Organization,
		Email:        a.Email,
		Approved:     a.Approved,
	}
}

// Verification is the one active OTP challenge for an email address.
type Verification struct {
	Email     string    `db:"email" json:"email"`
	Code      int       `db:"code" json:"-"`
	Verified  bool      `db:"verified" json:"verified"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Issuance records a certificate grant. It is a snapshot of the issuing
// account at the time of issue and is never updated.
type Issuance struct { //nolint:govet // fieldalignment not critical for models
	CertificateNumber string    `db:"certificate_number" json:"certificateNumber"`
	AccountID         string    `db:"account_id" json:"id"`
	Organization      string    `db:"organization" json:"organization"`
	TransactionHash   string    `db:"transaction_hash" json:"transactionHash"`
	CertificateHash   string    `db:"certificate_hash" json:"certificateHash"`
	Name              string    `db:"name" json:"name"`
	Course            string    `db:"course" json:"course"`
	GrantDate         time.Time `db:"grant_date" json:"grantDate"`
	ExpirationDate    time.Time `db:"expiration_date" json:"expirationDate"`
	IssueDate         time.Time `db:"issue_date" json:"issueDate"`
}
