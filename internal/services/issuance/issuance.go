// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package issuance records certificate grants for approved issuer accounts.
// A certificate number can be issued at most once.
package issuance

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"codeberg.org/oliverandrich/certissuer/internal/apperror"
	"codeberg.org/oliverandrich/certissuer/internal/metrics"
	"codeberg.org/oliverandrich/certissuer/internal/models"
	"codeberg.org/oliverandrich/certissuer/internal/repository"
)

// msgNotIssuable is shared by both rejection causes.
const msgNotIssuable = "certificate already issued or account not approved"

var (
	ErrEmptyField       = apperror.New(apperror.KindValidation, "empty_field", "all certificate fields are required")
	ErrInvalidDate      = apperror.New(apperror.KindValidation, "invalid_date", "dates must be formatted as YYYY-MM-DD or RFC 3339")
	ErrInvalidDateRange = apperror.New(apperror.KindValidation, "invalid_date_range", "expiration date must not be before grant date")

	ErrAccountNotApproved = apperror.New(apperror.KindConflict, "account_not_approved", msgNotIssuable)
	ErrAlreadyIssued      = apperror.New(apperror.KindConflict, "already_issued", msgNotIssuable)

	ErrCertificateNotFound = apperror.New(apperror.KindNotFound, "certificate_not_found", "certificate not found")
)

var dateLayouts = []string{time.DateOnly, time.RFC3339}

// Store reads accounts and persists issuances. InsertIssuance must reject a
// duplicate certificate number with repository.ErrAlreadyExists.
type Store interface {
	GetAccountByEmail(ctx context.Context, email string) (*models.Account, error)
	GetIssuance(ctx context.Context, certificateNumber string) (*models.Issuance, error)
	InsertIssuance(ctx context.Context, issuance *models.Issuance) error
}

type Options struct {
	// StoreTimeout bounds store calls when the caller's context has no deadline.
	StoreTimeout time.Duration
	Metrics      *metrics.Metrics
	// Now returns the issue date; defaults to the UTC wall clock.
	Now func() time.Time
}

type Manager struct {
	store Store
	opts  Options
}

func NewManager(store Store, opts Options) *Manager {
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 5 * time.Second
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Manager{store: store, opts: opts}
}

// IssueParams holds a certificate request. Dates are strings as received
// from the client.
type IssueParams struct {
	Email             string
	TransactionHash   string
	CertificateHash   string
	CertificateNumber string
	Name              string
	Course            string
	GrantDate         string
	ExpirationDate    string
}

func (p *IssueParams) normalize() {
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	p.TransactionHash = strings.TrimSpace(p.TransactionHash)
	p.CertificateHash = strings.TrimSpace(p.CertificateHash)
	p.CertificateNumber = strings.TrimSpace(p.CertificateNumber)
	p.Name = strings.TrimSpace(p.Name)
	p.Course = strings.TrimSpace(p.Course)
	p.GrantDate = strings.TrimSpace(p.GrantDate)
	p.ExpirationDate = strings.TrimSpace(p.ExpirationDate)
}

func (p IssueParams) empty() bool {
	for _, v := range []string{
		p.Email, p.TransactionHash, p.CertificateHash, p.CertificateNumber,
		p.Name, p.Course, p.GrantDate, p.ExpirationDate,
	} {
		if v == "" {
			return true
		}
	}
	return false
}

// ParseDate accepts a calendar date or an RFC 3339 timestamp.
func ParseDate(value string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, ErrInvalidDate
}

// IssueCertificate records a certificate for an approved account. The
// record copies the account's identifier and organization and is stamped
// with the current time as its issue date.
func (m *Manager) IssueCertificate(ctx context.Context, params IssueParams) (*models.Issuance, error) {
	params.normalize()
	if params.empty() {
		return nil, ErrEmptyField
	}
	grantDate, err := ParseDate(params.GrantDate)
	if err != nil {
		return nil, err
	}
	expirationDate, err := ParseDate(params.ExpirationDate)
	if err != nil {
		return nil, err
	}
	if expirationDate.Before(grantDate) {
		return nil, ErrInvalidDateRange
	}

	ctx, cancel := m.storeContext(ctx)
	defer cancel()

	account, err := m.store.GetAccountByEmail(ctx, params.Email)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, m.reject(ctx, params, ErrAccountNotApproved)
	case err != nil:
		return nil, storeError(err)
	case !account.Approved:
		return nil, m.reject(ctx, params, ErrAccountNotApproved)
	}

	_, err = m.store.GetIssuance(ctx, params.CertificateNumber)
	if err == nil {
		return nil, m.reject(ctx, params, ErrAlreadyIssued)
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, storeError(err)
	}

	issuance := &models.Issuance{
		CertificateNumber: params.CertificateNumber,
		AccountID:         account.AccountID,
		Organization:      account.Organization,
		TransactionHash:   params.TransactionHash,
		CertificateHash:   params.CertificateHash,
		Name:              params.Name,
		Course:            params.Course,
		GrantDate:         grantDate,
		ExpirationDate:    expirationDate,
		IssueDate:         m.opts.Now().Truncate(time.Microsecond),
	}

	// The unique key on certificate_number decides concurrent requests
	// that both passed the lookup above.
	if err := m.store.InsertIssuance(ctx, issuance); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, m.reject(ctx, params, ErrAlreadyIssued.Wrap(err))
		}
		return nil, storeError(err)
	}

	m.opts.Metrics.IncrementCertificatesIssued()
	slog.InfoContext(ctx, "certificate_issued",
		"certificate_number", issuance.CertificateNumber,
		"account_id", issuance.AccountID,
	)

	return issuance, nil
}

func (m *Manager) reject(ctx context.Context, params IssueParams, reason *apperror.Error) error {
	m.opts.Metrics.IncrementIssuanceRejections(reason.Code)
	slog.WarnContext(ctx, "issuance_rejected",
		"certificate_number", params.CertificateNumber,
		"email", params.Email,
		"reason", reason.Code,
	)
	return reason
}

// GetCertificate looks up an issued certificate by its number.
func (m *Manager) GetCertificate(ctx context.Context, certificateNumber string) (*models.Issuance, error) {
	certificateNumber = strings.TrimSpace(certificateNumber)
	if certificateNumber == "" {
		return nil, ErrEmptyField.WithMessage("certificate number is required")
	}

	ctx, cancel := m.storeContext(ctx)
	defer cancel()

	issuance, err := m.store.GetIssuance(ctx, certificateNumber)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCertificateNotFound
		}
		return nil, storeError(err)
	}
	return issuance, nil
}

func (m *Manager) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, m.opts.StoreTimeout)
}

func storeError(err error) error {
	slog.Error("store_failed", "error", err)
	return apperror.ErrStoreUnavailable.Wrap(err)
}
