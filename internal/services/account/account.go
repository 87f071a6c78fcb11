// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package account implements the issuer account lifecycle: signup, login
// with a mailed one-time code, code verification, password reset and
// administrative approval.
package account

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"codeberg.org/oliverandrich/certissuer/internal/apperror"
	"codeberg.org/oliverandrich/certissuer/internal/metrics"
	"codeberg.org/oliverandrich/certissuer/internal/models"
	"codeberg.org/oliverandrich/certissuer/internal/repository"
	"codeberg.org/oliverandrich/certissuer/internal/services/password"
)

const minPasswordLength = 8

var (
	lettersAndSpaces = regexp.MustCompile(`^[A-Za-z ]*$`)
	emailPattern     = regexp.MustCompile(`^[\w\-.]+@([\w-]+\.)+[\w-]{2,4}$`)
)

// Store persists accounts and verification records. InsertAccount must
// reject a duplicate email with repository.ErrAlreadyExists; lookups of
// absent records return repository.ErrNotFound.
type Store interface {
	GetAccountByEmail(ctx context.Context, email string) (*models.Account, error)
	InsertAccount(ctx context.Context, account *models.Account) error
	UpdateAccountPassword(ctx context.Context, email, passwordHash string) error
	SetAccountApproved(ctx context.Context, email string, approved bool) error
	ListAccounts(ctx context.Context, pendingOnly bool) ([]models.Account, error)

	GetVerification(ctx context.Context, email string) (*models.Verification, error)
	ResetVerification(ctx context.Context, email string, code int) error
	UpsertVerificationCode(ctx context.Context, email string, code int) error
	MarkVerified(ctx context.Context, email string) (bool, error)
}

// SecretSource produces one-time codes and account identifiers.
type SecretSource interface {
	NewOTP() (int, error)
	NewAccountID() string
}

// Notifier delivers a one-time code out of band.
type Notifier interface {
	SendOTP(ctx context.Context, to string, code int) error
}

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, digest string) bool
}

type Options struct {
	// StoreTimeout bounds store calls when the caller's context has no deadline.
	StoreTimeout time.Duration
	// SendTimeout bounds a single OTP delivery.
	SendTimeout time.Duration
	Metrics     *metrics.Metrics
}

type Manager struct {
	store    Store
	secrets  SecretSource
	notifier Notifier
	hasher   PasswordHasher
	opts     Options

	sends     sync.WaitGroup
	dummyHash func() string
}

func NewManager(store Store, secrets SecretSource, notifier Notifier, hasher PasswordHasher, opts Options) *Manager {
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 5 * time.Second
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 30 * time.Second
	}
	return &Manager{
		store:    store,
		secrets:  secrets,
		notifier: notifier,
		hasher:   hasher,
		opts:     opts,
		// Compared against when the account is missing so login timing
		// does not depend on account existence.
		dummyHash: sync.OnceValue(func() string {
			hash, _ := hasher.Hash("dummy-password-for-timing")
			return hash
		}),
	}
}

// Wait blocks until all in-flight OTP deliveries have finished.
func (m *Manager) Wait() {
	m.sends.Wait()
}

// SignupParams holds the parameters for issuer registration.
type SignupParams struct {
	Name         string
	Organization string
	Email        string
	Password     string
}

func (p *SignupParams) normalize() {
	p.Name = strings.TrimSpace(p.Name)
	p.Organization = strings.TrimSpace(p.Organization)
	p.Email = normalizeEmail(p.Email)
}

func (p SignupParams) validate() error {
	if p.Name == "" || p.Organization == "" || p.Email == "" || strings.TrimSpace(p.Password) == "" {
		return ErrEmptyField
	}
	if !lettersAndSpaces.MatchString(p.Name) {
		return ErrInvalidName
	}
	if !lettersAndSpaces.MatchString(p.Organization) {
		return ErrInvalidOrganization
	}
	if !emailPattern.MatchString(p.Email) {
		return ErrInvalidEmail
	}
	return validatePassword(p.Password)
}

func validatePassword(plaintext string) error {
	if len(plaintext) < minPasswordLength {
		return ErrWeakPassword
	}
	if len(plaintext) > password.MaxLength {
		return ErrPasswordTooLong
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Signup registers a new, unapproved issuer account and mails a one-time
// code to its address.
func (m *Manager) Signup(ctx context.Context, params SignupParams) (*models.Account, error) {
	params.normalize()
	if err := params.validate(); err != nil {
		return nil, err
	}

	ctx, cancel := m.storeContext(ctx)
	defer cancel()

	_, err := m.store.GetAccountByEmail(ctx, params.Email)
	if err == nil {
		return nil, ErrAccountExists
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, storeError(err)
	}

	hash, err := m.hasher.Hash(params.Password)
	if err != nil {
		return nil, errHashFailed.Wrap(err)
	}
	code, err := m.secrets.NewOTP()
	if err != nil {
		return nil, errOTPFailed.Wrap(err)
	}

	account := &models.Account{
		Email:        params.Email,
		AccountID:    m.secrets.NewAccountID(),
		Name:         params.Name,
		Organization: params.Organization,
		PasswordHash: hash,
		Approved:     false,
	}

	// The account is inserted before the verification record so a losing
	// concurrent signup never overwrites the winner's code.
	if err := m.store.InsertAccount(ctx, account); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, ErrAccountExists.Wrap(err)
		}
		return nil, storeError(err)
	}
	if err := m.store.ResetVerification(ctx, account.Email, code); err != nil {
		return nil, storeError(err)
	}

	m.sendOTP(ctx, account.Email, code)

	m.opts.Metrics.IncrementSignups()
	slog.InfoContext(ctx, "signup_success", "account_id", account.AccountID, "email", account.Email)

	return account, nil
}

// Login checks the password of an approved account and mails a fresh
// one-time code. The verified flag of an existing record is left as is.
func (m *Manager) Login(ctx context.Context, email, plaintext string) error {
	email = normalizeEmail(email)
	if email == "" || plaintext == "" {
		return ErrEmptyCredentials
	}

	ctx, cancel := m.storeContext(ctx)
	defer cancel()

	account, err := m.store.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			_ = m.hasher.Verify(plaintext, m.dummyHash())
			m.loginFailed(ctx, email, ErrAccountNotFound)
			return ErrAccountNotFound
		}
		return storeError(err)
	}

	if !account.Approved {
		m.loginFailed(ctx, email, ErrAccountNotApproved)
		return ErrAccountNotApproved
	}

	if !m.hasher.Verify(plaintext, account.PasswordHash) {
		m.loginFailed(ctx, email, ErrInvalidPassword)
		return ErrInvalidPassword
	}

	code, err := m.secrets.NewOTP()
	if err != nil {
		return errOTPFailed.Wrap(err)
	}
	if err := m.store.UpsertVerificationCode(ctx, email, code); err != nil {
		return storeError(err)
	}

	m.sendOTP(ctx, email, code)

	m.opts.Metrics.IncrementLogins("ok")
	slog.InfoContext(ctx, "login_success", "account_id", account.AccountID, "email", email)
	return nil
}

func (m *Manager) loginFailed(ctx context.Context, email string, reason *apperror.Error) {
	m.opts.Metrics.IncrementLogins(reason.Code)
	slog.WarnContext(ctx, "login_failed", "email", email, "reason", reason.Code)
}

// VerifyCode checks code against the pending verification for email and
// marks it verified. Repeating a correct code succeeds without changes.
func (m *Manager) VerifyCode(ctx context.Context, email string, code int) error {
	email = normalizeEmail(email)
	if email == "" || code <= 0 {
		return ErrInvalidCode
	}

	ctx, cancel := m.storeContext(ctx)
	defer cancel()

	v, err := m.store.GetVerification(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			m.opts.Metrics.IncrementVerifications(ErrVerificationNotFound.Code)
			return ErrVerificationNotFound
		}
		return storeError(err)
	}

	if v.Code != code {
		m.opts.Metrics.IncrementVerifications(ErrCodeMismatch.Code)
		slog.WarnContext(ctx, "verification_failed", "email", email, "reason", ErrCodeMismatch.Code)
		return ErrCodeMismatch
	}

	if !v.Verified {
		changed, err := m.store.MarkVerified(ctx, email)
		if err != nil {
			return storeError(err)
		}
		if changed {
			slog.InfoContext(ctx, "verification_passed", "email", email)
		}
	}

	m.opts.Metrics.IncrementVerifications("ok")
	return nil
}

// ForgotPassword mails a fresh one-time code to an approved account that
// has a verification record.
func (m *Manager) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return ErrEmptyField.WithMessage("email is required")
	}

	ctx, cancel := m.storeContext(ctx)
	defer cancel()

	if _, err := m.approvedAccount(ctx, email); err != nil {
		return err
	}
	if _, err := m.store.GetVerification(ctx, email); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUnknownAccount
		}
		return storeError(err)
	}

	code, err := m.secrets.NewOTP()
	if err != nil {
		return errOTPFailed.Wrap(err)
	}
	if err := m.store.UpsertVerificationCode(ctx, email, code); err != nil {
		return storeError(err)
	}

	m.sendOTP(ctx, email, code)

	slog.InfoContext(ctx, "password_reset_requested", "email", email)
	return nil
}

// ResetPassword replaces the password of an approved account. It does not
// require a prior VerifyCode.
func (m *Manager) ResetPassword(ctx context.Context, email, newPassword string) error {
	email = normalizeEmail(email)
	if email == "" || strings.TrimSpace(newPassword) == "" {
		return ErrEmptyField.WithMessage("email and password are required")
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	ctx, cancel := m.storeContext(ctx)
	defer cancel()

	if _, err := m.approvedAccount(ctx, email); err != nil {
		return err
	}

	hash, err := m.hasher.Hash(newPassword)
	if err != nil {
		return errHashFailed.Wrap(err)
	}
	if err := m.store.UpdateAccountPassword(ctx, email, hash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUnknownAccount
		}
		return storeError(err)
	}

	m.opts.Metrics.IncrementPasswordResets()
	slog.InfoContext(ctx, "password_reset", "email", email)
	return nil
}

// Approve marks an account as approved. It is the administrative action
// that unlocks login and certificate issuance.
func (m *Manager) Approve(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return ErrEmptyField.WithMessage("email is required")
	}

	ctx, cancel := m.storeContext(ctx)
	defer cancel()

	if err := m.store.SetAccountApproved(ctx, email, true); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUnknownAccount.WithMessage("account not found")
		}
		return storeError(err)
	}

	slog.InfoContext(ctx, "account_approved", "email", email)
	return nil
}

// List returns all accounts, or only those awaiting approval.
func (m *Manager) List(ctx context.Context, pendingOnly bool) ([]models.Account, error) {
	ctx, cancel := m.storeContext(ctx)
	defer cancel()

	accounts, err := m.store.ListAccounts(ctx, pendingOnly)
	if err != nil {
		return nil, storeError(err)
	}
	return accounts, nil
}

func (m *Manager) approvedAccount(ctx context.Context, email string) (*models.Account, error) {
	account, err := m.store.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnknownAccount
		}
		return nil, storeError(err)
	}
	if !account.Approved {
		return nil, ErrUnknownAccount
	}
	return account, nil
}

// sendOTP delivers code in the background. Failures are logged and counted
// but never reach the caller.
func (m *Manager) sendOTP(ctx context.Context, email string, code int) {
	ctx = context.WithoutCancel(ctx)
	m.sends.Go(func() {
		ctx, cancel := context.WithTimeout(ctx, m.opts.SendTimeout)
		defer cancel()

		if err := m.notifier.SendOTP(ctx, email, code); err != nil {
			m.opts.Metrics.IncrementOTPSends("failed")
			slog.ErrorContext(ctx, "otp_send_failed", "email", email, "error", err)
			return
		}
		m.opts.Metrics.IncrementOTPSends("sent")
	})
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
