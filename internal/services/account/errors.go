// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package account

import "codeberg.org/oliverandrich/certissuer/internal/apperror"

// msgInvalidCredentials is shared by every login failure so responses do
// not reveal whether an account exists or is approved.
const msgInvalidCredentials = "invalid credentials or unapproved"

var (
	ErrEmptyField          = apperror.New(apperror.KindValidation, "empty_field", "name, organization, email and password are required")
	ErrInvalidName         = apperror.New(apperror.KindValidation, "invalid_name", "name may only contain letters and spaces")
	ErrInvalidOrganization = apperror.New(apperror.KindValidation, "invalid_organization", "organization may only contain letters and spaces")
	ErrInvalidEmail        = apperror.New(apperror.KindValidation, "invalid_email", "invalid email address")
	ErrWeakPassword        = apperror.New(apperror.KindValidation, "weak_password", "password must be at least 8 characters long")
	ErrPasswordTooLong     = apperror.New(apperror.KindValidation, "password_too_long", "password must be at most 72 bytes long")
	ErrEmptyCredentials    = apperror.New(apperror.KindValidation, "empty_credentials", "email and password are required")
	ErrInvalidCode         = apperror.New(apperror.KindValidation, "invalid_code", "email and a numeric code are required")

	ErrAccountExists = apperror.New(apperror.KindConflict, "account_exists", "an account with this email already exists")

	ErrAccountNotFound    = apperror.New(apperror.KindAuth, "account_not_found", msgInvalidCredentials)
	ErrAccountNotApproved = apperror.New(apperror.KindAuth, "account_not_approved", msgInvalidCredentials)
	ErrInvalidPassword    = apperror.New(apperror.KindAuth, "invalid_password", msgInvalidCredentials)
	ErrCodeMismatch       = apperror.New(apperror.KindAuth, "code_mismatch", "invalid verification code")

	ErrVerificationNotFound = apperror.New(apperror.KindNotFound, "verification_not_found", "no verification pending for this email")
	ErrUnknownAccount       = apperror.New(apperror.KindNotFound, "account_not_found", "account not found or not approved")

	errHashFailed = apperror.New(apperror.KindInternal, "hash_failed", "could not process password")
	errOTPFailed  = apperror.New(apperror.KindInternal, "otp_failed", "could not generate verification code")
)
