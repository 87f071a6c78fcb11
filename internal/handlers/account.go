// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"encoding/json"
	"strconv"

	"codeberg.org/oliverandrich/certissuer/internal/services/account"
	"github.com/labstack/echo/v4"
)

// AccountHandlers exposes the issuer account lifecycle.
type AccountHandlers struct {
	accounts *account.Manager
}

// NewAccount creates a new AccountHandlers instance.
func NewAccount(accounts *account.Manager) *AccountHandlers {
	return &AccountHandlers{accounts: accounts}
}

// SignupRequest is the request body for issuer registration.
type SignupRequest struct {
	Name         string `json:"name"`
	Organization string `json:"organization"`
	Email        string `json:"email"`
	Password     string `json:"password"`
}

// Signup registers an issuer and mails the first one-time code.
func (h *AccountHandlers) Signup(c echo.Context) error {
	var req SignupRequest
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}

	acct, err := h.accounts.Signup(c.Request().Context(), account.SignupParams{
		Name:         req.Name,
		Organization: req.Organization,
		Email:        req.Email,
		Password:     req.Password,
	})
	if err != nil {
		return fail(c, err)
	}

	return respond(c, StatusSuccess, "Signup successful", acct.View())
}

// CredentialsRequest is the request body for login and password reset.
type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login checks the credentials and mails a one-time code.
func (h *AccountHandlers) Login(c echo.Context) error {
	var req CredentialsRequest
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}

	if err := h.accounts.Login(c.Request().Context(), req.Email, req.Password); err != nil {
		return fail(c, err)
	}

	return respond(c, StatusSuccess, "OTP sent", nil)
}

// VerifyRequest is the request body for code verification. The code may be
// sent as a JSON number or a numeric string.
type VerifyRequest struct {
	Email string      `json:"email"`
	Code  json.Number `json:"code"`
}

// VerifyIssuer checks a one-time code.
func (h *AccountHandlers) VerifyIssuer(c echo.Context) error {
	var req VerifyRequest
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}

	code, err := strconv.Atoi(req.Code.String())
	if err != nil {
		return fail(c, account.ErrInvalidCode.Wrap(err))
	}

	if err := h.accounts.VerifyCode(c.Request().Context(), req.Email, code); err != nil {
		return fail(c, err)
	}

	return respond(c, StatusPassed, "Verification successful", nil)
}

// EmailRequest is the request body for a forgotten password.
type EmailRequest struct {
	Email string `json:"email"`
}

// ForgotPassword mails a one-time code for a password reset.
func (h *AccountHandlers) ForgotPassword(c echo.Context) error {
	var req EmailRequest
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}

	if err := h.accounts.ForgotPassword(c.Request().Context(), req.Email); err != nil {
		return fail(c, err)
	}

	return respond(c, StatusPassed, "OTP sent", nil)
}

// ResetPassword sets a new password.
func (h *AccountHandlers) ResetPassword(c echo.Context) error {
	var req CredentialsRequest
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}

	if err := h.accounts.ResetPassword(c.Request().Context(), req.Email, req.Password); err != nil {
		return fail(c, err)
	}

	return respond(c, StatusSuccess, "Password reset successful", nil)
}
