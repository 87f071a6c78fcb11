// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"codeberg.org/oliverandrich/certissuer/internal/services/issuance"
	"github.com/labstack/echo/v4"
)

// IssuanceHandlers exposes certificate issuance and lookup.
type IssuanceHandlers struct {
	issuance *issuance.Manager
}

// NewIssuance creates a new IssuanceHandlers instance.
func NewIssuance(m *issuance.Manager) *IssuanceHandlers {
	return &IssuanceHandlers{issuance: m}
}

// IssueRequest is the request body for issuing a certificate.
type IssueRequest struct {
	Email             string `json:"email"`
	TransactionHash   string `json:"transactionHash"`
	CertificateHash   string `json:"certificateHash"`
	CertificateNumber string `json:"certificateNumber"`
	Name              string `json:"name"`
	Course            string `json:"course"`
	GrantDate         string `json:"grantDate"`
	ExpirationDate    string `json:"expirationDate"`
}

// IssueCertificate records a certificate for an approved issuer.
func (h *IssuanceHandlers) IssueCertificate(c echo.Context) error {
	var req IssueRequest
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}

	record, err := h.issuance.IssueCertificate(c.Request().Context(), issuance.IssueParams{
		Email:             req.Email,
		TransactionHash:   req.TransactionHash,
		CertificateHash:   req.CertificateHash,
		CertificateNumber: req.CertificateNumber,
		Name:              req.Name,
		Course:            req.Course,
		GrantDate:         req.GrantDate,
		ExpirationDate:    req.ExpirationDate,
	})
	if err != nil {
		return fail(c, err)
	}

	return respond(c, StatusSuccess, "Certificate issued successfully", record)
}

// GetCertificate returns an issued certificate by number.
func (h *IssuanceHandlers) GetCertificate(c echo.Context) error {
	record, err := h.issuance.GetCertificate(c.Request().Context(), c.Param("number"))
	if err != nil {
		return fail(c, err)
	}

	return respond(c, StatusSuccess, "Certificate found", record)
}
