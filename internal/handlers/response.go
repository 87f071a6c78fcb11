// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"codeberg.org/oliverandrich/certissuer/internal/apperror"
	"github.com/labstack/echo/v4"
)

// Status tags carried in every API response.
const (
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
	StatusPassed  = "PASSED"
)

// Response is the JSON envelope of every API endpoint.
type Response struct {
	Data    any    `json:"data,omitempty"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

var errInvalidBody = apperror.New(apperror.KindValidation, "invalid_body", "invalid request body")

func respond(c echo.Context, status, message string, data any) error {
	return c.JSON(http.StatusOK, Response{Status: status, Message: message, Data: data})
}

// fail writes err as a FAILED envelope. Only the classified message is
// sent to the client; the full error goes to the log.
func fail(c echo.Context, err error) error {
	kind := apperror.KindOf(err)
	code := httpStatus(kind)

	attrs := []any{
		"path", c.Path(),
		"kind", kind.String(),
		"code", apperror.CodeOf(err),
		"error", err,
	}
	if code >= http.StatusInternalServerError {
		slog.ErrorContext(c.Request().Context(), "request_failed", attrs...)
	} else {
		slog.DebugContext(c.Request().Context(), "request_rejected", attrs...)
	}

	return c.JSON(code, Response{Status: StatusFailed, Message: apperror.MessageOf(err)})
}

func httpStatus(kind apperror.Kind) int {
	switch kind {
	case apperror.KindValidation:
		return http.StatusBadRequest
	case apperror.KindAuth:
		return http.StatusUnauthorized
	case apperror.KindNotFound:
		return http.StatusNotFound
	case apperror.KindConflict:
		return http.StatusConflict
	case apperror.KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// bind decodes the request body into req.
func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) && he.Code == http.StatusRequestEntityTooLarge {
			return err
		}
		return errInvalidBody.Wrap(err)
	}
	return nil
}
