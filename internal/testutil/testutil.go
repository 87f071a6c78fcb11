// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package testutil provides test helpers and fixtures.
package testutil

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"codeberg.org/oliverandrich/certissuer/internal/database"
	"codeberg.org/oliverandrich/certissuer/internal/models"
	"codeberg.org/oliverandrich/certissuer/internal/repository"
	"codeberg.org/oliverandrich/certissuer/internal/services/password"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"github.com/vinovest/sqlx"
	"golang.org/x/crypto/bcrypt"
)

// NewTestDB creates an in-memory SQLite database for tests.
// Returns both the database connection and the repository for convenience.
func NewTestDB(t *testing.T) (*sqlx.DB, *repository.Repository) {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	repo := repository.New(db)
	return db, repo
}

// NewHasher returns a bcrypt hasher with the minimum cost.
func NewHasher() *password.Hasher {
	return password.NewHasher(bcrypt.MinCost)
}

// NewTestAccount stores an account with the given email and password.
func NewTestAccount(t *testing.T, repo *repository.Repository, email, plaintext string, approved bool) *models.Account {
	t.Helper()
	hash, err := NewHasher().Hash(plaintext)
	require.NoError(t, err)

	account := &models.Account{
		Email:        email,
		AccountID:    "acct-" + email,
		Name:         "Test Issuer",
		Organization: "Test Org",
		PasswordHash: hash,
		Approved:     approved,
	}
	require.NoError(t, repo.InsertAccount(context.Background(), account))
	return account
}

// Notifier records every code it is asked to send.
type Notifier struct {
	mu   sync.Mutex
	sent map[string][]int
	Err  error
}

// NewNotifier returns an empty recording Notifier.
func NewNotifier() *Notifier {
	return &Notifier{sent: make(map[string][]int)}
}

func (n *Notifier) SendOTP(_ context.Context, to string, code int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent[to] = append(n.sent[to], code)
	return n.Err
}

// LastCode returns the most recent code sent to the address.
func (n *Notifier) LastCode(to string) (int, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	codes := n.sent[to]
	if len(codes) == 0 {
		return 0, false
	}
	return codes[len(codes)-1], true
}

// Count returns how many codes were sent to the address.
func (n *Notifier) Count(to string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent[to])
}

// NewEchoContext creates an Echo context for handler tests.
func NewEchoContext(e *echo.Echo, method, path string, body io.Reader) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return c, rec
}

// NewRequest creates an HTTP request for testing.
func NewRequest(method, path string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}
