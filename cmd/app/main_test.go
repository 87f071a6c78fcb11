// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"codeberg.org/oliverandrich/certissuer/internal/database"
	"codeberg.org/oliverandrich/certissuer/internal/models"
	"codeberg.org/oliverandrich/certissuer/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, dsn string, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := newCommand()
	cmd.Writer = &out

	base := []string{"app", "--config", filepath.Join(t.TempDir(), "missing.toml"), "--database-dsn", dsn}
	require.NoError(t, cmd.Run(context.Background(), append(base, args...)))
	return out.String()
}

func seedAccount(t *testing.T, dsn, email string) {
	t.Helper()
	db, err := database.Open(dsn)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	err = repository.New(db).InsertAccount(context.Background(), &models.Account{
		Email:        email,
		AccountID:    "id-" + email,
		Name:         "Jane Doe",
		Organization: "Acme",
		PasswordHash: "hash",
	})
	require.NoError(t, err)
}

func TestApproveAndList(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "app.db")
	seedAccount(t, dsn, "jane@acme.com")
	seedAccount(t, dsn, "bob@acme.com")

	out := run(t, dsn, "accounts", "--pending")
	assert.Contains(t, out, "jane@acme.com")
	assert.Contains(t, out, "bob@acme.com")

	out = run(t, dsn, "approve", "--email", "jane@acme.com")
	assert.Contains(t, out, "approved jane@acme.com")

	out = run(t, dsn, "accounts", "--pending")
	assert.NotContains(t, out, "jane@acme.com")
	assert.Contains(t, out, "bob@acme.com")

	out = run(t, dsn, "accounts")
	assert.Contains(t, out, "jane@acme.com")
}

func TestApprove_UnknownAccount(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "app.db")
	cmd := newCommand()
	cmd.Writer = &bytes.Buffer{}

	err := cmd.Run(context.Background(), []string{
		"app", "--config", filepath.Join(t.TempDir(), "missing.toml"), "--database-dsn", dsn,
		"approve", "--email", "nobody@acme.com",
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "account not found")
}

func TestMigrate(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "app.db")

	assert.Contains(t, run(t, dsn, "migrate"), "schema version 1")
}

func TestWriteAccounts(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, writeAccounts(&buf, []models.Account{{Email: "jane@acme.com", Name: "Jane Doe", Organization: "Acme"}}))

	assert.Contains(t, buf.String(), "EMAIL")
	assert.Contains(t, buf.String(), "jane@acme.com")
	assert.Contains(t, buf.String(), "false")
}
