// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package issuance_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"codeberg.org/oliverandrich/certissuer/internal/apperror"
	"codeberg.org/oliverandrich/certissuer/internal/metrics"
	"codeberg.org/oliverandrich/certissuer/internal/models"
	"codeberg.org/oliverandrich/certissuer/internal/repository"
	"codeberg.org/oliverandrich/certissuer/internal/services/issuance"
	"codeberg.org/oliverandrich/certissuer/internal/testutil"
	"github.com/prometheus/client_golang/prometheus"
	prom "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var issuedAt = time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)

func newManager(t *testing.T, store issuance.Store) (*issuance.Manager, *metrics.Metrics) {
	t.Helper()
	m := metrics.New(prometheus.NewRegistry())
	return issuance.NewManager(store, issuance.Options{
		StoreTimeout: 5 * time.Second,
		Metrics:      m,
		Now:          func() time.Time { return issuedAt },
	}), m
}

func cert001() issuance.IssueParams {
	return issuance.IssueParams{
		Email:             "jane@acme.com",
		TransactionHash:   "0xabc123",
		CertificateHash:   "QmHash",
		CertificateNumber: "CERT-001",
		Name:              "John Smith",
		Course:            "Go Fundamentals",
		GrantDate:         "2025-05-01",
		ExpirationDate:    "2027-05-01",
	}
}

func TestIssueCertificate_Success(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	acct := testutil.NewTestAccount(t, repo, "jane@acme.com", "password1", true)
	manager, m := newManager(t, repo)

	got, err := manager.IssueCertificate(context.Background(), cert001())

	require.NoError(t, err)
	assert.Equal(t, "CERT-001", got.CertificateNumber)
	assert.Equal(t, acct.AccountID, got.AccountID)
	assert.Equal(t, acct.Organization, got.Organization)
	assert.Equal(t, "0xabc123", got.TransactionHash)
	assert.Equal(t, "QmHash", got.CertificateHash)
	assert.Equal(t, "John Smith", got.Name)
	assert.Equal(t, "Go Fundamentals", got.Course)
	assert.True(t, got.GrantDate.Equal(time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, got.ExpirationDate.Equal(time.Date(2027, 5, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, got.IssueDate.Equal(issuedAt))

	stored, err := repo.GetIssuance(context.Background(), "CERT-001")
	require.NoError(t, err)
	assert.Equal(t, got.AccountID, stored.AccountID)
	assert.True(t, stored.IssueDate.Equal(issuedAt))
	assert.InDelta(t, 1, prom.ToFloat64(m.CertificatesIssued), 0)
}

func TestIssueCertificate_DefaultClock(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	testutil.NewTestAccount(t, repo, "jane@acme.com", "password1", true)
	manager := issuance.NewManager(repo, issuance.Options{})

	before := time.Now()
	got, err := manager.IssueCertificate(context.Background(), cert001())

	require.NoError(t, err)
	assert.WithinDuration(t, before, got.IssueDate, 5*time.Second)
	assert.Equal(t, time.UTC, got.IssueDate.Location())
}

// Scenario: issuing the same certificate number twice.
func TestIssueCertificate_AlreadyIssued(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	testutil.NewTestAccount(t, repo, "jane@acme.com", "password1", true)
	manager, m := newManager(t, repo)

	_, err := manager.IssueCertificate(context.Background(), cert001())
	require.NoError(t, err)

	_, err = manager.IssueCertificate(context.Background(), cert001())

	require.ErrorIs(t, err, issuance.ErrAlreadyIssued)
	assert.Equal(t, apperror.KindConflict, apperror.KindOf(err))
	assert.InDelta(t, 1, prom.ToFloat64(m.IssuanceRejections.WithLabelValues("already_issued")), 0)
}

func TestIssueCertificate_NotApproved(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	testutil.NewTestAccount(t, repo, "jane@acme.com", "password1", false)
	manager, _ := newManager(t, repo)

	_, err := manager.IssueCertificate(context.Background(), cert001())
	require.ErrorIs(t, err, issuance.ErrAccountNotApproved)

	params := cert001()
	params.Email = "nobody@acme.com"
	_, err = manager.IssueCertificate(context.Background(), params)
	require.ErrorIs(t, err, issuance.ErrAccountNotApproved)

	_, err = repo.GetIssuance(context.Background(), "CERT-001")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestIssueCertificate_RejectionsShareMessage(t *testing.T) {
	assert.Equal(t, apperror.MessageOf(issuance.ErrAlreadyIssued), apperror.MessageOf(issuance.ErrAccountNotApproved))
}

func TestIssueCertificate_Validation(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*issuance.IssueParams)
		expected *apperror.Error
	}{
		{"empty email", func(p *issuance.IssueParams) { p.Email = "" }, issuance.ErrEmptyField},
		{"empty transaction hash", func(p *issuance.IssueParams) { p.TransactionHash = " " }, issuance.ErrEmptyField},
		{"empty certificate hash", func(p *issuance.IssueParams) { p.CertificateHash = "" }, issuance.ErrEmptyField},
		{"empty certificate number", func(p *issuance.IssueParams) { p.CertificateNumber = "" }, issuance.ErrEmptyField},
		{"empty name", func(p *issuance.IssueParams) { p.Name = "" }, issuance.ErrEmptyField},
		{"empty course", func(p *issuance.IssueParams) { p.Course = "" }, issuance.ErrEmptyField},
		{"empty grant date", func(p *issuance.IssueParams) { p.GrantDate = "" }, issuance.ErrEmptyField},
		{"empty expiration date", func(p *issuance.IssueParams) { p.ExpirationDate = "" }, issuance.ErrEmptyField},
		{"malformed grant date", func(p *issuance.IssueParams) { p.GrantDate = "01/05/2025" }, issuance.ErrInvalidDate},
		{"malformed expiration date", func(p *issuance.IssueParams) { p.ExpirationDate = "soon" }, issuance.ErrInvalidDate},
		{"expires before grant", func(p *issuance.IssueParams) { p.ExpirationDate = "2024-01-01" }, issuance.ErrInvalidDateRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, repo := testutil.NewTestDB(t)
			testutil.NewTestAccount(t, repo, "jane@acme.com", "password1", true)
			manager, _ := newManager(t, repo)
			params := cert001()
			tt.mutate(&params)

			_, err := manager.IssueCertificate(context.Background(), params)

			require.ErrorIs(t, err, tt.expected)
			assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
		})
	}
}

func TestIssueCertificate_ConcurrentSameNumber(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	testutil.NewTestAccount(t, repo, "jane@acme.com", "password1", true)
	manager, m := newManager(t, repo)
	const n = 20

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for range n {
		wg.Go(func() {
			_, err := manager.IssueCertificate(context.Background(), cert001())
			errs <- err
		})
	}
	wg.Wait()
	close(errs)

	var succeeded int
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, issuance.ErrAlreadyIssued)
	}
	assert.Equal(t, 1, succeeded)
	assert.InDelta(t, 1, prom.ToFloat64(m.CertificatesIssued), 0)
}

// racingStore hides existing issuances from lookups so every caller
// reaches the insert.
type racingStore struct {
	issuance.Store
}

func (racingStore) GetIssuance(context.Context, string) (*models.Issuance, error) {
	return nil, repository.ErrNotFound
}

func TestIssueCertificate_UniqueKeyDecidesRace(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	testutil.NewTestAccount(t, repo, "jane@acme.com", "password1", true)
	manager, _ := newManager(t, racingStore{Store: repo})

	_, err := manager.IssueCertificate(context.Background(), cert001())
	require.NoError(t, err)

	_, err = manager.IssueCertificate(context.Background(), cert001())

	require.ErrorIs(t, err, issuance.ErrAlreadyIssued)
	assert.ErrorIs(t, err, repository.ErrAlreadyExists)
}

func TestGetCertificate(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	testutil.NewTestAccount(t, repo, "jane@acme.com", "password1", true)
	manager, _ := newManager(t, repo)
	_, err := manager.IssueCertificate(context.Background(), cert001())
	require.NoError(t, err)

	got, err := manager.GetCertificate(context.Background(), " CERT-001 ")
	require.NoError(t, err)
	assert.Equal(t, "John Smith", got.Name)

	_, err = manager.GetCertificate(context.Background(), "CERT-404")
	require.ErrorIs(t, err, issuance.ErrCertificateNotFound)
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))

	_, err = manager.GetCertificate(context.Background(), "")
	assert.ErrorIs(t, err, issuance.ErrEmptyField)
}

type failingStore struct {
	issuance.Store
}

func (failingStore) GetAccountByEmail(context.Context, string) (*models.Account, error) {
	return nil, errors.Join(repository.ErrUnavailable, context.DeadlineExceeded)
}

func (failingStore) GetIssuance(context.Context, string) (*models.Issuance, error) {
	return nil, errors.Join(repository.ErrUnavailable, context.DeadlineExceeded)
}

func TestStoreFailuresAreTransient(t *testing.T) {
	manager, _ := newManager(t, failingStore{})

	_, err := manager.IssueCertificate(context.Background(), cert001())
	require.ErrorIs(t, err, apperror.ErrStoreUnavailable)
	assert.Equal(t, apperror.KindTransient, apperror.KindOf(err))

	_, err = manager.GetCertificate(context.Background(), "CERT-001")
	require.ErrorIs(t, err, apperror.ErrStoreUnavailable)
}

func TestParseDate(t *testing.T) {
	d, err := issuance.ParseDate("2025-05-01")
	require.NoError(t, err)
	assert.True(t, d.Equal(time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)))

	d, err = issuance.ParseDate("2025-05-01T10:00:00+02:00")
	require.NoError(t, err)
	assert.True(t, d.Equal(time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)))
	assert.Equal(t, time.UTC, d.Location())

	_, err = issuance.ParseDate("May 1st")
	assert.ErrorIs(t, err, issuance.ErrInvalidDate)
}
