// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package metrics holds the Prometheus collectors for account and issuance
// outcomes. A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "certissuer"

type Metrics struct {
	Signups            prometheus.Counter
	Logins             *prometheus.CounterVec
	Verifications      *prometheus.CounterVec
	OTPSends           *prometheus.CounterVec
	PasswordResets     prometheus.Counter
	CertificatesIssued prometheus.Counter
	IssuanceRejections *prometheus.CounterVec
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Signups: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signups_total",
			Help:      "Total number of issuer accounts created",
		}),
		Logins: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Total number of login attempts by result",
		}, []string{"result"}),
		Verifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verifications_total",
			Help:      "Total number of OTP verification attempts by result",
		}, []string{"result"}),
		OTPSends: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "otp_sends_total",
			Help:      "Total number of OTP deliveries by result",
		}, []string{"result"}),
		PasswordResets: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "password_resets_total",
			Help:      "Total number of completed password resets",
		}),
		CertificatesIssued: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "certificates_issued_total",
			Help:      "Total number of certificates issued",
		}),
		IssuanceRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "issuance_rejections_total",
			Help:      "Total number of rejected issuance requests by reason",
		}, []string{"reason"}),
	}
}

func (m *Metrics) IncrementSignups() {
	if m == nil {
		return
	}
	m.Signups.Inc()
}

func (m *Metrics) IncrementLogins(result string) {
	if m == nil {
		return
	}
	m.Logins.WithLabelValues(result).Inc()
}

func (m *Metrics) IncrementVerifications(result string) {
	if m == nil {
		return
	}
	m.Verifications.WithLabelValues(result).Inc()
}

func (m *Metrics) IncrementOTPSends(result string) {
	if m == nil {
		return
	}
	m.OTPSends.WithLabelValues(result).Inc()
}

func (m *Metrics) IncrementPasswordResets() {
	if m == nil {
		return
	}
	m.PasswordResets.Inc()
}

func (m *Metrics) IncrementCertificatesIssued() {
	if m == nil {
		return
	}
	m.CertificatesIssued.Inc()
}

func (m *Metrics) IncrementIssuanceRejections(reason string) {
	if m == nil {
		return
	}
	m.IssuanceRejections.WithLabelValues(reason).Inc()
}
