// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package secret produces one-time codes and account identifiers.
package secret

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

const (
	// OTPMin and OTPMax bound the six digit one-time codes.
	OTPMin = 100000
	OTPMax = 999999
)

var otpRange = big.NewInt(OTPMax - OTPMin + 1)

// Source draws codes and identifiers from crypto/rand.
type Source struct{}

// NewSource returns a Source.
func NewSource() *Source {
	return &Source{}
}

// NewOTP returns a uniformly distributed code in [OTPMin, OTPMax].
func (*Source) NewOTP() (int, error) {
	n, err := rand.Int(rand.Reader, otpRange)
	if err != nil {
		return 0, fmt.Errorf("failed to generate otp: %w", err)
	}
	return int(n.Int64()) + OTPMin, nil
}

// NewAccountID returns a random 32 character hex identifier.
func (*Source) NewAccountID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
