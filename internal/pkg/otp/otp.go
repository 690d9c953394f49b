// Package otp generates the numeric one-time codes mailed during registration.
package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Digits is the length of every generated code.
const Digits = 6

var upper = big.NewInt(1_000_000)

// Generate returns a zero-padded 6-digit code drawn uniformly from crypto/rand.
func Generate() (string, error) {
	n, err := rand.Int(rand.Reader, upper)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%0*d", Digits, n.Int64()), nil
}
