// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package claims

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
)

const (
	defaultCodeLength = 4
	maxCodeLength     = 9
)

// GenerateCode returns a uniformly random numeric code of length digits,
// zero-padded.
func GenerateCode(length int) (string, error) {
	if length <= 0 || length > maxCodeLength {
		return "", fmt.Errorf("code length must be between 1 and %d, got %d", maxCodeLength, length)
	}

	upper := big.NewInt(1)
	for range length {
		upper.Mul(upper, big.NewInt(10))
	}

	n, err := rand.Int(rand.Reader, upper)
	if err != nil {
		return "", fmt.Errorf("generating code: %w", err)
	}
	return fmt.Sprintf("%0*d", length, n.Int64()), nil
}

func codesEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
