// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package claims_test

import (
	"regexp"
	"testing"

	"codeberg.org/oliverandrich/foodmaps/internal/claims"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCode(t *testing.T) {
	digits := regexp.MustCompile(`^[0-9]{4}$`)
	seen := make(map[string]bool)

	for range 200 {
		code, err := claims.GenerateCode(4)
		require.NoError(t, err)
		assert.Regexp(t, digits, code)
		seen[code] = true
	}

	// 200 draws from 10000 values should not collapse to a handful
	assert.Greater(t, len(seen), 150)
}

func TestGenerateCode_Lengths(t *testing.T) {
	for _, n := range []int{1, 6, 9} {
		code, err := claims.GenerateCode(n)
		require.NoError(t, err)
		assert.Len(t, code, n)
	}
}

func TestGenerateCode_InvalidLength(t *testing.T) {
	for _, n := range []int{0, -1, 10} {
		_, err := claims.GenerateCode(n)
		assert.Error(t, err)
	}
}
