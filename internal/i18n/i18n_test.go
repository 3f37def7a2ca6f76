// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package i18n_test

import (
	"context"
	"testing"

	"codeberg.org/oliverandrich/foodmaps/internal/i18n"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestInit(t *testing.T) {
	require.NoError(t, i18n.Init())
	require.NoError(t, i18n.Init())
}

func TestT(t *testing.T) {
	ctx := i18n.WithLocale(context.Background(), language.English)

	assert.Equal(t, "The confirmation code is not correct", i18n.T(ctx, "error_code_mismatch"))
}

func TestT_Spanish(t *testing.T) {
	ctx := i18n.WithLocale(context.Background(), language.Spanish)

	assert.Equal(t, "El código de confirmación no es correcto", i18n.T(ctx, "error_code_mismatch"))
}

func TestT_UnknownKey(t *testing.T) {
	ctx := i18n.WithLocale(context.Background(), language.English)

	// Should return the key itself for unknown messages
	result := i18n.T(ctx, "unknown_key_that_does_not_exist")
	assert.Equal(t, "unknown_key_that_does_not_exist", result)
}

func TestT_NoLocaleContext(t *testing.T) {
	result := i18n.T(context.Background(), "app_name")

	assert.Equal(t, "Food Maps", result)
}

func TestTData(t *testing.T) {
	ctx := i18n.WithLocale(context.Background(), language.English)

	result := i18n.TData(ctx, "claim_code_body", map[string]any{
		"Title":   "Bread",
		"Code":    "4821",
		"Minutes": 5,
		"Address": "1 Market Street",
	})

	assert.Contains(t, result, "4821")
	assert.Contains(t, result, "5 minutes")
	assert.Contains(t, result, "1 Market Street")
}

func TestTPlural(t *testing.T) {
	ctx := i18n.WithLocale(context.Background(), language.English)

	assert.Equal(t, "1 listing", i18n.TPlural(ctx, "listings_count", 1))
	assert.Equal(t, "5 listings", i18n.TPlural(ctx, "listings_count", 5))
}

func TestMatchLanguage(t *testing.T) {
	tests := []struct {
		expected       language.Tag
		acceptLanguage string
	}{
		{language.English, "en"},
		{language.English, "en-US"},
		{language.Spanish, "es"},
		{language.Spanish, "es-MX"},
		{language.English, "fr"}, // fallback to English
		{language.English, ""},   // empty defaults to English
		{language.Spanish, "es, en;q=0.9"},
		{language.English, "en, es;q=0.9"},
	}

	for _, tt := range tests {
		t.Run(tt.acceptLanguage, func(t *testing.T) {
			tag := i18n.MatchLanguage(tt.acceptLanguage)
			assert.Equal(t, tt.expected, tag)
		})
	}
}

func TestWithLocale(t *testing.T) {
	ctx := i18n.WithLocale(context.Background(), language.Spanish)

	assert.Equal(t, "es", i18n.GetLocale(ctx))
}

func TestWithUserLocale(t *testing.T) {
	assert.Equal(t, "es", i18n.GetLocale(i18n.WithUserLocale(context.Background(), "es")))
	assert.Equal(t, "en", i18n.GetLocale(i18n.WithUserLocale(context.Background(), "")))
	assert.Equal(t, "en", i18n.GetLocale(i18n.WithUserLocale(context.Background(), "de")))
}

func TestGetLocale_Default(t *testing.T) {
	assert.Equal(t, "en", i18n.GetLocale(context.Background()))
}
