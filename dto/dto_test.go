package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSearchFilters_EffectiveLimit(t *testing.T) {
	assert.Equal(t, DefaultSearchLimit, SearchFilters{}.EffectiveLimit())
	assert.Equal(t, DefaultSearchLimit, SearchFilters{Limit: -3}.EffectiveLimit())
	assert.Equal(t, 25, SearchFilters{Limit: 25}.EffectiveLimit())
	assert.Equal(t, MaxSearchLimit, SearchFilters{Limit: 10_000}.EffectiveLimit())
}
