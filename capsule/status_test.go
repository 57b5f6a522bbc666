package capsule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusIsValid(t *testing.T) {
	for _, s := range AllStatuses() {
		assert.True(t, s.IsValid(), "status %s should be valid", s)
	}
	assert.False(t, Status("deleted").IsValid())
	assert.False(t, Status("").IsValid())
}

func TestStatusCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from Status
		to   Status
		want bool
	}{
		{"draft to published", StatusDraft, StatusPublished, true},
		{"draft to archived", StatusDraft, StatusArchived, true},
		{"published to archived", StatusPublished, StatusArchived, true},
		{"published to draft", StatusPublished, StatusDraft, false},
		{"archived to published", StatusArchived, StatusPublished, false},
		{"archived to draft", StatusArchived, StatusDraft, false},
		{"draft to draft", StatusDraft, StatusDraft, false},
		{"published to published", StatusPublished, StatusPublished, false},
		{"archived to archived", StatusArchived, StatusArchived, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("published")
	require.NoError(t, err)
	assert.Equal(t, StatusPublished, s)

	_, err = ParseStatus("retired")
	assert.Error(t, err)
}

func TestParseType(t *testing.T) {
	typ, err := ParseType("technical_route")
	require.NoError(t, err)
	assert.Equal(t, TypeTechnicalRoute, typ)

	_, err = ParseType("blog_post")
	assert.Error(t, err)
}

func TestAllTypesAreValid(t *testing.T) {
	for _, typ := range AllTypes() {
		assert.True(t, typ.IsValid(), "type %s should be valid", typ)
	}
}
