package supabase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/limey-tt/limey-backend/internal/config"
)

func TestExtractProjectRef(t *testing.T) {
	assert.Equal(t, "akrqbuajqkirdekonpzy", extractProjectRef("akrqbuajqkirdekonpzy.supabase.co"))
	assert.Equal(t, "localhost:54321", extractProjectRef("localhost:54321"))
}

func TestNewClientRequiresConfig(t *testing.T) {
	_, err := NewClient(config.SupabaseConfig{})
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = NewClient(config.SupabaseConfig{URL: "::not a url", AnonKey: "anon"})
	assert.Error(t, err)
}

func TestNewClientHostedAndSelfHosted(t *testing.T) {
	hosted, err := NewClient(config.SupabaseConfig{URL: "https://abcd.supabase.co", AnonKey: "anon"})
	require.NoError(t, err)
	assert.NotNil(t, hosted.api)

	local, err := NewClient(config.SupabaseConfig{URL: "http://localhost:54321/", AnonKey: "anon"})
	require.NoError(t, err)
	assert.NotNil(t, local.api)
}
