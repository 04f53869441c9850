package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTime(t *testing.T) {
	got, err := parseTime("as-of", "")
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	got, err = parseTime("as-of", "2026-04-10")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC), got)

	got, err = parseTime("as-of", "2026-04-10T12:30:00Z")
	require.NoError(t, err)
	assert.Equal(t, 12, got.Hour())

	_, err = parseTime("from", "yesterday")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--from")
}

func TestCommandTree(t *testing.T) {
	names := map[string]bool{}
	for _, cmd := range rootCmd.Commands() {
		names[cmd.Name()] = true
	}
	for _, want := range []string{"run", "serve", "report", "upcoming", "alerts", "export", "backfill", "migrate", "import", "simulate-alert", "version"} {
		assert.True(t, names[want], want)
	}

	sub, _, err := rootCmd.Find([]string{"alerts", "ack"})
	require.NoError(t, err)
	assert.Equal(t, "ack", sub.Name())
}
