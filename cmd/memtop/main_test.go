package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArgs(t *testing.T) {
	cfg, err := parseArgs(nil)
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), cfg)

	cfg, err = parseArgs([]string{"-d", "--workers", "8", "--max-size", "1024", "-i", "2s"})
	require.NoError(t, err)
	assert.True(t, cfg.Debug)
	assert.Equal(t, 8, cfg.Workload.Workers)
	assert.Equal(t, uint64(1024), cfg.Workload.MaxSize)
	assert.Equal(t, 2*time.Second, cfg.Interval)
}

func TestParseArgs_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing value", []string{"--workers"}},
		{"zero workers", []string{"-w", "0"}},
		{"bad size", []string{"--max-size", "big"}},
		{"bad interval", []string{"-i", "-1s"}},
		{"unknown", []string{"--bogus"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseArgs(tt.args)
			assert.Error(t, err)
		})
	}
}
