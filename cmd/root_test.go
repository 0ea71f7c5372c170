package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formscout/formscout/internal/config"
)

func TestRootCommandWiring(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"detect", "recognize", "fill", "cache", "profiles"} {
		assert.True(t, names[want], "missing subcommand %q", want)
	}
}

func TestApplyGlobalFlags(t *testing.T) {
	cfg := config.NewDefaultConfig()
	require.True(t, cfg.Browser().Headless)

	flags := rootCmd.PersistentFlags()
	require.NoError(t, flags.Set("headful", "true"))
	require.NoError(t, flags.Set("debug-browser", "true"))
	t.Cleanup(func() {
		_ = flags.Set("headful", "false")
		_ = flags.Set("debug-browser", "false")
	})

	applyGlobalFlags(rootCmd, cfg)
	assert.False(t, cfg.Browser().Headless)
	assert.True(t, cfg.Browser().Debug)
}

func TestFillFlagDefaults(t *testing.T) {
	fill := newFillCmd()
	flag := fill.Flags().Lookup("profile")
	require.NotNil(t, flag)
	assert.Empty(t, flag.DefValue)
	assert.NotNil(t, fill.Flags().Lookup("use-ai"))
	assert.NotNil(t, fill.Flags().Lookup("field"))
}
