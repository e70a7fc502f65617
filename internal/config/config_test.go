package config

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kanata-switcher/kanata-focusd/internal/rules"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	require.Equal(t, "127.0.0.1", cfg.Host)
	require.Equal(t, 10000, cfg.Port)
	require.False(t, cfg.Tracing.Enabled)
}

func TestRuleSpecs_ConvertsEveryField(t *testing.T) {
	specs, err := RuleSpecs([]RuleConfig{
		{
			Class:      "^firefox$",
			Layer:      "browser",
			VirtualKey: "vkB",
			RawActions: []RawVkConfig{{Name: "vkExtra", Action: "tap"}},
		},
	})
	require.NoError(t, err)
	require.Len(t, specs, 1)
	require.Equal(t, "^firefox$", specs[0].Class)
	require.Equal(t, "browser", specs[0].Layer)
	require.Equal(t, []rules.RawVk{{Name: "vkExtra", Action: rules.VkTap}}, specs[0].RawActions)
}

func TestRuleSpecs_UnknownAction(t *testing.T) {
	_, err := RuleSpecs([]RuleConfig{
		{Class: "firefox", RawActions: []RawVkConfig{{Name: "vk", Action: "smash"}}},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "rule 1")
}

func TestRuleSpecs_Empty(t *testing.T) {
	specs, err := RuleSpecs(nil)
	require.NoError(t, err)
	require.Empty(t, specs)
}
