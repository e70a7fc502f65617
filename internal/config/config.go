// Package config loads the daemon's runtime configuration: the Kanata
// endpoint, the declarative rule list, history/tracing toggles, and the
// indicator settings that are otherwise persisted externally (GSettings,
// §6). It is thin plumbing by design (spec.md §1 excludes "config file
// loading from disk" from the core) but still follows the teacher's own
// config shape: typed struct with mapstructure tags, unmarshaled via viper.
package config

import (
	"fmt"

	"github.com/kanata-switcher/kanata-focusd/internal/rules"
	"github.com/kanata-switcher/kanata-focusd/internal/tracing"
)

// RuleConfig is the on-disk shape of one rules.RuleSpec entry.
type RuleConfig struct {
	Default        bool          `mapstructure:"default"`
	NativeTerminal bool          `mapstructure:"native_terminal"`
	Class          string        `mapstructure:"class"`
	Title          string        `mapstructure:"title"`
	Layer          string        `mapstructure:"layer"`
	VirtualKey     string        `mapstructure:"virtual_key"`
	RawActions     []RawVkConfig `mapstructure:"raw_actions"`
	Fallthrough    bool          `mapstructure:"fallthrough"`
}

// RawVkConfig is the on-disk shape of one RawVk entry.
type RawVkConfig struct {
	Name   string `mapstructure:"name"`
	Action string `mapstructure:"action"` // "press" | "release" | "tap" | "toggle"
}

// IndicatorConfig overrides the externally-persisted GSettings values
// (§6) at startup, without writing them back.
type IndicatorConfig struct {
	ShowTopBarIcon     bool `mapstructure:"show_top_bar_icon"`
	ShowFocusLayerOnly bool `mapstructure:"show_focus_layer_only"`
}

// Config is the daemon's full runtime configuration.
type Config struct {
	Host  string       `mapstructure:"host"`
	Port  int          `mapstructure:"port"`
	Rules []RuleConfig `mapstructure:"rules"`

	Indicator IndicatorConfig `mapstructure:"indicator"`
	Tracing   tracing.Config  `mapstructure:"tracing"`

	// HistoryPath is where internal/history persists status transitions.
	// Empty disables history.
	HistoryPath string `mapstructure:"history_path"`

	// LogPath is where internal/logging appends structured log lines.
	LogPath string `mapstructure:"log_path"`
}

// Defaults returns the configuration used when no config file is present
// and no flag overrides a given key.
func Defaults() Config {
	return Config{
		Host:    "127.0.0.1",
		Port:    10000,
		Tracing: tracing.DefaultConfig(),
		LogPath: "kanata-focusd.log",
	}
}

// actionFromString parses the on-disk action name into a rules.VkAction.
func actionFromString(s string) (rules.VkAction, error) {
	switch s {
	case "press", "Press":
		return rules.VkPress, nil
	case "release", "Release":
		return rules.VkRelease, nil
	case "tap", "Tap":
		return rules.VkTap, nil
	case "toggle", "Toggle":
		return rules.VkToggle, nil
	default:
		return 0, fmt.Errorf("unknown virtual-key action %q", s)
	}
}

// RuleSpecs converts the on-disk RuleConfig list into rules.RuleSpec,
// ready for rules.Load. Errors here are configuration errors (spec.md §7)
// distinct from rules.Load's own structural validation.
func RuleSpecs(configs []RuleConfig) ([]rules.RuleSpec, error) {
	specs := make([]rules.RuleSpec, 0, len(configs))
	for i, rc := range configs {
		raw := make([]rules.RawVk, 0, len(rc.RawActions))
		for _, rv := range rc.RawActions {
			action, err := actionFromString(rv.Action)
			if err != nil {
				return nil, fmt.Errorf("rule %d: raw_actions[%s]: %w", i+1, rv.Name, err)
			}
			raw = append(raw, rules.RawVk{Name: rv.Name, Action: action})
		}
		specs = append(specs, rules.RuleSpec{
			Default:        rc.Default,
			NativeTerminal: rc.NativeTerminal,
			Class:          rc.Class,
			Title:          rc.Title,
			Layer:          rc.Layer,
			VirtualKey:     rc.VirtualKey,
			RawActions:     raw,
			Fallthrough:    rc.Fallthrough,
		})
	}
	return specs, nil
}
