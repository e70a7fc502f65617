// Package cmd implements the daemon's CLI surface: the implicit "run"
// daemon command plus the short-lived pause/unpause/restart control
// sub-commands (spec.md §6), built on github.com/spf13/cobra exactly as
// the teacher's own cmd package is.
package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kanata-switcher/kanata-focusd/internal/config"
	"github.com/kanata-switcher/kanata-focusd/internal/rules"
)

var (
	version string = "dev"

	cfgFile            string
	hostFlag           string
	portFlag           int
	debugFlag          bool
	indicatorFocusOnly string // "true" | "false" | "" (unset: use persisted setting)
)

var rootCmd = &cobra.Command{
	Use:     "kanata-focusd",
	Short:   "Focus-driven Kanata layer/virtual-key switcher",
	Long:    `kanata-focusd watches the focused top-level window and drives a running Kanata process's base layer and virtual keys according to a declarative rule set.`,
	Version: version,
	RunE:    runApp,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: ~/.config/kanata-focusd/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&hostFlag, "host", "", "Kanata TCP host (overrides config)")
	rootCmd.PersistentFlags().IntVar(&portFlag, "port", 0, "Kanata TCP port (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&debugFlag, "debug", "d", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&indicatorFocusOnly, "indicator-focus-only", "", "override the persisted show-focus-layer-only setting for this run (true|false)")

	rootCmd.AddCommand(pauseCmd, unpauseCmd, restartCmd)
}

// Execute runs the root command, returning whatever error (if any) the
// invoked RunE produced. Callers translate it to a process exit code via
// ExitCodeFor.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string reported by --version.
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// loadConfig resolves internal/config.Config from --config plus the
// --host/--port overrides, without ever writing an override back to disk
// (spec.md §6: "--indicator-focus-only ... without writing it back").
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, &ConfigError{Err: err}
	}
	if hostFlag != "" {
		cfg.Host = hostFlag
	}
	if portFlag != 0 {
		cfg.Port = portFlag
	}
	switch indicatorFocusOnly {
	case "true":
		cfg.Indicator.ShowFocusLayerOnly = true
	case "false":
		cfg.Indicator.ShowFocusLayerOnly = false
	case "":
	default:
		return config.Config{}, &ConfigError{Err: fmt.Errorf("--indicator-focus-only must be true or false, got %q", indicatorFocusOnly)}
	}
	return cfg, nil
}

// loadRuleSet converts the config's rule list into a validated rules.Set,
// wrapping structural failures as ConfigError (spec.md §7: "Invalid
// configuration ... fatal at startup; non-zero exit").
func loadRuleSet(cfg config.Config) (*rules.Set, error) {
	specs, err := config.RuleSpecs(cfg.Rules)
	if err != nil {
		return nil, &ConfigError{Err: err}
	}
	set, err := rules.Load(specs)
	if err != nil {
		var cfgErr *rules.ConfigError
		if errors.As(err, &cfgErr) {
			return nil, &ConfigError{Err: cfgErr}
		}
		return nil, &ConfigError{Err: err}
	}
	return set, nil
}
