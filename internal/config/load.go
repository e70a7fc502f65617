package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/kanata-switcher/kanata-focusd/internal/logging"
)

// Load resolves the configuration file in the order the teacher's own
// config loader uses (explicit path, then a well-known XDG location), and
// unmarshals it over Defaults(). If no config file exists anywhere, a
// default one is written to defaultPath so subsequent runs (and an
// operator poking at it) have something concrete to edit.
func Load(explicitPath string) (Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	cfg := Defaults()
	setViperDefaults(v, cfg)

	path := explicitPath
	if path == "" {
		path = defaultConfigPath()
	}
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if writeErr := WriteDefault(path, cfg); writeErr != nil {
			logging.Warn(logging.CatConfig, "could not write default config", "path", path, "error", writeErr.Error())
		} else {
			logging.Info(logging.CatConfig, "wrote default config", "path", path)
		}
		return cfg, nil
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal %s: %w", path, err)
	}
	logging.Info(logging.CatConfig, "config loaded", "path", path)
	return cfg, nil
}

func setViperDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("host", cfg.Host)
	v.SetDefault("port", cfg.Port)
	v.SetDefault("history_path", cfg.HistoryPath)
	v.SetDefault("log_path", cfg.LogPath)
	v.SetDefault("indicator.show_top_bar_icon", cfg.Indicator.ShowTopBarIcon)
	v.SetDefault("indicator.show_focus_layer_only", cfg.Indicator.ShowFocusLayerOnly)
	v.SetDefault("tracing.enabled", cfg.Tracing.Enabled)
	v.SetDefault("tracing.sample_rate", cfg.Tracing.SampleRate)
	v.SetDefault("tracing.service_name", cfg.Tracing.ServiceName)
}

// defaultConfigPath mirrors the teacher's ~/.config/<app>/config.yaml
// resolution, substituting this daemon's own directory name.
func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "kanata-focusd.yaml"
	}
	return filepath.Join(home, ".config", "kanata-focusd", "config.yaml")
}

// WriteDefault writes cfg to path as YAML, creating parent directories as
// needed. Used once, the first time Load finds no config file at all.
func WriteDefault(path string, cfg Config) error {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("config: create dir %s: %w", dir, err)
		}
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal default: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
