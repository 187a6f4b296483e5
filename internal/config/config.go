// Package config loads the engine's runtime configuration: defaults, an
// optional YAML config file, and SNAPSTATE_-prefixed environment overrides,
// layered in that order.
package config

import (
	"fmt"
	"strings"
	"time"

	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// PackageManagerConfig declares the external package-manager command set used
// by standard application items. The list command must print one package per
// line as "id<TAB>version"; install/uninstall commands are templates rendered
// with ${id}, ${name} and ${version}.
type PackageManagerConfig struct {
	ListCommand      string `koanf:"list_command"`
	InstallCommand   string `koanf:"install_command"`
	UninstallCommand string `koanf:"uninstall_command"`
}

// Config holds the engine's runtime configuration.
type Config struct {
	LogLevel              string               `koanf:"log_level"`
	CommandTimeoutSeconds int                  `koanf:"command_timeout_seconds"`
	RegistryHive          string               `koanf:"registry_hive"`
	PackageManager        PackageManagerConfig `koanf:"package_manager"`
}

// CommandTimeout returns the configured external command timeout.
func (c *Config) CommandTimeout() time.Duration {
	return time.Duration(c.CommandTimeoutSeconds) * time.Second
}

// LoadConfig loads the configuration. configPath may be empty, in which case
// only defaults and environment overrides apply.
func LoadConfig(configPath string) (*Config, error) {
	k := koanf.New(".")

	// Defaults
	k.Load(confmap.Provider(map[string]interface{}{
		"log_level":                         "info",
		"command_timeout_seconds":           30,
		"registry_hive":                     "/var/lib/snapstate/registry.yaml",
		"package_manager.list_command":      `dpkg-query -W -f='${binary:Package}\t${Version}\n'`,
		"package_manager.install_command":   "apt-get install -y ${id}",
		"package_manager.uninstall_command": "apt-get remove -y ${id}",
	}, "."), nil)

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), kyaml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config file %s: %w", configPath, err)
		}
	}

	// Environment overrides, e.g. SNAPSTATE_LOG_LEVEL=debug
	k.Load(env.Provider("SNAPSTATE_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "SNAPSTATE_"))
	}), nil)

	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	if config.CommandTimeoutSeconds <= 0 {
		return nil, fmt.Errorf("command_timeout_seconds must be positive, got %d", config.CommandTimeoutSeconds)
	}

	return &config, nil
}
