// Package engine wires the Capability Prober, Volume Controller, Pattern
// Writer, Hardware Sanitize Dispatcher, and Attestation Builder into the
// five-operation worker API, per spec §6.
package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EngineConfig carries every path and tunable the engine needs, passed
// explicitly into NewEngine rather than held in package-level globals —
// spec §9 design notes deliberately replace the source's ambient
// process-wide logger/config singletons with an injected value.
type EngineConfig struct {
	KeyDir        string `mapstructure:"keyDir"`
	CertDir       string `mapstructure:"certDir"`
	DriveDBPath   string `mapstructure:"driveDBPath"`
	BufferSize    int    `mapstructure:"bufferSize"`
	LogLevel      string `mapstructure:"logLevel"`
	PollInterval  string `mapstructure:"pollInterval"`
}

// DefaultConfig returns the configuration used when no file or environment
// override is present, grounded on stratastor-rodent's config.go
// SetDefault layering.
func DefaultConfig() EngineConfig {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	base := filepath.Join(home, ".wipeattest")
	return EngineConfig{
		KeyDir:       filepath.Join(base, "keys"),
		CertDir:      filepath.Join(base, "certificates"),
		DriveDBPath:  "",
		BufferSize:   1 << 20,
		LogLevel:     "info",
		PollInterval: "2s",
	}
}

// LoadConfig loads an EngineConfig with precedence rules — WIPEATTEST_-
// prefixed environment variables override the explicit config file, which
// overrides the built-in defaults — grounded on stratastor-rodent's config.go viper usage, scaled
// down to this core's handful of fields and without that teacher's
// process-wide singleton (spec §9 calls for an injected config, not a
// global).
func LoadConfig(configFilePath string) (EngineConfig, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	def := DefaultConfig()
	v.SetDefault("keyDir", def.KeyDir)
	v.SetDefault("certDir", def.CertDir)
	v.SetDefault("driveDBPath", def.DriveDBPath)
	v.SetDefault("bufferSize", def.BufferSize)
	v.SetDefault("logLevel", def.LogLevel)
	v.SetDefault("pollInterval", def.PollInterval)

	v.AutomaticEnv()
	v.SetEnvPrefix("WIPEATTEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if configFilePath != "" {
		v.SetConfigFile(configFilePath)
		if err := v.ReadInConfig(); err != nil {
			return EngineConfig{}, fmt.Errorf("read config %s: %w", configFilePath, err)
		}
	}

	var cfg EngineConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return EngineConfig{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
