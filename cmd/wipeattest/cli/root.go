// Package cli implements the wipeattest command-line tool: a thin cobra
// front end over the engine package's five worker-API operations.
// Grounded on stratastor-rodent's cmd/root.go (one NewXxxCmd constructor
// per subcommand, assembled by a root command) and its cmd/status,
// cmd/config subcommands for flag/output shape.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blockwipe/wipeattest/device"
	"github.com/blockwipe/wipeattest/engine"
	"github.com/blockwipe/wipeattest/volume"
)

var (
	flagConfigFile string
	flagLogLevel   string
)

// NewRootCmd builds the wipeattest command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "wipeattest",
		Short: "Secure erasure and attestation engine",
	}

	root.PersistentFlags().StringVar(&flagConfigFile, "config", "", "path to a config file")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "override the configured log level")

	root.AddCommand(newDevicesCmd())
	root.AddCommand(newWipeCmd())
	root.AddCommand(newCertsCmd())

	return root
}

// buildEngine loads config and wires the real Linux backends into an
// engine.Engine, shared by every subcommand's RunE.
func buildEngine() (*engine.Engine, error) {
	cfg, err := engine.LoadConfig(flagConfigFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}

	log, err := engine.NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	deviceBackend := device.NewLinuxBackend()
	volumeBackend := volume.NewLinuxBackend()
	hwBackend := device.NewLinuxHardwareBackend()

	return engine.NewEngine(cfg, deviceBackend, volumeBackend, hwBackend, log)
}
