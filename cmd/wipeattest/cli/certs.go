package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blockwipe/wipeattest/attestation"
	"github.com/blockwipe/wipeattest/engine"
)

// newCertsCmd groups certificate subcommands: show, verify and list,
// operating directly against the Attestation Builder's Store rather than
// going through the Engine (no device or wipe state is needed to inspect
// or verify a certificate already on disk).
func newCertsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "certs",
		Short: "Inspect and verify signed certificates",
	}
	cmd.AddCommand(newCertsListCmd())
	cmd.AddCommand(newCertsShowCmd())
	cmd.AddCommand(newCertsVerifyCmd())
	return cmd
}

func certStore() (*attestation.Store, error) {
	cfg, err := engine.LoadConfig(flagConfigFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return attestation.NewStore(cfg.CertDir)
}

func newCertsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored certificate ids",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := certStore()
			if err != nil {
				return err
			}
			ids, err := store.List()
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
}

func newCertsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <cert-id>",
		Short: "Print a stored certificate as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := certStore()
			if err != nil {
				return err
			}
			sc, err := store.Load(args[0])
			if err != nil {
				return err
			}
			b, err := json.MarshalIndent(sc, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		},
	}
}

func newCertsVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <cert-id>",
		Short: "Verify a stored certificate's signature",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := certStore()
			if err != nil {
				return err
			}
			sc, err := store.Load(args[0])
			if err != nil {
				return err
			}
			if err := attestation.Verify(*sc); err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "INVALID: %v\n", err)
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "OK")
			return nil
		},
	}
}
