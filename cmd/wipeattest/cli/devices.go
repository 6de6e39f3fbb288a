package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newDevicesCmd groups device-discovery subcommands: list and recommend.
func newDevicesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "Discover and classify block devices",
	}
	cmd.AddCommand(newDevicesListCmd())
	cmd.AddCommand(newDevicesRecommendCmd())
	return cmd
}

func newDevicesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Enumerate block devices and their erase capabilities",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := buildEngine()
			if err != nil {
				return err
			}

			devices, err := eng.EnumerateDevices(cmd.Context())
			if err != nil {
				return fmt.Errorf("enumerate devices: %w", err)
			}

			for _, d := range devices {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%d bytes\tsystem=%v frozen=%v\n",
					d.Path, d.Class, d.Model, d.SizeBytes, d.Capability.IsSystem, d.Capability.Frozen)
			}
			return nil
		},
	}
}

func newDevicesRecommendCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Recommend an erasure method for a device",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := buildEngine()
			if err != nil {
				return err
			}

			devices, err := eng.EnumerateDevices(cmd.Context())
			if err != nil {
				return fmt.Errorf("enumerate devices: %w", err)
			}

			for _, d := range devices {
				if d.Path != path {
					continue
				}
				method, rationale := eng.RecommendMethod(d)
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n%s\n", d.Path, method.CanonicalName(), rationale)
				return nil
			}
			return fmt.Errorf("device %q not found", path)
		},
	}

	cmd.Flags().StringVar(&path, "device", "", "device path, e.g. /dev/sda")
	cmd.MarkFlagRequired("device")
	return cmd
}
