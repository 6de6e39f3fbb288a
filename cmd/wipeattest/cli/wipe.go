package cli

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/blockwipe/wipeattest/attestation"
	"github.com/blockwipe/wipeattest/wipe"
)

// newWipeCmd wires worker-API operations begin_wipe and build_certificate
// into a single foreground run: it prints throttled progress as it
// streams off the ChanSink and honors Ctrl-C as a cancel request, mirroring
// the cooperative-cancellation contract the Engine expects of any caller.
func newWipeCmd() *cobra.Command {
	var (
		devicePath    string
		methodName    string
		operatorID    string
		operatorEmail string
	)

	cmd := &cobra.Command{
		Use:   "wipe",
		Short: "Erase a device and produce a signed certificate",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := buildEngine()
			if err != nil {
				return err
			}

			devices, err := eng.EnumerateDevices(cmd.Context())
			if err != nil {
				return fmt.Errorf("enumerate devices: %w", err)
			}

			if len(devices) == 0 {
				return fmt.Errorf("no devices found")
			}

			var d, found = devices[0], false
			for _, cand := range devices {
				if cand.Path == devicePath {
					d, found = cand, true
					break
				}
			}
			if !found {
				return fmt.Errorf("device %q not found", devicePath)
			}

			method, err := parseMethod(methodName)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			cancel := wipe.NewCancelSignal()
			go func() {
				<-ctx.Done()
				cancel.Cancel()
			}()

			sink := wipe.NewChanSink()
			done := make(chan struct{})
			go func() {
				defer close(done)
				for ev := range sink.Events() {
					fmt.Fprintf(cmd.OutOrStdout(), "\r%s: pass %d/%d, %d/%d bytes",
						ev.Phase, ev.PassIndex+1, ev.PassTotal, ev.BytesDone, ev.BytesTotal)
				}
				fmt.Fprintln(cmd.OutOrStdout())
			}()

			result := eng.BeginWipe(ctx, d, method, cancel, sink)
			sink.Close()
			<-done

			fmt.Fprintf(cmd.OutOrStdout(), "status: %s\n", result.Status)
			if result.Status != wipe.StatusCompleted {
				if result.FailureDetail != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "detail: %s\n", result.FailureDetail)
				}
				return nil
			}

			sc, err := eng.BuildCertificate(result, attestation.OperatorIdentity{UserID: operatorID, Email: operatorEmail})
			if err != nil {
				return fmt.Errorf("build certificate: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "certificate: %s\n", sc.CertID)
			return nil
		},
	}

	cmd.Flags().StringVar(&devicePath, "device", "", "device path, e.g. /dev/sda")
	cmd.Flags().StringVar(&methodName, "method", "quick", "erasure method: quick, dod3, dod7, gutmann35, ata-secure-erase, ata-enhanced-secure-erase, nvme-format, nvme-sanitize-crypto, nvme-sanitize-block-erase, nvme-sanitize-overwrite")
	cmd.Flags().StringVar(&operatorID, "operator-id", "", "operator user id recorded on the certificate")
	cmd.Flags().StringVar(&operatorEmail, "operator-email", "", "operator email recorded on the certificate")
	cmd.MarkFlagRequired("device")
	return cmd
}

func parseMethod(name string) (wipe.Method, error) {
	switch name {
	case "quick":
		return wipe.NewQuick(), nil
	case "dod3":
		return wipe.NewDoD3(), nil
	case "dod7":
		return wipe.NewDoD7(), nil
	case "gutmann35":
		return wipe.NewGutmann35(), nil
	case "ata-secure-erase":
		return wipe.NewAtaSecureErase(false), nil
	case "ata-enhanced-secure-erase":
		return wipe.NewAtaSecureErase(true), nil
	case "nvme-format":
		return wipe.NewNvmeFormat(0), nil
	case "nvme-sanitize-crypto":
		return wipe.NewNvmeSanitize(wipe.NvmeSanitizeCrypto), nil
	case "nvme-sanitize-block-erase":
		return wipe.NewNvmeSanitize(wipe.NvmeSanitizeBlockErase), nil
	case "nvme-sanitize-overwrite":
		return wipe.NewNvmeSanitize(wipe.NvmeSanitizeOverwrite), nil
	default:
		return wipe.Method{}, fmt.Errorf("unknown method %q", name)
	}
}
