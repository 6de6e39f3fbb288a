package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blockwipe/wipeattest/attestation"
	"github.com/blockwipe/wipeattest/device"
	"github.com/blockwipe/wipeattest/volume"
	"github.com/blockwipe/wipeattest/wipe"
)

type nullSink struct{}

func (nullSink) Send(wipe.Event) {}

func newTestEngine(t *testing.T, deviceBackend device.Backend, volumeBackend volume.Backend, hwBackend wipe.HardwareBackend) *Engine {
	t.Helper()
	cfg := EngineConfig{
		KeyDir:     t.TempDir(),
		CertDir:    t.TempDir(),
		BufferSize: 4096,
	}
	eng, err := NewEngine(cfg, deviceBackend, volumeBackend, hwBackend, nil)
	require.NoError(t, err)
	return eng
}

func TestEngine_QuickWipeToCertificate(t *testing.T) {
	devBackend := device.NewFakeBackend().AddDevice(device.RawInfo{
		Path: "/dev/fake0", Name: "Fake Disk", Model: "FAKE-1", Serial: "SN-1",
		SizeBytes: 8 << 20, SectorSize: 4096, Transport: "sata", Rotational: true,
	})
	volBackend := volume.NewFakeBackend().AddDevice("/dev/fake0", 8<<20, 4096)

	eng := newTestEngine(t, devBackend, volBackend, wipe.NewFakeHardwareBackend())

	devices, err := eng.EnumerateDevices(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 1)

	d := devices[0]
	_, rationale := eng.RecommendMethod(d)
	require.NotEmpty(t, rationale)

	cancel := wipe.NewCancelSignal()
	result := eng.BeginWipe(context.Background(), d, wipe.NewQuick(), cancel, nullSink{})
	require.Equal(t, wipe.StatusCompleted, result.Status)

	sc, err := eng.BuildCertificate(result, attestation.OperatorIdentity{UserID: "local", Email: "offline"})
	require.NoError(t, err)

	require.NoError(t, eng.VerifyCertificate(*sc))
}

func TestEngine_S4_FrozenHardwareRefused(t *testing.T) {
	devBackend := device.NewFakeBackend().
		AddDevice(device.RawInfo{
			Path: "/dev/fakez", Name: "Fake SSD", Model: "FAKE-SSD", Serial: "SN-Z",
			SizeBytes: 8 << 20, SectorSize: 512, Transport: "sata", Rotational: false,
		}).
		WithATA("/dev/fakez", device.ATAFeatures{SecureErase: true, Frozen: true})

	volBackend := volume.NewFakeBackend().AddDevice("/dev/fakez", 8<<20, 512)
	hw := wipe.NewFakeHardwareBackend()

	eng := newTestEngine(t, devBackend, volBackend, hw)

	devices, err := eng.EnumerateDevices(context.Background())
	require.NoError(t, err)
	require.True(t, devices[0].Capability.Frozen)

	cancel := wipe.NewCancelSignal()
	result := eng.BeginWipe(context.Background(), devices[0], wipe.NewAtaSecureErase(false), cancel, nullSink{})

	require.Equal(t, wipe.StatusFailed, result.Status)
	require.Equal(t, wipe.FailureDriveFrozen, result.FailureKind)
	require.Equal(t, 0, hw.PollCountToDone, "no vendor command issued")

	_, err = eng.BuildCertificate(result, attestation.OperatorIdentity{})
	require.ErrorIs(t, err, attestation.ErrBuildRefusedNonTerminal)
}

func TestEngine_CancelBeforeBeginWipe(t *testing.T) {
	devBackend := device.NewFakeBackend().AddDevice(device.RawInfo{
		Path: "/dev/fake1", Name: "Fake Disk", SizeBytes: 1 << 20, SectorSize: 512,
		Transport: "sata", Rotational: true,
	})
	volBackend := volume.NewFakeBackend().AddDevice("/dev/fake1", 1<<20, 512)
	eng := newTestEngine(t, devBackend, volBackend, wipe.NewFakeHardwareBackend())

	devices, err := eng.EnumerateDevices(context.Background())
	require.NoError(t, err)

	cancel := wipe.NewCancelSignal()
	cancel.Cancel()

	result := eng.BeginWipe(context.Background(), devices[0], wipe.NewQuick(), cancel, nullSink{})
	require.Equal(t, wipe.StatusCancelled, result.Status)
	require.Equal(t, 0, result.PassesCompleted)
}
