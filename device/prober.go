package device

import (
	"context"
	"fmt"

	"github.com/blockwipe/wipeattest/drivedb"
	"github.com/blockwipe/wipeattest/wipe"
	"go.uber.org/zap"
)

// EnumerationFailedError wraps the underlying OS error from a failed
// enumeration attempt, per spec §7 EnumerationFailed.
type EnumerationFailedError struct {
	Underlying error
}

func (e *EnumerationFailedError) Error() string {
	return fmt.Sprintf("device enumeration failed: %v", e.Underlying)
}

func (e *EnumerationFailedError) Unwrap() error { return e.Underlying }

// Prober is the Capability Prober (C1): it enumerates block devices,
// determines which one is the boot device, classifies every other device,
// and probes hardware-erase capability bits.
type Prober struct {
	backend Backend
	db      *drivedb.DB
	log     *zap.SugaredLogger
}

// NewProber constructs a Prober over the given Backend. db may be nil, in
// which case RecommendMethod's rationale strings omit the vendor family
// name (SPEC_FULL §4 supplemented feature, not required for correctness).
func NewProber(backend Backend, db *drivedb.DB, log *zap.SugaredLogger) *Prober {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Prober{backend: backend, db: db, log: log}
}

// Enumerate discovers every physical block device visible to the host and
// never returns the system boot device, per spec §3's invariant.
func (p *Prober) Enumerate(ctx context.Context) ([]Device, error) {
	raw, err := p.backend.List(ctx)
	if err != nil {
		return nil, &EnumerationFailedError{Underlying: err}
	}

	bootPath, err := p.backend.BootDevicePath(ctx)
	if err != nil {
		// Fatal: if we can't determine the boot device we fail closed
		// by refusing to enumerate at all, since silently returning the
		// boot device would violate the spec §3 invariant.
		return nil, &EnumerationFailedError{Underlying: fmt.Errorf("resolve boot device: %w", err)}
	}

	devices := make([]Device, 0, len(raw))
	for _, info := range raw {
		if info.Path == bootPath {
			continue
		}

		d := Device{
			Path:       info.Path,
			Name:       info.Name,
			Model:      info.Model,
			Serial:     info.Serial,
			SizeBytes:  info.SizeBytes,
			SectorSize: info.SectorSize,
			Class:      classify(info),
		}

		p.probeCapabilities(ctx, &d)
		devices = append(devices, d)
	}

	return devices, nil
}

// probeCapabilities fills in Capability flags. Probe failure is non-fatal
// per spec §4.1 ("Failure to probe is non-fatal; flags remain false").
func (p *Prober) probeCapabilities(ctx context.Context, d *Device) {
	switch d.Class {
	case ClassNVMeSSD:
		feat, err := p.backend.ProbeNVMe(ctx, d.Path)
		if err != nil {
			p.log.Warnw("nvme identify probe failed", "path", d.Path, "error", err)
			return
		}
		d.Capability.SupportsNVMeFormat = feat.SupportsFormatNVM
		d.Capability.SupportsNVMeSanitize = feat.SupportsSanitize
		if feat.SanitizeCryptoErase {
			d.NVMeSanicap |= 1
		}
		if feat.SanitizeBlockErase {
			d.NVMeSanicap |= 2
		}
		if feat.SanitizeOverwrite {
			d.NVMeSanicap |= 4
		}
	case ClassSATASSD, ClassHDD:
		feat, err := p.backend.ProbeATA(ctx, d.Path)
		if err != nil {
			p.log.Warnw("ata identify probe failed", "path", d.Path, "error", err)
			return
		}
		if d.Model == "" {
			d.Model = feat.Model
		}
		if d.Serial == "" {
			d.Serial = feat.Serial
		}
		d.Capability.SupportsATASecureErase = feat.SecureErase
		d.Capability.SupportsATAEnhanced = feat.Enhanced
		d.Capability.Frozen = feat.Frozen
	}
}

// RecommendMethod deterministically recommends a wipe method for d,
// per spec §4.1.
func (p *Prober) RecommendMethod(d Device) (wipe.Method, string) {
	return RecommendMethod(d, p.db)
}

// SupportedMethods returns the methods usable against d.
func (p *Prober) SupportedMethods(d Device) []wipe.Method {
	return SupportedMethods(d)
}

// MarkSystem marks d as the boot/system device. Exposed for callers that
// already know a device's system status out-of-band (e.g. the fake
// backend in tests) without re-running boot-path resolution.
func MarkSystem(d *Device) {
	d.Capability.IsSystem = true
}
