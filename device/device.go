// Package device discovers physical block devices, classifies them, and
// probes their hardware-erase capabilities.
package device

import "fmt"

// Class is the coarse device category used to pick an erasure method.
type Class int

const (
	ClassUnknown Class = iota
	ClassHDD
	ClassSATASSD
	ClassNVMeSSD
	ClassRemovableFlash
)

func (c Class) String() string {
	switch c {
	case ClassHDD:
		return "HDD"
	case ClassSATASSD:
		return "SATA_SSD"
	case ClassNVMeSSD:
		return "NVME_SSD"
	case ClassRemovableFlash:
		return "REMOVABLE_FLASH"
	default:
		return "UNKNOWN"
	}
}

// Capabilities holds the hardware-erase feature flags probed off the
// device. Zero value means "unknown / unsupported" — probing is
// best-effort and never fails the enumeration.
type Capabilities struct {
	SupportsATASecureErase bool
	SupportsATAEnhanced    bool
	SupportsNVMeFormat     bool
	SupportsNVMeSanitize   bool
	Frozen                 bool
	IsSystem               bool
}

// Device is an immutable snapshot of a discovered block device. A new
// Device is produced for every call to Prober.Enumerate; none are mutated
// in place.
type Device struct {
	Path        string // opaque OS-specific identifier, e.g. "/dev/sda"
	Name        string
	Model       string
	Serial      string
	SizeBytes   uint64
	SectorSize  uint32
	Class       Class
	Capability  Capabilities
	NVMeSanicap uint8 // raw NVMe sanitize-capabilities bits, for Sanitize action selection
}

// ID returns the stable device identifier used in certificate derivation
// (spec: device_id). Path is already the stable OS identifier; Serial is
// folded in so that two devices that briefly share a path (e.g. device
// re-enumeration after a hotplug) don't collide.
func (d Device) ID() string {
	if d.Serial != "" {
		return fmt.Sprintf("%s:%s", d.Path, d.Serial)
	}
	return d.Path
}

func (d Device) String() string {
	return fmt.Sprintf("%s (%s, %s, %d bytes)", d.Path, d.Model, d.Class, d.SizeBytes)
}
