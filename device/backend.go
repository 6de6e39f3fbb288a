package device

import "context"

// RawInfo is what a Backend can learn about one candidate block device
// before classification and capability probing are applied. It is the
// seam between platform-specific discovery (sysfs/lsblk on Linux) and the
// platform-independent classification in classify.go.
type RawInfo struct {
	Path       string
	Name       string
	Model      string
	Serial     string
	SizeBytes  uint64
	SectorSize uint32
	Transport  string // "nvme", "usb", "sata", "scsi", "unknown"
	Removable  bool
	Rotational bool
}

// Backend is the platform seam for device discovery and probing. Exactly
// one concrete implementation exists per OS (backend_linux.go); a second,
// in-memory implementation (fake.go) is used exclusively by tests, per
// spec §9 ("Classification and method selection are platform-independent
// and tested exclusively against the fake").
type Backend interface {
	// List returns every physical block device visible to the host,
	// before boot-device filtering or classification.
	List(ctx context.Context) ([]RawInfo, error)

	// BootDevicePath returns the stable path of the physical device
	// hosting the OS root filesystem.
	BootDevicePath(ctx context.Context) (string, error)

	// ProbeATA issues an ATA IDENTIFY DEVICE and returns the parsed result.
	// A probe failure is non-fatal to enumeration; callers treat an error
	// as "flags remain false".
	ProbeATA(ctx context.Context, path string) (ATAFeatures, error)

	// ProbeNVMe returns the Identify Controller OACS/Sanicap bits needed
	// to populate NVMe capability flags.
	ProbeNVMe(ctx context.Context, path string) (NVMeFeatures, error)
}

// NVMeFeatures is the parsed result of an NVMe Identify Controller probe.
type NVMeFeatures struct {
	SupportsFormatNVM   bool
	SupportsSanitize    bool
	SanitizeCryptoErase bool
	SanitizeBlockErase  bool
	SanitizeOverwrite   bool
}
