package volume

import "sync/atomic"

// RawDevice is the platform seam for an opened raw block device, acquired
// exclusively (or, in the ShareDegraded case, with shared access) by the
// Volume Controller. One concrete implementation per OS plus an in-memory
// fake for tests (spec §9 "Polymorphism over device backends").
type RawDevice interface {
	WriteAt(buf []byte, off int64) (int, error)
	Sync() error
	Close() error
}

// Handle is the move-only WipeHandle from spec §3: an opaque token
// representing exclusive ownership of a raw device by the engine.
// Destruction is infallible and idempotent (spec §4.2), guarded by an
// atomic so concurrent Close calls from a cancellation path and a normal
// completion path can never double-release OS resources.
type Handle struct {
	device       RawDevice
	lockedMounts []lockedMount
	sizeBytes    uint64
	sectorSize   uint32
	shareDegraded bool
	closed       int32
}

// lockedMount is one dismounted+locked logical volume held for the
// lifetime of the Handle (spec §4.2: "retain locks until the engine
// closes").
type lockedMount struct {
	path   string
	unlock func() error
}

func newHandle(dev RawDevice, size uint64, sectorSize uint32, mounts []lockedMount, shareDegraded bool) *Handle {
	return &Handle{
		device:        dev,
		lockedMounts:  mounts,
		sizeBytes:     size,
		sectorSize:    sectorSize,
		shareDegraded: shareDegraded,
	}
}

// SizeBytes returns the device length as obtained via the platform's
// explicit disk-length query (never a generic file-size call — spec §9
// open question, resolved: GetFileSize-equivalents are unreliable for raw
// devices).
func (h *Handle) SizeBytes() uint64 { return h.sizeBytes }

// SectorSize returns the device's physical sector size.
func (h *Handle) SectorSize() uint32 { return h.sectorSize }

// ShareDegraded reports whether exclusive access could not be obtained and
// the Handle instead holds a shared-write handle (spec §4.2).
func (h *Handle) ShareDegraded() bool { return h.shareDegraded }

// WriteAt writes buf at the given byte offset.
func (h *Handle) WriteAt(buf []byte, off int64) (int, error) {
	return h.device.WriteAt(buf, off)
}

// Sync flushes any buffered writes to the device.
func (h *Handle) Sync() error {
	return h.device.Sync()
}

// Close releases all OS resources held by the Handle: unlocks and closes
// every dismounted volume, then closes the raw device handle. Infallible
// and idempotent, per spec §3/§4.2.
func (h *Handle) Close() {
	if !atomic.CompareAndSwapInt32(&h.closed, 0, 1) {
		return
	}
	for _, m := range h.lockedMounts {
		_ = m.unlock()
	}
	_ = h.device.Close()
}
