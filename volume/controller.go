package volume

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Backend is the platform seam for mounted-volume discovery, dismounting,
// and raw device acquisition. One concrete implementation per OS
// (controller_linux.go) and an in-memory fake for tests.
type Backend interface {
	// MountedVolumes returns the mount points of every logical volume
	// backed by devicePath.
	MountedVolumes(ctx context.Context, devicePath string) ([]string, error)

	// LockAndDismount locks and dismounts one mounted volume, returning an
	// unlock function retained for the lifetime of the Handle.
	LockAndDismount(ctx context.Context, mountPoint string) (unlock func() error, err error)

	// OpenExclusive opens devicePath for exclusive, unbuffered,
	// write-through access.
	OpenExclusive(ctx context.Context, devicePath string) (RawDevice, error)

	// OpenShared opens devicePath for ordinary (non-exclusive) read-write
	// access, used as the ShareDegraded fallback.
	OpenShared(ctx context.Context, devicePath string) (RawDevice, error)

	// Size returns the device length via the platform's explicit
	// disk-length query, and its physical sector size.
	Size(ctx context.Context, devicePath string) (sizeBytes uint64, sectorSize uint32, err error)

	// WriteProtected issues a writable-query control code against the
	// already-opened device.
	WriteProtected(ctx context.Context, devicePath string) (bool, error)
}

// Controller is the Volume Controller (C2): for a chosen physical device it
// locates and dismounts mounted logical volumes, then acquires an
// exclusive raw handle.
type Controller struct {
	backend Backend
	log     *zap.SugaredLogger
}

// NewController constructs a Controller over the given Backend.
func NewController(backend Backend, log *zap.SugaredLogger) *Controller {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Controller{backend: backend, log: log}
}

// Acquire dismounts every logical volume backed by devicePath and returns
// an exclusive WipeHandle, per spec §4.2.
func (c *Controller) Acquire(ctx context.Context, devicePath string) (*Handle, error) {
	mounts, err := c.backend.MountedVolumes(ctx, devicePath)
	if err != nil {
		return nil, fmt.Errorf("list mounted volumes: %w", err)
	}

	locked := make([]lockedMount, 0, len(mounts))
	for _, m := range mounts {
		unlock, err := c.backend.LockAndDismount(ctx, m)
		if err != nil {
			// Unwind whatever we already locked before failing.
			for _, l := range locked {
				_ = l.unlock()
			}
			return nil, fmt.Errorf("%w: dismount %s: %v", ErrDeviceBusy, m, err)
		}
		locked = append(locked, lockedMount{path: m, unlock: unlock})
	}

	shareDegraded := false
	dev, err := c.backend.OpenExclusive(ctx, devicePath)
	if err != nil {
		c.log.Warnw("exclusive open failed, falling back to shared access",
			"path", devicePath, "error", err)
		dev, err = c.backend.OpenShared(ctx, devicePath)
		if err != nil {
			for _, l := range locked {
				_ = l.unlock()
			}
			return nil, fmt.Errorf("%w: %v", ErrAccessDenied, err)
		}
		shareDegraded = true
		c.log.Warnw("wipe proceeding with shared (non-exclusive) device access; "+
			"data integrity of concurrent readers is not guaranteed", "path", devicePath)
	}

	wp, err := c.backend.WriteProtected(ctx, devicePath)
	if err == nil && wp {
		_ = dev.Close()
		for _, l := range locked {
			_ = l.unlock()
		}
		return nil, ErrWriteProtected
	}

	size, sectorSize, err := c.backend.Size(ctx, devicePath)
	if err != nil {
		_ = dev.Close()
		for _, l := range locked {
			_ = l.unlock()
		}
		return nil, fmt.Errorf("%w: query size: %v", ErrDeviceVanished, err)
	}

	return newHandle(dev, size, sectorSize, locked, shareDegraded), nil
}
