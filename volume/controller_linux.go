//go:build linux

package volume

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

// linuxBackend dismounts via umount(2) and acquires raw devices via an
// exclusive flock + O_DIRECT|O_SYNC open, sizing through BLKGETSIZE64 and
// write-protect status through BLKROGET. Grounded directly on
// other_examples' siderolabs-go-blockdevice blockdevice_linux.go (the
// Flock + BLKGETSIZE64 sequence) and canonical-snapd's udisks2 interface
// for the dismount step's shape.
type linuxBackend struct{}

// NewLinuxBackend constructs the real Linux Backend implementation.
func NewLinuxBackend() Backend { return &linuxBackend{} }

func (b *linuxBackend) MountedVolumes(ctx context.Context, devicePath string) ([]string, error) {
	f, err := os.Open("/proc/self/mountinfo")
	if err != nil {
		return nil, err
	}
	defer f.Close()

	devName := strings.TrimPrefix(devicePath, "/dev/")

	var mounts []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		dashIdx := -1
		for i, fl := range fields {
			if fl == "-" {
				dashIdx = i
				break
			}
		}
		if dashIdx < 0 || dashIdx+2 >= len(fields) {
			continue
		}
		source := fields[dashIdx+2]
		if strings.HasPrefix(strings.TrimPrefix(source, "/dev/"), devName) {
			mounts = append(mounts, fields[4])
		}
	}
	return mounts, nil
}

func (b *linuxBackend) LockAndDismount(ctx context.Context, mountPoint string) (func() error, error) {
	if err := unix.Unmount(mountPoint, unix.MNT_FORCE); err != nil {
		return nil, fmt.Errorf("unmount %s: %w", mountPoint, err)
	}
	// Nothing further to hold open once the unmount has succeeded; the
	// unlock function is a no-op retained for symmetry with platforms
	// (e.g. Windows) where the dismount lock is a live handle.
	return func() error { return nil }, nil
}

type linuxRawDevice struct {
	f *os.File
}

func (d *linuxRawDevice) WriteAt(buf []byte, off int64) (int, error) {
	return d.f.WriteAt(buf, off)
}

func (d *linuxRawDevice) Sync() error { return d.f.Sync() }

func (d *linuxRawDevice) Close() error { return d.f.Close() }

func (b *linuxBackend) OpenExclusive(ctx context.Context, devicePath string) (RawDevice, error) {
	f, err := os.OpenFile(devicePath, os.O_RDWR|unix.O_DIRECT|unix.O_SYNC, 0)
	if err != nil {
		return nil, err
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		return nil, fmt.Errorf("flock %s: %w", devicePath, err)
	}
	return &linuxRawDevice{f: f}, nil
}

func (b *linuxBackend) OpenShared(ctx context.Context, devicePath string) (RawDevice, error) {
	f, err := os.OpenFile(devicePath, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	return &linuxRawDevice{f: f}, nil
}

func (b *linuxBackend) Size(ctx context.Context, devicePath string) (uint64, uint32, error) {
	f, err := os.Open(devicePath)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	var size uint64
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), unix.BLKGETSIZE64,
		uintptr(unsafe.Pointer(&size))); errno != 0 {
		return 0, 0, errno
	}

	var sectorSize int
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), unix.BLKSSZGET,
		uintptr(unsafe.Pointer(&sectorSize))); errno != 0 || sectorSize <= 0 {
		sectorSize = 512
	}

	return size, uint32(sectorSize), nil
}

func (b *linuxBackend) WriteProtected(ctx context.Context, devicePath string) (bool, error) {
	f, err := os.Open(devicePath)
	if err != nil {
		return false, err
	}
	defer f.Close()

	var ro int
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), unix.BLKROGET,
		uintptr(unsafe.Pointer(&ro))); errno != 0 {
		return false, errno
	}
	return ro != 0, nil
}
