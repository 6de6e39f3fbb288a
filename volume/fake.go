package volume

import (
	"context"
	"fmt"
)

// FakeBackend is an in-memory Backend used by the wipe and engine
// scenario tests. DeviceBuf is the backing byte slice written to by the
// Pattern Writer; tests assert against its final contents directly.
type FakeBackend struct {
	Mounts        map[string][]string
	DismountError map[string]error
	OpenError     error
	WriteProtect  bool
	DeviceBuf     map[string]*[]byte
	SectorSizes   map[string]uint32
}

// NewFakeBackend returns an empty fake ready for population.
func NewFakeBackend() *FakeBackend {
	return &FakeBackend{
		Mounts:        map[string][]string{},
		DismountError: map[string]error{},
		DeviceBuf:     map[string]*[]byte{},
		SectorSizes:   map[string]uint32{},
	}
}

// AddDevice registers a devicePath with a backing buffer of sizeBytes,
// conceptually matching spec §8 scenario fixtures ("in-memory fake,
// size_bytes = 8 MiB").
func (f *FakeBackend) AddDevice(devicePath string, sizeBytes uint64, sectorSize uint32) *FakeBackend {
	buf := make([]byte, sizeBytes)
	f.DeviceBuf[devicePath] = &buf
	f.SectorSizes[devicePath] = sectorSize
	return f
}

func (f *FakeBackend) MountedVolumes(ctx context.Context, devicePath string) ([]string, error) {
	return f.Mounts[devicePath], nil
}

func (f *FakeBackend) LockAndDismount(ctx context.Context, mountPoint string) (func() error, error) {
	if err, ok := f.DismountError[mountPoint]; ok {
		return nil, err
	}
	return func() error { return nil }, nil
}

func (f *FakeBackend) OpenExclusive(ctx context.Context, devicePath string) (RawDevice, error) {
	if f.OpenError != nil {
		return nil, f.OpenError
	}
	buf, ok := f.DeviceBuf[devicePath]
	if !ok {
		return nil, fmt.Errorf("fake: unknown device %s", devicePath)
	}
	return &fakeRawDevice{buf: buf}, nil
}

func (f *FakeBackend) OpenShared(ctx context.Context, devicePath string) (RawDevice, error) {
	return f.OpenExclusive(ctx, devicePath)
}

func (f *FakeBackend) Size(ctx context.Context, devicePath string) (uint64, uint32, error) {
	buf, ok := f.DeviceBuf[devicePath]
	if !ok {
		return 0, 0, fmt.Errorf("fake: unknown device %s", devicePath)
	}
	return uint64(len(*buf)), f.SectorSizes[devicePath], nil
}

func (f *FakeBackend) WriteProtected(ctx context.Context, devicePath string) (bool, error) {
	return f.WriteProtect, nil
}

// fakeRawDevice is an in-memory RawDevice writing into a shared []byte.
type fakeRawDevice struct {
	buf *[]byte
}

func (d *fakeRawDevice) WriteAt(p []byte, off int64) (int, error) {
	b := *d.buf
	if off < 0 || off > int64(len(b)) {
		return 0, fmt.Errorf("fake: write offset %d out of range (len %d)", off, len(b))
	}
	n := copy(b[off:], p)
	return n, nil
}

func (d *fakeRawDevice) Sync() error { return nil }

func (d *fakeRawDevice) Close() error { return nil }
