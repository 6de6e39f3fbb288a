package device

import (
	"context"
	"fmt"
)

// FakeBackend is an in-memory Backend used by the engine scenario tests
// (spec §8, §9 "tested exclusively against the fake"). It is importable by
// other packages' tests via NewFakeBackend.
type FakeBackend struct {
	Devices    []RawInfo
	BootPath   string
	ATA        map[string]ATAFeatures
	NVMe       map[string]NVMeFeatures
	ProbeError map[string]error
}

// NewFakeBackend returns an empty fake ready for Add* population.
func NewFakeBackend() *FakeBackend {
	return &FakeBackend{
		ATA:        map[string]ATAFeatures{},
		NVMe:       map[string]NVMeFeatures{},
		ProbeError: map[string]error{},
	}
}

func (f *FakeBackend) AddDevice(info RawInfo) *FakeBackend {
	f.Devices = append(f.Devices, info)
	return f
}

func (f *FakeBackend) WithATA(path string, feat ATAFeatures) *FakeBackend {
	f.ATA[path] = feat
	return f
}

func (f *FakeBackend) WithNVMe(path string, feat NVMeFeatures) *FakeBackend {
	f.NVMe[path] = feat
	return f
}

func (f *FakeBackend) List(ctx context.Context) ([]RawInfo, error) {
	return append([]RawInfo(nil), f.Devices...), nil
}

func (f *FakeBackend) BootDevicePath(ctx context.Context) (string, error) {
	return f.BootPath, nil
}

func (f *FakeBackend) ProbeATA(ctx context.Context, path string) (ATAFeatures, error) {
	if err, ok := f.ProbeError[path]; ok {
		return ATAFeatures{}, err
	}
	feat, ok := f.ATA[path]
	if !ok {
		return ATAFeatures{}, fmt.Errorf("fake: no ATA identify data for %s", path)
	}
	return feat, nil
}

func (f *FakeBackend) ProbeNVMe(ctx context.Context, path string) (NVMeFeatures, error) {
	if err, ok := f.ProbeError[path]; ok {
		return NVMeFeatures{}, err
	}
	feat, ok := f.NVMe[path]
	if !ok {
		return NVMeFeatures{}, fmt.Errorf("fake: no NVMe identify data for %s", path)
	}
	return feat, nil
}
