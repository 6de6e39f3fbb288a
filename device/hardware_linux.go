//go:build linux

package device

import (
	"fmt"
	"sync"

	"github.com/blockwipe/wipeattest/wipe"
)

// linuxHardwareBackend implements wipe.HardwareBackend over this package's
// ATA/NVMe passthrough primitives. ATA SECURITY ERASE UNIT and NVMe Format
// NVM complete synchronously inside the issuing ioctl (the drive holds the
// SG_IO/admin-command call open until done), so Issue* runs them on a
// background goroutine and the Done methods report on a small result map;
// NVMe Sanitize is asynchronous by spec (the admin command only starts it),
// so its progress is polled from the Sanitize Status log page directly.
type linuxHardwareBackend struct {
	mu      sync.Mutex
	pending map[string]*pendingOp
}

type pendingOp struct {
	done chan struct{}
	err  error
}

// NewLinuxHardwareBackend constructs the real Linux wipe.HardwareBackend.
func NewLinuxHardwareBackend() wipe.HardwareBackend {
	return &linuxHardwareBackend{pending: map[string]*pendingOp{}}
}

func (b *linuxHardwareBackend) IssueAtaSecureErase(path string, enhanced bool) error {
	dev, err := openATADevice(path)
	if err != nil {
		return err
	}

	op := &pendingOp{done: make(chan struct{})}
	b.mu.Lock()
	b.pending[path] = op
	b.mu.Unlock()

	go func() {
		defer dev.Close()
		defer close(op.done)
		op.err = dev.securityErase(enhanced)
	}()
	return nil
}

func (b *linuxHardwareBackend) AtaSecureEraseDone(path string) (bool, error) {
	return b.pollPending(path)
}

func (b *linuxHardwareBackend) IssueNvmeFormat(path string, lbaFormat uint8) error {
	dev, err := openNVMeDevice(path)
	if err != nil {
		return err
	}

	op := &pendingOp{done: make(chan struct{})}
	b.mu.Lock()
	b.pending[path] = op
	b.mu.Unlock()

	go func() {
		defer dev.Close()
		defer close(op.done)
		op.err = dev.formatNVM(lbaFormat)
	}()
	return nil
}

func (b *linuxHardwareBackend) NvmeFormatDone(path string) (bool, error) {
	return b.pollPending(path)
}

func (b *linuxHardwareBackend) pollPending(path string) (bool, error) {
	b.mu.Lock()
	op, ok := b.pending[path]
	b.mu.Unlock()
	if !ok {
		return false, fmt.Errorf("no pending operation for %s", path)
	}

	select {
	case <-op.done:
		b.mu.Lock()
		delete(b.pending, path)
		b.mu.Unlock()
		return true, op.err
	default:
		return false, nil
	}
}

func (b *linuxHardwareBackend) IssueNvmeSanitize(path string, action wipe.NvmeSanitizeAction) error {
	dev, err := openNVMeDevice(path)
	if err != nil {
		return err
	}
	defer dev.Close()
	return dev.sanitize(nvmeSanitizeActionFor(action))
}

func (b *linuxHardwareBackend) NvmeSanitizeProgress(path string) (percent int, done, failed bool, err error) {
	dev, err := openNVMeDevice(path)
	if err != nil {
		return 0, false, false, err
	}
	defer dev.Close()

	log, err := dev.sanitizeStatus()
	if err != nil {
		return 0, false, false, err
	}

	percent = int(uint32(log.SProg) * 100 / 65535)
	statusCode := log.SStat & 0x7
	switch statusCode {
	case 1:
		return 100, true, false, nil
	case 3:
		return percent, false, true, nil
	default:
		return percent, false, false, nil
	}
}

func nvmeSanitizeActionFor(action wipe.NvmeSanitizeAction) uint32 {
	switch action {
	case wipe.NvmeSanitizeBlockErase:
		return nvmeSanitizeActionBlockErase
	case wipe.NvmeSanitizeOverwrite:
		return nvmeSanitizeActionOverwrite
	default:
		return nvmeSanitizeActionCrypto
	}
}
