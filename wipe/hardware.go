package wipe

import (
	"errors"
	"fmt"
	"time"
)

// ErrDriveFrozen is returned when a hardware sanitize method is attempted
// against a drive reporting the ATA frozen-lock bit, per spec §4.4.
var ErrDriveFrozen = errors.New("wipe: drive frozen, power-cycle required")

// ErrRefusedSystemDevice is returned when a hardware sanitize method is
// attempted against the system/boot device, per spec §4.4 ("Refuse on the
// system device unconditionally").
var ErrRefusedSystemDevice = errors.New("wipe: hardware sanitize refused on system device")

// HardwareSanitizeFailedError wraps a vendor-command failure or timeout,
// per spec §7. The dispatcher never falls back to software on this error;
// SPEC_FULL §5 requires the controller to opt in explicitly.
type HardwareSanitizeFailedError struct {
	Underlying error
}

func (e *HardwareSanitizeFailedError) Error() string {
	return fmt.Sprintf("hardware sanitize failed: %v", e.Underlying)
}

func (e *HardwareSanitizeFailedError) Unwrap() error { return e.Underlying }

// HardwareState is the Idle→Issuing→Polling→Completed/Failed state machine
// from spec §4.4.
type HardwareState int

const (
	HWIdle HardwareState = iota
	HWIssuing
	HWPolling
	HWCompleted
	HWFailed
)

// HardwareBackend is the platform seam for vendor sanitize commands and
// their completion polling. One concrete implementation per OS, built on
// top of the device package's ATA/NVMe passthrough primitives, plus an
// in-memory fake for tests.
type HardwareBackend interface {
	IssueAtaSecureErase(path string, enhanced bool) error
	AtaSecureEraseDone(path string) (done bool, err error)

	IssueNvmeFormat(path string, lbaFormat uint8) error
	NvmeFormatDone(path string) (done bool, err error)

	IssueNvmeSanitize(path string, action NvmeSanitizeAction) error
	// NvmeSanitizeProgress returns a 0-100 percent-complete value, whether
	// the operation has finished, and whether it failed.
	NvmeSanitizeProgress(path string) (percent int, done bool, failed bool, err error)
}

// Dispatcher is the Hardware Sanitize Dispatcher (C4).
type Dispatcher struct {
	backend HardwareBackend
	// PollInterval controls how often NvmeSanitizeProgress/AtaSecureEraseDone
	// are polled; defaults to 2s when zero.
	PollInterval time.Duration
	// EstimateSeconds is the drive-reported time estimate used for the ATA
	// Secure Erase timeout (spec §4.4: "drive-reported estimate x 1.5
	// capped at 6 hours"). Zero means "unknown", in which case the 6 hour
	// cap alone bounds the poll.
	EstimateSeconds int
}

// NewDispatcher constructs a Dispatcher over the given HardwareBackend.
func NewDispatcher(backend HardwareBackend) *Dispatcher {
	return &Dispatcher{backend: backend, PollInterval: 2 * time.Second}
}

// Dispatch issues and polls a hardware sanitize method, per spec §4.4.
func (d *Dispatcher) Dispatch(path string, isSystem, frozen bool, method Method, cancel *CancelSignal, sink Sink) error {
	if isSystem {
		return ErrRefusedSystemDevice
	}
	if frozen {
		return ErrDriveFrozen
	}

	start := time.Now()
	state := HWIssuing
	_ = state // local bookkeeping only; Dispatch does not expose the state
	sink.Send(Event{Phase: PhasePreparing, Message: "issuing " + method.CanonicalName()})

	if err := d.issue(path, method); err != nil {
		return &HardwareSanitizeFailedError{Underlying: err}
	}

	state = HWPolling
	timeout := d.timeoutFor(method)
	interval := d.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}

	for {
		if cancel.Cancelled() {
			// Cooperative cancellation of a hardware command means
			// ceasing to poll; the vendor command itself may continue
			// running on the drive outside engine control.
			sink.Send(Event{Phase: PhaseWriting, Message: "cancelled (vendor command may still be running)",
				Elapsed: time.Since(start)})
			return nil
		}

		done, failed, percent, err := d.poll(path, method)
		if err != nil {
			state = HWFailed
			return &HardwareSanitizeFailedError{Underlying: err}
		}
		if failed {
			state = HWFailed
			return &HardwareSanitizeFailedError{Underlying: fmt.Errorf("drive reported sanitize failure")}
		}

		sink.Send(Event{
			Phase:   PhaseWriting,
			Message: fmt.Sprintf("%s: %d%%", method.CanonicalName(), percent),
			Elapsed: time.Since(start),
		})

		if done {
			state = HWCompleted
			return nil
		}

		if time.Since(start) > timeout {
			state = HWFailed
			return &HardwareSanitizeFailedError{Underlying: fmt.Errorf("timed out after %s", timeout)}
		}

		time.Sleep(interval)
	}
}

func (d *Dispatcher) issue(path string, method Method) error {
	switch method.Kind {
	case MethodAtaSecureErase:
		return d.backend.IssueAtaSecureErase(path, method.Enhanced)
	case MethodNvmeFormat:
		return d.backend.IssueNvmeFormat(path, method.LBAFormat)
	case MethodNvmeSanitize:
		return d.backend.IssueNvmeSanitize(path, method.SanitizeAction)
	default:
		return fmt.Errorf("not a hardware method: %v", method.Kind)
	}
}

func (d *Dispatcher) poll(path string, method Method) (done, failed bool, percent int, err error) {
	switch method.Kind {
	case MethodAtaSecureErase:
		done, err = d.backend.AtaSecureEraseDone(path)
		if done {
			percent = 100
		}
		return done, false, percent, err
	case MethodNvmeFormat:
		done, err = d.backend.NvmeFormatDone(path)
		if done {
			percent = 100
		}
		return done, false, percent, err
	case MethodNvmeSanitize:
		percent, done, failed, err = d.backend.NvmeSanitizeProgress(path)
		return done, failed, percent, err
	default:
		return false, true, 0, fmt.Errorf("not a hardware method: %v", method.Kind)
	}
}

func (d *Dispatcher) timeoutFor(method Method) time.Duration {
	const cap6h = 6 * time.Hour
	switch method.Kind {
	case MethodAtaSecureErase:
		if d.EstimateSeconds <= 0 {
			return cap6h
		}
		est := time.Duration(float64(d.EstimateSeconds)*1.5) * time.Second
		if est > cap6h {
			return cap6h
		}
		return est
	default:
		return cap6h
	}
}
