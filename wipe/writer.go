package wipe

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/blockwipe/wipeattest/volume"
)

const defaultBufferSize = 1 << 20 // 1 MiB, per spec §4.3

// retryBackoff is the exponential backoff schedule for transient
// (EAGAIN-class) write errors, per spec §4.3.
var retryBackoff = []time.Duration{10 * time.Millisecond, 40 * time.Millisecond, 160 * time.Millisecond}

// WriteFailedError is a permanent I/O error mid-wipe, per spec §7.
type WriteFailedError struct {
	Offset     uint64
	Underlying error
}

func (e *WriteFailedError) Error() string {
	return fmt.Sprintf("write failed at offset %d: %v", e.Offset, e.Underlying)
}

func (e *WriteFailedError) Unwrap() error { return e.Underlying }

// TransientErrorClassifier reports whether err should be retried per the
// backoff schedule rather than treated as permanent. The fake backend
// never produces transient errors; a real backend's classifier inspects
// syscall.Errno for EAGAIN/EINTR/EBUSY.
type TransientErrorClassifier func(err error) bool

// Writer is the Pattern Writer (C3): given an exclusive handle and a pass
// plan, streams overwrite patterns sector-aligned, honoring cancellation
// and emitting throttled progress.
type Writer struct {
	BufferSize int
	IsTransient TransientErrorClassifier
}

// NewWriter returns a Writer with the default 1 MiB buffer and a
// classifier that treats no error as transient (safe default; callers on
// a real backend should supply one recognizing EAGAIN-class errno values).
func NewWriter() *Writer {
	return &Writer{BufferSize: defaultBufferSize, IsTransient: func(error) bool { return false }}
}

// Run executes plan against h, honoring cancel and streaming progress to
// sink, per spec §4.3. It returns the number of fully completed passes and
// an error if a permanent write failure interrupted the plan before
// completion. Cancellation is not itself reported as an error: Run returns
// a nil error and callers distinguish it via cancel.Cancelled().
func (w *Writer) Run(h *volume.Handle, plan PassPlan, cancel *CancelSignal, sink Sink) (passesCompleted int, err error) {
	bufSize := w.BufferSize
	if bufSize <= 0 {
		bufSize = defaultBufferSize
	}

	sectorSize := int(h.SectorSize())
	if sectorSize <= 0 {
		sectorSize = 512
	}
	bufSize = roundDown(bufSize, sectorSize)
	if bufSize == 0 {
		bufSize = sectorSize
	}

	total := h.SizeBytes()
	start := time.Now()
	throttle := NewThrottle(len(plan), total)

	for passIdx, spec := range plan {
		buf := make([]byte, bufSize)
		if err := fillBuffer(buf, spec); err != nil {
			return passesCompleted, err
		}

		var bytesDone uint64
		for bytesDone < total {
			if cancel.Cancelled() {
				sink.Send(Event{
					PassIndex: passIdx, PassTotal: len(plan),
					BytesDone: bytesDone, BytesTotal: total,
					Phase: PhaseWriting, Message: "cancelled",
					Elapsed: time.Since(start),
				})
				return passesCompleted, nil
			}

			remaining := total - bytesDone
			chunk := uint64(bufSize)
			if remaining < chunk {
				// Final chunk: round up to a whole sector, per spec §4.3
				// ("overwriting up to one sector past logical end is
				// permitted").
				chunk = roundUp64(remaining, uint64(sectorSize))
				if chunk > uint64(len(buf)) {
					chunk = uint64(len(buf))
				}
			}

			if err := w.writeWithRetry(h, buf[:chunk], int64(bytesDone)); err != nil {
				return passesCompleted, &WriteFailedError{Offset: bytesDone, Underlying: err}
			}

			bytesDone += chunk
			if bytesDone > total {
				bytesDone = total
			}

			if throttle.ShouldEmit(passIdx, bytesDone, bytesDone >= total) {
				sink.Send(Event{
					PassIndex: passIdx, PassTotal: len(plan),
					BytesDone: bytesDone, BytesTotal: total,
					Phase: PhaseWriting, Elapsed: time.Since(start),
				})
			}
		}

		passesCompleted++
	}

	return passesCompleted, nil
}

func (w *Writer) writeWithRetry(h *volume.Handle, buf []byte, offset int64) error {
	var lastErr error
	attempts := append([]time.Duration{0}, retryBackoff...)
	for _, delay := range attempts {
		if delay > 0 {
			time.Sleep(delay)
		}
		_, err := h.WriteAt(buf, offset)
		if err == nil {
			return nil
		}
		lastErr = err
		if !w.IsTransient(err) {
			return err
		}
	}
	return lastErr
}

func fillBuffer(buf []byte, spec PassSpec) error {
	switch spec.Kind {
	case PassZeros:
		for i := range buf {
			buf[i] = 0x00
		}
	case PassOnes:
		for i := range buf {
			buf[i] = 0xFF
		}
	case PassRandomStream:
		fillDeterministicRandom(buf, spec.Seed)
	case PassFixedPattern:
		if len(spec.Pattern) == 0 {
			return fmt.Errorf("fixed pattern pass has no bytes")
		}
		for i := range buf {
			buf[i] = spec.Pattern[i%len(spec.Pattern)]
		}
	default:
		return fmt.Errorf("unknown pass kind %d", spec.Kind)
	}
	return nil
}

// fillDeterministicRandom fills buf with a reproducible byte stream derived
// from seed, per spec §4.3 ("seed only used to make tests reproducible in
// test mode"). Production callers that do not need reproducibility may
// still use this deterministic stream — spec §3 defines RandomStream(seed)
// as the only RandomStream variant, with no separate non-seeded form.
func fillDeterministicRandom(buf []byte, seed uint64) {
	state := seed
	if state == 0 {
		state = 0x9E3779B97F4A7C15
	}
	for i := 0; i < len(buf); i += 8 {
		state = splitmix64(state)
		for j := 0; j < 8 && i+j < len(buf); j++ {
			buf[i+j] = byte(state >> (8 * j))
		}
	}
}

func splitmix64(x uint64) uint64 {
	x += 0x9E3779B97F4A7C15
	z := x
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

// secureRandomSeed draws a fresh seed from the OS CSPRNG, used when a
// caller wants a non-reproducible RandomStream pass outside test mode.
func secureRandomSeed() (uint64, error) {
	n, err := rand.Int(rand.Reader, new(big.Int).SetUint64(^uint64(0)))
	if err != nil {
		return 0, err
	}
	return n.Uint64(), nil
}

func roundDown(v, multiple int) int {
	if multiple <= 0 {
		return v
	}
	return (v / multiple) * multiple
}

func roundUp64(v, multiple uint64) uint64 {
	if multiple == 0 {
		return v
	}
	rem := v % multiple
	if rem == 0 {
		return v
	}
	return v + (multiple - rem)
}
