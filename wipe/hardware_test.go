package wipe

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var errIssueFailed = errors.New("vendor command rejected")

type recordingSink struct {
	events []Event
}

func (s *recordingSink) Send(e Event) { s.events = append(s.events, e) }

func TestDispatcher_RefusesSystemDevice(t *testing.T) {
	backend := NewFakeHardwareBackend()
	d := NewDispatcher(backend)
	d.PollInterval = time.Millisecond

	err := d.Dispatch("/dev/sda", true, false, NewAtaSecureErase(false), NewCancelSignal(), &recordingSink{})
	require.ErrorIs(t, err, ErrRefusedSystemDevice)
}

func TestDispatcher_RefusesFrozenDrive(t *testing.T) {
	backend := NewFakeHardwareBackend()
	d := NewDispatcher(backend)
	d.PollInterval = time.Millisecond

	err := d.Dispatch("/dev/sdz", false, true, NewAtaSecureErase(false), NewCancelSignal(), &recordingSink{})
	require.ErrorIs(t, err, ErrDriveFrozen)
	require.Equal(t, 0, backend.polls, "no vendor command should be issued on a frozen drive")
}

func TestDispatcher_AtaSecureErase_CompletesAfterPolling(t *testing.T) {
	backend := NewFakeHardwareBackend()
	backend.PollCountToDone = 3
	d := NewDispatcher(backend)
	d.PollInterval = time.Millisecond

	sink := &recordingSink{}
	err := d.Dispatch("/dev/sdz", false, false, NewAtaSecureErase(true), NewCancelSignal(), sink)
	require.NoError(t, err)
	require.NotEmpty(t, sink.events)
}

func TestDispatcher_NvmeSanitize_ReportsFailure(t *testing.T) {
	backend := NewFakeHardwareBackend()
	backend.FailAfterPolls = 1
	d := NewDispatcher(backend)
	d.PollInterval = time.Millisecond

	err := d.Dispatch("/dev/nvme0n1", false, false, NewNvmeSanitize(NvmeSanitizeBlockErase), NewCancelSignal(), &recordingSink{})
	require.Error(t, err)
	var hwErr *HardwareSanitizeFailedError
	require.ErrorAs(t, err, &hwErr)
}

func TestDispatcher_IssueError_Propagates(t *testing.T) {
	backend := NewFakeHardwareBackend()
	backend.IssueError = errIssueFailed
	d := NewDispatcher(backend)
	d.PollInterval = time.Millisecond

	err := d.Dispatch("/dev/sdz", false, false, NewAtaSecureErase(false), NewCancelSignal(), &recordingSink{})
	var hwErr *HardwareSanitizeFailedError
	require.ErrorAs(t, err, &hwErr)
	require.ErrorIs(t, hwErr.Underlying, errIssueFailed)
}

func TestDispatcher_Cancellation_StopsPolling(t *testing.T) {
	backend := NewFakeHardwareBackend()
	backend.PollCountToDone = 1_000_000
	d := NewDispatcher(backend)
	d.PollInterval = time.Millisecond

	cancel := NewCancelSignal()
	cancel.Cancel()

	sink := &recordingSink{}
	err := d.Dispatch("/dev/nvme0n1", false, false, NewNvmeSanitize(NvmeSanitizeCrypto), cancel, sink)
	require.NoError(t, err)
}

func TestDispatcher_TimeoutFor_AtaEstimate(t *testing.T) {
	d := NewDispatcher(NewFakeHardwareBackend())
	d.EstimateSeconds = 100
	got := d.timeoutFor(NewAtaSecureErase(false))
	require.Equal(t, 150*time.Second, got)

	d.EstimateSeconds = 100_000
	got = d.timeoutFor(NewAtaSecureErase(false))
	require.Equal(t, 6*time.Hour, got)
}
