package engine

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/blockwipe/wipeattest/attestation"
	"github.com/blockwipe/wipeattest/device"
	"github.com/blockwipe/wipeattest/drivedb"
	"github.com/blockwipe/wipeattest/volume"
	"github.com/blockwipe/wipeattest/wipe"
)

// Engine wires the Capability Prober, Volume Controller, Pattern Writer,
// Hardware Sanitize Dispatcher, and Attestation Builder into the
// five-operation worker API from spec §6. It starts no goroutine of its
// own: BeginWipe runs on whichever goroutine calls it, and the UI or
// controller interacts with an in-flight wipe solely through the progress
// sink and cancel signal it was handed.
type Engine struct {
	cfg EngineConfig
	log *zap.SugaredLogger

	prober     *device.Prober
	volumes    *volume.Controller
	hwBackend  wipe.HardwareBackend
	builder    *attestation.Builder
	store      *attestation.Store
}

// NewEngine constructs an Engine from cfg. deviceBackend, volumeBackend and
// hwBackend are platform seams supplied by the caller (real Linux
// implementations in production, fakes in tests) — spec §9 "Polymorphism
// over device backends".
func NewEngine(cfg EngineConfig, deviceBackend device.Backend, volumeBackend volume.Backend, hwBackend wipe.HardwareBackend, log *zap.SugaredLogger) (*Engine, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	var db *drivedb.DB
	if cfg.DriveDBPath != "" {
		loaded, err := drivedb.LoadOptional(cfg.DriveDBPath)
		if err != nil {
			return nil, fmt.Errorf("load drive database: %w", err)
		}
		db = loaded
	}

	store, err := attestation.NewStore(cfg.CertDir)
	if err != nil {
		return nil, err
	}

	return &Engine{
		cfg:       cfg,
		log:       log,
		prober:    device.NewProber(deviceBackend, db, log),
		volumes:   volume.NewController(volumeBackend, log),
		hwBackend: hwBackend,
		builder:   attestation.NewBuilder(cfg.KeyDir, log),
		store:     store,
	}, nil
}

// EnumerateDevices is worker-API operation 1: enumerate_devices().
func (e *Engine) EnumerateDevices(ctx context.Context) ([]device.Device, error) {
	return e.prober.Enumerate(ctx)
}

// RecommendMethod is worker-API operation 2: recommend_method(device).
func (e *Engine) RecommendMethod(d device.Device) (wipe.Method, string) {
	return e.prober.RecommendMethod(d)
}

// BeginWipe is worker-API operation 3: begin_wipe(device, method, cancel,
// progress_sink) -> WipeResult. It blocks on the calling goroutine — the
// caller is expected to invoke it from a dedicated goroutine when run
// alongside a UI, per spec §5.
func (e *Engine) BeginWipe(ctx context.Context, d device.Device, method wipe.Method, cancel *wipe.CancelSignal, sink wipe.Sink) wipe.Result {
	opID := uuid.NewString()
	snapshot := wipe.DeviceSnapshot{
		Path: d.Path, Name: d.Name, Model: d.Model, Serial: d.Serial,
		SizeBytes: d.SizeBytes, SectorSize: d.SectorSize, Class: d.Class.String(),
	}

	start := time.Now()
	e.log.Infow("begin_wipe", "operation_id", opID, "device", d.Path, "method", method.CanonicalName())

	if cancel.Cancelled() {
		return wipe.Result{
			OperationID: opID, DeviceSnapshot: snapshot, Method: method,
			Start: start, End: time.Now(),
			Status: wipe.StatusCancelled,
		}
	}

	if method.IsHardware() {
		return e.beginHardwareWipe(ctx, d, snapshot, method, cancel, sink, start, opID)
	}
	return e.beginSoftwareWipe(ctx, d, snapshot, method, cancel, sink, start, opID)
}

func (e *Engine) beginSoftwareWipe(ctx context.Context, d device.Device, snapshot wipe.DeviceSnapshot, method wipe.Method, cancel *wipe.CancelSignal, sink wipe.Sink, start time.Time, opID string) wipe.Result {
	handle, err := e.volumes.Acquire(ctx, d.Path)
	if err != nil {
		return wipe.Result{
			OperationID: opID, DeviceSnapshot: snapshot, Method: method,
			Start: start, End: time.Now(),
			Status: wipe.StatusFailed, FailureKind: classifyVolumeError(err),
			FailureDetail: err.Error(),
		}
	}
	defer handle.Close()

	plan, err := wipe.RandomizeSeeds(wipe.BuildPassPlan(method))
	if err != nil {
		return wipe.Result{
			OperationID: opID, DeviceSnapshot: snapshot, Method: method,
			Start: start, End: time.Now(),
			Status: wipe.StatusFailed, FailureKind: wipe.FailureWriteFailed,
			FailureDetail: err.Error(),
		}
	}
	w := wipe.NewWriter()
	w.IsTransient = func(err error) bool {
		return errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EINTR) || errors.Is(err, syscall.EBUSY)
	}
	if e.cfg.BufferSize > 0 {
		w.BufferSize = e.cfg.BufferSize
	}

	passes, err := w.Run(handle, plan, cancel, sink)
	end := time.Now()

	if err != nil {
		return wipe.Result{
			OperationID: opID, DeviceSnapshot: snapshot, Method: method, PlanExecuted: plan,
			Start: start, End: end, PassesCompleted: passes,
			Status: wipe.StatusFailed, FailureKind: wipe.FailureWriteFailed,
			FailureDetail: err.Error(), ShareDegraded: handle.ShareDegraded(),
		}
	}

	if cancel.Cancelled() {
		return wipe.Result{
			OperationID: opID, DeviceSnapshot: snapshot, Method: method, PlanExecuted: plan,
			Start: start, End: end, PassesCompleted: passes,
			Status: wipe.StatusCancelled, ShareDegraded: handle.ShareDegraded(),
		}
	}

	return wipe.Result{
		OperationID: opID, DeviceSnapshot: snapshot, Method: method, PlanExecuted: plan,
		Start: start, End: end, PassesCompleted: passes,
		Status: wipe.StatusCompleted, ShareDegraded: handle.ShareDegraded(),
	}
}

func (e *Engine) beginHardwareWipe(ctx context.Context, d device.Device, snapshot wipe.DeviceSnapshot, method wipe.Method, cancel *wipe.CancelSignal, sink wipe.Sink, start time.Time, opID string) wipe.Result {
	dispatcher := wipe.NewDispatcher(e.hwBackend)
	if e.cfg.PollInterval != "" {
		if d2, err := time.ParseDuration(e.cfg.PollInterval); err == nil {
			dispatcher.PollInterval = d2
		}
	}

	err := dispatcher.Dispatch(d.Path, d.Capability.IsSystem, d.Capability.Frozen, method, cancel, sink)
	end := time.Now()

	if err != nil {
		switch err {
		case wipe.ErrRefusedSystemDevice:
			return failedResult(opID, snapshot, method, start, "")
		case wipe.ErrDriveFrozen:
			return wipe.Result{
				OperationID: opID, DeviceSnapshot: snapshot, Method: method,
				Start: start, End: end,
				Status: wipe.StatusFailed, FailureKind: wipe.FailureDriveFrozen,
				FailureDetail: err.Error(),
			}
		default:
			return wipe.Result{
				OperationID: opID, DeviceSnapshot: snapshot, Method: method,
				Start: start, End: end,
				Status: wipe.StatusFailed, FailureKind: wipe.FailureHardwareSanitizeFailed,
				FailureDetail: err.Error(),
			}
		}
	}

	if cancel.Cancelled() {
		return wipe.Result{
			OperationID: opID, DeviceSnapshot: snapshot, Method: method,
			Start: start, End: end, Status: wipe.StatusCancelled,
		}
	}

	return wipe.Result{
		OperationID: opID, DeviceSnapshot: snapshot, Method: method,
		Start: start, End: end, PassesCompleted: 1,
		Status: wipe.StatusCompleted,
	}
}

// BuildCertificate is worker-API operation 4:
// build_certificate(result, operator) -> SignedCertificate | error.
func (e *Engine) BuildCertificate(result wipe.Result, operator attestation.OperatorIdentity) (*attestation.SignedCertificate, error) {
	sc, err := e.builder.Build(result, operator)
	if err != nil {
		return nil, err
	}
	if _, err := e.store.Save(*sc); err != nil {
		return nil, fmt.Errorf("persist certificate: %w", err)
	}
	return sc, nil
}

// VerifyCertificate is worker-API operation 5:
// verify_certificate(signed_cert) -> Ok | SignatureInvalid.
func (e *Engine) VerifyCertificate(sc attestation.SignedCertificate) error {
	return attestation.Verify(sc)
}

func failedResult(opID string, snapshot wipe.DeviceSnapshot, method wipe.Method, start time.Time, detail string) wipe.Result {
	return wipe.Result{
		OperationID: opID, DeviceSnapshot: snapshot, Method: method,
		Start: start, End: time.Now(),
		Status: wipe.StatusFailed, FailureKind: wipe.FailureAccessDenied,
		FailureDetail: detail,
	}
}

func classifyVolumeError(err error) wipe.FailureKind {
	switch {
	case errors.Is(err, volume.ErrDeviceBusy):
		return wipe.FailureDeviceBusy
	case errors.Is(err, volume.ErrAccessDenied):
		return wipe.FailureAccessDenied
	case errors.Is(err, volume.ErrWriteProtected):
		return wipe.FailureWriteProtected
	case errors.Is(err, volume.ErrDeviceVanished):
		return wipe.FailureDeviceVanished
	default:
		return wipe.FailureAccessDenied
	}
}
