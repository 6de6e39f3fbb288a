package volume

import "errors"

// Failure modes from spec §4.2.
var (
	ErrAccessDenied   = errors.New("volume: access denied")
	ErrDeviceBusy     = errors.New("volume: device busy after dismount attempts")
	ErrDeviceVanished = errors.New("volume: device vanished")
	ErrWriteProtected = errors.New("volume: device is write protected")
)
