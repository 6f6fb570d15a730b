package capture

import "errors"

var (
	// ErrDeviceNotFound is returned when a capture names a device serial that
	// has no pending sign-in (never started, already consumed or expired).
	ErrDeviceNotFound = errors.New("device not found")

	// ErrSignalAwaited is returned when a second caller waits on a Signal.
	ErrSignalAwaited = errors.New("signal already has a waiter")

	// ErrRegistrationMissing is returned when the server signalled completion
	// but holds no registration for the waiting device.
	ErrRegistrationMissing = errors.New("no registration recorded for device")
)

// CaptureFailure reports a failed capture for one device to the waiting caller.
type CaptureFailure struct {
	DeviceSerial string
	Err          error
}

func (f CaptureFailure) Error() string {
	return "capture failed for device " + f.DeviceSerial + ": " + f.Err.Error()
}

func (f CaptureFailure) Unwrap() error {
	return f.Err
}
