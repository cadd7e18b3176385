package hub

import (
	"errors"

	"github.com/mastercactapus/grblhub/grbl"
	"github.com/mastercactapus/grblhub/motion"
	"github.com/mastercactapus/grblhub/registry"
)

var (
	ErrNoPort          = errors.New("hub: no port set")
	ErrNotReady        = errors.New("hub: not initialized")
	ErrBoardNotFound   = errors.New("hub: board not found")
	ErrUnknownPosition = errors.New("hub: position unknown")
	ErrOutOfRange      = errors.New("hub: position out of range")
)

// Host error codes.
const (
	CodeOK      = 0
	CodeGeneric = 1

	CodeUnknownPosition = 101
	CodeInitFailed      = 102
	CodeWriteFailed     = 103
	CodeCloseFailed     = 104
	CodeBoardNotFound   = 105
	CodePortOpenFailed  = 106
	CodeCommunication   = 107
	CodeNoPortSet       = 108
	CodeVersionMismatch = 109
	CodeBusy            = 110
	CodeParse           = 111
	CodeRejected        = 112
	CodeOutOfRange      = 113
)

// ordered most specific first; ErrBoardNotFound also wraps grbl.ErrRead
var codes = []struct {
	err  error
	code int
	text string
}{
	{ErrBoardNotFound, CodeBoardNotFound, "Board not found. Check the device is powered and connected."},
	{ErrNoPort, CodeNoPortSet, "Hub device not found. The hub must be installed and initialized first."},
	{ErrNotReady, CodeInitFailed, "Initialization of the device failed."},
	{ErrUnknownPosition, CodeUnknownPosition, "Requested position not available in this device."},
	{ErrOutOfRange, CodeOutOfRange, "Requested position is outside the stage limits."},
	{registry.ErrOpen, CodePortOpenFailed, "Failed opening the serial port."},
	{registry.ErrClosed, CodeCloseFailed, "The serial port registry is closed."},
	{grbl.ErrWrite, CodeWriteFailed, "Failed writing data to device."},
	{grbl.ErrRead, CodeCommunication, "Failed communicating with the device."},
	{grbl.ErrMismatch, CodeVersionMismatch, "Firmware version mismatch."},
	{grbl.ErrParse, CodeParse, "Unexpected reply from the device."},
	{grbl.ErrRejected, CodeRejected, "Command rejected by the device."},
	{motion.ErrBusy, CodeBusy, "Device is busy."},
}

// Code maps err to a host error code and message. A nil error is CodeOK.
func Code(err error) (int, string) {
	if err == nil {
		return CodeOK, ""
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code, c.text
		}
	}
	return CodeGeneric, err.Error()
}
