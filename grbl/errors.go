package grbl

import "errors"

var (
	// ErrWrite indicates the command could not be written to the transport.
	ErrWrite = errors.New("grbl: write failed")

	// ErrRead indicates no complete reply arrived: timeout, overflow or an
	// empty answer.
	ErrRead = errors.New("grbl: read failed")

	// ErrRejected indicates the controller answered without acknowledging
	// the command.
	ErrRejected = errors.New("grbl: command rejected")

	// ErrMismatch indicates the reset banner or firmware version is not
	// what this driver speaks.
	ErrMismatch = errors.New("grbl: protocol mismatch")

	// ErrParse indicates a reply did not have the expected shape.
	ErrParse = errors.New("grbl: parse error")
)

// IsTransport reports whether err came from the serial line itself rather
// than from the controller's answer.
func IsTransport(err error) bool {
	return errors.Is(err, ErrWrite) || errors.Is(err, ErrRead)
}
