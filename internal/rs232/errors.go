package rs232

import "errors"

var (
	// ErrOpenFailed is returned when the serial port cannot be opened.
	ErrOpenFailed = errors.New("rs232: open failed")

	// ErrWriteFailed is returned when a frame cannot be written to the port.
	ErrWriteFailed = errors.New("rs232: write failed")

	// ErrReadFailed is returned when reading the reply fails (not on timeout).
	ErrReadFailed = errors.New("rs232: read failed")

	// ErrInvalidSetID is returned for a set ID outside 0-99.
	ErrInvalidSetID = errors.New("rs232: set id must be between 0 and 99")

	// ErrUnknownCommand is returned for a category or action the link cannot encode.
	ErrUnknownCommand = errors.New("rs232: unknown command")

	// ErrClosed is returned when using a link after Close.
	ErrClosed = errors.New("rs232: link closed")
)
