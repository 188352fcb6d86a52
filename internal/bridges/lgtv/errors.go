package lgtv

import (
	"errors"

	"github.com/nerrad567/gray-logic-lgtv/internal/rs232"
)

// Domain errors for the LG TV bridge package.
var (
	// ErrCannotConnect is returned when the set did not answer the
	// validation sequence.
	ErrCannotConnect = errors.New("lgtv: cannot connect to tv")

	// ErrInvalidValue is returned when an action parameter is out of range
	// or of the wrong type.
	ErrInvalidValue = errors.New("lgtv: invalid value")

	// ErrUnknownSource is returned when select_source names an input the
	// set does not offer.
	ErrUnknownSource = errors.New("lgtv: unknown source")

	// ErrInvalidCommand is returned for an action an entity does not
	// support or a malformed remote command token.
	ErrInvalidCommand = errors.New("lgtv: invalid command")

	// ErrNotAcknowledged is returned when the set answered NG or not at all.
	ErrNotAcknowledged = errors.New("lgtv: command not acknowledged")

	// ErrAlreadyConfigured is returned when a set ID already has an entry.
	ErrAlreadyConfigured = errors.New("lgtv: already configured")

	// ErrEntryNotLoaded is returned when an entry or entity is not running.
	ErrEntryNotLoaded = errors.New("lgtv: entry not loaded")

	// ErrUnknownPort is returned when provisioning names a port that was
	// not discovered.
	ErrUnknownPort = errors.New("lgtv: unknown serial port")

	// ErrInvalidTVID is returned for a set ID outside 0-99.
	ErrInvalidTVID = errors.New("lgtv: invalid tv id")

	// ErrHandleClosed is returned when a request reaches a closed handle.
	ErrHandleClosed = errors.New("lgtv: handle closed")
)

// Form error keys reported by the provisioning surfaces.
const (
	ErrKeyCannotConnect = "cannot_connect"
	ErrKeyValueError    = "value_error"
	ErrKeyException     = "exception"
)

// Classify maps an error to the form error key shown to the user.
// It returns "" for a nil error.
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCannotConnect),
		errors.Is(err, ErrHandleClosed),
		errors.Is(err, rs232.ErrOpenFailed),
		errors.Is(err, rs232.ErrWriteFailed),
		errors.Is(err, rs232.ErrReadFailed),
		errors.Is(err, rs232.ErrClosed):
		return ErrKeyCannotConnect
	case errors.Is(err, ErrInvalidValue),
		errors.Is(err, ErrUnknownSource),
		errors.Is(err, ErrInvalidCommand),
		errors.Is(err, ErrUnknownPort),
		errors.Is(err, ErrInvalidTVID),
		errors.Is(err, rs232.ErrInvalidSetID),
		errors.Is(err, rs232.ErrUnknownCommand):
		return ErrKeyValueError
	default:
		return ErrKeyException
	}
}
