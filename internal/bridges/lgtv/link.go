package lgtv

import (
	"github.com/nerrad567/gray-logic-lgtv/internal/rs232"
)

// Requester sends one (category, action) command to a set.
//
// A false result with a nil error means the set answered NG or not at all.
// An error means the command could not be sent or was not understood.
type Requester interface {
	Request(category, action string) (bool, error)
}

// Link is the synchronous device client the bridge drives.
// *rs232.Link satisfies it.
type Link interface {
	Requester

	// UpdateStatus re-reads power, volume, mute and input from the set.
	UpdateStatus() error

	// Status returns the cached state from the last exchange.
	Status() rs232.Status

	// Close releases the serial port.
	Close() error
}

// OpenFunc opens a link to the set with tvID on port.
type OpenFunc func(port string, tvID int) (Link, error)

// SerialOpener returns an OpenFunc backed by real serial ports.
func SerialOpener(opts rs232.Options) OpenFunc {
	return func(port string, tvID int) (Link, error) {
		l, err := rs232.Open(port, tvID, opts)
		if err != nil {
			// Avoid returning a typed nil inside the interface.
			return nil, err
		}
		return l, nil
	}
}
