package entry

import "errors"

var (
	// ErrEntryNotFound is returned when an entry ID does not exist.
	ErrEntryNotFound = errors.New("entry: not found")

	// ErrEntryExists is returned when an entry with the same unique ID exists.
	ErrEntryExists = errors.New("entry: already exists")
)
