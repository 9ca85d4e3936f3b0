package bandstore

import "errors"

var (
	// ErrNotFound is returned when a band has no metadata record in any store
	// reachable from the lookup.
	ErrNotFound = errors.New("band not found")

	// ErrCorrupt marks a store file whose contents failed to decode. The store
	// is reinitialized before the error is returned.
	ErrCorrupt = errors.New("band store corrupt")
)

// IsNotFound reports whether err carries ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsCorrupt reports whether err carries ErrCorrupt.
func IsCorrupt(err error) bool {
	return errors.Is(err, ErrCorrupt)
}
