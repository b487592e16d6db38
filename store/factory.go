package store

import (
	"fmt"

	"allocation/domain"
)

// NewStore constructs a domain.BatchStore by kind: "memory", "file" or "pebble".
// For file store path is the JSON file; for pebble it is the database
// directory; for memory it is ignored. Pebble stores must be closed by the
// caller (they implement io.Closer).
func NewStore(kind, path string) (domain.BatchStore, error) {
	switch kind {
	case "memory", "mem":
		return NewInMemoryStore(), nil
	case "file":
		if path == "" {
			return nil, fmt.Errorf("file path required for file store")
		}
		return NewFileStore(path)
	case "pebble":
		if path == "" {
			return nil, fmt.Errorf("directory required for pebble store")
		}
		return NewPebbleStore(path)
	default:
		return nil, fmt.Errorf("unknown store kind: %s", kind)
	}
}
