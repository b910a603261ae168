package store

import (
	"fmt"

	"bwkp-go/internal/bwkp"
)

// Open creates the destination store for one export run. kind is "kdbx" for
// a real file or "memory" for a dry run that writes nothing.
func Open(kind, path, password string, idgen bwkp.IDGenerator, logger bwkp.Logger) (bwkp.Store, error) {
	switch kind {
	case "kdbx":
		return OpenKDBX(path, password, idgen, logger)
	case "memory":
		return NewMemoryStore(idgen), nil
	default:
		return nil, fmt.Errorf("unknown store type: %s", kind)
	}
}
