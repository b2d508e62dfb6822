package store

import "github.com/cockroachdb/errors"

// Drivers accepted by Open.
const (
	DriverSQLite = "sqlite"
	DriverFile   = "file"
	DriverMemory = "memory"
)

// Open creates a store for the configured driver.
func Open(driver, path string) (Store, error) {
	switch driver {
	case DriverSQLite, "":
		return OpenSQLite(path)
	case DriverFile:
		return OpenFile(path)
	case DriverMemory:
		return NewMemoryStore(), nil
	default:
		return nil, errors.Newf("unsupported store driver: %s", driver)
	}
}
