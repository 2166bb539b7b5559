package driver

import (
	"fmt"
	"io"
)

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplMemtable Implementation = "memtable"
	ImplRemote   Implementation = "remote"
)

// Feature represents driver features as bit flags
type Feature uint64

const (
	FeatureInsert         Feature = 1 << iota // Support for Insert operations
	FeatureInsertIfAbsent                     // Support for conditional inserts (atomic)
	FeatureUpdate                             // Support for Update operations
	FeatureDelete                             // Support for Delete operations
	FeatureFetch                              // Support for Fetch operations
	FeatureScan                               // Support for Scan operations
	FeatureTx                                 // Support for Begin/Commit/Rollback
	FeatureSnapshot                           // Support for Save/Load operations
)

func (f Feature) String() string {
	switch f {
	case FeatureInsert:
		return "Insert"
	case FeatureInsertIfAbsent:
		return "InsertIfAbsent"
	case FeatureUpdate:
		return "Update"
	case FeatureDelete:
		return "Delete"
	case FeatureFetch:
		return "Fetch"
	case FeatureScan:
		return "Scan"
	case FeatureTx:
		return "Tx"
	case FeatureSnapshot:
		return "Snapshot"
	default:
		return "Unknown"
	}
}

// Row is a single stored row. Data is an opaque, codec-encoded payload.
// Version is the commit sequence number under which the row was last written;
// it only ever increases for a given database and is used by the ORM layer
// to detect stale in-memory state.
type Row struct {
	PK      uint64
	Data    []byte
	Version uint64
}

type DatabaseInfo struct {
	SizeBytes         int            `json:"size_bytes"`
	DriverType        Implementation `json:"driver_type"`
	SupportedFeatures []Feature      `json:"supported_features"`
	Metadata          interface{}    `json:"metadata"`
}

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// DriverFactory is a function type that creates a new driver.
// This is used to abstract the creation of the driver from the layers above.
type DriverFactory func() Driver

// Driver is a handle on one database. It hands out Conns, which carry the
// actual operations. A Driver is safe for concurrent use; the Conns it opens
// are not (see Conn).
type Driver interface {
	// Open creates a new connection to the database.
	Open() (Conn, error)
	// SupportsFeature checks if the driver supports the specified feature.
	// Multiple features can be checked at once using bitwise OR (|).
	SupportsFeature(feature Feature) (ok bool)
	// GetInfo returns metadata about the underlying database.
	// It is not guaranteed that all fields are filled in or up-to-date.
	GetInfo() (info DatabaseInfo, err error)
	// Save persists the current state of the database to the provided io.Writer.
	Save(w io.Writer) (err error)
	// Load restores the database state from an io.Reader.
	Load(r io.Reader) (err error)
	// Close closes the driver and releases all resources.
	Close() (err error)
}

// Conn is a single synchronous connection. Every method blocks until the
// operation completes; none of them takes a context. Layers above (the bridge
// portal) are responsible for serializing access: a Conn must never execute
// two operations concurrently.
type Conn interface {
	// Insert stores a new row. If the primary key already exists, an Error
	// with RetCConflict is returned.
	Insert(table string, pk uint64, data []byte) (err error)
	// InsertIfAbsent stores a new row only if the primary key does not exist.
	// It reports whether the row was inserted. No error is returned if the
	// key already exists.
	InsertIfAbsent(table string, pk uint64, data []byte) (inserted bool, err error)
	// Update overwrites an existing row. If the primary key does not exist,
	// an Error with RetCNotFound is returned.
	Update(table string, pk uint64, data []byte) (err error)
	// Delete removes a row. Deleting a missing row is not an error.
	Delete(table string, pk uint64) (err error)
	// Fetch returns the row for a primary key. The boolean return value
	// indicates whether the row was found. The returned data is a copy.
	Fetch(table string, pk uint64) (row Row, loaded bool, err error)
	// Scan walks all rows of a table in unspecified order, calling fn for
	// each. Returning false from fn stops the walk. Row data passed to fn
	// is a copy.
	Scan(table string, fn func(row Row) bool) (err error)
	// Begin starts a transaction on this connection. Writes issued before
	// Begin (or after Commit/Rollback) apply immediately.
	Begin() (err error)
	// Commit atomically applies all writes issued since Begin. All rows
	// written by the transaction share one commit version.
	Commit() (err error)
	// Rollback discards all writes issued since Begin.
	Rollback() (err error)
	// Close releases the connection. An open transaction is rolled back.
	Close() (err error)
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message
}

// Error implements the error interface.
func (e *Error) Error() string {
	errorCode := "Unknown"
	switch e.Code {
	case RetCInternalError:
		errorCode = "InternalError"
	case RetCUnsupportedOperation:
		errorCode = "UnsupportedOperation"
	case RetCInvalidOperation:
		errorCode = "InvalidOperation"
	case RetCConflict:
		errorCode = "Conflict"
	case RetCNotFound:
		errorCode = "NotFound"
	}

	return fmt.Sprintf("DriverError (code %s): %s", errorCode, e.Msg)
}

// NewError creates a new driver Error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Operation executed successfully.
	RetCInternalError                       // 1: Operation failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported by the driver.
	RetCInvalidOperation                    // 3: Invalid operation (e.g. Commit without Begin).
	RetCConflict                            // 4: Primary key already exists.
	RetCNotFound                            // 5: Row does not exist.
)
