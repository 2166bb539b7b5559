package memtable

import (
	"fmt"

	"github.com/syndb/syndb/lib/driver"
	"github.com/syndb/syndb/lib/driver/engines/memtable/internal"
)

// --------------------------------------------------------------------------
// Transaction write buffer
// --------------------------------------------------------------------------

type writeKind uint8

const (
	writeInsert writeKind = iota
	writeUpdate
	writeDelete
)

func (k writeKind) String() string {
	switch k {
	case writeInsert:
		return "Insert"
	case writeUpdate:
		return "Update"
	case writeDelete:
		return "Delete"
	default:
		return "Unknown"
	}
}

// txWrite is one buffered write of an open transaction
type txWrite struct {
	kind  writeKind
	table string
	pk    uint64
	data  []byte
}

// rowRef identifies one row across tables, used to track the effective state
// of rows touched by earlier buffered writes during commit validation
type rowRef struct {
	table string
	pk    uint64
}

// --------------------------------------------------------------------------
// Connection
// --------------------------------------------------------------------------

// connImpl is a single connection to the shared memtable store.
//
// A connection is a cheap handle plus the transaction write buffer. It is
// intentionally not safe for concurrent use; serializing operations is the
// job of the layers above.
type connImpl struct {
	db     *memtableImpl
	inTx   bool
	writes []txWrite
	closed bool
}

func (c *connImpl) guard() error {
	if c.closed {
		return driver.NewError(driver.RetCInvalidOperation, "connection is closed")
	}
	if c.db.closed.Load() {
		return driver.NewError(driver.RetCInvalidOperation, "driver is closed")
	}
	return nil
}

// --------------------------------------------------------------------------
// Write Operations
// --------------------------------------------------------------------------

// Insert stores a new row. Inside a transaction the write is buffered until
// Commit; otherwise it is applied immediately under its own commit version.
func (c *connImpl) Insert(table string, pk uint64, data []byte) error {
	if err := c.guard(); err != nil {
		return err
	}

	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)

	if c.inTx {
		c.writes = append(c.writes, txWrite{writeInsert, table, pk, dataCopy})
		return nil
	}

	c.db.commitMu.Lock()
	defer c.db.commitMu.Unlock()

	shard := internal.GetShard(pk, c.db.table(table).Shards)
	if _, exists := shard.Data.Load(pk); exists {
		return driver.NewError(driver.RetCConflict,
			fmt.Sprintf("row %d already exists in table %q", pk, table))
	}

	version := c.db.commitSeq.Add(1)
	shard.Data.Store(pk, internal.Entry{Data: dataCopy, Version: version})
	return nil
}

// InsertIfAbsent stores a new row only if the primary key does not exist.
//
// This operation always applies immediately, even inside a transaction: it
// exists for atomic check-and-set uses such as lock acquisition, where the
// result must reflect the committed state at the time of the call.
func (c *connImpl) InsertIfAbsent(table string, pk uint64, data []byte) (bool, error) {
	if err := c.guard(); err != nil {
		return false, err
	}

	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)

	c.db.commitMu.Lock()
	defer c.db.commitMu.Unlock()

	shard := internal.GetShard(pk, c.db.table(table).Shards)
	if _, exists := shard.Data.Load(pk); exists {
		return false, nil
	}

	version := c.db.commitSeq.Add(1)
	shard.Data.Store(pk, internal.Entry{Data: dataCopy, Version: version})
	return true, nil
}

// Update overwrites an existing row. Inside a transaction the write is
// buffered until Commit; otherwise it is applied immediately.
func (c *connImpl) Update(table string, pk uint64, data []byte) error {
	if err := c.guard(); err != nil {
		return err
	}

	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)

	if c.inTx {
		c.writes = append(c.writes, txWrite{writeUpdate, table, pk, dataCopy})
		return nil
	}

	c.db.commitMu.Lock()
	defer c.db.commitMu.Unlock()

	shard := internal.GetShard(pk, c.db.table(table).Shards)
	if _, exists := shard.Data.Load(pk); !exists {
		return driver.NewError(driver.RetCNotFound,
			fmt.Sprintf("row %d not found in table %q", pk, table))
	}

	version := c.db.commitSeq.Add(1)
	shard.Data.Store(pk, internal.Entry{Data: dataCopy, Version: version})
	return nil
}

// Delete removes a row. Deleting a missing row is not an error.
func (c *connImpl) Delete(table string, pk uint64) error {
	if err := c.guard(); err != nil {
		return err
	}

	if c.inTx {
		c.writes = append(c.writes, txWrite{kind: writeDelete, table: table, pk: pk})
		return nil
	}

	c.db.commitMu.Lock()
	defer c.db.commitMu.Unlock()

	shard := internal.GetShard(pk, c.db.table(table).Shards)
	shard.Data.Delete(pk)
	return nil
}

// --------------------------------------------------------------------------
// Read Operations
// --------------------------------------------------------------------------

// Fetch returns the row for a primary key. Reads observe committed state
// only; writes buffered by an open transaction on this connection are not
// visible until Commit.
func (c *connImpl) Fetch(table string, pk uint64) (driver.Row, bool, error) {
	if err := c.guard(); err != nil {
		return driver.Row{}, false, err
	}

	shard := internal.GetShard(pk, c.db.table(table).Shards)
	entry, ok := shard.Data.Load(pk)
	if !ok {
		return driver.Row{}, false, nil
	}

	entry = entry.Clone()
	return driver.Row{PK: pk, Data: entry.Data, Version: entry.Version}, true, nil
}

// Scan walks all rows of a table in unspecified order. Like Fetch, it
// observes committed state only.
func (c *connImpl) Scan(table string, fn func(row driver.Row) bool) error {
	if err := c.guard(); err != nil {
		return err
	}

	for _, shard := range c.db.table(table).Shards {
		stop := false
		shard.Data.Range(func(pk uint64, entry internal.Entry) bool {
			entry = entry.Clone()
			if !fn(driver.Row{PK: pk, Data: entry.Data, Version: entry.Version}) {
				stop = true
				return false
			}
			return true
		})
		if stop {
			return nil
		}
	}
	return nil
}

// --------------------------------------------------------------------------
// Transaction Operations
// --------------------------------------------------------------------------

// Begin starts a transaction on this connection
func (c *connImpl) Begin() error {
	if err := c.guard(); err != nil {
		return err
	}
	if c.inTx {
		return driver.NewError(driver.RetCInvalidOperation, "transaction already open")
	}
	c.inTx = true
	c.writes = c.writes[:0]
	return nil
}

// Commit atomically applies all buffered writes under one commit version.
//
// Validation happens against the committed state before anything is applied:
// if any buffered Insert conflicts or any buffered Update targets a missing
// row, the whole transaction is rolled back and an error returned. Partial
// application is never possible.
func (c *connImpl) Commit() error {
	if err := c.guard(); err != nil {
		return err
	}
	if !c.inTx {
		return driver.NewError(driver.RetCInvalidOperation, "no open transaction")
	}

	// The transaction ends either way.
	writes := c.writes
	c.inTx = false
	c.writes = nil

	if len(writes) == 0 {
		return nil
	}

	c.db.commitMu.Lock()
	defer c.db.commitMu.Unlock()

	// Validation pass. The overlay tracks the effective existence of rows
	// touched by earlier writes of this transaction, so e.g. delete-then-
	// insert of the same key validates correctly.
	overlay := make(map[rowRef]bool, len(writes))

	exists := func(ref rowRef) bool {
		if state, touched := overlay[ref]; touched {
			return state
		}
		shard := internal.GetShard(ref.pk, c.db.table(ref.table).Shards)
		_, ok := shard.Data.Load(ref.pk)
		return ok
	}

	for _, w := range writes {
		ref := rowRef{w.table, w.pk}
		switch w.kind {
		case writeInsert:
			if exists(ref) {
				return driver.NewError(driver.RetCConflict,
					fmt.Sprintf("commit aborted: row %d already exists in table %q", w.pk, w.table))
			}
			overlay[ref] = true
		case writeUpdate:
			if !exists(ref) {
				return driver.NewError(driver.RetCNotFound,
					fmt.Sprintf("commit aborted: row %d not found in table %q", w.pk, w.table))
			}
			overlay[ref] = true
		case writeDelete:
			overlay[ref] = false
		}
	}

	// Apply pass. All writes share one commit version.
	version := c.db.commitSeq.Add(1)
	for _, w := range writes {
		shard := internal.GetShard(w.pk, c.db.table(w.table).Shards)
		if w.kind == writeDelete {
			shard.Data.Delete(w.pk)
			continue
		}
		shard.Data.Store(w.pk, internal.Entry{Data: w.data, Version: version})
	}

	return nil
}

// Rollback discards all buffered writes
func (c *connImpl) Rollback() error {
	if err := c.guard(); err != nil {
		return err
	}
	if !c.inTx {
		return driver.NewError(driver.RetCInvalidOperation, "no open transaction")
	}
	c.inTx = false
	c.writes = nil
	return nil
}

// Close releases the connection. An open transaction is discarded.
func (c *connImpl) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.inTx = false
	c.writes = nil
	return nil
}
