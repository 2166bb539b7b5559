package internal

import (
	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Entry Type (row payload with metadata)
// --------------------------------------------------------------------------

// Entry stores one row payload with its commit metadata
type Entry struct {
	Data    []byte // Encoded row payload
	Version uint64 // Commit version under which this row was last written
}

// Clone returns a deep copy of the entry. Stored entries must never share
// their Data slice with callers.
func (e Entry) Clone() Entry {
	dataCopy := make([]byte, len(e.Data))
	copy(dataCopy, e.Data)
	return Entry{Data: dataCopy, Version: e.Version}
}

// --------------------------------------------------------------------------
// Shard Type (partition of one table)
// --------------------------------------------------------------------------

// Shard represents a partition of one table.
// Each shard has its own independent concurrent map.
type Shard struct {
	Data *xsync.MapOf[uint64, Entry] // Map of primary key to row entry
}

// NewShard creates a new empty shard
func NewShard() *Shard {
	return &Shard{
		Data: xsync.NewMapOf[uint64, Entry](),
	}
}

// GetShard returns the appropriate shard for a given primary key.
//
// Primary keys are frequently small sequential integers, so the raw key is
// taken modulo the shard count instead of mixing higher bits first. This
// keeps sequential keys evenly spread across shards.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func GetShard(pk uint64, shards []*Shard) *Shard {
	return shards[pk%uint64(len(shards))]
}

// --------------------------------------------------------------------------
// Table Type (named collection of shards)
// --------------------------------------------------------------------------

// Table groups the shards of one named table
type Table struct {
	Name   string
	Shards []*Shard
}

// NewTable creates a new table with the given number of shards
func NewTable(name string, numShards int) *Table {
	shards := make([]*Shard, numShards)
	for i := 0; i < numShards; i++ {
		shards[i] = NewShard()
	}
	return &Table{Name: name, Shards: shards}
}

// Size returns the total number of rows across all shards
func (t *Table) Size() int {
	size := 0
	for _, shard := range t.Shards {
		size += shard.Data.Size()
	}
	return size
}
