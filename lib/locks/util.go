package locks

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"time"
)

const (
	// LocksTable is the reserved table all lock rows live in. Application
	// code must not write to it directly.
	LocksTable = "__locks"

	// lockSeed is the fixed hash seed for mapping lock names onto primary
	// keys. It must be identical for every process sharing a database, so
	// it cannot be a per-instance random seed.
	lockSeed = 0x73796e6462 // "syndb"

	ownerIDLength = 32 // 256 bit
)

// generateOwnerID creates a new unique owner ID (256 bit random value)
func generateOwnerID() ([]byte, error) {
	randomBytes := make([]byte, ownerIDLength)
	_, err := rand.Read(randomBytes)
	return randomBytes, err
}

// lockRecord is the decoded payload of one lock row
type lockRecord struct {
	OwnerID   []byte
	ExpiresAt int64 // unix nanoseconds, 0 = no expiry
	Name      string
}

// expired reports whether the record's TTL has passed at the given time
func (r lockRecord) expired(now time.Time) bool {
	return r.ExpiresAt != 0 && now.UnixNano() > r.ExpiresAt
}

// encodeRecord serializes a lock record: owner ID, expiry timestamp, then
// the lock name (kept for diagnostics and hash collision detection)
func encodeRecord(r lockRecord) []byte {
	buf := make([]byte, 0, ownerIDLength+8+len(r.Name))
	buf = append(buf, r.OwnerID...)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(r.ExpiresAt))
	buf = append(buf, r.Name...)
	return buf
}

// decodeRecord deserializes a lock record
func decodeRecord(data []byte) (lockRecord, error) {
	if len(data) < ownerIDLength+8 {
		return lockRecord{}, fmt.Errorf("malformed lock record (%d bytes)", len(data))
	}
	return lockRecord{
		OwnerID:   data[:ownerIDLength],
		ExpiresAt: int64(binary.LittleEndian.Uint64(data[ownerIDLength : ownerIDLength+8])),
		Name:      string(data[ownerIDLength+8:]),
	}, nil
}
