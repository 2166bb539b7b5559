package serializer

import (
	"encoding/binary"
	"fmt"

	"github.com/syndb/syndb/lib/driver"
	"github.com/syndb/syndb/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasTable   byte = 1 << 0
	hasPK      byte = 1 << 1
	hasData    byte = 1 << 2
	hasVersion byte = 1 << 3
	hasRows    byte = 1 << 4
	hasOk      byte = 1 << 5
	hasErr     byte = 1 << 6
	hasMeta    byte = 1 << 7
)

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	// Calculate total size needed
	totalSize := b.sizeBytes(msg)
	result := make([]byte, totalSize)

	// Write message type
	result[0] = byte(msg.MsgType)

	// Initialize flags byte
	var flags byte = 0

	// Set position for writing
	pos := 2 // Start after MsgType and flags

	// Handle Table
	if msg.Table != "" {
		flags |= hasTable
		tableBytes := []byte(msg.Table)
		tableLen := len(tableBytes)

		// Write table length
		binary.BigEndian.PutUint32(result[pos:pos+4], uint32(tableLen))
		pos += 4

		// Write table name
		copy(result[pos:pos+tableLen], tableBytes)
		pos += tableLen
	}

	// Handle PK
	if msg.PK > 0 {
		flags |= hasPK
		binary.BigEndian.PutUint64(result[pos:pos+8], msg.PK)
		pos += 8
	}

	// Handle Data
	if msg.Data != nil {
		flags |= hasData
		dataLen := len(msg.Data)

		// Write data length
		binary.BigEndian.PutUint32(result[pos:pos+4], uint32(dataLen))
		pos += 4

		// Write data payload
		if dataLen > 0 {
			copy(result[pos:pos+dataLen], msg.Data)
			pos += dataLen
		}
	}

	// Handle Version
	if msg.Version > 0 {
		flags |= hasVersion
		binary.BigEndian.PutUint64(result[pos:pos+8], msg.Version)
		pos += 8
	}

	// Handle Rows
	if msg.Rows != nil {
		flags |= hasRows

		// Write row count
		binary.BigEndian.PutUint32(result[pos:pos+4], uint32(len(msg.Rows)))
		pos += 4

		// Write each row as pk, version, data length, data
		for _, row := range msg.Rows {
			binary.BigEndian.PutUint64(result[pos:pos+8], row.PK)
			pos += 8
			binary.BigEndian.PutUint64(result[pos:pos+8], row.Version)
			pos += 8
			binary.BigEndian.PutUint32(result[pos:pos+4], uint32(len(row.Data)))
			pos += 4
			if len(row.Data) > 0 {
				copy(result[pos:pos+len(row.Data)], row.Data)
				pos += len(row.Data)
			}
		}
	}

	// Handle Ok
	if msg.Ok {
		flags |= hasOk
		result[pos] = 1
		pos += 1
	}

	// Handle Err (the return code travels with the message)
	if msg.Err != "" {
		flags |= hasErr
		result[pos] = msg.Code
		pos += 1

		errBytes := []byte(msg.Err)
		errLen := len(errBytes)

		// Write error length
		binary.BigEndian.PutUint32(result[pos:pos+4], uint32(errLen))
		pos += 4

		// Write error data
		copy(result[pos:pos+errLen], errBytes)
		pos += errLen
	}

	// Handle Meta
	if msg.Meta != nil {
		flags |= hasMeta
		metaLen := len(msg.Meta)

		// Write meta length
		binary.BigEndian.PutUint32(result[pos:pos+4], uint32(metaLen))
		pos += 4

		// Write meta data
		if metaLen > 0 {
			copy(result[pos:pos+metaLen], msg.Meta)
			pos += metaLen
		}
	}

	// Set flags byte after knowing which fields are present
	result[1] = flags

	return result, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	// Check minimum size (MsgType + flags)
	if len(data) < 2 {
		return fmt.Errorf("data too short for message header")
	}

	// Read message type
	msg.MsgType = common.MessageType(data[0])

	// Read flags
	flags := data[1]

	// Initialize read position
	pos := 2

	// Read Table if present
	if flags&hasTable != 0 {
		if pos+4 > len(data) {
			return fmt.Errorf("data too short for table length")
		}

		// Read table length
		tableLen := binary.BigEndian.Uint32(data[pos : pos+4])
		pos += 4

		if pos+int(tableLen) > len(data) {
			return fmt.Errorf("data too short for table name")
		}

		// Read table name
		msg.Table = string(data[pos : pos+int(tableLen)])
		pos += int(tableLen)
	} else {
		msg.Table = ""
	}

	// Read PK if present
	if flags&hasPK != 0 {
		if pos+8 > len(data) {
			return fmt.Errorf("data too short for PK")
		}

		msg.PK = binary.BigEndian.Uint64(data[pos : pos+8])
		pos += 8
	} else {
		msg.PK = 0
	}

	// Read Data if present
	if flags&hasData != 0 {
		if pos+4 > len(data) {
			return fmt.Errorf("data too short for data length")
		}

		// Read data length
		dataLen := binary.BigEndian.Uint32(data[pos : pos+4])
		pos += 4

		if pos+int(dataLen) > len(data) {
			return fmt.Errorf("data too short for data payload")
		}

		// Read data payload - allocate only if needed
		if msg.Data == nil || cap(msg.Data) < int(dataLen) {
			msg.Data = make([]byte, dataLen)
		} else {
			msg.Data = msg.Data[:dataLen]
		}

		if dataLen > 0 {
			copy(msg.Data, data[pos:pos+int(dataLen)])
		}
		pos += int(dataLen)
	} else {
		msg.Data = nil
	}

	// Read Version if present
	if flags&hasVersion != 0 {
		if pos+8 > len(data) {
			return fmt.Errorf("data too short for version")
		}

		msg.Version = binary.BigEndian.Uint64(data[pos : pos+8])
		pos += 8
	} else {
		msg.Version = 0
	}

	// Read Rows if present
	if flags&hasRows != 0 {
		if pos+4 > len(data) {
			return fmt.Errorf("data too short for row count")
		}

		rowCount := binary.BigEndian.Uint32(data[pos : pos+4])
		pos += 4

		// Every row occupies at least its 20 byte header, so a count that
		// cannot fit in the remaining payload is a corrupt frame. Checking
		// before the allocation keeps a hostile count from forcing a huge
		// make.
		if int(rowCount) > (len(data)-pos)/20 {
			return fmt.Errorf("row count %d exceeds remaining payload", rowCount)
		}

		msg.Rows = make([]driver.Row, rowCount)
		for i := uint32(0); i < rowCount; i++ {
			if pos+20 > len(data) {
				return fmt.Errorf("data too short for row header")
			}

			msg.Rows[i].PK = binary.BigEndian.Uint64(data[pos : pos+8])
			pos += 8
			msg.Rows[i].Version = binary.BigEndian.Uint64(data[pos : pos+8])
			pos += 8
			rowLen := binary.BigEndian.Uint32(data[pos : pos+4])
			pos += 4

			if pos+int(rowLen) > len(data) {
				return fmt.Errorf("data too short for row data")
			}

			msg.Rows[i].Data = make([]byte, rowLen)
			if rowLen > 0 {
				copy(msg.Rows[i].Data, data[pos:pos+int(rowLen)])
			}
			pos += int(rowLen)
		}
	} else {
		msg.Rows = nil
	}

	// Read Ok if present
	if flags&hasOk != 0 {
		if pos+1 > len(data) {
			return fmt.Errorf("data too short for Ok flag")
		}

		msg.Ok = data[pos] != 0
		pos += 1
	} else {
		msg.Ok = false
	}

	// Read Err if present
	if flags&hasErr != 0 {
		if pos+5 > len(data) {
			return fmt.Errorf("data too short for error header")
		}

		// Read return code
		msg.Code = data[pos]
		pos += 1

		// Read error length
		errLen := binary.BigEndian.Uint32(data[pos : pos+4])
		pos += 4

		if pos+int(errLen) > len(data) {
			return fmt.Errorf("data too short for error data")
		}

		// Read error data
		msg.Err = string(data[pos : pos+int(errLen)])
		pos += int(errLen)
	} else {
		msg.Code = 0
		msg.Err = ""
	}

	// Read Meta if present
	if flags&hasMeta != 0 {
		if pos+4 > len(data) {
			return fmt.Errorf("data too short for meta length")
		}

		// Read meta length
		metaLen := binary.BigEndian.Uint32(data[pos : pos+4])
		pos += 4

		if pos+int(metaLen) > len(data) {
			return fmt.Errorf("data too short for meta data")
		}

		// Read metadata - allocate only if needed
		if msg.Meta == nil || cap(msg.Meta) < int(metaLen) {
			msg.Meta = make([]byte, metaLen)
		} else {
			msg.Meta = msg.Meta[:metaLen]
		}

		if metaLen > 0 {
			copy(msg.Meta, data[pos:pos+int(metaLen)])
		}
		pos += int(metaLen)
	} else {
		msg.Meta = nil
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// sizeBytes calculates the total size needed for serialization
func (b binarySerializerImpl) sizeBytes(msg common.Message) int {
	// 1 byte for MsgType + 1 byte for flags
	size := 2

	// Add sizes for fields that require length encoding
	if msg.Table != "" {
		size += 4 + len(msg.Table) // 4 bytes for length + table name
	}
	if msg.PK > 0 {
		size += 8 // uint64
	}
	if msg.Data != nil {
		size += 4 + len(msg.Data) // 4 bytes for length + data bytes
	}
	if msg.Version > 0 {
		size += 8 // uint64
	}
	if msg.Rows != nil {
		size += 4 // 4 bytes for row count
		for _, row := range msg.Rows {
			size += 20 + len(row.Data) // pk + version + length + data bytes
		}
	}
	if msg.Ok {
		size += 1 // 1 byte for boolean
	}
	if msg.Err != "" {
		size += 5 + len(msg.Err) // 1 byte code + 4 bytes length + error string
	}
	if msg.Meta != nil {
		size += 4 + len(msg.Meta) // 4 bytes for length + meta bytes
	}

	return size
}
