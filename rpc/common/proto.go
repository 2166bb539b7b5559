package common

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/syndb/syndb/lib/driver"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// General fields
	Table   string `json:"table,omitempty"`   // Used for: all row operations
	PK      uint64 `json:"pk,omitempty"`      // Used for: Insert, InsertIfAbsent, Update, Delete, Fetch
	Data    []byte `json:"data,omitempty"`    // Used for: write requests, Fetch response
	Version uint64 `json:"version,omitempty"` // Used for: Fetch response

	// Scan response only
	Rows []driver.Row `json:"rows,omitempty"`

	// Response only fields
	Ok   bool   `json:"ok,omitempty"`   // Used for: InsertIfAbsent (inserted), Fetch (loaded)
	Code uint8  `json:"code,omitempty"` // Driver return code, set alongside Err
	Err  string `json:"err,omitempty"`  // Empty if no error, otherwise contains the error message

	// Meta information
	Meta []byte `json:"meta,omitempty"` // Used for: Info response (encoded DatabaseInfo)
}

// setErr records an error on a response message. The driver return code is
// preserved so the client side can reconstruct a typed driver.Error.
func (m *Message) setErr(err error) {
	if err == nil {
		return
	}
	m.Err = err.Error()
	var dErr *driver.Error
	if errors.As(err, &dErr) {
		m.Code = uint8(dErr.Code)
	} else {
		m.Code = uint8(driver.RetCInternalError)
	}
}

// DriverErr reconstructs the error carried by a response message, or nil if
// the message carries none.
func (m *Message) DriverErr() error {
	if m.Err == "" {
		return nil
	}
	return driver.NewError(driver.RetCode(m.Code), m.Err)
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewInsertRequest creates a new Insert request
func NewInsertRequest(table string, pk uint64, data []byte) *Message {
	return &Message{
		MsgType: MsgTInsert,
		Table:   table,
		PK:      pk,
		Data:    data,
	}
}

// NewInsertResponse creates a new Insert response
func NewInsertResponse(err error) *Message {
	msg := &Message{MsgType: MsgTInsert}
	msg.setErr(err)
	return msg
}

// NewInsertIfAbsentRequest creates a new InsertIfAbsent request
func NewInsertIfAbsentRequest(table string, pk uint64, data []byte) *Message {
	return &Message{
		MsgType: MsgTInsertIfAbsent,
		Table:   table,
		PK:      pk,
		Data:    data,
	}
}

// NewInsertIfAbsentResponse creates a new InsertIfAbsent response
func NewInsertIfAbsentResponse(inserted bool, err error) *Message {
	msg := &Message{
		MsgType: MsgTInsertIfAbsent,
		Ok:      inserted,
	}
	msg.setErr(err)
	return msg
}

// NewUpdateRequest creates a new Update request
func NewUpdateRequest(table string, pk uint64, data []byte) *Message {
	return &Message{
		MsgType: MsgTUpdate,
		Table:   table,
		PK:      pk,
		Data:    data,
	}
}

// NewUpdateResponse creates a new Update response
func NewUpdateResponse(err error) *Message {
	msg := &Message{MsgType: MsgTUpdate}
	msg.setErr(err)
	return msg
}

// NewDeleteRequest creates a new Delete request
func NewDeleteRequest(table string, pk uint64) *Message {
	return &Message{
		MsgType: MsgTDelete,
		Table:   table,
		PK:      pk,
	}
}

// NewDeleteResponse creates a new Delete response
func NewDeleteResponse(err error) *Message {
	msg := &Message{MsgType: MsgTDelete}
	msg.setErr(err)
	return msg
}

// NewFetchRequest creates a new Fetch request
func NewFetchRequest(table string, pk uint64) *Message {
	return &Message{
		MsgType: MsgTFetch,
		Table:   table,
		PK:      pk,
	}
}

// NewFetchResponse creates a new Fetch response
func NewFetchResponse(row driver.Row, loaded bool, err error) *Message {
	msg := &Message{
		MsgType: MsgTFetch,
		Ok:      loaded,
		Data:    row.Data,
		Version: row.Version,
	}
	msg.setErr(err)
	return msg
}

// NewScanRequest creates a new Scan request
func NewScanRequest(table string) *Message {
	return &Message{
		MsgType: MsgTScan,
		Table:   table,
	}
}

// NewScanResponse creates a new Scan response
func NewScanResponse(rows []driver.Row, err error) *Message {
	msg := &Message{
		MsgType: MsgTScan,
		Rows:    rows,
	}
	msg.setErr(err)
	return msg
}

// NewInfoRequest creates a new Info request
func NewInfoRequest() *Message {
	return &Message{MsgType: MsgTInfo}
}

// NewInfoResponse creates a new Info response. The database info is carried
// JSON-encoded in the Meta field.
func NewInfoResponse(info driver.DatabaseInfo, err error) *Message {
	msg := &Message{MsgType: MsgTInfo}
	if err == nil {
		meta, mErr := json.Marshal(info)
		if mErr != nil {
			err = mErr
		} else {
			msg.Meta = meta
		}
	}
	msg.setErr(err)
	return msg
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(err string) *Message {
	return &Message{
		MsgType: MsgTError,
		Code:    uint8(driver.RetCInternalError),
		Err:     err,
	}
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	switch t {
	case MsgTInsert:
		return "insert"
	case MsgTInsertIfAbsent:
		return "insertIfAbsent"
	case MsgTUpdate:
		return "update"
	case MsgTDelete:
		return "delete"
	case MsgTFetch:
		return "fetch"
	case MsgTScan:
		return "scan"
	case MsgTInfo:
		return "info"
	case MsgTError:
		return "error"
	case MsgTSuccess:
		return "success"
	default:
		return "unknown"
	}
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
// This allows MessageType to be deserialized from a string in JSON.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	// Convert string back to MessageType
	switch s {
	case "insert":
		*t = MsgTInsert
	case "insertIfAbsent":
		*t = MsgTInsertIfAbsent
	case "update":
		*t = MsgTUpdate
	case "delete":
		*t = MsgTDelete
	case "fetch":
		*t = MsgTFetch
	case "scan":
		*t = MsgTScan
	case "info":
		*t = MsgTInfo
	case "error":
		*t = MsgTError
	case "success":
		*t = MsgTSuccess
	default:
		return fmt.Errorf("unknown message type: %s", s)
	}

	return nil
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred

	// Row operations

	MsgTInsert         // Insert a row
	MsgTInsertIfAbsent // Insert a row if the primary key is absent
	MsgTUpdate         // Update an existing row
	MsgTDelete         // Delete a row
	MsgTFetch          // Fetch a row by primary key
	MsgTScan           // Scan all rows of a table

	// Database operations

	MsgTInfo // Query database metadata
)
