package serializer

import (
	"encoding/binary"
	"reflect"
	"testing"

	"github.com/syndb/syndb/lib/driver"
	"github.com/syndb/syndb/rpc/common"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() IRPCSerializer{
	"JSON":   NewJSONSerializer,
	"GOB":    NewGOBSerializer,
	"Binary": NewBinarySerializer,
}

// testMessages creates a set of test messages with different fields filled
func testMessages() []common.Message {
	return []common.Message{
		// Basic message with just a type
		{MsgType: common.MsgTSuccess},

		// Insert request
		{
			MsgType: common.MsgTInsert,
			Table:   "users",
			PK:      42,
			Data:    []byte(`{"name":"alice"}`),
		},

		// Fetch response
		{
			MsgType: common.MsgTFetch,
			Data:    []byte(`{"name":"alice"}`),
			Version: 7,
			Ok:      true,
		},

		// Scan response with rows
		{
			MsgType: common.MsgTScan,
			Rows: []driver.Row{
				{PK: 1, Data: []byte("a"), Version: 1},
				{PK: 2, Data: []byte{}, Version: 3},
			},
		},

		// Error response with a driver return code
		{
			MsgType: common.MsgTError,
			Code:    uint8(driver.RetCConflict),
			Err:     "pk already exists",
		},

		// Info response with meta payload
		{
			MsgType: common.MsgTInfo,
			Meta:    []byte(`{"size_bytes":128}`),
		},
	}
}

// TestSerializerRoundTrip tests that messages can be serialized and deserialized correctly
func TestSerializerRoundTrip(t *testing.T) {
	messages := testMessages()

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for i, msg := range messages {
				// Serialize
				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message %d: %v", i, err)
					continue
				}

				// Deserialize
				var result common.Message
				err = serializer.Deserialize(data, &result)
				if err != nil {
					t.Errorf("Failed to deserialize message %d: %v", i, err)
					continue
				}

				// Compare
				if !reflect.DeepEqual(msg, result) {
					t.Errorf("Message %d doesn't match after round trip:\nOriginal: %+v\nResult: %+v",
						i, msg, result)
				}
			}
		})
	}
}

// TestDriverErrRoundTrip tests that typed driver errors survive the wire
func TestDriverErrRoundTrip(t *testing.T) {
	orig := driver.NewError(driver.RetCNotFound, "row does not exist")
	resp := common.NewFetchResponse(driver.Row{}, false, orig)

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			data, err := serializer.Serialize(*resp)
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}

			var result common.Message
			if err := serializer.Deserialize(data, &result); err != nil {
				t.Fatalf("Failed to deserialize: %v", err)
			}

			got := result.DriverErr()
			if got == nil {
				t.Fatal("expected an error, got nil")
			}

			dErr, ok := got.(*driver.Error)
			if !ok {
				t.Fatalf("expected *driver.Error, got %T", got)
			}
			if dErr.Code != driver.RetCNotFound {
				t.Errorf("expected code %d, got %d", driver.RetCNotFound, dErr.Code)
			}
		})
	}
}

// TestBinaryTruncated tests that the binary serializer rejects truncated input
func TestBinaryCorruptRowCount(t *testing.T) {
	serializer := NewBinarySerializer()

	msg := common.Message{
		MsgType: common.MsgTScan,
		Rows: []driver.Row{
			{PK: 1, Version: 1, Data: []byte("a")},
		},
	}

	data, err := serializer.Serialize(msg)
	if err != nil {
		t.Fatalf("Failed to serialize: %v", err)
	}

	// With no other optional fields set, the row count sits right after the
	// MsgType and flags bytes. Claiming 2^32-1 rows in a frame that holds
	// one must be rejected without allocating for the claimed count.
	binary.BigEndian.PutUint32(data[2:6], 0xFFFFFFFF)

	var result common.Message
	if err := serializer.Deserialize(data, &result); err == nil {
		t.Errorf("expected error for row count larger than the payload")
	}
}

func TestBinaryTruncated(t *testing.T) {
	serializer := NewBinarySerializer()

	msg := common.Message{
		MsgType: common.MsgTInsert,
		Table:   "users",
		PK:      1,
		Data:    []byte("payload"),
	}

	data, err := serializer.Serialize(msg)
	if err != nil {
		t.Fatalf("Failed to serialize: %v", err)
	}

	for cut := 0; cut < len(data); cut++ {
		var result common.Message
		if err := serializer.Deserialize(data[:cut], &result); err == nil {
			t.Errorf("expected error for input truncated to %d bytes", cut)
		}
	}
}
