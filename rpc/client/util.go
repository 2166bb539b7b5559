package client

import (
	"fmt"

	"github.com/syndb/syndb/lib/logging"
	"github.com/syndb/syndb/rpc/common"
	"github.com/syndb/syndb/rpc/serializer"
	"github.com/syndb/syndb/rpc/transport"
)

var (
	Logger = logging.GetLogger("rpc")
)

// invokeRPCRequest is a helper function used by the RPC driver to send requests
// It takes a database ID, a request message, a transport layer and a serializer as parameters
// It returns a response message and an error if any occurs
// Driver errors carried by the response are rebuilt as typed driver errors so
// callers can match on their return codes
func invokeRPCRequest(databaseID uint64, req *common.Message, transport transport.IRPCClientTransport, serializer serializer.IRPCSerializer) (*common.Message, error) {
	// Serialize the request
	reqBytes, err := serializer.Serialize(*req)
	if err != nil {
		return nil, err
	}

	// Send the request
	respBytes, err := transport.Send(databaseID, reqBytes)
	if err != nil {
		return nil, err
	}

	// Deserialize the response
	resp := &common.Message{}
	err = serializer.Deserialize(respBytes, resp)
	if err != nil {
		return nil, fmt.Errorf("RPC driver - failed to deserialize response: %s", err)
	}

	// Check if the response carries an error
	if err := resp.DriverErr(); err != nil {
		return nil, err
	}

	// Check if the type of the response is the expected type
	if resp.MsgType != req.MsgType {
		return nil, fmt.Errorf("RPC driver - unexpected message type: %s, expected %s", resp.MsgType, req.MsgType)
	}

	// Return the response
	return resp, nil
}
