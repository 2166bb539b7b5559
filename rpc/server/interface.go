package server

import (
	"github.com/syndb/syndb/lib/driver"
	"github.com/syndb/syndb/rpc/common"
)

// IRPCServerAdapter is the interface for all RPC server adapters
// It is responsible for handling requests and responses
type IRPCServerAdapter interface {
	// Handle handles a request and returns a response
	// It takes a Message and the driver of the addressed database.
	// It returns a Message as a response
	// If an error occurs, it is set in the response
	Handle(req *common.Message, drv driver.Driver) (resp *common.Message)
}
