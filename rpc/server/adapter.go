package server

import (
	"fmt"

	"github.com/syndb/syndb/lib/driver"
	"github.com/syndb/syndb/rpc/common"
)

// NewDriverServerAdapter creates an adapter that dispatches row operations
// onto a database driver
func NewDriverServerAdapter() IRPCServerAdapter {
	return &driverServerAdapterImpl{}
}

type driverServerAdapterImpl struct{}

func (adapter *driverServerAdapterImpl) Handle(req *common.Message, drv driver.Driver) *common.Message {
	// Check for nil driver
	if drv == nil {
		return common.NewErrorResponse("handler: driver is nil")
	}

	// Info needs no connection
	if req.MsgType == common.MsgTInfo {
		info, err := drv.GetInfo()
		return common.NewInfoResponse(info, err)
	}

	// All row operations run on a fresh connection. Connections are not
	// concurrent-safe and requests are processed by parallel workers.
	conn, err := drv.Open()
	if err != nil {
		return common.NewErrorResponse(fmt.Sprintf("handler: failed to open connection: %v", err))
	}
	defer conn.Close()

	// Handle different message types
	switch req.MsgType {
	case common.MsgTInsert:
		err := conn.Insert(req.Table, req.PK, req.Data)
		return common.NewInsertResponse(err)
	case common.MsgTInsertIfAbsent:
		inserted, err := conn.InsertIfAbsent(req.Table, req.PK, req.Data)
		return common.NewInsertIfAbsentResponse(inserted, err)
	case common.MsgTUpdate:
		err := conn.Update(req.Table, req.PK, req.Data)
		return common.NewUpdateResponse(err)
	case common.MsgTDelete:
		err := conn.Delete(req.Table, req.PK)
		return common.NewDeleteResponse(err)
	case common.MsgTFetch:
		row, loaded, err := conn.Fetch(req.Table, req.PK)
		return common.NewFetchResponse(row, loaded, err)
	case common.MsgTScan:
		var rows []driver.Row
		err := conn.Scan(req.Table, func(row driver.Row) bool {
			rows = append(rows, row)
			return true
		})
		return common.NewScanResponse(rows, err)
	default:
		return common.NewErrorResponse(
			fmt.Sprintf("RPC DriverAdapter - Unsupported message type: %s", req.MsgType),
		)
	}
}
