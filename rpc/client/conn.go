package client

import (
	"github.com/syndb/syndb/lib/driver"
	"github.com/syndb/syndb/rpc/common"
)

// rpcConn implements driver.Conn over the shared client transport. The conn
// itself is stateless, every operation is one request/response round trip.
type rpcConn struct {
	driver *rpcDriver
}

// --------------------------------------------------------------------------
// Interface Methods (docu see the driver package in interface.go)
// --------------------------------------------------------------------------

func (c *rpcConn) Insert(table string, pk uint64, data []byte) error {
	req := common.NewInsertRequest(table, pk, data)
	_, err := c.invoke(req)
	return err
}

func (c *rpcConn) InsertIfAbsent(table string, pk uint64, data []byte) (bool, error) {
	req := common.NewInsertIfAbsentRequest(table, pk, data)
	resp, err := c.invoke(req)
	if err != nil {
		return false, err
	}
	return resp.Ok, nil
}

func (c *rpcConn) Update(table string, pk uint64, data []byte) error {
	req := common.NewUpdateRequest(table, pk, data)
	_, err := c.invoke(req)
	return err
}

func (c *rpcConn) Delete(table string, pk uint64) error {
	req := common.NewDeleteRequest(table, pk)
	_, err := c.invoke(req)
	return err
}

func (c *rpcConn) Fetch(table string, pk uint64) (driver.Row, bool, error) {
	req := common.NewFetchRequest(table, pk)
	resp, err := c.invoke(req)
	if err != nil {
		return driver.Row{}, false, err
	}
	if !resp.Ok {
		return driver.Row{}, false, nil
	}
	return driver.Row{PK: pk, Data: resp.Data, Version: resp.Version}, true, nil
}

func (c *rpcConn) Scan(table string, fn func(row driver.Row) bool) error {
	req := common.NewScanRequest(table)
	resp, err := c.invoke(req)
	if err != nil {
		return err
	}
	for _, row := range resp.Rows {
		if !fn(row) {
			break
		}
	}
	return nil
}

// Begin is not supported for rpc, see the feature set in driver.go
func (c *rpcConn) Begin() error {
	return driver.NewError(driver.RetCUnsupportedOperation, "transactions are not supported by the rpc driver")
}

// Commit is not supported for rpc, see the feature set in driver.go
func (c *rpcConn) Commit() error {
	return driver.NewError(driver.RetCUnsupportedOperation, "transactions are not supported by the rpc driver")
}

// Rollback is not supported for rpc, see the feature set in driver.go
func (c *rpcConn) Rollback() error {
	return driver.NewError(driver.RetCUnsupportedOperation, "transactions are not supported by the rpc driver")
}

func (c *rpcConn) Close() error {
	// The conn holds no state, network connections belong to the transport
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (c *rpcConn) invoke(req *common.Message) (*common.Message, error) {
	return invokeRPCRequest(c.driver.databaseID, req, c.driver.transport, c.driver.serializer)
}
