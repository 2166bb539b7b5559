package client

import (
	"encoding/json"
	"io"

	"github.com/syndb/syndb/lib/driver"
	"github.com/syndb/syndb/rpc/common"
	"github.com/syndb/syndb/rpc/serializer"
	"github.com/syndb/syndb/rpc/transport"
)

// remoteFeatures are the capabilities of a remote database. Transactions are
// deliberately absent: a transaction is connection state, and the transport
// multiplexes requests of many logical connections over shared network
// connections. Layers above degrade to autocommit writes. Snapshots stay on
// the server side.
const remoteFeatures = driver.FeatureInsert |
	driver.FeatureInsertIfAbsent |
	driver.FeatureUpdate |
	driver.FeatureDelete |
	driver.FeatureFetch |
	driver.FeatureScan

// NewRPCDriver creates a driver backed by a remote database.
// The function takes a database ID, a config, a transport and a serializer
// as parameters. It returns a driver.Driver and an error.
func NewRPCDriver(
	databaseID uint64,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (driver.Driver, error) {

	// Connect the transport
	err := transport.Connect(config)
	if err != nil {
		return nil, err
	}

	// Create a new RPC driver
	d := rpcDriver{
		databaseID: databaseID,
		config:     config,
		transport:  transport,
		serializer: serializer,
	}

	// Return the RPC driver
	return &d, nil
}

type rpcDriver struct {
	databaseID uint64
	config     common.ClientConfig
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer
}

// --------------------------------------------------------------------------
// Interface Methods (docu see the driver package in interface.go)
// --------------------------------------------------------------------------

func (d *rpcDriver) Open() (driver.Conn, error) {
	return &rpcConn{driver: d}, nil
}

func (d *rpcDriver) SupportsFeature(feature driver.Feature) bool {
	return remoteFeatures&feature == feature
}

func (d *rpcDriver) GetInfo() (driver.DatabaseInfo, error) {
	req := common.NewInfoRequest()
	resp, err := invokeRPCRequest(d.databaseID, req, d.transport, d.serializer)
	if err != nil {
		return driver.DatabaseInfo{}, err
	}

	var info driver.DatabaseInfo
	if err := json.Unmarshal(resp.Meta, &info); err != nil {
		return driver.DatabaseInfo{}, err
	}

	// Report what the client can actually use, not what the server could
	info.DriverType = driver.ImplRemote
	info.SupportedFeatures = featureList(remoteFeatures)

	return info, nil
}

// Save is not implemented for rpc, snapshots are managed by the server
func (d *rpcDriver) Save(w io.Writer) error {
	return driver.NewError(driver.RetCUnsupportedOperation, "the Save() method is not implemented in the rpc driver")
}

// Load is not implemented for rpc, snapshots are managed by the server
func (d *rpcDriver) Load(r io.Reader) error {
	return driver.NewError(driver.RetCUnsupportedOperation, "the Load() method is not implemented in the rpc driver")
}

func (d *rpcDriver) Close() error {
	return d.transport.Close()
}

// --------------------------------------------------------------------------
// Helper Functions
// --------------------------------------------------------------------------

// featureList expands a feature bitmask into the individual features
func featureList(features driver.Feature) []driver.Feature {
	all := []driver.Feature{
		driver.FeatureInsert,
		driver.FeatureInsertIfAbsent,
		driver.FeatureUpdate,
		driver.FeatureDelete,
		driver.FeatureFetch,
		driver.FeatureScan,
		driver.FeatureTx,
		driver.FeatureSnapshot,
	}

	var list []driver.Feature
	for _, f := range all {
		if features&f == f {
			list = append(list, f)
		}
	}
	return list
}
