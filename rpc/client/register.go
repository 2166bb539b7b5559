package client

import (
	"fmt"
	"strconv"

	"github.com/syndb/syndb/lib/driver"
	"github.com/syndb/syndb/lib/engine"
	"github.com/syndb/syndb/rpc/common"
	"github.com/syndb/syndb/rpc/serializer"
	"github.com/syndb/syndb/rpc/transport"
	httptransport "github.com/syndb/syndb/rpc/transport/http"
	"github.com/syndb/syndb/rpc/transport/tcp"
	"github.com/syndb/syndb/rpc/transport/unix"
	"github.com/syndb/syndb/rpc/transport/ws"
)

// Default client parameters, overridable via DSN query parameters
const (
	defaultTimeoutSecond = 5
	defaultRetryCount    = 3
)

// Remote schemes register themselves with the engine DSN registry on import,
// in the manner of database/sql drivers:
//
//	import _ "github.com/syndb/syndb/rpc/client"
//
//	eng, err := engine.Connect("tcp://10.0.0.1:8080?db=100")
func init() {
	for _, scheme := range []string{"tcp", "unix", "http", "ws"} {
		scheme := scheme
		engine.Register(scheme, func(cfg engine.Config) (driver.Driver, error) {
			return openRemote(scheme, cfg)
		})
	}
}

// openRemote builds a remote driver from a parsed engine DSN.
// Recognized parameters: timeout (seconds), retry, conns, serializer
// (binary|json|gob).
func openRemote(scheme string, cfg engine.Config) (driver.Driver, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, fmt.Errorf("scheme %q requires at least one endpoint", scheme)
	}

	clientCfg := common.ClientConfig{
		Endpoints:              endpointsFor(scheme, cfg.Endpoints),
		TimeoutSecond:          defaultTimeoutSecond,
		RetryCount:             defaultRetryCount,
		ConnectionsPerEndpoint: 1,
	}

	if v := cfg.Params.Get("timeout"); v != "" {
		timeout, err := strconv.Atoi(v)
		if err != nil || timeout < 1 {
			return nil, fmt.Errorf("bad timeout %q", v)
		}
		clientCfg.TimeoutSecond = timeout
	}
	if v := cfg.Params.Get("retry"); v != "" {
		retry, err := strconv.Atoi(v)
		if err != nil || retry < 1 {
			return nil, fmt.Errorf("bad retry %q", v)
		}
		clientCfg.RetryCount = retry
	}
	if v := cfg.Params.Get("conns"); v != "" {
		conns, err := strconv.Atoi(v)
		if err != nil || conns < 1 {
			return nil, fmt.Errorf("bad conns %q", v)
		}
		clientCfg.ConnectionsPerEndpoint = conns
	}

	ser, err := serializerFor(cfg.Params.Get("serializer"))
	if err != nil {
		return nil, err
	}

	return NewRPCDriver(cfg.DatabaseID, clientCfg, transportFor(scheme), ser)
}

// --------------------------------------------------------------------------
// Helper Functions
// --------------------------------------------------------------------------

// endpointsFor rewrites endpoints into the form the transport expects
func endpointsFor(scheme string, endpoints []string) []string {
	if scheme != "http" {
		return endpoints
	}
	// The HTTP transport wants full URLs
	urls := make([]string, len(endpoints))
	for i, e := range endpoints {
		urls[i] = "http://" + e
	}
	return urls
}

// transportFor returns the client transport of a scheme
func transportFor(scheme string) transport.IRPCClientTransport {
	switch scheme {
	case "unix":
		return unix.NewUnixClientTransport()
	case "http":
		return httptransport.NewHttpClientTransport()
	case "ws":
		return ws.NewWSClientTransport()
	default:
		return tcp.NewTCPClientTransport()
	}
}

// serializerFor returns the serializer selected by a DSN parameter.
// The binary serializer is the default, it is the fastest and most compact.
func serializerFor(name string) (serializer.IRPCSerializer, error) {
	switch name {
	case "", "binary":
		return serializer.NewBinarySerializer(), nil
	case "json":
		return serializer.NewJSONSerializer(), nil
	case "gob":
		return serializer.NewGOBSerializer(), nil
	default:
		return nil, fmt.Errorf("unknown serializer %q", name)
	}
}
