package serve

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	cmdUtil "github.com/syndb/syndb/cmd/util"
	"github.com/syndb/syndb/rpc/common"
	"github.com/syndb/syndb/rpc/serializer"
	"github.com/syndb/syndb/rpc/server"
	"github.com/syndb/syndb/rpc/transport"
	"github.com/syndb/syndb/rpc/transport/http"
	"github.com/syndb/syndb/rpc/transport/tcp"
	"github.com/syndb/syndb/rpc/transport/unix"
	"github.com/syndb/syndb/rpc/transport/ws"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the syndb server",
		Long:    `Start the syndb server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is SYNDB_<flag> (e.g. SYNDB_TIMEOUT=15)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(initConfig)

	// add flags
	key := "databases"
	ServeCmd.PersistentFlags().String(key, "100=memtable", cmdUtil.WrapString("Comma-separated list of databases to serve. Format: ID=ENGINE where ENGINE is one of: memtable"))

	key = "shards"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("Number of table shards per memtable database (0 = one per CPU core)"))

	key = "data-dir"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Directory used for storing database snapshots. If unset, databases are volatile and lost on shutdown"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 5, cmdUtil.WrapString("Timeout in seconds"))

	key = "workers-per-conn"
	ServeCmd.PersistentFlags().Int(key, 16, cmdUtil.WrapString("Number of parallel request workers per client connection (ignored for http)"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:8080", cmdUtil.WrapString("The address on which the API will listen (e.g. localhost:8080, /tmp/syndb.sock, ...)"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// parse databases
	databasesConfig := viper.GetString("databases")
	serveCmdConfig.Databases = map[uint64]string{}
	for _, databaseConfig := range strings.Split(databasesConfig, ",") {
		parts := strings.Split(databaseConfig, "=")
		if len(parts) != 2 {
			return fmt.Errorf("invalid database format: %s (expected ID=ENGINE)", databaseConfig)
		}

		// Parse database ID
		databaseID, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid database ID %s: %v", parts[0], err)
		}

		// Parse engine type
		engineType := strings.TrimSpace(parts[1])
		if engineType != "memtable" {
			return fmt.Errorf("invalid engine type: %s (expected one of: memtable)", engineType)
		}

		if _, ok := serveCmdConfig.Databases[databaseID]; ok {
			return fmt.Errorf("duplicate database ID: %d", databaseID)
		}
		serveCmdConfig.Databases[databaseID] = engineType
	}

	// read the configuration from the command line flags and environment variables
	serveCmdConfig.Shards = viper.GetInt("shards")
	serveCmdConfig.DataDir = viper.GetString("data-dir")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.WorkersPerConn = viper.GetInt("workers-per-conn")
	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	return nil
}

// run starts the syndb server
func run(_ *cobra.Command, _ []string) error {

	// parse the serializer
	var s serializer.IRPCSerializer
	switch viper.GetString("serializer") {
	case "json":
		s = serializer.NewJSONSerializer()
	case "gob":
		s = serializer.NewGOBSerializer()
	case "binary":
		s = serializer.NewBinarySerializer()
	default:
		return fmt.Errorf("invalid serializer %s", viper.GetString("serializer"))
	}

	// Parse the transport
	var t transport.IRPCServerTransport
	switch viper.GetString("transport") {
	case "http":
		t = http.NewHttpServerTransport()
	case "tcp":
		t = tcp.NewTCPServerTransport()
	case "unix":
		t = unix.NewUnixServerTransport()
	case "ws":
		t = ws.NewWSServerTransport()
	default:
		return fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}

	serv := server.NewRPCServer(
		*serveCmdConfig,
		t,
		s,
	)

	return serv.Serve()
}

// initConfig reads in serveCmdConfig file and ENV variables if set.
func initConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("syndb")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}
