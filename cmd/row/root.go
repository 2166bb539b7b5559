package row

import (
	"github.com/spf13/cobra"
	"github.com/syndb/syndb/cmd/util"
	"github.com/syndb/syndb/lib/driver"
	"github.com/syndb/syndb/rpc/client"
)

var (
	rpcDriver driver.Driver
	rpcConn   driver.Conn

	// RowCommands represents the row command group
	RowCommands = &cobra.Command{
		Use:               "row",
		Short:             "Perform row operations against a syndb server",
		PersistentPreRunE: setupRowClient,
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			if rpcConn != nil {
				_ = rpcConn.Close()
			}
			if rpcDriver != nil {
				return rpcDriver.Close()
			}
			return nil
		},
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	// Add common RPC flags to the row command
	util.SetupRPCClientFlags(RowCommands)

	// Set the default database ID for row operations
	RowCommands.PersistentFlags().Int("database", 100, util.WrapString("ID of the database to connect to"))

	// Add subcommands
	RowCommands.AddCommand(insertCmd)
	RowCommands.AddCommand(insertIfAbsentCmd)
	RowCommands.AddCommand(updateCmd)
	RowCommands.AddCommand(fetchCmd)
	RowCommands.AddCommand(delCmd)
	RowCommands.AddCommand(scanCmd)
	RowCommands.AddCommand(infoCmd)
	RowCommands.AddCommand(perfTestCmd)
}

// setupRowClient initializes the remote driver and opens a connection
func setupRowClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	// Get client configuration components
	config := util.GetClientConfig()
	databaseID := util.GetDatabaseID()

	// Get serializer and transport
	s, err := util.GetSerializer()
	if err != nil {
		return err
	}

	t, err := util.GetTransport()
	if err != nil {
		return err
	}

	// Create the remote driver
	rpcDriver, err = client.NewRPCDriver(
		databaseID,
		*config,
		t,
		s,
	)
	if err != nil {
		return err
	}

	rpcConn, err = rpcDriver.Open()
	return err
}
