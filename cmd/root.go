package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/syndb/syndb/cmd/row"
	"github.com/syndb/syndb/cmd/serve"
	"github.com/syndb/syndb/cmd/util"
)

const (
	Version = "0.4.2"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "syndb",
		Short: "synchronous database bridge",
		Long: fmt.Sprintf(`syndb (v%s)

An embeddable row store with a synchronous driver surface,
bridged onto concurrent callers via per-engine portals.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of syndb",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("syndb v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(row.RowCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "binary", util.WrapString("serializer to use (json, gob, binary)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "tcp", util.WrapString("transport to use (http, tcp, unix, ws)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
