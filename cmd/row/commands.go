package row

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/syndb/syndb/lib/driver"
)

var (
	insertCmd = &cobra.Command{
		Use:   "insert [table] [pk] [data]",
		Short: "Inserts a new row",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			table := args[0]
			pk, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("pk must be a number: %w", err)
			}
			if err := rpcConn.Insert(table, pk, []byte(args[2])); err != nil {
				return err
			} else {
				fmt.Println("insert successfully")
			}
			return nil
		},
	}
	insertIfAbsentCmd = &cobra.Command{
		Use:   "insertIfAbsent [table] [pk] [data]",
		Short: "Inserts a new row only if the primary key does not exist yet",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			table := args[0]
			pk, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("pk must be a number: %w", err)
			}
			if inserted, err := rpcConn.InsertIfAbsent(table, pk, []byte(args[2])); err != nil {
				return err
			} else {
				fmt.Printf("inserted=%t\n", inserted)
			}
			return nil
		},
	}
	updateCmd = &cobra.Command{
		Use:   "update [table] [pk] [data]",
		Short: "Overwrites an existing row",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			table := args[0]
			pk, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("pk must be a number: %w", err)
			}
			if err := rpcConn.Update(table, pk, []byte(args[2])); err != nil {
				return err
			} else {
				fmt.Println("update successfully")
			}
			return nil
		},
	}
	fetchCmd = &cobra.Command{
		Use:   "fetch [table] [pk]",
		Short: "Reads the row for a primary key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			table := args[0]
			pk, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("pk must be a number: %w", err)
			}
			if row, found, err := rpcConn.Fetch(table, pk); err != nil {
				return err
			} else {
				fmt.Printf("table=%s, pk=%d, found=%v, version=%d, data=%s\n", table, pk, found, row.Version, row.Data)
			}
			return nil
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [table] [pk]",
		Short: "Deletes a row",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			table := args[0]
			pk, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("pk must be a number: %w", err)
			}
			if err := rpcConn.Delete(table, pk); err != nil {
				return err
			} else {
				fmt.Println("delete successfully")
			}
			return nil
		},
	}
	scanCmd = &cobra.Command{
		Use:   "scan [table]",
		Short: "Lists all rows of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table := args[0]
			count := 0
			err := rpcConn.Scan(table, func(row driver.Row) bool {
				fmt.Printf("pk=%d, version=%d, data=%s\n", row.PK, row.Version, row.Data)
				count++
				return true
			})
			if err != nil {
				return err
			}
			fmt.Printf("%d row(s)\n", count)
			return nil
		},
	}
	infoCmd = &cobra.Command{
		Use:   "info",
		Short: "Prints metadata about the remote database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := rpcDriver.GetInfo()
			if err != nil {
				return err
			}
			fmt.Printf("driver=%s, size=%d bytes\n", info.DriverType, info.SizeBytes)
			fmt.Printf("features=%v\n", info.SupportedFeatures)
			if info.Metadata != nil {
				fmt.Printf("metadata=%v\n", info.Metadata)
			}
			return nil
		},
	}
)
