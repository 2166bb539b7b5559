package row

import (
	"encoding/csv"
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/syndb/syndb/cmd/util"
	"github.com/syndb/syndb/lib/driver"
	"github.com/syndb/syndb/rpc/common"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for syndb servers",
		Long:    "",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfTable          = "__perf"
	perfLargeRowSizeKB = 100
	perfNumThreads     = 10
	perfPKSpread       = 100
	perfSkip           = make([]string, 0)
)

func init() {
	// add flags
	key := "skip"
	RowCommands.PersistentFlags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. insert,fetch)"))
	key = "threads"
	RowCommands.PersistentFlags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "large-row-size"
	RowCommands.PersistentFlags().Int(key, 100, util.WrapString("How large the data for the insert-large test should be (in KB)"))
	key = "pks"
	RowCommands.PersistentFlags().Int(key, 100, util.WrapString("How many different primary keys to use for the tests"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfLargeRowSizeKB = viper.GetInt("large-row-size")
	perfPKSpread = viper.GetInt("pks")
	perfNumThreads = viper.GetInt("threads")
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

// perfResult bundles the throughput numbers from testing.Benchmark with the
// latency distribution recorded by the go-metrics timer.
type perfResult struct {
	bench testing.BenchmarkResult
	timer gometrics.Timer
}

func runPerf(_ *cobra.Command, _ []string) error {

	fmt.Println("Performance testing tool for syndb servers")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(util.GetClientConfig().String())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Println()

	fmt.Println("starting tests...")

	// Create results map
	results := make(map[string]perfResult)

	runBench := func(name string, prepare func(iter func(func(pk uint64))), op func(counter int, getPK func(int) uint64) error) {
		timer := gometrics.NewTimer()

		bench := testing.Benchmark(func(b *testing.B) {
			if shouldSkip(name) {
				return
			}

			// prepare pks
			getPK, iter := getPKs()

			if prepare != nil {
				prepare(iter)
			}

			// cleanup
			b.Cleanup(func() {
				iter(func(pk uint64) {
					err := rpcConn.Delete(perfTable, pk)
					if err != nil {
						log.Printf("(%s) - error deleting row: %v\n", name, err)
					}
				})
			})

			b.SetParallelism(perfNumThreads)

			b.ResetTimer()

			b.RunParallel(func(pb *testing.PB) {
				counter := 0
				for pb.Next() {
					start := time.Now()
					err := op(counter, getPK)
					timer.UpdateSince(start)
					if err != nil {
						log.Printf("(%s) - error: %v\n", name, err)
					}
					counter++
				}
			})
		})

		results[name] = perfResult{bench: bench, timer: timer}
		printResult(name, bench, timer)
	}

	// pk wraparound turns later inserts into conflicts, fall back to update
	runBench("insert",
		nil,
		func(counter int, getPK func(int) uint64) error {
			err := rpcConn.Insert(perfTable, getPK(counter), []byte("test"))
			if err != nil {
				// overwrite on wraparound
				return rpcConn.Update(perfTable, getPK(counter), []byte("test"))
			}
			return nil
		})

	largeRow := make([]byte, perfLargeRowSizeKB*1024)
	runBench("insert-large",
		nil,
		func(counter int, getPK func(int) uint64) error {
			_, err := rpcConn.InsertIfAbsent(perfTable, getPK(counter), largeRow)
			return err
		})

	seedRows := func(iter func(func(pk uint64))) {
		iter(func(pk uint64) {
			if _, err := rpcConn.InsertIfAbsent(perfTable, pk, []byte("test")); err != nil {
				log.Printf("(seed) - error inserting row: %v\n", err)
			}
		})
	}

	runBench("fetch",
		seedRows,
		func(counter int, getPK func(int) uint64) error {
			_, _, err := rpcConn.Fetch(perfTable, getPK(counter))
			return err
		})

	runBench("fetch-miss",
		nil,
		func(counter int, getPK func(int) uint64) error {
			// pks above the spread are never inserted
			_, _, err := rpcConn.Fetch(perfTable, getPK(counter)+uint64(perfPKSpread)*1000)
			return err
		})

	runBench("delete",
		seedRows,
		func(counter int, getPK func(int) uint64) error {
			return rpcConn.Delete(perfTable, getPK(counter))
		})

	runBench("scan",
		seedRows,
		func(_ int, _ func(int) uint64) error {
			return rpcConn.Scan(perfTable, func(driver.Row) bool { return true })
		})

	runBench("mixed",
		seedRows,
		func(counter int, getPK func(int) uint64) error {
			pk := getPK(counter)
			switch counter % 4 {
			case 0: // insert or overwrite
				_, err := rpcConn.InsertIfAbsent(perfTable, pk, []byte("test"))
				return err
			case 1: // fetch
				_, _, err := rpcConn.Fetch(perfTable, pk)
				return err
			case 2: // delete
				return rpcConn.Delete(perfTable, pk)
			default: // fetch again
				_, _, err := rpcConn.Fetch(perfTable, pk)
				return err
			}
		})

	// Write results to csv if specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results, util.GetClientConfig()); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	// Check if the test is in the skip list
	for _, skip := range perfSkip {
		if test == skip {
			return true
		}
	}
	return false
}

// creates an array of test pks and functions to work with them
func getPKs() (func(int) uint64, func(func(uint64))) {
	pks := make([]uint64, perfPKSpread)
	for i := 0; i < perfPKSpread; i++ {
		pks[i] = uint64(i + 1)
	}

	// Function to get a pk by index (with wraparound)
	getPK := func(i int) uint64 {
		return pks[i%perfPKSpread]
	}

	// Function to iterate over all pks and apply a function to each
	iteratePKs := func(fn func(uint64)) {
		for _, pk := range pks {
			fn(pk)
		}
	}

	return getPK, iteratePKs
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result testing.BenchmarkResult, timer gometrics.Timer) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	ps := timer.Percentiles([]float64{0.5, 0.95, 0.99})

	// Print the formatted result
	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\tp50=%s p95=%s p99=%s\n",
		test, nsPerOp, time.Duration(nsPerOp), opsPerSec,
		time.Duration(ps[0]), time.Duration(ps[1]), time.Duration(ps[2]))
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]perfResult, config *common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "P50", "P95", "P99", "Skipped",
		"Endpoints", "TimeoutSec", "RetryCount", "ConnectionsPerEndpoint",
		"DatabaseID", "Serializer", "Transport",
		"Threads", "LargeRowSizeKB", "PK Count",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	// Write test results
	for test, result := range results {
		var nsPerOp float64
		var opsPerSec float64
		var skipped string

		if result.bench.NsPerOp() == 0 {
			skipped = "true"
			nsPerOp = 0
			opsPerSec = 0
		} else {
			skipped = "false"
			nsPerOp = math.Max(float64(result.bench.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}

		ps := result.timer.Percentiles([]float64{0.5, 0.95, 0.99})

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			time.Duration(ps[0]).String(),
			time.Duration(ps[1]).String(),
			time.Duration(ps[2]).String(),
			skipped,
			strings.Join(config.Endpoints, ";"),
			strconv.Itoa(config.TimeoutSecond),
			strconv.Itoa(config.RetryCount),
			strconv.Itoa(config.ConnectionsPerEndpoint),
			strconv.FormatUint(util.GetDatabaseID(), 10),
			viper.GetString("serializer"),
			viper.GetString("transport"),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfLargeRowSizeKB),
			strconv.Itoa(perfPKSpread),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
