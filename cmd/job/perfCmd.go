package job

import (
	"encoding/csv"
	"fmt"
	"github.com/ValentinKolb/dTube/cmd/util"
	"github.com/ValentinKolb/dTube/rpc/client"
	"github.com/ValentinKolb/dTube/rpc/common"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"log"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for beanstalkd brokers",
		RunE:    run,
		PreRunE: processPerfConfig,
	}
	perfTubePrefix       = "__perf"
	perfLargeValueSizeKB = 64
	perfNumThreads       = 10
	perfSkip             = make([]string, 0)
	perfConfig           *common.ClientConfig

	// perfRunID keeps the tubes of concurrent perf runs apart
	perfRunID = uuid.NewString()
	// latencies holds one timer per test
	latencies = gometrics.NewRegistry()
	// perEndpoint counts the jobs each broker handled per test
	perEndpoint = xsync.NewMapOf[string, *xsync.Counter]()
)

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. put,stats)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark, every thread uses its own pool"))
	key = "large-value-size"
	perfTestCmd.Flags().Int(key, 64, util.WrapString("How large the job body for the put-large test should be (in KB)"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfLargeValueSizeKB = viper.GetInt("large-value-size")
	perfNumThreads = viper.GetInt("threads")
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

func run(_ *cobra.Command, _ []string) error {

	fmt.Println("Performance testing tool for beanstalkd brokers")

	config, err := util.GetClientConfig()
	if err != nil {
		return err
	}
	perfConfig = config

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(config.String())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Printf("Run: %s\n", perfRunID)
	fmt.Println()

	fmt.Println("starting tests...")

	// Create results map
	results := make(map[string]testing.BenchmarkResult)

	putResult := testing.Benchmark(func(b *testing.B) {
		if shouldSkip("put") {
			return
		}
		tube := perfTube("put")
		b.Cleanup(func() { drainTube("put", tube) })

		b.SetParallelism(perfNumThreads)
		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			p := threadPool()
			defer p.Close()
			for pb.Next() {
				timed("put", func() (*client.Job, error) {
					return p.PutInTube(tube, []byte("test"), common.DefaultPriority, 0, common.DefaultTTR)
				})
			}
		})
	})

	results["put"] = putResult
	printResult("put", putResult)

	putLargeResult := testing.Benchmark(func(b *testing.B) {
		if shouldSkip("put-large") {
			return
		}
		largeValue := make([]byte, perfLargeValueSizeKB*1024)
		tube := perfTube("put-large")
		b.Cleanup(func() { drainTube("put-large", tube) })

		b.SetParallelism(perfNumThreads)
		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			p := threadPool()
			defer p.Close()
			for pb.Next() {
				timed("put-large", func() (*client.Job, error) {
					return p.PutInTube(tube, largeValue, common.DefaultPriority, 0, common.DefaultTTR)
				})
			}
		})
	})

	results["put-large"] = putLargeResult
	printResult("put-large", putLargeResult)

	reserveResult := testing.Benchmark(func(b *testing.B) {
		if shouldSkip("reserve") {
			return
		}
		tube := perfTube("reserve")
		b.Cleanup(func() { drainTube("reserve", tube) })

		b.SetParallelism(perfNumThreads)
		b.ResetTimer()

		// every iteration puts a job and reserves and deletes a job
		b.RunParallel(func(pb *testing.PB) {
			p := threadPool()
			defer p.Close()
			if err := p.WatchOnly(tube); err != nil {
				log.Printf("(reserve) - error watching tube: %v\n", err)
				return
			}
			for pb.Next() {
				if _, err := p.PutInTube(tube, []byte("test"), common.DefaultPriority, 0, common.DefaultTTR); err != nil {
					log.Printf("(reserve) - error putting job: %v\n", err)
					continue
				}
				timed("reserve", func() (*client.Job, error) {
					job, ok, err := p.Reserve(time.Second)
					if err != nil || !ok {
						return nil, err
					}
					return job, p.Delete(job)
				})
			}
		})
	})

	results["reserve"] = reserveResult
	printResult("reserve", reserveResult)

	statsResult := testing.Benchmark(func(b *testing.B) {
		if shouldSkip("stats") {
			return
		}

		b.SetParallelism(perfNumThreads)
		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			p := threadPool()
			defer p.Close()
			for pb.Next() {
				timed("stats", func() (*client.Job, error) {
					_, err := p.Stats()
					return nil, err
				})
			}
		})
	})

	results["stats"] = statsResult
	printResult("stats", statsResult)

	// Print latencies and job distribution
	fmt.Println()
	printLatencies()
	fmt.Println()
	printDistribution()

	// Write results to csv is specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results, config); err != nil {
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

func perfTube(test string) string {
	return fmt.Sprintf("%s-%s-%s", perfTubePrefix, test, perfRunID)
}

// threadPool creates the pool of one benchmark goroutine, pools are not shared between goroutines
func threadPool() *client.Pool {
	return client.NewPool(*perfConfig, util.GetDialer())
}

// timed runs op, records its latency and counts the job on the broker that handled it
func timed(test string, op func() (*client.Job, error)) {
	start := time.Now()
	job, err := op()
	gometrics.GetOrRegisterTimer(test, latencies).UpdateSince(start)
	if err != nil {
		log.Printf("(%s) - error: %v\n", test, err)
		return
	}
	if job != nil {
		counter, _ := perEndpoint.LoadOrCompute(test+" "+job.Endpoint(), xsync.NewCounter)
		counter.Inc()
	}
}

// drainTube deletes every job left in a perf tube
func drainTube(test, tube string) {
	p := threadPool()
	defer p.Close()
	if err := p.WatchOnly(tube); err != nil {
		log.Printf("(%s) - error watching tube for cleanup: %v\n", test, err)
		return
	}
	for {
		job, ok, err := p.Reserve(0)
		if err != nil {
			log.Printf("(%s) - error draining tube: %v\n", test, err)
			return
		}
		if !ok {
			return
		}
		if err := p.Delete(job); err != nil {
			log.Printf("(%s) - error deleting job: %v\n", test, err)
		}
	}
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result testing.BenchmarkResult) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	// Print the formatted result
	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\n", test, nsPerOp, time.Duration(nsPerOp), opsPerSec)
}

// printLatencies prints the latency percentiles of every test
func printLatencies() {
	fmt.Println("Latencies (p50 / p95 / p99):")
	latencies.Each(func(test string, m interface{}) {
		timer, ok := m.(gometrics.Timer)
		if !ok {
			return
		}
		ps := timer.Percentiles([]float64{0.5, 0.95, 0.99})
		fmt.Printf("%-20s%s / %s / %s\n", test, time.Duration(ps[0]), time.Duration(ps[1]), time.Duration(ps[2]))
	})
}

// printDistribution prints how many jobs every broker handled per test
func printDistribution() {
	fmt.Println("Jobs per broker:")
	var keys []string
	perEndpoint.Range(func(key string, _ *xsync.Counter) bool {
		keys = append(keys, key)
		return true
	})
	sort.Strings(keys)
	for _, key := range keys {
		counter, _ := perEndpoint.Load(key)
		fmt.Printf("%-40s%d\n", key, counter.Value())
	}
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult, config *common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "Skipped",
		"Endpoints", "ConnectTimeout", "IOTimeout", "ReconnectBackoff",
		"Threads", "LargeValueSizeKB", "Run",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	endpoints := make([]string, 0, len(config.Endpoints))
	for _, e := range config.Endpoints {
		endpoints = append(endpoints, e.Name())
	}

	// Write test results
	for test, result := range results {
		var nsPerOp float64
		var opsPerSec float64
		var skipped string

		if result.NsPerOp() == 0 {
			skipped = "true"
		} else {
			skipped = "false"
			nsPerOp = math.Max(float64(result.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			skipped,
			strings.Join(endpoints, ";"),
			config.ConnectTimeout.String(),
			config.IOTimeout.String(),
			config.ReconnectBackoff.String(),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfLargeValueSizeKB),
			perfRunID,
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
