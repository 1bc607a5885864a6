// Package main provides a throughput benchmark for the grading pipeline.
// It serves one reference file-storage service per worker port, grades a fixed
// number of attached targets with different worker counts, treats the first run
// of each setting as cold and averages the rest as warm, and writes a CSV for
// performance analysis and documentation.
//
// Usage: go run benchmark/main.go [base-port]
//
//	base-port: first port to serve on; ports base-port..base-port+maxWorkers-1 must be free
package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/huangsam/apigrade/core"
	"github.com/huangsam/apigrade/core/filestorage"
	"github.com/huangsam/apigrade/internal/contract"
	"github.com/huangsam/apigrade/internal/filestore"
	"github.com/huangsam/apigrade/internal/lifecycle"
)

// BenchmarkResult holds the result of a benchmark setting (cold run and average of warm runs).
type BenchmarkResult struct {
	Workers  int
	Targets  int
	ColdTime string
	WarmTime string
	Rating   string
}

// BenchmarkConfig holds configuration for the benchmark run.
type BenchmarkConfig struct {
	BasePort     int
	Targets      int
	Runs         int
	WorkerCounts []int
}

func main() {
	// Parse command line arguments
	if len(os.Args) != 2 {
		fmt.Printf("Usage: %s [base-port]\n", os.Args[0])
		os.Exit(1)
	}
	basePort, err := strconv.Atoi(os.Args[1])
	if err != nil {
		fmt.Printf("Invalid base port %q: %v\n", os.Args[1], err)
		os.Exit(1)
	}

	config := BenchmarkConfig{
		BasePort:     basePort,
		Targets:      8,
		Runs:         4,
		WorkerCounts: []int{1, 2, 4},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := startServices(ctx, config); err != nil {
		fmt.Printf("Failed to start reference services: %v\n", err)
		os.Exit(1)
	}

	results, err := runBenchmarks(ctx, config)
	if err != nil {
		fmt.Printf("Benchmark failed: %v\n", err)
		os.Exit(1)
	}
	if err := saveResults(results); err != nil {
		fmt.Printf("Failed to save results: %v\n", err)
		os.Exit(1)
	}
	printSummary(results)
}

// startServices serves one reference service per worker port.
func startServices(ctx context.Context, config BenchmarkConfig) error {
	maxWorkers := 0
	for _, w := range config.WorkerCounts {
		maxWorkers = max(maxWorkers, w)
	}
	for i := range maxWorkers {
		dir, err := os.MkdirTemp("", "apigrade-benchmark-*")
		if err != nil {
			return err
		}
		s, err := filestore.New(dir, nil)
		if err != nil {
			return err
		}
		ln, err := net.Listen("tcp", lifecycle.Address("127.0.0.1", config.BasePort+i))
		if err != nil {
			return err
		}
		go func() {
			_ = filestore.Serve(ctx, ln, s)
		}()
	}
	return nil
}

// runBenchmarks grades the targets once per worker count and run.
func runBenchmarks(ctx context.Context, config BenchmarkConfig) ([]BenchmarkResult, error) {
	suite, err := filestorage.Suite(ctx, "")
	if err != nil {
		return nil, err
	}

	targets := make([]contract.Target, config.Targets)
	for i := range targets {
		targets[i] = contract.Target{Name: fmt.Sprintf("target-%d", i), ProjectID: "benchmark"}
	}

	var results []BenchmarkResult
	for _, workers := range config.WorkerCounts {
		cfg := &contract.Config{
			Host:           "127.0.0.1",
			Port:           config.BasePort,
			Timeout:        5 * time.Second,
			StartupTimeout: 5 * time.Second,
			Workers:        workers,
			Attach:         true,
			Targets:        targets,
		}

		var coldTime float64
		var warmTimes []float64
		rating := 0.0
		for run := range config.Runs {
			start := time.Now()
			reports, err := core.GradeTargets(ctx, cfg, nil, suite, nil)
			if err != nil {
				return nil, err
			}
			elapsed := time.Since(start).Seconds()
			if run == 0 {
				coldTime = elapsed
			} else {
				warmTimes = append(warmTimes, elapsed)
			}
			for _, r := range reports {
				rating += r.Rating
			}
		}

		results = append(results, BenchmarkResult{
			Workers:  workers,
			Targets:  config.Targets,
			ColdTime: fmt.Sprintf("%.3f", coldTime),
			WarmTime: fmt.Sprintf("%.3f", average(warmTimes)),
			Rating:   fmt.Sprintf("%.2f", rating/float64(config.Runs*config.Targets)),
		})
		fmt.Printf("Workers %d done\n", workers)
	}
	return results, nil
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}

// saveResults writes benchmark results to a timestamped CSV file
func saveResults(results []BenchmarkResult) error {
	timestamp := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("/tmp/apigrade_benchmark_%s.csv", timestamp)

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			fmt.Printf("Warning: failed to close file %s: %v\n", filename, closeErr)
		}
	}()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	if err := writer.Write([]string{"workers", "targets", "cold_time", "warm_avg", "avg_rating"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	// Write results
	for _, result := range results {
		if err := writer.Write([]string{strconv.Itoa(result.Workers), strconv.Itoa(result.Targets), result.ColdTime, result.WarmTime, result.Rating}); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	fmt.Printf("Results saved to %s\n", filename)
	return nil
}

// printSummary displays the final benchmark results summary
func printSummary(results []BenchmarkResult) {
	fmt.Printf("Benchmark complete\n")
	for _, result := range results {
		fmt.Printf("  %d workers, %d targets: Cold: %ss, Warm: %ss, Rating: %s\n",
			result.Workers, result.Targets, result.ColdTime, result.WarmTime, result.Rating)
	}
}
