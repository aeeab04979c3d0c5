// Package main provides a performance benchmarking tool for the Activity CLI.
// It ingests a fixture into the SQLite history store, then measures graph builds
// per project and graph type, running each test multiple times, treating the first
// successful cached run as cold and averaging the rest as warm, generating CSV output
// for performance analysis and documentation.
//
// Prerequisites:
// - activity binary installed and available in PATH
// - A YAML fixture with the projects to chart
//
// Usage: go run benchmark/main.go [fixture.yaml] [project...]
//
//	fixture.yaml: History fixture to ingest before benchmarking
//	project:      Project keys to chart (default: every project of the fixture)
package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// BenchmarkResult holds the result of a benchmark run (no-cache average, cold run and average of warm runs).
type BenchmarkResult struct {
	Project     string
	Graph       string
	NoCacheTime string
	ColdTime    string
	WarmTime    string
}

// BenchmarkConfig holds configuration for the benchmark run.
type BenchmarkConfig struct {
	FixturePath string
	Timeout     time.Duration
	NoCacheRuns int
	CacheRuns   int
	Projects    []string
	Graphs      []string
}

func main() {
	if len(os.Args) < 2 {
		fmt.Printf("Usage: %s [fixture.yaml] [project...]\n", os.Args[0])
		os.Exit(1)
	}

	config := BenchmarkConfig{
		FixturePath: os.Args[1],
		Timeout:     2 * time.Minute,
		NoCacheRuns: 3,
		CacheRuns:   4,
		Projects:    os.Args[2:],
		Graphs:      []string{"issues", "coverage", "duplications", "remediation"},
	}
	if len(config.Projects) == 0 {
		config.Projects = []string{"acme"}
	}

	if err := checkPrerequisites(config); err != nil {
		fmt.Printf("Prerequisites check failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Clearing cache...\n")
	clearCmd := exec.Command("activity", "cache", "clear", "--cache-backend", "sqlite")
	if output, err := clearCmd.CombinedOutput(); err != nil {
		fmt.Printf("Warning: failed to clear cache: %v\nOutput: %s\n", err, string(output))
	} else {
		fmt.Printf("Cache cleared successfully\n")
	}

	fmt.Printf("Ingesting %s...\n", config.FixturePath)
	ingestCmd := exec.Command("activity", "ingest", "--fixture", config.FixturePath)
	if output, err := ingestCmd.CombinedOutput(); err != nil {
		fmt.Printf("Failed to ingest fixture: %v\nOutput: %s\n", err, string(output))
		os.Exit(1)
	}

	results := runBenchmarks(config)

	if err := saveResults(results); err != nil {
		fmt.Printf("Failed to save results: %v\n", err)
		os.Exit(1)
	}

	printSummary(config, results)
}

// checkPrerequisites verifies that the activity binary and the fixture exist
func checkPrerequisites(config BenchmarkConfig) error {
	if _, err := exec.LookPath("activity"); err != nil {
		return fmt.Errorf("activity binary not found in PATH")
	}
	if _, err := os.Stat(config.FixturePath); os.IsNotExist(err) {
		return fmt.Errorf("fixture not found at %s", config.FixturePath)
	}
	return nil
}

// runBenchmarks executes all benchmark tests across configured projects
func runBenchmarks(config BenchmarkConfig) []BenchmarkResult {
	var results []BenchmarkResult

	fmt.Printf("Starting benchmark: %d projects, %d graphs, %v timeout, no-cache: %d runs, cache: %d runs\n",
		len(config.Projects), len(config.Graphs), config.Timeout, config.NoCacheRuns, config.CacheRuns)

	for _, project := range config.Projects {
		fmt.Printf("Benchmarking %s\n", project)
		for _, graph := range config.Graphs {
			results = append(results, runBenchmarkSuite(config, project, graph))
		}
	}

	return results
}

// runBenchmarkSuite runs both no-cache and cache benchmarks for one graph
func runBenchmarkSuite(config BenchmarkConfig, project, graph string) BenchmarkResult {
	fmt.Printf("Running %s graph on %s\n", graph, project)

	runPhase := func(cacheBackend string, numRuns int, phaseName string) (coldTime float64, avgTime string) {
		fmt.Printf("  %s phase (%d runs)\n", phaseName, numRuns)
		cold, times := runBenchmark(config, project, graph, cacheBackend, numRuns)
		if len(times) == 0 {
			avgTime = "TIMEOUT"
		} else {
			var sum float64
			for _, t := range times {
				sum += t
			}
			avgTime = fmt.Sprintf("%.3fs", sum/float64(len(times)))
		}
		return cold, avgTime
	}

	_, noCacheAvg := runPhase("none", config.NoCacheRuns, "No-cache")
	coldTime, warmAvg := runPhase("sqlite", config.CacheRuns, "Cache")

	coldTimeStr := "TIMEOUT"
	if coldTime > 0 {
		coldTimeStr = fmt.Sprintf("%.3fs", coldTime)
	}

	fmt.Printf("  No-cache average: %s, Cold time: %s, Warm average: %s\n", noCacheAvg, coldTimeStr, warmAvg)

	return BenchmarkResult{
		Project:     project,
		Graph:       graph,
		NoCacheTime: noCacheAvg,
		ColdTime:    coldTimeStr,
		WarmTime:    warmAvg,
	}
}

// runBenchmark builds one graph from the sql source multiple times with the given cache backend
func runBenchmark(config BenchmarkConfig, project, graph, cacheBackend string, numRuns int) (coldTime float64, warmTimes []float64) {
	args := []string{"graph", project, "--source", "sql", "--graph", graph, "--cache-backend", cacheBackend, "--color", "no"}

	var times []float64
	for run := 1; run <= numRuns; run++ {
		start := time.Now()
		cmd := exec.Command("activity", args...)

		done := make(chan bool, 1)
		var output []byte
		var cmdErr error

		go func() {
			output, cmdErr = cmd.CombinedOutput()
			done <- true
		}()

		select {
		case <-done:
			if cmdErr == nil && isSuccess(output) {
				times = append(times, time.Since(start).Seconds())
			}
		case <-time.After(config.Timeout):
			_ = cmd.Process.Kill()
		}
	}

	if len(times) > 0 {
		coldTime = times[0]
		warmTimes = times[1:]
	}
	return
}

// isSuccess checks if command output shows a displayed graph
func isSuccess(output []byte) bool {
	outputStr := string(output)
	return strings.Contains(outputStr, "graph (") && strings.Contains(outputStr, "Analyses:")
}

// saveResults writes benchmark results to a timestamped CSV file
func saveResults(results []BenchmarkResult) error {
	timestamp := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("/tmp/activity_benchmark_%s.csv", timestamp)

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

	if err := writer.Write([]string{"project", "graph", "no_cache_avg", "cold_time", "warm_avg"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, result := range results {
		if err := writer.Write([]string{result.Project, result.Graph, result.NoCacheTime, result.ColdTime, result.WarmTime}); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	fmt.Printf("Results saved to %s\n", filename)
	return nil
}

// printSummary displays the final benchmark results summary
func printSummary(config BenchmarkConfig, results []BenchmarkResult) {
	fmt.Printf("Benchmark complete\n")
	for _, graph := range config.Graphs {
		fmt.Printf("%s graph:\n", graph)
		for _, result := range results {
			if result.Graph == graph {
				fmt.Printf("  %-12s: No-cache: %s, Cold: %s, Warm: %s\n", result.Project, result.NoCacheTime, result.ColdTime, result.WarmTime)
			}
		}
	}
	fmt.Printf("Benchmark script completed successfully\n")
}
