package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"sqlite-benchmark/internal/database"
	"sqlite-benchmark/internal/runner"
	"sqlite-benchmark/internal/workloads/crud"
)

func main() {
	var exitCode int
	defer func() {
		os.Exit(exitCode)
	}()

	dbPath := flag.String("db", "benchmark.db", "path to the SQLite database file")
	duration := flag.Duration("duration", crud.DefaultPhaseBudget, "duration of each phase")

	flag.Parse()

	logger := log.New(os.Stderr, "", log.LstdFlags)

	handle, err := database.Open(*dbPath)
	if err != nil {
		log.Printf("Failed to open database: %v", err)
		exitCode = 1
		return
	}
	defer handle.Close()

	workload := &crud.Test{}

	if err := workload.Setup(context.Background(), handle, logger); err != nil {
		log.Printf("Failed to setup workload: %v", err)
		exitCode = 1
		return
	}
	defer func() {
		if err := workload.Teardown(context.Background(), handle, logger); err != nil {
			log.Printf("Failed to teardown workload: %v", err)
		}
	}()

	fmt.Printf("Running CRUD benchmark against %s...\n", *dbPath)

	result, err := runner.Run(context.Background(), handle, workload, *duration, logger)
	if err != nil {
		log.Printf("Benchmark failed: %v", err)
		exitCode = 1
		return
	}

	jsonOutput, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Printf("Failed to marshal result: %v", err)
		exitCode = 1
		return
	}
	fmt.Println(string(jsonOutput))
}
