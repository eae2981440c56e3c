// Package core provides the foundational framework for gravedigger's hive scanning.
package core

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"
)

// Parser defines the interface a hive parser must implement to be driven by a Run.
type Parser interface {
	// Name returns the parser's identifier, used for reporting.
	Name() string
	// ParseHive extracts records from a single hive file.
	ParseHive(ctx context.Context, hivePath string) ([]Record, error)
}

// Result captures the outcome of scanning a single hive file.
type Result struct {
	Hive      string    `json:"hive"`
	OK        bool      `json:"ok"`
	Error     string    `json:"error"`
	Records   int       `json:"records"`
	StartedAt time.Time `json:"started_utc"`
	EndedAt   time.Time `json:"ended_utc"`
}

// Clock provides time functions for testability.
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock using the system time.
type SystemClock struct{}

// Now returns the current system time.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// Run orchestrates scanning of multiple hive files with concurrency control.
// The decode path is pure per value, so hives can be parsed in parallel and
// accumulated at a single collection point.
type Run struct {
	parser      Parser
	parallelism int
	hiveTimeout time.Duration
	clock       Clock
	logger      *log.Logger
}

// NewRun creates a new Run orchestrator.
func NewRun(parser Parser, parallelism int, hiveTimeout time.Duration, clock Clock, logger *log.Logger) *Run {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}

	// Clamp parallelism to reasonable bounds
	if parallelism < 1 {
		parallelism = 1
	}
	if parallelism > 64 {
		parallelism = 64
	}

	return &Run{
		parser:      parser,
		parallelism: parallelism,
		hiveTimeout: hiveTimeout,
		clock:       clock,
		logger:      logger,
	}
}

// hiveOutcome pairs a Result with the records that hive produced.
type hiveOutcome struct {
	result  Result
	records []Record
}

// ScanAll parses all hive files concurrently with the configured constraints.
// It returns a result per hive, including failed ones, plus the accumulated
// records. A failed hive contributes zero records but never stops the scan;
// failures are aggregated into the returned error.
func (r *Run) ScanAll(ctx context.Context, hives []string) ([]Result, []Record, error) {
	if len(hives) == 0 {
		return []Result{}, nil, nil
	}

	// Create semaphore for concurrency control
	semaphore := make(chan struct{}, r.parallelism)

	outcomes := make(chan hiveOutcome, len(hives))
	var wg sync.WaitGroup

	for _, hive := range hives {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()

			// Acquire semaphore
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			outcomes <- r.scanHive(ctx, path)
		}(hive)
	}

	wg.Wait()
	close(outcomes)

	// Collect results and accumulate records
	var allResults []Result
	var allRecords []Record
	var firstError error
	errorCount := 0

	for outcome := range outcomes {
		allResults = append(allResults, outcome.result)
		allRecords = append(allRecords, outcome.records...)
		if !outcome.result.OK {
			if firstError == nil {
				firstError = fmt.Errorf("hive %s failed: %s", outcome.result.Hive, outcome.result.Error)
			}
			errorCount++
		}
	}

	// Return aggregated error if any hives failed
	var combinedError error
	if errorCount > 0 {
		if errorCount == 1 {
			combinedError = firstError
		} else {
			combinedError = fmt.Errorf("%s (and %d other hive errors)", firstError.Error(), errorCount-1)
		}
	}

	return allResults, allRecords, combinedError
}

// scanHive parses a single hive with timeout and error handling.
func (r *Run) scanHive(parentCtx context.Context, hivePath string) hiveOutcome {
	startTime := r.clock.Now().UTC()

	// Create hive-specific timeout context
	ctx, cancel := context.WithTimeout(parentCtx, r.hiveTimeout)
	defer cancel()

	records, err := r.parser.ParseHive(ctx, hivePath)
	endTime := r.clock.Now().UTC()

	if err != nil {
		r.logger.Printf("Hive %s failed: %v", hivePath, err)
		return hiveOutcome{result: Result{
			Hive:      hivePath,
			OK:        false,
			Error:     err.Error(),
			StartedAt: startTime,
			EndedAt:   endTime,
		}}
	}

	r.logger.Printf("Hive %s parsed: %d entries", hivePath, len(records))
	return hiveOutcome{
		result: Result{
			Hive:      hivePath,
			OK:        true,
			Error:     "",
			Records:   len(records),
			StartedAt: startTime,
			EndedAt:   endTime,
		},
		records: records,
	}
}
