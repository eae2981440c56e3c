// Package core provides report writing and encryption functionality for gravedigger.
package core

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"filippo.io/age"
)

// FormatCSV and FormatJSON are the supported report encodings.
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// recordTimeLayout matches the display format of Record timestamp fields.
const recordTimeLayout = "2006-01-02 15:04:05"

// csvHeader is the fixed header row for CSV reports.
var csvHeader = []string{"username", "name", "last_execution", "guid", "count", "focus_time", "source_file"}

// ReportMetadata contains information about the written report.
type ReportMetadata struct {
	Path         string `json:"report_path"`
	Encrypted    bool   `json:"encrypted"`
	RecordCount  int    `json:"record_count"`
	BytesWritten int64  `json:"bytes_written"`
}

// WriteReport writes the records into outDir as a CSV or JSON report,
// optionally encrypting the stream with the provided age public key.
func WriteReport(ctx context.Context, records []Record, outDir, format string, timestamp time.Time, agePublicKey string) (*ReportMetadata, error) {
	// Generate output filename
	timeStr := timestamp.UTC().Format("20060102T150405Z")
	baseFilename := fmt.Sprintf("userassist_%s.%s", timeStr, format)

	var outputPath string
	var encrypted bool

	if agePublicKey != "" {
		outputPath = filepath.Join(outDir, baseFilename+".age")
		encrypted = true
	} else {
		outputPath = filepath.Join(outDir, baseFilename)
		encrypted = false
	}

	// Create output file
	outFile, err := os.Create(outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file %s: %w", outputPath, err)
	}
	defer outFile.Close()

	// Set up the writer pipeline
	var encWriter io.WriteCloser
	var sink io.Writer = outFile

	if encrypted {
		// Parse the age recipient
		recipient, err := age.ParseX25519Recipient(agePublicKey)
		if err != nil {
			return nil, fmt.Errorf("failed to parse age public key: %w", err)
		}

		// Create encrypted writer on top of the file
		encWriter, err = age.Encrypt(outFile, recipient)
		if err != nil {
			return nil, fmt.Errorf("failed to create age encryption writer: %w", err)
		}
		sink = encWriter
	}

	// Track plaintext bytes in case the file size is unavailable later
	bytesCounter := &countingWriter{wrapped: sink}

	switch format {
	case FormatJSON:
		err = writeJSONReport(ctx, bytesCounter, records)
	default:
		err = writeCSVReport(ctx, bytesCounter, records)
	}
	if err != nil {
		return nil, err
	}

	// Close the encryption writer to flush the final chunk
	if encrypted {
		if err := encWriter.Close(); err != nil {
			return nil, fmt.Errorf("failed to close age encryption writer: %w", err)
		}
	}

	// Get the final file size
	var bytesWritten int64
	if stat, err := outFile.Stat(); err == nil {
		bytesWritten = stat.Size()
	} else {
		bytesWritten = bytesCounter.count
	}

	return &ReportMetadata{
		Path:         outputPath,
		Encrypted:    encrypted,
		RecordCount:  len(records),
		BytesWritten: bytesWritten,
	}, nil
}

// writeCSVReport writes the fixed header row followed by one row per record.
func writeCSVReport(ctx context.Context, w io.Writer, records []Record) error {
	csvWriter := csv.NewWriter(w)

	if err := csvWriter.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, record := range records {
		// Check for context cancellation
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		row := []string{
			record.Username,
			record.Name,
			record.LastExecution,
			record.GUID,
			strconv.FormatUint(uint64(record.Count), 10),
			record.FocusTime,
			record.SourceFile,
		}
		if err := csvWriter.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}

// writeJSONReport writes the records as an indented JSON array.
func writeJSONReport(ctx context.Context, w io.Writer, records []Record) error {
	// Check for context cancellation before the single encode pass
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	// Emit [] rather than null for an empty report
	if records == nil {
		records = []Record{}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(records); err != nil {
		return fmt.Errorf("failed to encode JSON report: %w", err)
	}
	return nil
}

// FilterSince returns the records whose last execution is at or after the
// cutoff. Records that never executed, or whose timestamp could not be
// rendered, cannot be shown to fall inside the window and are dropped.
func FilterSince(records []Record, cutoff time.Time) []Record {
	var kept []Record
	for _, record := range records {
		t, err := time.Parse(recordTimeLayout, record.LastExecution)
		if err != nil {
			continue
		}
		if !t.Before(cutoff) {
			kept = append(kept, record)
		}
	}
	return kept
}

// countingWriter wraps another writer and counts bytes written.
type countingWriter struct {
	wrapped io.Writer
	count   int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.wrapped.Write(p)
	c.count += int64(n)
	return n, err
}

// ValidateAgePublicKey validates that a string is a valid age public key.
func ValidateAgePublicKey(key string) error {
	if !strings.HasPrefix(key, "age1") {
		return fmt.Errorf("age public key must start with 'age1'")
	}

	_, err := age.ParseX25519Recipient(key)
	if err != nil {
		return fmt.Errorf("invalid age public key: %w", err)
	}

	return nil
}
