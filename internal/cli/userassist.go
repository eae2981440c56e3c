// Package cli provides command-line interface implementation for gravedigger.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"gravedigger/internal/core"
	"gravedigger/internal/modules/win_userassist"
	"gravedigger/internal/parse"
	"gravedigger/internal/schema"

	"github.com/spf13/cobra"
)

// hiveFilename is the user hive this command scans for.
const hiveFilename = "NTUSER.DAT"

var (
	input      string
	output     string
	format     string
	since      string
	encryptAge string

	parallel    int
	hiveTimeout time.Duration
)

// userAssistCmd represents the userassist command.
var userAssistCmd = &cobra.Command{
	Use:   "userassist",
	Short: "Parse UserAssist execution history from NTUSER.DAT hives",
	Long: `The userassist command recursively scans a directory tree for NTUSER.DAT
hive files, decodes the UserAssist entries in each (program name, run count,
focus time, last execution), and writes a CSV or JSON report. The result can
optionally be encrypted using age public key encryption.`,
	RunE: runUserAssist,
}

func init() {
	// Define flags
	userAssistCmd.Flags().StringVarP(&input, "input", "i", "", "root folder to scan for NTUSER.DAT files")
	userAssistCmd.Flags().StringVarP(&output, "output", "o", "", "output folder for the report")
	userAssistCmd.Flags().StringVarP(&format, "format", "f", "csv", "report format (csv or json)")
	userAssistCmd.Flags().StringVar(&since, "since", "", "RFC3339 timestamp or duration like 7d, 72h, 15m, 30s, 2w; only entries executed at or after this are reported")
	userAssistCmd.Flags().IntVar(&parallel, "parallel", 4, "maximum concurrent hive parses (1-64)")
	userAssistCmd.Flags().DurationVar(&hiveTimeout, "hive-timeout", 30*time.Second, "per-hive timeout")
	userAssistCmd.Flags().StringVar(&encryptAge, "encrypt-age", "", "Age public key for report encryption (must start with age1)")

	userAssistCmd.MarkFlagRequired("input")
	userAssistCmd.MarkFlagRequired("output")
}

func runUserAssist(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	now := time.Now()

	// Create logger for minimal stderr output
	logger := log.New(os.Stderr, "", log.LstdFlags)

	// Validate and clamp parallelism
	if parallel < 1 {
		parallel = 1
	}
	if parallel > 64 {
		parallel = 64
	}

	// Validate hive timeout
	if hiveTimeout <= 0 {
		return fmt.Errorf("hive-timeout must be positive")
	}

	// Validate report format
	normalizedFormat, err := parse.ValidateFormat(format)
	if err != nil {
		return err
	}

	// Validate age public key if provided
	var agePublicKey string
	var ageRecipientSet bool
	if encryptAge != "" {
		if err := core.ValidateAgePublicKey(encryptAge); err != nil {
			return fmt.Errorf("invalid --encrypt-age: %w", err)
		}
		agePublicKey = encryptAge
		ageRecipientSet = true
	}

	// Parse and normalize since flag
	sinceNormalized, sinceCutoff, sinceWasSet, err := parse.NormalizeSince(since, now)
	if err != nil {
		return err
	}

	// Validate the input root
	inputRoot, err := filepath.Abs(input)
	if err != nil {
		return fmt.Errorf("failed to resolve input directory: %w", err)
	}
	if _, err := os.Stat(inputRoot); err != nil {
		return fmt.Errorf("input path does not exist: %s", inputRoot)
	}

	// Find hive files under the root
	logger.Printf("Scanning for %s files under %s", hiveFilename, inputRoot)
	hives, err := core.FindHiveFiles(inputRoot, hiveFilename)
	if err != nil {
		return fmt.Errorf("failed to scan for hive files: %w", err)
	}
	if len(hives) == 0 {
		return fmt.Errorf("no %s files found in %s", hiveFilename, inputRoot)
	}
	logger.Printf("Found %d %s files", len(hives), hiveFilename)

	// Create the output directory
	outDir, err := filepath.Abs(output)
	if err != nil {
		return fmt.Errorf("failed to resolve output directory: %w", err)
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// Parse all hives
	run := core.NewRun(win_userassist.NewWinUserAssist(), parallel, hiveTimeout, core.SystemClock{}, logger)
	results, records, scanErr := run.ScanAll(ctx, hives)
	if scanErr != nil {
		logger.Printf("Scan completed with errors: %v", scanErr)
	} else {
		logger.Printf("Scan completed successfully")
	}

	// Apply the since cutoff to the decoded records
	if sinceWasSet {
		records = core.FilterSince(records, sinceCutoff)
	}

	// Zero records across every hive is a run-level failure
	if len(records) == 0 {
		if scanErr != nil {
			return fmt.Errorf("no UserAssist entries found: %w", scanErr)
		}
		return fmt.Errorf("no UserAssist entries found in any of the processed files")
	}

	// Write the report
	logger.Printf("Writing %s report...", normalizedFormat)
	reportMeta, err := core.WriteReport(ctx, records, outDir, normalizedFormat, now, agePublicKey)
	if err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	logger.Printf("Report written: %s", reportMeta.Path)

	// Count successfully parsed hives
	hivesParsed := 0
	for _, result := range results {
		if result.OK {
			hivesParsed++
		}
	}

	// Build output structure
	runOutput := schema.NewRunOutput(
		inputRoot,
		len(hives),
		hivesParsed,
		reportMeta,
		normalizedFormat,
		ageRecipientSet,
		parallel,
		hiveTimeout,
		results,
		now,
	)

	// Set since fields if provided
	if sinceWasSet {
		runOutput.SetSince(since, sinceNormalized)
	}

	// Marshal and output JSON with pretty formatting
	jsonBytes, err := json.MarshalIndent(runOutput, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output JSON: %w", err)
	}

	fmt.Println(string(jsonBytes))

	// Return scan error as the command result, if any
	return scanErr
}
