// Package schema defines the data structures for gravedigger's output formats.
package schema

import (
	"time"

	"gravedigger/internal/core"
)

// RunOutput represents the complete JSON output structure for a userassist command execution.
type RunOutput struct {
	Command         string        `json:"command"`
	InputRoot       string        `json:"input_root"`
	HivesFound      int           `json:"hives_found"`
	HivesParsed     int           `json:"hives_parsed"`
	RecordCount     int           `json:"record_count"`
	ReportPath      string        `json:"report_path"`
	Format          string        `json:"format"`
	Encrypted       bool          `json:"encrypted"`
	AgeRecipientSet bool          `json:"age_recipient_set"`
	Parallelism     int           `json:"parallelism"`
	HiveTimeout     string        `json:"hive_timeout"`
	HiveResults     []core.Result `json:"hive_results"`
	BytesWritten    int64         `json:"bytes_written"`
	TimestampUTC    string        `json:"timestamp_utc"`

	// Optional fields for forward compatibility
	Since              string `json:"since,omitempty"`
	SinceNormalizedUTC string `json:"since_normalized_utc,omitempty"`
}

// NewRunOutput creates a new RunOutput with the provided parameters.
func NewRunOutput(
	inputRoot string,
	hivesFound int,
	hivesParsed int,
	report *core.ReportMetadata,
	format string,
	ageRecipientSet bool,
	parallelism int,
	hiveTimeout time.Duration,
	hiveResults []core.Result,
	timestamp time.Time,
) *RunOutput {
	return &RunOutput{
		Command:         "userassist",
		InputRoot:       inputRoot,
		HivesFound:      hivesFound,
		HivesParsed:     hivesParsed,
		RecordCount:     report.RecordCount,
		ReportPath:      report.Path,
		Format:          format,
		Encrypted:       report.Encrypted,
		AgeRecipientSet: ageRecipientSet,
		Parallelism:     parallelism,
		HiveTimeout:     hiveTimeout.String(),
		HiveResults:     hiveResults,
		BytesWritten:    report.BytesWritten,
		TimestampUTC:    timestamp.UTC().Format(time.RFC3339),
	}
}

// SetSince sets the since-related fields for the output.
func (ro *RunOutput) SetSince(since, sinceNormalized string) {
	if since != "" {
		ro.Since = since
	}
	if sinceNormalized != "" {
		ro.SinceNormalizedUTC = sinceNormalized
	}
}
