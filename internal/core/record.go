// Package core provides the foundational framework for gravedigger's hive scanning.
package core

// Record is one normalized UserAssist entry extracted from a hive. The
// timestamp fields always hold either a UTC display string, "Never", or an
// explicit invalid marker; they are never empty.
type Record struct {
	Username      string `json:"username"`
	Name          string `json:"name"`
	LastExecution string `json:"last_execution"`
	GUID          string `json:"guid"`
	Count         uint32 `json:"count"`
	FocusTime     string `json:"focus_time"`
	SourceFile    string `json:"source_file"`
}
