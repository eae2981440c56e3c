package win_userassist

import (
	"context"
	"errors"
	"fmt"

	"gravedigger/internal/core"
	"gravedigger/internal/registry"
)

// userAssistKeyPath locates the UserAssist key inside a user hive.
const userAssistKeyPath = `Software\Microsoft\Windows\CurrentVersion\Explorer\UserAssist`

// focusTimeNotApplicable marks the focus_time field for the legacy layout,
// which carries no focus field.
const focusTimeNotApplicable = "N/A"

// WinUserAssist extracts UserAssist execution history from offline user hives.
type WinUserAssist struct{}

// NewWinUserAssist creates a new UserAssist hive parser.
func NewWinUserAssist() *WinUserAssist {
	return &WinUserAssist{}
}

// Name returns the parser's identifier.
func (w *WinUserAssist) Name() string {
	return "windows/userassist"
}

// ParseHive opens a hive file and extracts its UserAssist records. A hive
// without a UserAssist key yields no records and no error; only a hive that
// cannot be opened or parsed at all is reported as failed.
func (w *WinUserAssist) ParseHive(ctx context.Context, hivePath string) ([]core.Record, error) {
	hive, err := registry.NewOfflineOpener(hivePath).Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open hive: %w", err)
	}
	defer hive.Close()

	return w.Extract(ctx, hive, core.UsernameForHive(hivePath), hivePath)
}

// Extract walks the UserAssist key of an open hive and decodes every value
// under each GUID's Count subkey. Missing keys and malformed values are
// skipped; the walk never fails a scan over a structural gap in one subtree.
func (w *WinUserAssist) Extract(ctx context.Context, hive registry.Hive, username, sourceFile string) ([]core.Record, error) {
	userAssistKey, err := hive.OpenKey(userAssistKeyPath)
	if err != nil {
		if errors.Is(err, registry.ErrKeyNotFound) {
			// Not every user hive has UserAssist data
			return nil, nil
		}
		return nil, err
	}

	guidKeys, err := userAssistKey.Subkeys()
	if err != nil {
		return nil, err
	}

	var records []core.Record
	for _, guidKey := range guidKeys {
		// Check for context cancellation between subtrees
		select {
		case <-ctx.Done():
			return records, ctx.Err()
		default:
		}

		// The Version marker is decided once per GUID subtree and governs
		// every sibling value's layout. Absent or unreadable means legacy.
		format := SelectFormat(readVersionMarker(guidKey))

		countKey, err := guidKey.Subkey("Count")
		if err != nil {
			continue
		}

		values, err := countKey.Values()
		if err != nil {
			continue
		}

		for _, value := range values {
			data, err := value.Data()
			if err != nil || len(data) == 0 {
				continue
			}

			entry, ok := DecodeEntry(data, format)
			if !ok {
				continue
			}

			focusTime := entry.FocusTime
			if format == FormatLegacy {
				focusTime = focusTimeNotApplicable
			}

			records = append(records, core.Record{
				Username:      username,
				Name:          DecodeName(value.Name()),
				LastExecution: entry.LastExecution,
				GUID:          guidKey.Name(),
				Count:         entry.RunCount,
				FocusTime:     focusTime,
				SourceFile:    sourceFile,
			})
		}
	}

	return records, nil
}

// readVersionMarker reads a GUID subtree's optional Version value. A missing
// or non-numeric value returns nil.
func readVersionMarker(guidKey registry.Key) *uint32 {
	value, err := guidKey.Value("Version")
	if err != nil {
		return nil
	}

	n, err := value.Uint64()
	if err != nil {
		return nil
	}

	marker := uint32(n)
	return &marker
}
