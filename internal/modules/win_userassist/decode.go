// Package win_userassist provides UserAssist execution-history extraction from
// offline NTUSER.DAT registry hives for gravedigger.
package win_userassist

import (
	"encoding/binary"
	"math"
	"time"
)

// Format identifies which binary layout governs UserAssist value blobs under a
// GUID subtree.
type Format int

const (
	// FormatLegacy is the pre-Windows-7 (XP era) 16-byte layout.
	FormatLegacy Format = iota
	// FormatModern is the Windows-7-and-later 72-byte layout.
	FormatModern
)

// Version markers at or above this threshold use the modern layout.
const modernVersionThreshold = 5

// Sentinel strings used in place of timestamps that cannot be rendered.
const (
	NeverExecuted    = "Never"
	InvalidTimestamp = "Invalid timestamp"
	InvalidFocusTime = "Invalid focus time"
)

// timestampLayout is the UTC display format for all timestamp fields.
const timestampLayout = "2006-01-02 15:04:05"

// Seconds between the FILETIME epoch (1601-01-01) and the Unix epoch.
const windowsEpochOffsetSeconds = 11644473600

// Minimum blob sizes per format.
const (
	modernMinLength = 72
	legacyMinLength = 16
)

// Entry holds the fields unpacked from a single UserAssist value blob.
// FocusTime is empty for the legacy layout, which has no focus field.
type Entry struct {
	RunCount      uint32
	LastExecution string
	FocusTime     string
}

// SelectFormat decides the blob layout from a GUID subtree's optional Version
// marker. An absent marker means the legacy layout.
func SelectFormat(marker *uint32) Format {
	if marker != nil && *marker >= modernVersionThreshold {
		return FormatModern
	}
	return FormatLegacy
}

// DecodeName reverses the ROT13 obfuscation applied to UserAssist value
// names. Non-letters pass through unchanged, so the function is total and its
// own inverse.
func DecodeName(name string) string {
	result := make([]byte, len(name))
	for idx := 0; idx < len(name); idx++ {
		result[idx] = rot13byte(name[idx])
	}

	return string(result)
}

func rot13byte(b byte) byte {
	var a, z byte
	switch {
	case 'a' <= b && b <= 'z':
		a, z = 'a', 'z'
	case 'A' <= b && b <= 'Z':
		a, z = 'A', 'Z'
	default:
		return b
	}
	return (b-a+13)%(z-a+1) + a
}

// FiletimeToUTC converts a Windows FILETIME (100-nanosecond ticks since
// 1601-01-01 UTC) to a display string. Zero ticks, or ticks that truncate to
// zero microseconds, mean the program never executed and render as "Never"
// rather than as a 1601 date. Dates outside the representable year range
// render as "Invalid timestamp" instead of failing the decode.
func FiletimeToUTC(ticks uint64) string {
	if ticks == 0 {
		return NeverExecuted
	}
	micro := ticks / 10
	if micro == 0 {
		return NeverExecuted
	}

	secs := int64(micro/1000000) - windowsEpochOffsetSeconds
	nanos := int64(micro%1000000) * 1000
	t := time.Unix(secs, nanos).UTC()
	if t.Year() < 1601 || t.Year() > 9999 {
		return InvalidTimestamp
	}

	return t.Format(timestampLayout)
}

// DurationMSToUTC renders an accumulated focus-time duration in milliseconds
// as a timestamp offset from 1970-01-01 UTC. Displaying a duration as a
// timestamp is a quirk of how the field is defined in the report format and
// is preserved deliberately. Zero means "Never"; out-of-range values render
// as "Invalid focus time".
func DurationMSToUTC(ms uint64) string {
	if ms == 0 {
		return NeverExecuted
	}
	if ms > math.MaxInt64 {
		return InvalidFocusTime
	}

	t := time.UnixMilli(int64(ms)).UTC()
	if t.Year() > 9999 {
		return InvalidFocusTime
	}

	return t.Format(timestampLayout)
}

// DecodeEntry unpacks the fixed little-endian fields of a UserAssist value
// blob for the selected format. An undersized blob yields no result so the
// caller can skip the value and keep scanning; nothing here can abort a scan.
func DecodeEntry(data []byte, format Format) (Entry, bool) {
	switch format {
	case FormatModern:
		if len(data) < modernMinLength {
			return Entry{}, false
		}
		return Entry{
			RunCount:      binary.LittleEndian.Uint32(data[4:8]),
			FocusTime:     DurationMSToUTC(uint64(binary.LittleEndian.Uint32(data[12:16]))),
			LastExecution: FiletimeToUTC(binary.LittleEndian.Uint64(data[60:68])),
		}, true

	default:
		if len(data) < legacyMinLength {
			return Entry{}, false
		}
		return Entry{
			RunCount:      binary.LittleEndian.Uint32(data[4:8]),
			LastExecution: FiletimeToUTC(binary.LittleEndian.Uint64(data[8:16])),
		}, true
	}
}
