package win_userassist_test

import (
	"context"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gravedigger/internal/modules/win_userassist"
	"gravedigger/internal/registry"
)

// fakeValue implements registry.Value for driver tests.
type fakeValue struct {
	name    string
	data    []byte
	num     uint64
	numeric bool
}

func (v *fakeValue) Name() string { return v.name }

func (v *fakeValue) Data() ([]byte, error) { return v.data, nil }

func (v *fakeValue) Uint64() (uint64, error) {
	if !v.numeric {
		return 0, registry.ErrNotNumeric
	}
	return v.num, nil
}

// fakeKey implements registry.Key for driver tests.
type fakeKey struct {
	name    string
	subkeys []*fakeKey
	values  []*fakeValue
}

func (k *fakeKey) Name() string { return k.name }

func (k *fakeKey) Subkeys() ([]registry.Key, error) {
	var keys []registry.Key
	for _, subkey := range k.subkeys {
		keys = append(keys, subkey)
	}
	return keys, nil
}

func (k *fakeKey) Subkey(name string) (registry.Key, error) {
	for _, subkey := range k.subkeys {
		if strings.EqualFold(subkey.name, name) {
			return subkey, nil
		}
	}
	return nil, registry.ErrKeyNotFound
}

func (k *fakeKey) Value(name string) (registry.Value, error) {
	for _, value := range k.values {
		if strings.EqualFold(value.name, name) {
			return value, nil
		}
	}
	return nil, registry.ErrValueNotFound
}

func (k *fakeKey) Values() ([]registry.Value, error) {
	var values []registry.Value
	for _, value := range k.values {
		values = append(values, value)
	}
	return values, nil
}

// fakeHive implements registry.Hive over a fakeKey tree.
type fakeHive struct {
	root *fakeKey
}

func (h *fakeHive) OpenKey(path string) (registry.Key, error) {
	path = strings.ReplaceAll(path, "/", `\`)
	current := h.root
	for _, component := range strings.Split(path, `\`) {
		if component == "" {
			continue
		}
		var next *fakeKey
		for _, subkey := range current.subkeys {
			if strings.EqualFold(subkey.name, component) {
				next = subkey
				break
			}
		}
		if next == nil {
			return nil, registry.ErrKeyNotFound
		}
		current = next
	}
	return current, nil
}

func (h *fakeHive) Close() error { return nil }

// hiveWithGUIDs builds a hive whose UserAssist key contains the given GUID subkeys.
func hiveWithGUIDs(guids ...*fakeKey) *fakeHive {
	key := &fakeKey{name: "UserAssist", subkeys: guids}
	for _, name := range []string{"Explorer", "CurrentVersion", "Windows", "Microsoft", "Software"} {
		key = &fakeKey{name: name, subkeys: []*fakeKey{key}}
	}
	return &fakeHive{root: &fakeKey{name: "ROOT", subkeys: []*fakeKey{key}}}
}

func modernBlob(runCount, focusMS uint32, ticks uint64) []byte {
	data := make([]byte, 72)
	binary.LittleEndian.PutUint32(data[4:8], runCount)
	binary.LittleEndian.PutUint32(data[12:16], focusMS)
	binary.LittleEndian.PutUint64(data[60:68], ticks)
	return data
}

func legacyBlob(runCount uint32, ticks uint64) []byte {
	data := make([]byte, 16)
	binary.LittleEndian.PutUint32(data[4:8], runCount)
	binary.LittleEndian.PutUint64(data[8:16], ticks)
	return data
}

func TestExtractModernHive(t *testing.T) {
	guid := &fakeKey{
		name:   "{CEBFF5CD-ACE2-4F4F-9178-9926F41749EA}",
		values: []*fakeValue{{name: "Version", num: 5, numeric: true}},
		subkeys: []*fakeKey{{
			name: "Count",
			values: []*fakeValue{{
				name: "HRZR_EHACNGU:pnyp.rkr",
				data: modernBlob(3, 120000, 132513984000000000),
			}},
		}},
	}

	parser := win_userassist.NewWinUserAssist()
	records, err := parser.Extract(context.Background(), hiveWithGUIDs(guid),
		"alice", `/evidence/Users/alice/NTUSER.DAT`)
	require.NoError(t, err)
	require.Len(t, records, 1)

	record := records[0]
	assert.Equal(t, "alice", record.Username)
	assert.Equal(t, "UEME_RUNPATH:calc.exe", record.Name)
	assert.Equal(t, "2021-01-01 00:00:00", record.LastExecution)
	assert.Equal(t, "{CEBFF5CD-ACE2-4F4F-9178-9926F41749EA}", record.GUID)
	assert.Equal(t, uint32(3), record.Count)
	assert.Equal(t, "1970-01-01 00:02:00", record.FocusTime)
	assert.Equal(t, `/evidence/Users/alice/NTUSER.DAT`, record.SourceFile)
}

func TestExtractLegacyHive(t *testing.T) {
	// No Version value at all: the legacy layout governs the subtree
	guid := &fakeKey{
		name: "{75048700-EF1F-11D0-9888-006097DEACF9}",
		subkeys: []*fakeKey{{
			name: "Count",
			values: []*fakeValue{{
				name: "HRZR_EHACNGU",
				data: legacyBlob(5, 0),
			}},
		}},
	}

	parser := win_userassist.NewWinUserAssist()
	records, err := parser.Extract(context.Background(), hiveWithGUIDs(guid),
		"bob", `/evidence/Users/bob/NTUSER.DAT`)
	require.NoError(t, err)
	require.Len(t, records, 1)

	record := records[0]
	assert.Equal(t, "UEME_RUNPATH", record.Name)
	assert.Equal(t, uint32(5), record.Count)
	assert.Equal(t, "Never", record.LastExecution)
	assert.Equal(t, "N/A", record.FocusTime)
}

func TestExtractVersionBelowThreshold(t *testing.T) {
	// Version 4 still selects the legacy layout, so a 16-byte blob decodes
	guid := &fakeKey{
		name:   "{GUID-XP}",
		values: []*fakeValue{{name: "Version", num: 4, numeric: true}},
		subkeys: []*fakeKey{{
			name:   "Count",
			values: []*fakeValue{{name: "HRZR", data: legacyBlob(1, 0)}},
		}},
	}

	parser := win_userassist.NewWinUserAssist()
	records, err := parser.Extract(context.Background(), hiveWithGUIDs(guid), "u", "src")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "N/A", records[0].FocusTime)
}

func TestExtractSkipsMalformedValues(t *testing.T) {
	guid := &fakeKey{
		name:   "{GUID-MODERN}",
		values: []*fakeValue{{name: "Version", num: 5, numeric: true}},
		subkeys: []*fakeKey{{
			name: "Count",
			values: []*fakeValue{
				{name: "rzcgl", data: nil},                       // empty data
				{name: "fubeg", data: make([]byte, 20)},          // undersized for modern
				{name: "tbbq", data: modernBlob(1, 0, 0)},        // decodes
			},
		}},
	}

	parser := win_userassist.NewWinUserAssist()
	records, err := parser.Extract(context.Background(), hiveWithGUIDs(guid), "u", "src")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "good", records[0].Name)
	assert.Equal(t, "Never", records[0].LastExecution)
	assert.Equal(t, "Never", records[0].FocusTime)
}

func TestExtractSkipsGUIDWithoutCount(t *testing.T) {
	noCount := &fakeKey{
		name:   "{GUID-EMPTY}",
		values: []*fakeValue{{name: "Version", num: 5, numeric: true}},
	}
	withCount := &fakeKey{
		name: "{GUID-OK}",
		subkeys: []*fakeKey{{
			name:   "Count",
			values: []*fakeValue{{name: "n", data: legacyBlob(2, 0)}},
		}},
	}

	parser := win_userassist.NewWinUserAssist()
	records, err := parser.Extract(context.Background(),
		hiveWithGUIDs(noCount, withCount), "u", "src")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "{GUID-OK}", records[0].GUID)
}

func TestExtractNoUserAssistKey(t *testing.T) {
	hive := &fakeHive{root: &fakeKey{name: "ROOT"}}

	parser := win_userassist.NewWinUserAssist()
	records, err := parser.Extract(context.Background(), hive, "u", "src")
	assert.NoError(t, err)
	assert.Empty(t, records)
}

func TestExtractNonNumericVersion(t *testing.T) {
	// A Version value that is not a DWORD/QWORD is treated as absent
	guid := &fakeKey{
		name:   "{GUID-BADVER}",
		values: []*fakeValue{{name: "Version", data: []byte("five")}},
		subkeys: []*fakeKey{{
			name:   "Count",
			values: []*fakeValue{{name: "n", data: legacyBlob(7, 0)}},
		}},
	}

	parser := win_userassist.NewWinUserAssist()
	records, err := parser.Extract(context.Background(), hiveWithGUIDs(guid), "u", "src")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, uint32(7), records[0].Count)
	assert.Equal(t, "N/A", records[0].FocusTime)
}
