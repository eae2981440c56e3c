// Package registry provides read-only access to offline Windows registry hive
// files behind a minimal key/value interface, so callers never depend on a
// specific hive-parsing implementation.
package registry

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"www.velocidex.com/golang/regparser"
)

var (
	// ErrKeyNotFound is returned when a requested key does not exist in the hive.
	ErrKeyNotFound = errors.New("registry key not found")
	// ErrValueNotFound is returned when a requested value does not exist in a key.
	ErrValueNotFound = errors.New("registry value not found")
	// ErrNotNumeric is returned when a value cannot be read as an integer.
	ErrNotNumeric = errors.New("registry value is not numeric")
)

// Hive represents an open registry hive.
type Hive interface {
	// OpenKey resolves a key path. Separators may be \ or /, matching is
	// case-insensitive as in the live registry.
	OpenKey(path string) (Key, error)
	// Close releases the underlying reader.
	Close() error
}

// Key represents a registry key (a node with subkeys and values).
type Key interface {
	Name() string
	Subkeys() ([]Key, error)
	Subkey(name string) (Key, error)
	Value(name string) (Value, error)
	Values() ([]Value, error)
}

// Value represents a registry value.
type Value interface {
	Name() string
	// Data returns the raw value bytes.
	Data() ([]byte, error)
	// Uint64 returns the value as an integer for DWORD/QWORD typed values.
	Uint64() (uint64, error)
}

// OfflineOpener opens a registry hive from a file on disk.
type OfflineOpener struct {
	Filepath string
}

// NewOfflineOpener creates a new OfflineOpener for the given hive file.
func NewOfflineOpener(filepath string) *OfflineOpener {
	return &OfflineOpener{Filepath: filepath}
}

// Open parses the hive file and returns a Hive for it.
func (o *OfflineOpener) Open() (Hive, error) {
	f, err := os.Open(o.Filepath)
	if err != nil {
		return nil, err
	}

	reg, err := regparser.NewRegistry(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to parse hive %s: %w", o.Filepath, err)
	}

	return &offlineHive{registry: reg, reader: f}, nil
}

// offlineHive wraps regparser to provide offline (from file) hive access.
type offlineHive struct {
	registry *regparser.Registry
	reader   io.ReadCloser
}

// OpenKey descends from the root cell one path component at a time. Matching
// is case-insensitive since registry key names are.
func (o *offlineHive) OpenKey(path string) (Key, error) {
	root := o.rootKey()
	if root == nil {
		return nil, ErrKeyNotFound
	}

	current := root
	path = strings.ReplaceAll(path, "/", "\\")
	for _, component := range strings.Split(path, "\\") {
		if component == "" {
			continue
		}

		var next *regparser.CM_KEY_NODE
		for _, subkey := range current.Subkeys() {
			if strings.EqualFold(subkey.Name(), component) {
				next = subkey
				break
			}
		}
		if next == nil {
			return nil, ErrKeyNotFound
		}
		current = next
	}

	return &offlineKey{key: current}, nil
}

// rootKey returns the hive's root key node from the base block's root cell.
func (o *offlineHive) rootKey() *regparser.CM_KEY_NODE {
	rootCell := o.registry.Profile.HCELL(o.registry.Reader,
		0x1000+int64(o.registry.BaseBlock.RootCell()))
	return rootCell.KeyNode()
}

// Close closes the underlying reader.
func (o *offlineHive) Close() error {
	return o.reader.Close()
}

// offlineKey wraps a regparser.CM_KEY_NODE.
type offlineKey struct {
	key *regparser.CM_KEY_NODE
}

// Name returns the name of the key.
func (o *offlineKey) Name() string {
	return o.key.Name()
}

// Subkeys returns the subkeys of the key.
func (o *offlineKey) Subkeys() ([]Key, error) {
	var subkeys []Key
	for _, subkey := range o.key.Subkeys() {
		subkeys = append(subkeys, &offlineKey{key: subkey})
	}

	return subkeys, nil
}

// Subkey returns the named subkey, matching case-insensitively.
func (o *offlineKey) Subkey(name string) (Key, error) {
	for _, subkey := range o.key.Subkeys() {
		if strings.EqualFold(subkey.Name(), name) {
			return &offlineKey{key: subkey}, nil
		}
	}

	return nil, ErrKeyNotFound
}

// Value returns the named value, matching case-insensitively.
func (o *offlineKey) Value(name string) (Value, error) {
	for _, value := range o.key.Values() {
		if strings.EqualFold(value.ValueName(), name) {
			return &offlineValue{value: value}, nil
		}
	}

	return nil, ErrValueNotFound
}

// Values returns all values contained in the key.
func (o *offlineKey) Values() ([]Value, error) {
	var values []Value
	for _, value := range o.key.Values() {
		values = append(values, &offlineValue{value: value})
	}

	return values, nil
}

// offlineValue wraps a regparser.CM_KEY_VALUE.
type offlineValue struct {
	value *regparser.CM_KEY_VALUE
}

// Name returns the name of the value.
func (o *offlineValue) Name() string {
	return o.value.ValueName()
}

// Data returns the raw bytes contained in the value.
func (o *offlineValue) Data() ([]byte, error) {
	return o.value.ValueData().Data, nil
}

// Uint64 returns the value as an integer for DWORD/QWORD typed values.
func (o *offlineValue) Uint64() (uint64, error) {
	data := o.value.ValueData()
	switch data.Type {
	case regparser.REG_DWORD, regparser.REG_QWORD, regparser.REG_DWORD_BIG_ENDIAN:
		return data.Uint64, nil
	default:
		return 0, ErrNotNumeric
	}
}
