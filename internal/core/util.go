// Package core provides utility functions for gravedigger's scanning framework.
package core

import (
	"io/fs"
	"path/filepath"
	"strings"
)

// FindHiveFiles recursively finds files under root whose base name matches
// filename, case-insensitively. Unreadable subtrees are skipped rather than
// failing the walk, so a scan over a partially copied profile tree still
// yields every hive it can reach.
func FindHiveFiles(root, filename string) ([]string, error) {
	var hives []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Skip unreadable entries and keep walking
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if !d.IsDir() && strings.EqualFold(d.Name(), filename) {
			hives = append(hives, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return hives, nil
}

// UsernameForHive derives a username from a hive path. User hives live at the
// top of a profile directory, so the enclosing directory name is the profile's
// username.
func UsernameForHive(hivePath string) string {
	return filepath.Base(filepath.Dir(hivePath))
}
