package ingest

import (
	"errors"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// DirStats summarizes a directory scan.
type DirStats struct {
	Scanned uint32
	Matched uint32
	Hidden  uint32
}

// ScanDirectory walks root and returns the inbox files under it, sorted.
// Hidden files and directories are skipped when skipHidden is set.
func ScanDirectory(root string, skipHidden bool) ([]string, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root path is required")
	}
	var (
		stats DirStats
		out   []string
	)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if skipHidden && path != root && IsHidden(path) {
			stats.Hidden++
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		stats.Scanned++
		if AllowedExt(filepath.Ext(path)) {
			stats.Matched++
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, stats, err
	}
	sort.Strings(out)
	return out, stats, nil
}
