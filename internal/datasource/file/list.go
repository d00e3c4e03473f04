// Package file contains helpers for reading local files as datasources:
// listing the extract files of a directory and opening them through the
// ISO-8859-1 decoder the PGFN extracts require.
package file

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// ListRegular returns the paths of the regular files directly inside dir,
// sorted by name. Subdirectories, symlinks to directories, and other
// non-regular entries are skipped without error.
func ListRegular(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	out := make([]string, 0, len(entries))
	for _, e := range entries {
		p := filepath.Join(dir, e.Name())
		// Stat follows symlinks so a link to a regular file still counts.
		fi, err := os.Stat(p)
		if err != nil || !fi.Mode().IsRegular() {
			continue
		}
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}
