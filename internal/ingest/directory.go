package ingest

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// FileResult records what happened to one file found under a record directory.
type FileResult struct {
	Path    string
	Type    string
	Ignored string
}

type DirStats struct {
	Scanned    uint32
	Matched    uint32
	Duplicates uint32
}

// Discovered is the document set of one record directory.
type Discovered struct {
	Root      string
	Documents map[string]string // document type -> path
	Files     []FileResult
	Stats     DirStats
}

// Types returns the discovered document types in sorted order.
func (d Discovered) Types() []string {
	out := make([]string, 0, len(d.Documents))
	for t := range d.Documents {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// DocumentType derives a document type from a file name: the base name up to
// its first dot, lowercased. "ine.front.pdf" is an "ine".
func DocumentType(path string) string {
	base := filepath.Base(path)
	if i := strings.IndexByte(base, '.'); i >= 0 {
		base = base[:i]
	}
	return strings.ToLower(strings.TrimSpace(base))
}

// DiscoverDirectory walks root and maps every PDF to the document type named
// by its file name. When two files claim the same type the lexically first
// path wins and the other is reported as ignored.
func DiscoverDirectory(root string, skipHidden bool) (Discovered, error) {
	if strings.TrimSpace(root) == "" {
		return Discovered{}, errors.New("root path is required")
	}
	d := Discovered{Root: root, Documents: map[string]string{}}

	// WalkDir visits entries in lexical order.
	err := filepath.WalkDir(root, func(path string, e fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			d.Files = append(d.Files, FileResult{Path: path, Ignored: walkErr.Error()})
			return nil
		}
		if skipHidden && path != root && IsHidden(path) {
			if e.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if e.IsDir() {
			return nil
		}
		d.Stats.Scanned++
		if !isPDFName(path) {
			return nil
		}
		d.Stats.Matched++

		t := DocumentType(path)
		if t == "" {
			d.Files = append(d.Files, FileResult{Path: path, Ignored: "no document type in file name"})
			return nil
		}
		if first, dup := d.Documents[t]; dup {
			d.Stats.Duplicates++
			d.Files = append(d.Files, FileResult{Path: path, Type: t, Ignored: "duplicate of " + first})
			return nil
		}
		d.Documents[t] = path
		d.Files = append(d.Files, FileResult{Path: path, Type: t})
		return nil
	})
	if err != nil {
		return d, fmt.Errorf("walk %s: %w", root, err)
	}
	return d, nil
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}

func isPDFName(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}
