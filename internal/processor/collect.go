package processor

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"wio/pkg/imgutil"
)

// Collect returns the candidate images under root. A file root yields itself
// when its extension is recognised. A directory root yields its immediate
// children, or its whole subtree when recursive is set, in lexical walk order.
// No match is not an error here; the caller decides what an empty set means.
func Collect(root string, recursive bool) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("collect %s: %w", root, err)
	}

	if !info.IsDir() {
		if isCandidate(root) {
			return []string{root}, nil
		}
		return nil, nil
	}

	var files []string
	if !recursive {
		entries, err := os.ReadDir(root)
		if err != nil {
			return nil, fmt.Errorf("collect %s: %w", root, err)
		}
		for _, e := range entries {
			path := filepath.Join(root, e.Name())
			if isCandidate(path) && isRegularFile(path, e) {
				files = append(files, path)
			}
		}
		return files, nil
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		if isCandidate(path) && isRegularFile(path, d) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("collect %s: %w", root, err)
	}
	return files, nil
}

// isRegularFile accepts regular files and symlinks that resolve to one.
// Symlinked directories are never descended into.
func isRegularFile(path string, d fs.DirEntry) bool {
	if d.Type().IsRegular() {
		return true
	}
	if d.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// isCandidate filters on extension. Leftover temporaries from an interrupted
// PNG run carry a .png extension and are skipped explicitly.
func isCandidate(name string) bool {
	if strings.HasSuffix(strings.ToLower(name), TempSuffix) {
		return false
	}
	return imgutil.Supported(name)
}
