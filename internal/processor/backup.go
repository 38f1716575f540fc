package processor

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
)

// BackupPath is the sibling that holds the untouched original.
func BackupPath(path string) string {
	return path + BackupSuffix
}

// EnsureBackup copies path to its backup sibling unless one already exists.
// An existing backup is never overwritten, so the first run's original
// survives any number of later runs. created reports whether this call wrote it.
func EnsureBackup(path string) (string, bool, error) {
	bak := BackupPath(path)

	if _, err := os.Stat(bak); err == nil {
		return bak, false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return bak, false, fmt.Errorf("%w: stat %s: %w", ErrBackupFailure, bak, err)
	}

	if err := copyPreserving(path, bak); err != nil {
		return bak, false, fmt.Errorf("%w: %w", ErrBackupFailure, err)
	}

	srcInfo, err := os.Stat(path)
	if err != nil {
		return bak, true, fmt.Errorf("%w: stat %s: %w", ErrBackupFailure, path, err)
	}
	bakInfo, err := os.Stat(bak)
	if err != nil {
		return bak, true, fmt.Errorf("%w: backup missing after copy: %w", ErrBackupFailure, err)
	}
	if bakInfo.Size() != srcInfo.Size() {
		return bak, true, fmt.Errorf("%w: backup is %d bytes, source is %d", ErrBackupFailure, bakInfo.Size(), srcInfo.Size())
	}

	return bak, true, nil
}

// copyPreserving copies src to dst byte for byte and carries over mode and
// timestamps. dst is opened with O_EXCL so a concurrent creator wins cleanly.
func copyPreserving(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil
		}
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return err
	}

	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}
