package processor

import (
	"io/fs"
	"os"
	"path/filepath"
)

// writeReplacing writes data next to destPath and renames it into place, so a
// crash never leaves a half-written image under the original name.
func writeReplacing(destPath string, data []byte, mode fs.FileMode) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".wio-*.tmp")
	if err != nil {
		return ioFailure("create temp", err)
	}
	defer os.Remove(tmpFile.Name())

	if err := tmpFile.Chmod(mode.Perm()); err != nil {
		_ = tmpFile.Close()
		return ioFailure("chmod temp", err)
	}
	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return ioFailure("write", err)
	}
	if err := tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		return ioFailure("sync", err)
	}
	if err := tmpFile.Close(); err != nil {
		return ioFailure("close", err)
	}

	if err := replaceFile(tmpFile.Name(), destPath); err != nil {
		return ioFailure("replace", err)
	}
	return nil
}

func replaceFile(tmpPath, destPath string) error {
	if err := os.Rename(tmpPath, destPath); err == nil {
		return nil
	}
	if err := os.Remove(destPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return os.Rename(tmpPath, destPath)
}
