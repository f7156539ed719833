package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ensureDir creates the parent directory of path if it does not exist.
func ensureDir(path string) error {
	dir := filepath.Dir(filepath.Clean(path))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("ensure directory %q: %w", dir, err)
	}
	return nil
}

// writeSnapshot marshals payload as indented JSON and commits it to path
// through a temporary file rename, so an interrupted write leaves the
// previous snapshot intact. The file stays human-readable and loadable
// without the running process.
func writeSnapshot(path string, payload any) error {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// loadSnapshot reads the JSON snapshot at path into dst. A missing file is
// not an error; it reports found=false so the caller starts empty.
func loadSnapshot(path string, dst any) (found bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("read snapshot: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("decode snapshot: %w", err)
	}
	return true, nil
}
