package wire

import (
	"os"
	"path/filepath"
)

// SaveToFile writes a snapshot to filename through writeFunc. The snapshot
// is written to a temp file in the same directory and atomically renamed
// into place, so a crash mid-save never leaves a truncated file under the
// target name. writeFunc receives the raw *os.File because the snapshot
// format requires seeking to backpatch the offset directory.
func SaveToFile(filename string, writeFunc func(*os.File) error) error {
	dir := filepath.Dir(filename)
	base := filepath.Base(filename)

	tmp, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	// Match typical file permissions (best-effort).
	_ = tmp.Chmod(0644)

	if err := writeFunc(tmp); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmpName, filename); err != nil {
		return err
	}

	// Best-effort: fsync the directory so the rename is durable on POSIX.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}

	// Success: prevent deferred cleanup from removing the final file.
	tmpName = ""
	return nil
}

// LoadFromFile opens filename and hands the raw *os.File to readFunc.
// Loaders need both the shared cursor and positioned reads, so the file is
// passed through unbuffered.
func LoadFromFile(filename string, readFunc func(*os.File) error) error {
	f, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	return readFunc(f)
}
