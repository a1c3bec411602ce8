package storage

import (
	"errors"
	"io/fs"
	"os"
)

// sidecarSuffixes are the files SQLite keeps next to a database in WAL mode.
var sidecarSuffixes = []string{"-wal", "-shm"}

// OutputBytes returns the combined size of the run outputs at paths. A
// database path also counts its WAL and shared-memory files. Empty paths,
// "-" (stdout) and missing files count as zero.
func OutputBytes(paths ...string) (int64, error) {
	var total int64
	for _, p := range paths {
		if p == "" || p == "-" {
			continue
		}
		n, err := fileSize(p)
		if err != nil {
			return 0, err
		}
		total += n
		for _, suffix := range sidecarSuffixes {
			n, err := fileSize(p + suffix)
			if err != nil {
				return 0, err
			}
			total += n
		}
	}
	return total, nil
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if !info.Mode().IsRegular() {
		return 0, nil
	}
	return info.Size(), nil
}
