package rewrite

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
)

// Backup copies path to path.backup, or path.backup1, path.backup2, ... when earlier
// backups exist. It never overwrites a previous backup and returns the new file's path.
func Backup(path string) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return "", err
	}

	for n := 0; ; n++ {
		candidate := path + ".backup"
		if n > 0 {
			candidate = fmt.Sprintf("%s.backup%d", path, n)
		}

		dst, err := os.OpenFile(candidate, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", err
		}

		if _, err := io.Copy(dst, src); err != nil {
			_ = dst.Close()
			_ = os.Remove(candidate)
			return "", err
		}
		if err := dst.Close(); err != nil {
			_ = os.Remove(candidate)
			return "", err
		}
		return candidate, nil
	}
}
