package rewrite

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrExists is returned when an extracted file is already present and Force is off.
	ErrExists = errors.New("extracted file already exists")
	// ErrPartialWrite means some files reached their destination and could not be taken back.
	ErrPartialWrite = errors.New("partial write")
)

// ConflictError lists the destinations that already exist.
type ConflictError struct {
	Paths []string
}

func (e *ConflictError) Error() string {
	if len(e.Paths) == 1 {
		return fmt.Sprintf("%s: %s", ErrExists, e.Paths[0])
	}
	return fmt.Sprintf("%d extracted files already exist (first: %s)", len(e.Paths), e.Paths[0])
}

func (e *ConflictError) Is(target error) bool { return target == ErrExists }

// PartialWriteError reports files left behind by a commit that failed halfway.
type PartialWriteError struct {
	Orphans []string
	Err     error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("%s: %v; left on disk: %s", ErrPartialWrite, e.Err, strings.Join(e.Orphans, ", "))
}

func (e *PartialWriteError) Is(target error) bool { return target == ErrPartialWrite }

func (e *PartialWriteError) Unwrap() error { return e.Err }

// CommitOptions controls how a plan is written.
type CommitOptions struct {
	// Force allows replacing extracted files that already exist.
	Force    bool
	PermFile os.FileMode
	PermDir  os.FileMode
}

type staged struct {
	tmp     string
	dest    string
	existed bool
}

// Commit writes every unit and then the main file. All content is first staged in
// temporary files next to each destination; nothing is renamed into place until staging
// has fully succeeded. Units are renamed first and the main file last. If a rename fails
// the units already placed are removed again, and any that cannot be are reported in a
// *PartialWriteError.
func Commit(units []Unit, mainPath, mainText string, opts CommitOptions) error {
	if opts.PermFile == 0 {
		opts.PermFile = 0o644
	}
	if opts.PermDir == 0 {
		opts.PermDir = 0o755
	}

	var stage []staged
	cleanup := func() {
		for _, s := range stage {
			_ = os.Remove(s.tmp)
		}
	}

	for _, u := range units {
		s, err := stageFile(u.Path, u.Content, opts)
		if err != nil {
			cleanup()
			return fmt.Errorf("stage %s: %w", u.Path, err)
		}
		stage = append(stage, s)
	}
	main, err := stageFile(mainPath, mainText, opts)
	if err != nil {
		cleanup()
		return fmt.Errorf("stage %s: %w", mainPath, err)
	}
	stage = append(stage, main)

	if !opts.Force {
		var existing []string
		for _, s := range stage[:len(stage)-1] {
			if s.existed {
				existing = append(existing, s.dest)
			}
		}
		if len(existing) > 0 {
			cleanup()
			return &ConflictError{Paths: existing}
		}
	}

	for i, s := range stage {
		if err := os.Rename(s.tmp, s.dest); err != nil {
			for _, rest := range stage[i:] {
				_ = os.Remove(rest.tmp)
			}
			return rollback(stage[:i], fmt.Errorf("rename %s: %w", s.dest, err))
		}
	}
	return nil
}

// rollback removes newly created destinations. Files that replaced existing ones cannot
// be restored and are reported as orphans.
func rollback(placed []staged, cause error) error {
	var orphans []string
	for _, s := range placed {
		if s.existed {
			orphans = append(orphans, s.dest)
			continue
		}
		if err := os.Remove(s.dest); err != nil && !errors.Is(err, fs.ErrNotExist) {
			orphans = append(orphans, s.dest)
		}
	}
	if len(orphans) == 0 {
		return cause
	}
	return &PartialWriteError{Orphans: orphans, Err: cause}
}

func stageFile(dest, content string, opts CommitOptions) (staged, error) {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, opts.PermDir); err != nil {
		return staged{}, err
	}

	existed := false
	perm := opts.PermFile
	if _, err := os.Lstat(dest); err == nil {
		existed = true
		// a replaced file keeps its mode
		if fi, err := os.Stat(dest); err == nil && fi.Mode().IsRegular() {
			perm = fi.Mode().Perm()
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return staged{}, err
	}

	tmp, err := os.CreateTemp(dir, ".asmsplit-*")
	if err != nil {
		return staged{}, err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.WriteString(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return staged{}, err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return staged{}, err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return staged{}, err
	}
	_ = os.Chmod(tmpPath, perm)

	return staged{tmp: tmpPath, dest: dest, existed: existed}, nil
}
