package splitter

import (
	"errors"
	"fmt"
	"strings"

	"asmsplit/internal/rewrite"
)

var (
	ErrInputNotFound          = errors.New("input file not found")
	ErrAssemblerNotFound      = errors.New("assembler not found")
	ErrOriginalAssemblyFailed = errors.New("original file does not assemble")
	ErrSplitAssemblyFailed    = errors.New("split result does not assemble")
	ErrOutputHashMismatch     = errors.New("split result assembles to a different binary")
	ErrIO                     = errors.New("i/o error")

	ErrExistingFileConflict = rewrite.ErrExists
	ErrPartialWrite         = rewrite.ErrPartialWrite
)

// AssemblyError carries the assembler diagnostics for a failed verification.
type AssemblyError struct {
	// Source is the file that failed to assemble.
	Source string
	Stderr string
	kind   error
}

func (e *AssemblyError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.kind, e.Source)
	if line := firstLine(e.Stderr); line != "" {
		msg += ": " + line
	}
	return msg
}

func (e *AssemblyError) Is(target error) bool { return target == e.kind }

// MismatchError reports differing output digests.
type MismatchError struct {
	Original string
	Split    string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s (original %s, split %s)", ErrOutputHashMismatch, short(e.Original), short(e.Split))
}

func (e *MismatchError) Is(target error) bool { return target == ErrOutputHashMismatch }

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

func short(hash string) string {
	if len(hash) > 16 {
		return hash[:16]
	}
	return hash
}
