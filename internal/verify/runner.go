package verify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout bounds a single assembler run.
const DefaultTimeout = 30 * time.Second

// ErrNotFound is returned by Find when no assembler binary can be located.
var ErrNotFound = errors.New("assembler not found")

// Assembler turns a source file into a binary at outputPath.
type Assembler interface {
	Assemble(ctx context.Context, sourcePath, outputPath string) error
}

// CommandError describes a failed assembler run.
type CommandError struct {
	Command  string
	ExitCode int
	Stderr   string
	TimedOut bool
	Wrapped  error
}

func (e *CommandError) Error() string {
	switch {
	case e.TimedOut:
		return fmt.Sprintf("%s: timed out", e.Command)
	case e.Stderr != "":
		return fmt.Sprintf("%s (exit %d): %s", e.Command, e.ExitCode, e.Stderr)
	case e.Wrapped != nil:
		return fmt.Sprintf("%s (exit %d): %v", e.Command, e.ExitCode, e.Wrapped)
	}
	return fmt.Sprintf("%s (exit %d)", e.Command, e.ExitCode)
}

func (e *CommandError) Unwrap() error { return e.Wrapped }

// ExecAssembler runs an external assembler as `<path> <source> <output>` from the
// source file's directory so relative includes resolve.
type ExecAssembler struct {
	Path    string
	Timeout time.Duration
	logger  *zap.Logger
}

func NewExecAssembler(path string, timeout time.Duration, logger *zap.Logger) *ExecAssembler {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExecAssembler{Path: path, Timeout: timeout, logger: logger}
}

func (a *ExecAssembler) Assemble(ctx context.Context, sourcePath, outputPath string) error {
	src, err := filepath.Abs(sourcePath)
	if err != nil {
		return err
	}
	out, err := filepath.Abs(outputPath)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, a.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, a.Path, src, out)
	cmd.Dir = filepath.Dir(src)
	cmd.WaitDelay = 2 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	command := strings.Join(cmd.Args, " ")
	a.logger.Debug("running assembler", zap.String("cmd", command), zap.String("cwd", cmd.Dir))

	start := time.Now()
	runErr := cmd.Run()
	a.logger.Debug("assembler finished",
		zap.Duration("took", time.Since(start)),
		zap.String("stdout", strings.TrimSpace(stdout.String())))

	if ctx.Err() == context.DeadlineExceeded {
		return &CommandError{Command: command, ExitCode: -1, TimedOut: true, Stderr: strings.TrimSpace(stderr.String()), Wrapped: ctx.Err()}
	}
	if runErr != nil {
		code := -1
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			code = exitErr.ExitCode()
		}
		return &CommandError{Command: command, ExitCode: code, Stderr: strings.TrimSpace(stderr.String()), Wrapped: runErr}
	}

	if _, err := os.Stat(out); err != nil {
		return &CommandError{Command: command, ExitCode: 0, Stderr: "no output file produced", Wrapped: err}
	}
	return nil
}

// FindOptions lists where Find looks for an assembler.
type FindOptions struct {
	// Explicit is a user-supplied path or command name; when set nothing else is tried.
	Explicit   string
	Names      []string
	SearchDirs []string
}

func DefaultNames() []string {
	return []string{"asm6f", "asm6", "asm6f.exe", "asm6.exe"}
}

func DefaultSearchDirs() []string {
	return []string{".", "tools", "bin", "../tools", "../bin"}
}

// Find locates the assembler binary: the explicit override, then each name on PATH,
// then each name inside the local search directories. The result is absolute, since
// ExecAssembler runs from the source file's directory.
func Find(opts FindOptions) (string, error) {
	if opts.Explicit != "" {
		if isFile(opts.Explicit) {
			return filepath.Abs(opts.Explicit)
		}
		if path, err := exec.LookPath(opts.Explicit); err == nil {
			return filepath.Abs(path)
		}
		return "", fmt.Errorf("%w: %s", ErrNotFound, opts.Explicit)
	}

	names := opts.Names
	if len(names) == 0 {
		names = DefaultNames()
	}
	dirs := opts.SearchDirs
	if dirs == nil {
		dirs = DefaultSearchDirs()
	}

	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return filepath.Abs(path)
		}
	}

	for _, dir := range dirs {
		for _, name := range names {
			candidate := filepath.Join(dir, name)
			if isFile(candidate) {
				return filepath.Abs(candidate)
			}
		}
	}

	return "", fmt.Errorf("%w: tried %s", ErrNotFound, strings.Join(names, ", "))
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
