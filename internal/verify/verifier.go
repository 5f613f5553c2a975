// Package verify assembles source files with an external assembler and digests the
// produced binaries, so a split can be checked against the original byte for byte.
package verify

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"asmsplit/internal/checksum"
)

// Result is the outcome of one assembly attempt. OutputHash is empty unless Assembled.
type Result struct {
	Assembled  bool
	OutputHash string
	Stderr     string
	Duration   time.Duration
}

type Verifier struct {
	assembler Assembler
	logger    *zap.Logger
}

func NewVerifier(asm Assembler, logger *zap.Logger) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Verifier{assembler: asm, logger: logger}
}

// Verify assembles sourcePath into a fresh temporary file and hashes the output. The
// temporary directory is removed before returning on every path. Failures, including
// timeouts, are reported through Result rather than an error.
func (v *Verifier) Verify(ctx context.Context, sourcePath string) Result {
	start := time.Now()

	dir, err := os.MkdirTemp("", "asmsplit-verify-*")
	if err != nil {
		return Result{Stderr: err.Error()}
	}
	defer os.RemoveAll(dir)

	out := filepath.Join(dir, "out.bin")
	if err := v.assembler.Assemble(ctx, sourcePath, out); err != nil {
		res := Result{Stderr: err.Error(), Duration: time.Since(start)}
		var cmdErr *CommandError
		if errors.As(err, &cmdErr) && cmdErr.Stderr != "" {
			res.Stderr = cmdErr.Stderr
		}
		v.logger.Debug("assembly failed", zap.String("source", sourcePath), zap.Error(err))
		return res
	}

	hash, err := checksum.HashFile(out)
	if err != nil {
		return Result{Stderr: err.Error(), Duration: time.Since(start)}
	}

	v.logger.Debug("assembled",
		zap.String("source", sourcePath),
		zap.String("sha256", hash),
		zap.Duration("took", time.Since(start)))
	return Result{Assembled: true, OutputHash: hash, Duration: time.Since(start)}
}
