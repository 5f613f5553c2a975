// Package splitter runs the whole split: classify, segment, plan, write and verify.
package splitter

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"asmsplit/internal/classify"
	"asmsplit/internal/config"
	"asmsplit/internal/naming"
	"asmsplit/internal/rewrite"
	"asmsplit/internal/segment"
	"asmsplit/internal/types"
	"asmsplit/internal/verify"
)

// Stage identifies a step of Run for progress reporting.
type Stage int

const (
	StageRead Stage = iota
	StageVerifyOriginal
	StageSegment
	StageWrite
	StageVerifySplit
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageRead:
		return "read input"
	case StageVerifyOriginal:
		return "assemble original"
	case StageSegment:
		return "find data blocks"
	case StageWrite:
		return "write files"
	case StageVerifySplit:
		return "assemble split"
	case StageDone:
		return "done"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Options are per-run settings. Output defaults to Input.
type Options struct {
	// RunID tags the report; one is generated when empty. The logger is expected to
	// carry it already when set.
	RunID  string
	Input  string
	Output string
	DryRun bool
	Backup bool
	Force  bool
	Verify bool
	// Progress, when set, is called as each stage starts.
	Progress func(Stage)
}

type Splitter struct {
	cfg        *config.Config
	classifier *classify.Classifier
	verifier   *verify.Verifier
	logger     *zap.Logger
}

// New builds a Splitter. asm may be nil when runs never verify.
func New(cfg *config.Config, logger *zap.Logger, asm verify.Assembler) (*Splitter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c, err := classify.New(cfg.ClassifyDialect())
	if err != nil {
		return nil, err
	}
	s := &Splitter{cfg: cfg, classifier: c, logger: logger}
	if asm != nil {
		s.verifier = verify.NewVerifier(asm, logger)
	}
	return s, nil
}

// Run performs one split. The returned report is non-nil whenever the input could be
// read, including on most errors.
func (s *Splitter) Run(ctx context.Context, opts Options) (*Report, error) {
	if opts.Output == "" {
		opts.Output = opts.Input
	}
	progress := opts.Progress
	if progress == nil {
		progress = func(Stage) {}
	}
	if opts.Verify && s.verifier == nil {
		return nil, ErrAssemblerNotFound
	}

	log := s.logger
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
		log = log.With(zap.String("run_id", opts.RunID))
	}
	report := &Report{
		RunID:  opts.RunID,
		Input:  opts.Input,
		Output: opts.Output,
		DryRun: opts.DryRun,
	}

	progress(StageRead)
	raw, err := os.ReadFile(opts.Input)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrInputNotFound, opts.Input)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	lines := types.SplitLines(string(raw))
	report.Lines = len(lines)
	log.Debug("read input", zap.String("path", opts.Input), zap.Int("lines", len(lines)))

	if opts.Verify {
		progress(StageVerifyOriginal)
		res := s.verifier.Verify(ctx, opts.Input)
		report.Original = newVerifyReport(res)
		if !res.Assembled {
			if err := ctx.Err(); err != nil {
				return report, fmt.Errorf("assemble %s: %w", opts.Input, err)
			}
			return report, &AssemblyError{Source: opts.Input, Stderr: res.Stderr, kind: ErrOriginalAssemblyFailed}
		}
	}

	progress(StageSegment)
	tags := s.classifier.ClassifyAll(lines)
	blocks := segment.New(s.classifier, s.cfg.SegmentOptions()).SegmentTags(tags)
	report.Candidates = len(blocks)
	if s.cfg.Coalesce.Enabled {
		blocks = segment.Coalesce(tags, blocks, s.cfg.CoalesceOptions())
	}
	log.Info("segmented",
		zap.Int("candidates", report.Candidates),
		zap.Int("blocks", len(blocks)))

	if len(blocks) == 0 {
		progress(StageDone)
		return report, nil
	}

	namer := naming.New(s.classifier, naming.Options{
		DataDir:   s.cfg.Split.DataDir,
		OutputDir: filepath.Dir(opts.Output),
		Rules:     s.cfg.RouteRules(),
	})
	plan := rewrite.Build(lines, blocks, namer)
	report.Units = unitReports(plan.Units, tags)

	conflicts, err := rewrite.Conflicts(plan.Units)
	if err != nil {
		return report, fmt.Errorf("%w: %w", ErrIO, err)
	}
	report.Conflicts = conflicts

	if opts.DryRun {
		progress(StageDone)
		return report, nil
	}
	if len(conflicts) > 0 && !opts.Force {
		return report, &rewrite.ConflictError{Paths: conflicts}
	}

	progress(StageWrite)
	if opts.Backup && sameFile(opts.Input, opts.Output) {
		path, err := rewrite.Backup(opts.Input)
		if err != nil {
			return report, fmt.Errorf("%w: backup: %w", ErrIO, err)
		}
		report.Backup = path
		log.Info("backup written", zap.String("path", path))
	}

	if err := rewrite.Commit(plan.Units, opts.Output, plan.MainText(), rewrite.CommitOptions{Force: opts.Force}); err != nil {
		if errors.Is(err, ErrExistingFileConflict) || errors.Is(err, ErrPartialWrite) {
			return report, err
		}
		return report, fmt.Errorf("%w: %w", ErrIO, err)
	}
	report.Written = true
	log.Info("split written", zap.String("output", opts.Output), zap.Int("units", len(plan.Units)))

	if opts.Verify {
		progress(StageVerifySplit)
		res := s.verifier.Verify(ctx, opts.Output)
		report.Split = newVerifyReport(res)
		if !res.Assembled {
			// a killed assembler says nothing about the split
			if err := ctx.Err(); err != nil {
				return report, fmt.Errorf("assemble %s: %w", opts.Output, err)
			}
			return report, &AssemblyError{Source: opts.Output, Stderr: res.Stderr, kind: ErrSplitAssemblyFailed}
		}
		if res.OutputHash != report.Original.SHA256 {
			return report, &MismatchError{Original: report.Original.SHA256, Split: res.OutputHash}
		}
		log.Info("verified", zap.String("sha256", res.OutputHash))
	}

	progress(StageDone)
	return report, nil
}

func unitReports(units []rewrite.Unit, tags []classify.Tag) []UnitReport {
	out := make([]UnitReport, len(units))
	for i, u := range units {
		data := 0
		for _, t := range tags[u.Block.Start:u.Block.End] {
			if t == classify.Data {
				data++
			}
		}
		out[i] = UnitReport{
			Path:      filepath.ToSlash(u.Path),
			Include:   u.Include,
			StartLine: u.Block.Start + 1,
			EndLine:   u.Block.End,
			Lines:     u.Block.Len(),
			DataLines: data,
			Digest:    u.Digest,
		}
	}
	return out
}

func sameFile(a, b string) bool {
	if absA, err := filepath.Abs(a); err == nil {
		if absB, err := filepath.Abs(b); err == nil && absA == absB {
			return true
		}
	}
	ia, err := os.Stat(a)
	if err != nil {
		return false
	}
	ib, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(ia, ib)
}
