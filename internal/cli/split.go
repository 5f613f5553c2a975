package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"asmsplit/internal/config"
	"asmsplit/internal/splitter"
	"asmsplit/internal/tui"
	"asmsplit/internal/verify"
)

type splitFlags struct {
	dataDir    string
	minLines   int
	gapLimit   int
	maxTotal   int
	noCoalesce bool
	dryRun     bool
	backup     bool
	force      bool
	verify     bool
	assembler  string
	report     string
	ui         bool
}

func (sf *splitFlags) register(cmd *cobra.Command) {
	defaults := config.Default()
	f := cmd.Flags()
	f.StringVar(&sf.dataDir, "data-dir", defaults.Split.DataDir, "directory for extracted files")
	f.IntVar(&sf.minLines, "min-lines", defaults.Split.MinLines, "minimum block length in lines")
	f.IntVar(&sf.gapLimit, "gap-limit", defaults.Coalesce.GapLimit, "largest comment/blank gap merged between blocks")
	f.IntVar(&sf.maxTotal, "max-total", defaults.Coalesce.MaxTotal, "largest merged block in lines")
	f.BoolVar(&sf.noCoalesce, "no-coalesce", false, "keep adjacent blocks separate")
	f.BoolVar(&sf.dryRun, "dry-run", false, "print the plan without writing anything")
	f.BoolVar(&sf.backup, "backup", false, "copy the input aside before an in-place split")
	f.BoolVar(&sf.force, "force", false, "overwrite extracted files that already exist")
	f.BoolVar(&sf.verify, "verify", false, "assemble before and after and compare the binaries")
	f.StringVar(&sf.assembler, "assembler", "", "assembler binary (default: search PATH and ./tools)")
	f.StringVar(&sf.report, "report", "", "write a YAML manifest to this path ('-' for stdout)")
	f.BoolVar(&sf.ui, "ui", false, "show a progress view")
}

// apply copies explicitly set flags over cfg.
func (sf *splitFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("data-dir") {
		cfg.Split.DataDir = sf.dataDir
	}
	if f.Changed("min-lines") {
		cfg.Split.MinLines = sf.minLines
	}
	if f.Changed("gap-limit") {
		cfg.Coalesce.GapLimit = sf.gapLimit
	}
	if f.Changed("max-total") {
		cfg.Coalesce.MaxTotal = sf.maxTotal
	}
	if sf.noCoalesce {
		cfg.Coalesce.Enabled = false
	}
	if f.Changed("assembler") {
		cfg.Assembler.Path = sf.assembler
	}
}

func runSplit(cmd *cobra.Command, ro *rootOptions, sf *splitFlags, args []string) error {
	cfg, err := config.Load(ro.configPath)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}
	sf.apply(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}

	opts := splitter.Options{
		RunID:  ro.runID,
		Input:  args[0],
		Output: args[0],
		DryRun: sf.dryRun,
		Backup: sf.backup,
		Force:  sf.force,
		Verify: sf.verify,
	}
	if len(args) > 1 {
		opts.Output = args[1]
	}

	if _, err := os.Stat(opts.Input); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", splitter.ErrInputNotFound, opts.Input)
	}

	var asm verify.Assembler
	if sf.verify {
		path, err := verify.Find(cfg.FindOptions())
		if err != nil {
			return fmt.Errorf("%w: %w", splitter.ErrAssemblerNotFound, err)
		}
		ro.logger.Debug("using assembler", zap.String("path", path))
		asm = verify.NewExecAssembler(path, time.Duration(cfg.Assembler.Timeout), ro.logger)
	}

	s, err := splitter.New(cfg, ro.logger, asm)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}

	var report *splitter.Report
	if sf.ui && isTerminal(cmd.ErrOrStderr()) {
		model := tui.NewModel("Splitting "+opts.Input, opts.Verify)
		report, err = tui.Run(cmd.Context(), cmd.ErrOrStderr(), model, func(ctx context.Context, progress func(splitter.Stage)) (*splitter.Report, error) {
			opts.Progress = progress
			return s.Run(ctx, opts)
		})
	} else {
		opts.Progress = func(st splitter.Stage) {
			ro.logger.Debug("stage", zap.Stringer("stage", st))
		}
		report, err = s.Run(cmd.Context(), opts)
	}

	if report != nil {
		if werr := writeReport(cmd.OutOrStdout(), sf, report); werr != nil && err == nil {
			err = fmt.Errorf("%w: manifest: %w", splitter.ErrIO, werr)
		}
	}
	if err != nil {
		return err
	}

	// stdout carries the manifest in these modes
	out := cmd.OutOrStdout()
	if sf.dryRun || sf.report == "-" {
		out = cmd.ErrOrStderr()
	}
	printSummary(out, report)
	return nil
}

// writeReport prints the manifest on stdout for dry runs and "-", so a dry run never
// touches disk.
func writeReport(stdout io.Writer, sf *splitFlags, report *splitter.Report) error {
	if sf.dryRun || sf.report == "-" {
		return report.WriteYAML(stdout)
	}
	if sf.report == "" {
		return nil
	}

	f, err := os.Create(sf.report)
	if err != nil {
		return err
	}
	if err := report.WriteYAML(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func printSummary(w io.Writer, r *splitter.Report) {
	m := markersFor(w)

	if r.NothingToDo() {
		fmt.Fprintln(w, successStyle.Render(m.ok)+" no data blocks found in "+r.Input)
		return
	}
	if r.DryRun {
		if len(r.Conflicts) > 0 {
			fmt.Fprintln(w, warnStyle.Render(fmt.Sprintf("%s %d extracted files already exist", m.warn, len(r.Conflicts))))
		}
		return
	}

	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%d blocks extracted from %s", len(r.Units), r.Input)))
	for _, u := range r.Units {
		fmt.Fprintf(w, "  %s %s (lines %d-%d)\n", successStyle.Render(m.ok), u.Path, u.StartLine, u.EndLine)
	}
	if r.Backup != "" {
		fmt.Fprintln(w, hintStyle.Render("  backup: "+r.Backup))
	}
	if r.Verified() {
		fmt.Fprintln(w, successStyle.Render(m.ok)+" binaries match, sha256 "+r.Split.SHA256)
	}
}
