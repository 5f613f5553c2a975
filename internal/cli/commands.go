package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"asmsplit/internal/config"
	"asmsplit/internal/ines"
	"asmsplit/internal/splitter"
)

// Version is set at build time with -ldflags "-X asmsplit/internal/cli.Version=...".
var Version = "dev"

var (
	ErrUsage  = errors.New("usage error")
	ErrConfig = errors.New("config error")
)

type rootOptions struct {
	configPath string
	verbose    bool
	runID      string
	logger     *zap.Logger
}

func NewRootCmd() *cobra.Command {
	ro := &rootOptions{}
	sf := &splitFlags{}

	cmd := &cobra.Command{
		Use:   "asmsplit [flags] <input-file> [output-file]",
		Short: "Move data tables out of an assembly source into include files",
		Long: `asmsplit finds contiguous data regions (db/dw/hex/incbin tables) in an asm6 source,
writes each one to its own file and replaces it with an incsrc directive.

With --verify the source is assembled before and after the split and the two
binaries must hash identically.`,
		Args:          usageArgs(cobra.RangeArgs(1, 2)),
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			ro.runID = uuid.NewString()
			ro.logger = newLogger(cmd.ErrOrStderr(), ro.verbose).With(zap.String("run_id", ro.runID))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = ro.logger.Sync()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSplit(cmd, ro, sf, args)
		},
	}

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	})

	pf := cmd.PersistentFlags()
	pf.StringVar(&ro.configPath, "config", config.DefaultPath, "config file")
	pf.BoolVarP(&ro.verbose, "verbose", "v", false, "debug logging")

	sf.register(cmd)

	cmd.AddCommand(newChrCmd(ro), newInitCmd(ro), newVersionCmd())
	return cmd
}

// Execute runs the root command, printing a diagnosis for any error.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd := NewRootCmd()
	err := cmd.ExecuteContext(ctx)
	if err != nil {
		printDiagnosis(cmd.ErrOrStderr(), err)
	}
	return err
}

// ExitCode maps an Execute error to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrUsage), errors.Is(err, ErrConfig):
		return 2
	case errors.Is(err, splitter.ErrOriginalAssemblyFailed), errors.Is(err, splitter.ErrSplitAssemblyFailed):
		return 3
	case errors.Is(err, splitter.ErrOutputHashMismatch):
		return 4
	}
	return 1
}

func newLogger(w io.Writer, verbose bool) *zap.Logger {
	level := zapcore.WarnLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = ""
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(w), level)
	return zap.New(core)
}

func usageArgs(fn cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := fn(cmd, args); err != nil {
			return fmt.Errorf("%w: %w", ErrUsage, err)
		}
		return nil
	}
}

type diagnosis struct {
	message string
	hint    string
}

func diagnose(err error) diagnosis {
	d := diagnosis{message: err.Error()}

	switch {
	case errors.Is(err, ErrUsage):
		d.hint = "run 'asmsplit --help' for usage"
	case errors.Is(err, ErrConfig):
		d.hint = "fix the config file, or run 'asmsplit init' to write a fresh one"
	case errors.Is(err, splitter.ErrInputNotFound):
		d.hint = "check the input path"
	case errors.Is(err, splitter.ErrAssemblerNotFound):
		d.hint = "put asm6f on PATH or pass --assembler <path>"
	case errors.Is(err, splitter.ErrOriginalAssemblyFailed):
		d.hint = "the input must assemble cleanly before it can be split; nothing was written"
	case errors.Is(err, splitter.ErrSplitAssemblyFailed):
		d.hint = "the split files are on disk; restore the backup or remove them"
	case errors.Is(err, splitter.ErrOutputHashMismatch):
		d.hint = "the split changed the binary; restore the backup and report the input"
	case errors.Is(err, splitter.ErrExistingFileConflict):
		d.hint = "remove the existing files or rerun with --force"
	case errors.Is(err, splitter.ErrPartialWrite):
		d.hint = "remove the listed files by hand before retrying"
	case errors.Is(err, splitter.ErrIO):
		d.hint = "check permissions and free disk space"
	case errors.Is(err, ines.ErrNotINES), errors.Is(err, ines.ErrTruncated):
		d.hint = "pass an iNES (.nes) ROM image"
	case errors.Is(err, context.Canceled):
		d.message = "interrupted"
	}
	return d
}

func printDiagnosis(w io.Writer, err error) {
	m := markersFor(w)
	d := diagnose(err)
	fmt.Fprintln(w, errorStyle.Render(m.fail+" "+d.message))
	if d.hint != "" {
		fmt.Fprintln(w, hintStyle.Render("  "+d.hint))
	}
}
