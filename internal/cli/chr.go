package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"asmsplit/internal/ines"
	"asmsplit/internal/splitter"
)

func newChrCmd(ro *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chr <rom.nes> <out.bin>",
		Short: "Extract the CHR-ROM section of an iNES image",
		Args:  usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChr(cmd, ro, args[0], args[1])
		},
	}
}

func runChr(cmd *cobra.Command, ro *rootOptions, romPath, outPath string) error {
	f, err := os.Open(romPath)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", splitter.ErrInputNotFound, romPath)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", splitter.ErrIO, err)
	}
	defer f.Close()

	out := cmd.OutOrStdout()
	m := markersFor(out)

	chr, h, err := ines.ExtractCHR(f)
	if errors.Is(err, ines.ErrNoCHR) {
		fmt.Fprintln(out, warnStyle.Render(m.warn+" "+romPath+" uses CHR-RAM; nothing to extract"))
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: %w", romPath, err)
	}
	ro.logger.Debug("parsed iNES header",
		zap.Int("prg_banks", h.PRGBanks),
		zap.Int("chr_banks", h.CHRBanks),
		zap.Bool("trainer", h.HasTrainer),
		zap.Int("mapper", h.Mapper))

	if err := os.WriteFile(outPath, chr, 0o644); err != nil {
		return fmt.Errorf("%w: %w", splitter.ErrIO, err)
	}
	fmt.Fprintf(out, "%s wrote %d bytes (%d banks) to %s\n", successStyle.Render(m.ok), len(chr), h.CHRBanks, outPath)
	return nil
}
