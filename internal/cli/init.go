package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"asmsplit/internal/config"
)

func newInitCmd(ro *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default asmsplit.toml",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			m := markersFor(out)

			err := config.Write(ro.configPath, config.Default())
			if errors.Is(err, os.ErrExist) {
				fmt.Fprintln(out, warnStyle.Render(m.warn+" "+ro.configPath+" already exists"))
				return nil
			}
			if err != nil {
				return fmt.Errorf("%w: %w", ErrConfig, err)
			}

			fmt.Fprintln(out, successStyle.Render(m.ok)+" wrote "+ro.configPath)
			fmt.Fprintln(out, "\nNext steps:")
			fmt.Fprintln(out, "  1. Adjust data_dir and the routing rules")
			fmt.Fprintln(out, "  2. Preview: asmsplit --dry-run main.asm")
			fmt.Fprintln(out, "  3. Split:   asmsplit --verify --backup main.asm")
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  usageArgs(cobra.NoArgs),
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "asmsplit version %s\n", Version)
		},
	}
}
