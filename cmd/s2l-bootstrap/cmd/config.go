package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oshokin/s2l-bootstrap/internal/config"
)

var errConfigExists = errors.New("settings file already exists, use --force to overwrite")

func newConfigCommand() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the settings file",
	}

	var force bool

	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write the default settings file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.DefaultConfigFilename
			if len(args) > 0 {
				path = args[0]
			}

			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s: %w", path, errConfigExists)
			}

			if err := config.Save(path, config.Default()); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Default settings written to %s\n", path)
			_, _ = fmt.Fprintln(out, "accelerator.extra_packages is empty: list libraries to install next to the CUDA build of "+
				config.DefaultAcceleratorPackage+" there.")

			return nil
		},
	}

	initCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	configCmd.AddCommand(initCmd)

	return configCmd
}
