package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"clipmix/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the configuration file",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as TOML",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := ctx.ensureSettings()
			if err != nil {
				return err
			}
			encoded, err := config.Encode(settings)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s", ctx.store().Path(), encoded)
			return nil
		},
	})

	var initPath string
	var overwrite bool
	initCmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a configuration file with default values",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			store := ctx.store()
			if path := strings.TrimSpace(initPath); path != "" {
				store = config.NewTOMLStore(path)
			}
			if !overwrite {
				if _, err := os.Stat(store.Path()); err == nil {
					return fmt.Errorf("%s already exists (use --overwrite)", store.Path())
				} else if !errors.Is(err, fs.ErrNotExist) {
					return err
				}
			}
			if err := store.Save(config.DefaultSettings()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderStatusLine("config", statusOK, "Wrote "+store.Path(), shouldColorize(cmd.OutOrStdout())))
			return nil
		},
	}
	initCmd.Flags().StringVarP(&initPath, "path", "p", "", "Destination (defaults to the --config path)")
	initCmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing file")
	configCmd.AddCommand(initCmd)

	return configCmd
}
