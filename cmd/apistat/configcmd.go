package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/efebarandurmaz/apistat/internal/config"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create or inspect the configuration file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:         "init [PATH]",
		Short:       "Write the default configuration as TOML",
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{skipConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.AppName + ".toml"
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.Init(path, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if a.cfg.File != "" {
				fmt.Fprintf(out, "# from %s\n", a.cfg.File)
			} else {
				fmt.Fprintln(out, "# built-in defaults")
			}
			return config.WriteTOML(out, a.cfg)
		},
	}

	cmd.AddCommand(initCmd, show)
	return cmd
}
