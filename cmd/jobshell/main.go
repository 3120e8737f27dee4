package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"jobshell/internal/config"
	"jobshell/internal/logging"
	"jobshell/internal/shell"
)

var cfgPath string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "jobshell",
		Short:         "Interactive shell with job control",
		Long:          `A small interactive shell that runs programs in the foreground or background and lets you move them between foreground, background and stopped with jobs, fg, bg and kill.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd)
		},
	}
	cmd.Flags().StringVar(&cfgPath, "config", "", "path to a YAML config file")
	config.BindFlags(cmd.Flags())
	return cmd
}

func run(cmd *cobra.Command) error {
	cfg, err := config.Load(afero.NewOsFs(), cfgPath, cmd.Flags())
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	if !cfg.Color {
		color.NoColor = true
	}

	logger, closer, err := logging.Open(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return err
	}
	defer closer.Close()

	s, err := shell.NewStdio(cfg, logger)
	if err != nil {
		return fmt.Errorf("error initializing shell: %w", err)
	}
	defer s.Close()

	logger.Debug().Int("max_jobs", cfg.MaxJobs).Msg("shell started")
	return s.Run()
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
