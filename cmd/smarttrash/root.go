package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/smarttrash/smarttrash/internal/config"
)

// cli holds what every subcommand needs once the root has loaded it.
type cli struct {
	cfg     config.Config
	logFile *os.File
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	cmd := &cobra.Command{
		Use:   "smarttrash",
		Short: "Smart trash can that identifies, analyzes and tracks discarded items",
		Long: `Smarttrash photographs each item dropped into the bin, identifies it with a
vision labeller, asks an LLM for its waste category and carbon impact, and
keeps a running history with per-period statistics.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// .env.local wins over .env; real environment variables win over both.
			if err := config.LoadEnvFiles(".env.local", ".env"); err != nil {
				return err
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			c.cfg = cfg
			return c.setupLogging()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.logFile != nil {
				c.logFile.Close()
			}
		},
	}

	cmd.AddCommand(
		newServeCmd(c),
		newRunCmd(c),
		newStatsCmd(c),
		newSearchCmd(c),
		newExportCmd(c),
	)

	return cmd
}

func (c *cli) setupLogging() error {
	level, err := zerolog.ParseLevel(c.cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	zerolog.SetGlobalLevel(level)

	consoleWriter := zerolog.ConsoleWriter{Out: os.Stderr}
	if c.cfg.LogFile == "" {
		log.Logger = log.Output(consoleWriter)
		return nil
	}

	logFile, err := os.OpenFile(c.cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	c.logFile = logFile
	fileWriter := zerolog.ConsoleWriter{Out: logFile, NoColor: true}
	log.Logger = log.Output(io.MultiWriter(consoleWriter, fileWriter))
	log.Debug().Str("logFile", c.cfg.LogFile).Msg("logging to file")
	return nil
}
