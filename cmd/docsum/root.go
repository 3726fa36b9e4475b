package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sevigo/docsum/config"
	"github.com/sevigo/docsum/logging"
)

// cli carries state shared by the subcommands once the root has run.
type cli struct {
	configPath string
	logLevel   string
	logFormat  string
	logFile    string

	cfg       *config.Config
	logger    *slog.Logger
	logCloser io.Closer
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "docsum",
		Short: "Summarize PDF, Word, Markdown and text documents with an LLM",
		Long: `docsum extracts the text of a document, splits it into chunks, summarizes
each chunk with a language model and condenses the joined partial summaries
into one summary.

Available commands:
  summarize  - Summarize a file or the output of a command
  serve      - Run the HTTP API`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if c.logCloser != nil {
				return c.logCloser.Close()
			}
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "path to a YAML config file")
	flags.StringVar(&c.logLevel, "log-level", "", "log level: debug, info, warn or error")
	flags.StringVar(&c.logFormat, "log-format", "", "log format: text or json")
	flags.StringVar(&c.logFile, "log-file", "", "write logs to a rotating file instead of stderr")

	root.AddCommand(newSummarizeCmd(c))
	root.AddCommand(newServeCmd(c))
	return root
}

func (c *cli) setup(*cobra.Command, []string) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}

	if c.logLevel != "" {
		cfg.Log.Level = c.logLevel
	}
	if c.logFormat != "" {
		cfg.Log.Format = c.logFormat
	}
	if c.logFile != "" {
		cfg.Log.File = c.logFile
	}

	logger, closer, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}

	c.cfg = cfg
	c.logger = logger
	c.logCloser = closer
	slog.SetDefault(logger)
	return nil
}
