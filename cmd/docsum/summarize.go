package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sevigo/docsum/chains"
	"github.com/sevigo/docsum/documentloaders"
	"github.com/sevigo/docsum/internal/app"
	"github.com/sevigo/docsum/schema"
)

type summarizeFlags struct {
	maxLength   int
	minLength   int
	output      string
	provider    string
	model       string
	showText    bool
	fromCommand bool
}

func newSummarizeCmd(c *cli) *cobra.Command {
	f := &summarizeFlags{}

	cmd := &cobra.Command{
		Use:   "summarize FILE | --from-command COMMAND [ARGS...]",
		Short: "Summarize a document",
		Example: `  docsum summarize report.pdf
  docsum summarize --max-length 200 --min-length 50 --output ./summaries notes.docx
  docsum summarize --from-command -- git log -n 50`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runSummarize(cmd, f, args)
		},
	}

	fl := cmd.Flags()
	fl.IntVar(&f.maxLength, "max-length", 0, fmt.Sprintf("maximum summary length in words (%d-%d)", chains.MinMaxLength, chains.MaxMaxLength))
	fl.IntVar(&f.minLength, "min-length", 0, fmt.Sprintf("minimum summary length in words (%d-%d)", chains.MinMinLength, chains.MaxMinLength))
	fl.StringVarP(&f.output, "output", "o", "", "write the summary to this file, or to <name>_summary.txt inside this directory")
	fl.StringVar(&f.provider, "provider", "", "model provider: ollama, gemini, openai or anthropic")
	fl.StringVarP(&f.model, "model", "m", "", "model name")
	fl.BoolVar(&f.showText, "show-text", false, "print the extracted text before the summary")
	fl.BoolVar(&f.fromCommand, "from-command", false, "summarize the standard output of the given command")
	return cmd
}

func (c *cli) runSummarize(cmd *cobra.Command, f *summarizeFlags, args []string) error {
	ctx := cmd.Context()
	cfg := c.cfg

	if f.provider != "" {
		cfg.UseProvider(f.provider)
	}
	if f.model != "" {
		cfg.LLM.Model = f.model
	}
	if f.maxLength != 0 || f.minLength != 0 {
		maxLength, minLength := cfg.Summary.MaxLength, cfg.Summary.MinLength
		if f.maxLength != 0 {
			maxLength = f.maxLength
		}
		if f.minLength != 0 {
			minLength = f.minLength
		}
		if err := chains.ValidateLengths(maxLength, minLength); err != nil {
			return err
		}
		cfg.Summary.MaxLength, cfg.Summary.MinLength = maxLength, minLength
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if !f.fromCommand && len(args) != 1 {
		return errors.New("summarize takes exactly one file")
	}

	a, err := app.New(ctx, cfg, c.logger, nil)
	if err != nil {
		return err
	}

	var loader documentloaders.Loader
	if f.fromCommand {
		loader = documentloaders.NewCommandLoader(args[0], args[1:],
			documentloaders.WithLogger(c.logger),
			documentloaders.WithMetrics(a.Metrics))
	} else {
		loader = documentloaders.NewFileLoader(args[0], a.Registry,
			documentloaders.WithLogger(c.logger),
			documentloaders.WithMetrics(a.Metrics))
	}

	docs, err := loader.Load(ctx)
	if err != nil {
		return err
	}
	doc := docs[0]

	out := cmd.OutOrStdout()
	name := doc.MetadataString(schema.MetadataFileName)
	size, _ := doc.Metadata[schema.MetadataSizeBytes].(int64)
	fmt.Fprintf(out, "File name: %s\n", name)
	fmt.Fprintf(out, "File size: %.2f KB\n", float64(size)/1024)

	if f.showText {
		fmt.Fprintf(out, "\nExtracted text:\n%s\n", doc.PageContent)
	}

	res := a.Summarizer.Run(ctx, doc.PageContent)
	fmt.Fprintf(out, "\nSummary:\n%s\n", res.Summary)

	if f.output == "" {
		return nil
	}
	path, err := outputPath(f.output, name)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(res.Summary), 0o644); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	fmt.Fprintf(out, "\nSaved to %s\n", path)
	return nil
}

// outputPath resolves --output: an existing directory receives
// <name>_summary.txt, anything else is used as the file path.
func outputPath(output, name string) (string, error) {
	info, err := os.Stat(output)
	switch {
	case err == nil && info.IsDir():
		return filepath.Join(output, filepath.Base(name)+"_summary.txt"), nil
	case err == nil || errors.Is(err, os.ErrNotExist):
		return output, nil
	default:
		return "", fmt.Errorf("failed to inspect output path: %w", err)
	}
}
