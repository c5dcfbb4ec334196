package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Brownie44l1/meloscan/internal/app"
	"github.com/Brownie44l1/meloscan/internal/classifier"
	"github.com/Brownie44l1/meloscan/internal/config"
)

var version = "dev"

// errFailures is returned when at least one file could not be classified.
var errFailures = errors.New("some files could not be classified")

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		configPath string
		debug      bool
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "meloscan-classify <image>...",
		Short: "Classify watermelon photos from the command line",
		Long: `Classify watermelon photos from the command line.

Prints a table when stdout is a terminal and JSON otherwise. Exits with
status 1 if any file could not be classified.`,
		Version:      version,
		SilenceUsage: true,
		Args:         cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration:\n%w", err)
			}
			logger := cfg.Log.NewLogger(cmd.ErrOrStderr(), debug)

			pipeline, err := app.Setup(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer pipeline.Close()

			results := classifyFiles(cmd.Context(), pipeline.Classifier, args, logger)

			out := cmd.OutOrStdout()
			if asJSON || !isTerminal(out) {
				err = writeJSON(out, results)
			} else {
				err = writeTable(out, results)
			}
			if err != nil {
				return err
			}

			for _, r := range results {
				if r.Error != "" {
					return errFailures
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to the YAML config file (default "+config.DefaultFile+")")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Always print JSON")

	return cmd
}

// imageClassifier is the part of the classifier the CLI needs.
type imageClassifier interface {
	Classify(ctx context.Context, r io.Reader) (*classifier.Result, error)
}

func classifyFiles(ctx context.Context, c imageClassifier, paths []string, logger *slog.Logger) []fileResult {
	results := make([]fileResult, 0, len(paths))
	for _, path := range paths {
		res, err := classifyFile(ctx, c, path)
		if err != nil {
			logger.Error("classification failed", "file", path, "error", err)
			results = append(results, fileResult{File: path, Error: err.Error()})
			continue
		}
		results = append(results, fileResult{File: path, Result: res})
	}
	return results
}

func classifyFile(ctx context.Context, c imageClassifier, path string) (*classifier.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return c.Classify(ctx, f)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
