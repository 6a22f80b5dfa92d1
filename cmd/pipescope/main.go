// Package main is the pipescope command line: it turns a pipeline file into a
// graph, prints its execution plan and replays a simulated run in the
// terminal.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/pipescope/core/internal/config"
	"github.com/pipescope/core/internal/ctxlog"
	"github.com/pipescope/core/internal/dvctool"
	"github.com/pipescope/core/internal/models"
	"github.com/pipescope/core/internal/parser"
	"github.com/spf13/cobra"
)

type options struct {
	cfg       config.Config
	logLevel  string
	logFormat string
	dvcBinary string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{cfg: config.Default()}
	cfg, loadErr := config.Load()
	if loadErr == nil {
		opts.cfg = cfg
	}

	rootCmd := &cobra.Command{
		Use:           "pipescope",
		Short:         "Inspect and simulate CI/CD and data pipelines",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if loadErr != nil {
				return loadErr
			}

			cfg := opts.cfg
			cfg.LogLevel = strings.ToLower(opts.logLevel)
			cfg.LogFormat = strings.ToLower(opts.logFormat)
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger := config.NewLogger(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
			cmd.SetContext(ctxlog.WithLogger(contextOf(cmd), logger))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", opts.cfg.LogLevel, "Log level: debug|info|warn|error")
	rootCmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", opts.cfg.LogFormat, "Log format: text|json")
	rootCmd.PersistentFlags().StringVar(&opts.dvcBinary, "dvc-bin", opts.cfg.DVCBinary, "Path to the dvc executable (default: search virtualenv and PATH)")

	rootCmd.AddCommand(newGraphCmd(opts), newPlanCmd(opts), newRunCmd(opts))
	return rootCmd
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// loadGraph reads path and builds its graph with the default parsers.
func loadGraph(ctx context.Context, opts *options, path string) (*models.Graph, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var dvcOpts []dvctool.Option
	if opts.dvcBinary != "" {
		dvcOpts = append(dvcOpts, dvctool.WithBinary(opts.dvcBinary))
	}
	registry := parser.DefaultRegistry(dvctool.New(dvcOpts...))

	graph, err := registry.Parse(ctx, path, content)
	if err != nil {
		return nil, err
	}
	if graph.Error != "" {
		return nil, fmt.Errorf("parse %s: %s", path, graph.Error)
	}
	return graph, nil
}
