package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tomster/embuild/internal/config"
	"github.com/tomster/embuild/internal/sizes"
	"github.com/tomster/embuild/pkg/builder"
)

type buildParams struct {
	outputPath    string
	watch         bool
	suppressSizes bool
	progress      bool
	metricsFile   string
}

func newBuildCmd(g *globals, v *viper.Viper) *cobra.Command {
	var params buildParams

	cmd := &cobra.Command{
		Use:     "build",
		Aliases: []string{"b"},
		Short:   "Builds your app and places it into the output path (dist/ by default).",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runBuild(ctx, cmd, g, v, params)
		},
	}

	fs := cmd.Flags()
	fs.StringP("environment", "e", "", `possible values are "development", "production", and "test"`)
	fs.StringVarP(&params.outputPath, "output-path", "o", "dist/", "output directory")
	fs.BoolVarP(&params.watch, "watch", "w", false, "rebuild when files change")
	fs.BoolVar(&params.suppressSizes, "suppress-sizes", false, "do not print asset sizes after a production build")
	fs.BoolVar(&params.progress, "progress", false, "show a progress bar while writing files")
	fs.StringVar(&params.metricsFile, "metrics-file", "", "write build metrics in the Prometheus text format to this file")
	bindEnvironment(v, fs)

	return cmd
}

func runBuild(ctx context.Context, cmd *cobra.Command, g *globals, v *viper.Viper, params buildParams) error {
	log := g.logger(cmd)

	cfg, err := g.config()
	if err != nil {
		return err
	}

	opts := builder.Options{
		Config:      cfg,
		Environment: environment(v),
		TestCommand: v.GetBool("test_command"),
		OutputPath:  params.outputPath,
		Logger:      log,
	}
	if params.progress {
		opts.Progress = cmd.ErrOrStderr()
	}

	p, err := builder.Load(opts)
	if err != nil {
		return err
	}
	defer func() {
		if err := p.Cleanup(); err != nil {
			log.Warnf("cleanup: %v", err)
		}
	}()

	printSizes := func(r builder.BuildResult) {
		if params.suppressSizes || !config.IsProduction(p.Environment()) {
			return
		}
		report, err := sizes.Collect(r.Directory)
		if err != nil {
			log.Warnf("%v", err)
			return
		}
		if err := report.WriteTable(cmd.OutOrStdout()); err != nil {
			log.Warnf("%v", err)
		}
	}

	if params.watch {
		err = p.Watch(ctx, printSizes)
	} else {
		var r builder.BuildResult
		if r, err = p.Build(ctx); err == nil {
			printSizes(r)
		}
	}

	if params.metricsFile != "" {
		if merr := prometheus.WriteToTextfile(params.metricsFile, prometheus.DefaultGatherer); merr != nil && err == nil {
			err = fmt.Errorf("metrics: %w", merr)
		}
	}

	return err
}
