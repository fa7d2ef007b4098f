package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/snowmerak/pubsub.go/lib/broker"
	"github.com/snowmerak/pubsub.go/lib/logging"
	"github.com/snowmerak/pubsub.go/lib/pipeline"
	"github.com/snowmerak/pubsub.go/lib/roles"
	"github.com/snowmerak/pubsub.go/lib/ticker"
	"github.com/snowmerak/pubsub.go/lib/tui"
	"github.com/snowmerak/pubsub.go/lib/version"
)

var rootCmd = &cobra.Command{
	Use:          "pubsub",
	Short:        "pubsub: in-process publish/subscribe module runner",
	Long:         "pubsub wires modules to a topic broker from a pipeline file and runs them. Without --pipeline it runs the built-in camera, face detector and display demo.",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCmd.RunE(cmd, args)
	},
}

func init() {
	// Persistent flags (available to all subcommands).
	rootCmd.PersistentFlags().String("pipeline", "", "Path to a pipeline YAML file (default: built-in faces pipeline)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug|info|warn|error)")

	// Run flags live on the root too, since the bare command runs the pipeline.
	rootCmd.PersistentFlags().String("strategy", "", "Override the pipeline strategy (push|pull)")
	rootCmd.PersistentFlags().Duration("tick", 0, "Override the pipeline tick interval")
	rootCmd.PersistentFlags().Duration("run-for", 0, "Stop after this long (0 runs until interrupted)")
	rootCmd.PersistentFlags().Bool("tui", false, "Show a live module table instead of log output")

	// Bind flags to Viper.
	_ = viper.BindPFlag("pipeline", rootCmd.PersistentFlags().Lookup("pipeline"))
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("strategy", rootCmd.PersistentFlags().Lookup("strategy"))
	_ = viper.BindPFlag("tick", rootCmd.PersistentFlags().Lookup("tick"))
	_ = viper.BindPFlag("run_for", rootCmd.PersistentFlags().Lookup("run-for"))
	_ = viper.BindPFlag("tui", rootCmd.PersistentFlags().Lookup("tui"))

	// Env support: PUBSUB_PIPELINE, PUBSUB_LOG_LEVEL, PUBSUB_TUI, etc.
	viper.SetEnvPrefix("PUBSUB")
	viper.AutomaticEnv()

	initCmd.Flags().StringP("output", "o", "pipeline.yaml", "Where to write the pipeline file")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(rolesCmd)
	rootCmd.AddCommand(versionCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a pipeline until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := LoadConfigFromViper()
		if err := cfg.Validate(); err != nil {
			return err
		}

		p, err := cfg.LoadPipeline()
		if err != nil {
			return err
		}

		logger := zap.NewNop()
		if !cfg.TUI {
			logger, err = logging.New(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if cfg.RunFor > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, cfg.RunFor)
			defer cancel()
		}

		return run(ctx, cfg, p, logger)
	},
}

func run(ctx context.Context, cfg Config, p *pipeline.Pipeline, logger *zap.Logger) error {
	rt, err := p.Build(roles.DefaultRegistry(), logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// The ticker and the view follow the broker
		defer cancel()
		return rt.Broker.Run(gctx)
	})
	g.Go(func() error {
		return ticker.New(rt.Broker, rt.TickInterval, rt.TickTarget, logger).Run(gctx)
	})
	if cfg.TUI {
		g.Go(func() error {
			defer cancel()
			return tui.Run(gctx, "pubsub: "+p.Name, rt.Broker, 0)
		})
	}

	err = g.Wait()

	var derr *broker.DeliveryError
	if errors.As(err, &derr) {
		logger.Error("fatal delivery failure",
			zap.Uint64("module", uint64(derr.Module)),
			zap.String("name", derr.Name),
			zap.Stringer("kind", derr.Kind),
			zap.Error(derr.Err))
	}
	return err
}

var validateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate a pipeline file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := viper.GetString("pipeline")
		if len(args) == 1 {
			path = args[0]
		}
		if path == "" {
			return fmt.Errorf("pipeline file is required (argument or --pipeline)")
		}

		p, err := pipeline.Load(path)
		if err != nil {
			return err
		}
		if err := p.Validate(roles.DefaultRegistry()); err != nil {
			return fmt.Errorf("invalid pipeline %q: %w", p.Name, err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Pipeline %q is valid: %d modules\n", p.Name, len(p.Modules))
		return nil
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the built-in pipeline to a file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("output")
		if err := pipeline.Save(pipeline.Default(), path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Pipeline written to: %s\n", path)
		return nil
	},
}

var rolesCmd = &cobra.Command{
	Use:   "roles",
	Short: "List module roles usable in pipeline files",
	Run: func(cmd *cobra.Command, args []string) {
		for _, r := range roles.DefaultRegistry().All() {
			def := r.Defaults()
			fmt.Fprintf(cmd.OutOrStdout(), "%-14s %s (input %q, output %q)\n", r.Name(), r.Description(), def.Input, def.Output)
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.String())
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
