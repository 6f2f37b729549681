// Package cli implements the bundlegate command line.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/chenyanchen/bundlegate"
	"github.com/chenyanchen/bundlegate/manifest"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Config holds the persistent flags shared by all subcommands.
type Config struct {
	Manifest string
	LogLevel string
	Seed     int64
	Shuffle  bool
}

// Main runs the command tree and returns the process exit code.
func Main(args []string, stdout, stderr io.Writer) int {
	root := buildRootCmd(&Config{LogLevel: "warn"}, stdout, stderr)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	return 0
}

func buildRootCmd(cfg *Config, stdout, stderr io.Writer) *cobra.Command {
	var log zerolog.Logger

	root := &cobra.Command{
		Use:           "bundlegate",
		Short:         "Replay async bundle loading against a readiness registry",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			lvl, err := zerolog.ParseLevel(cfg.LogLevel)
			if err != nil {
				return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
			}
			log = zerolog.New(zerolog.ConsoleWriter{Out: zerolog.SyncWriter(stderr), NoColor: true}).
				Level(lvl).With().Timestamp().Logger()
			return nil
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVarP(&cfg.Manifest, "file", "f", "bundles.yaml", "Path to the bundle manifest")
	root.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug|info|warn|error")
	root.PersistentFlags().Int64Var(&cfg.Seed, "seed", 0, "Arrival order seed; implies --shuffle")
	root.PersistentFlags().BoolVar(&cfg.Shuffle, "shuffle", false, "Replay entries sequentially in a seeded random order instead of concurrently")

	planCmd := &cobra.Command{
		Use:     "plan",
		Short:   "Print the order in which bundle callbacks run",
		Example: "  bundlegate plan -f bundles.yaml\n  bundlegate plan -f bundles.yaml --seed 7",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("seed") {
				cfg.Shuffle = true
			}
			res, err := run(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			printPlan(cmd.OutOrStdout(), res)
			return nil
		},
	}

	var format string
	graphCmd := &cobra.Command{
		Use:     "graph",
		Short:   "Export the wait graph after loading every bundle",
		Example: "  bundlegate graph -f bundles.yaml --format mermaid",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("seed") {
				cfg.Shuffle = true
			}
			res, err := run(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			graph := res.registry.Graph()
			switch format {
			case "dot":
				fmt.Fprint(cmd.OutOrStdout(), graph.DOT())
			case "mermaid":
				fmt.Fprint(cmd.OutOrStdout(), graph.Mermaid())
			default:
				return fmt.Errorf("unknown graph format %q: want dot|mermaid", format)
			}
			return nil
		},
	}
	graphCmd.Flags().StringVar(&format, "format", "dot", "Output format: dot|mermaid")

	root.AddCommand(planCmd, graphCmd)
	return root
}

type result struct {
	manifest *manifest.Manifest
	registry *bundlegate.Registry
	trace    *manifest.Trace
}

func run(ctx context.Context, cfg *Config, log zerolog.Logger) (*result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	m, err := manifest.LoadFile(cfg.Manifest)
	if err != nil {
		return nil, err
	}
	log.Info().Str("manifest", cfg.Manifest).Int("bundles", len(m.Bundles)).Msg("manifest loaded")

	res := &result{
		manifest: m,
		registry: bundlegate.NewRegistry(bundlegate.WithLogger(log)),
		trace:    &manifest.Trace{},
	}
	if cfg.Shuffle {
		err = manifest.Replay(res.registry, m.Shuffled(cfg.Seed), res.trace.Init)
	} else {
		err = manifest.Apply(ctx, res.registry, m, res.trace.Init)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func printPlan(w io.Writer, res *result) {
	fmt.Fprintln(w, "executed:")
	for i, e := range res.trace.Order() {
		fmt.Fprintf(w, "  %d. %s\n", i+1, e)
	}
	waiting := res.trace.Waiting(res.manifest)
	if len(waiting) == 0 {
		return
	}
	fmt.Fprintln(w, "waiting:")
	for _, e := range waiting {
		fmt.Fprintf(w, "  - %s (on %s)\n", e, bundlegate.SignalName(e.After))
	}
}
