package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fenilsonani/listmunge/internal/config"
	"github.com/fenilsonani/listmunge/internal/i18n"
	"github.com/fenilsonani/listmunge/internal/journal"
	"github.com/fenilsonani/listmunge/internal/lists"
	"github.com/fenilsonani/listmunge/internal/logging"
	"github.com/fenilsonani/listmunge/internal/metrics"
	"github.com/fenilsonani/listmunge/internal/pipeline"
	"github.com/fenilsonani/listmunge/internal/subject"
)

const version = "v0.1.0"

var (
	cfgFile         string
	metricsTextfile string
	cfg             *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "listmunge",
	Short: "Mailing list Subject prefix rewriter",
	Long: `Rewrites the Subject of mailing list posts:
- adds the list's subject prefix, numbered from the post sequence
- strips old prefixes and collapses reply markers into a single "Re: "
- keeps encoded text in charsets the list cannot represent
- leaves messages from a parent list undecorated`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for help commands
		if cmd.Name() == "help" || cmd.Name() == "version" {
			return nil
		}

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		if metricsTextfile != "" {
			cfg.Metrics.Textfile = metricsTextfile
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil || cfg.Metrics.Textfile == "" {
			return nil
		}
		if err := metrics.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
		return nil
	},
}

// app holds what the processing commands share
type app struct {
	logger   *logging.Logger
	registry *lists.Registry
	seq      lists.Sequence
	journal  *journal.Journal
	pipeline *pipeline.Pipeline
}

// setup opens the sequence store and journal and builds the pipeline
func setup() (*app, error) {
	logger, err := logging.New(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Output:    cfg.Logging.Output,
		AddSource: cfg.Logging.AddSource,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	rt := &app{logger: logger}

	rt.seq, err = lists.OpenSequence(cfg.Sequence)
	if err != nil {
		return nil, fmt.Errorf("failed to open sequence store: %w", err)
	}

	rt.registry, err = lists.RegistryFromConfig(cfg.Lists, rt.seq)
	if err != nil {
		rt.Close()
		return nil, err
	}

	if cfg.Journal.Enabled {
		rt.journal, err = journal.Open(cfg.Journal.DatabasePath)
		if err != nil {
			rt.Close()
			return nil, err
		}
	}

	catalog := i18n.NewCatalog()
	if cfg.I18n.CatalogPath != "" {
		if err := catalog.LoadFile(cfg.I18n.CatalogPath); err != nil {
			rt.Close()
			return nil, fmt.Errorf("failed to load catalog: %w", err)
		}
	}

	rt.pipeline = pipeline.NewDefault(logger, rt.registry, subject.New(catalog), rt.journal)
	logger.Debug("pipeline ready",
		"handlers", rt.pipeline.Handlers(),
		"sequence_backend", cfg.Sequence.Backend,
		"journal", cfg.Journal.Enabled,
	)
	return rt, nil
}

// runner binds the pipeline to one list, given by name or List-Id. An
// empty key picks the only configured list.
func (rt *app) runner(key string) (*pipeline.Runner, error) {
	if key == "" {
		all := rt.registry.Lists()
		if len(all) != 1 {
			return nil, fmt.Errorf("--list is required when %d lists are configured", len(all))
		}
		key = all[0].Name
	}
	l, err := rt.registry.Find(key)
	if err != nil {
		return nil, err
	}
	return &pipeline.Runner{Registry: rt.registry, Pipeline: rt.pipeline, List: l.Name}, nil
}

func (rt *app) Close() {
	if rt.journal != nil {
		rt.journal.Close()
	}
	if rt.seq != nil {
		rt.seq.Close()
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("listmunge " + version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "listmunge.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&metricsTextfile, "metrics-textfile", "", "write Prometheus metrics to this .prom file after the run")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(rewriteCmd)
	rootCmd.AddCommand(maildirCmd)
	rootCmd.AddCommand(mboxCmd)
	rootCmd.AddCommand(listsCmd)
	rootCmd.AddCommand(journalCmd)

	// Sequence commands
	sequenceCmd.AddCommand(sequenceShowCmd)
	sequenceCmd.AddCommand(sequenceNextCmd)
	sequenceCmd.AddCommand(sequenceSetCmd)
	rootCmd.AddCommand(sequenceCmd)
}
