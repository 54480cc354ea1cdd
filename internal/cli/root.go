// Package cli implements the rfmctl command line tool: offline access to
// segment breakdowns, insights, filtering and lookup over a customer table.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ignite/segment-insights/internal/config"
	"github.com/ignite/segment-insights/internal/pkg/logger"
	"github.com/ignite/segment-insights/internal/segmentation"
	"github.com/ignite/segment-insights/internal/source"
)

const (
	groupReport = "report"
	groupQuery  = "query"
)

// options are the flags shared by every subcommand.
type options struct {
	file       string
	configPath string
	currency   string
	playbook   string
	verbose    bool
}

// NewRootCommand builds the rfmctl command tree.
func NewRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "rfmctl",
		Short: "Explore RFM customer segments from the command line",
		Long: `rfmctl - RFM segment analytics over a segmented customer table
  - revenue breakdown, cluster stats and narrative insights per segment
  - filter customers and export the result as CSV
  - look up a single customer against their segment`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.SetOutput(cmd.ErrOrStderr())
			if opts.verbose {
				logger.SetLevel(logger.DEBUG)
			} else {
				logger.SetLevel(logger.WARN)
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.file, "file", "f", "", "segmented customer CSV (default rfm_segmented_customers.csv)")
	flags.StringVarP(&opts.configPath, "config", "c", "", "service config file; its source is used when --file is not set")
	flags.StringVar(&opts.currency, "currency", "", "currency symbol for insight text (default £)")
	flags.StringVar(&opts.playbook, "playbook", "", "playbook YAML overriding the built-in one")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log debug output to stderr")

	root.AddGroup(
		&cobra.Group{ID: groupReport, Title: "Reports:"},
		&cobra.Group{ID: groupQuery, Title: "Queries:"},
	)
	root.AddCommand(
		newOverviewCmd(opts),
		newBreakdownCmd(opts),
		newClustersCmd(opts),
		newInsightsCmd(opts),
		newReportCmd(opts),
		newFilterCmd(opts),
		newLookupCmd(opts),
		newExportCmd(opts),
	)
	return root
}

// Execute runs the root command
func Execute() error {
	return NewRootCommand().Execute()
}

// ==========================================
// ENGINE
// ==========================================

// loadEngine resolves the configured source, loads it and wraps it in an
// engine.
func (o *options) loadEngine(ctx context.Context) (*segmentation.Engine, error) {
	cfg := config.Default()
	if o.configPath != "" {
		loaded, err := config.LoadFromEnv(o.configPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	if o.file != "" {
		cfg.Source = config.SourceConfig{Type: config.SourceCSV, Path: o.file, Columns: cfg.Source.Columns}
	}
	if o.currency != "" {
		cfg.Insights.CurrencySymbol = o.currency
	}
	if o.playbook != "" {
		cfg.Insights.PlaybookPath = o.playbook
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	srcs, err := source.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer srcs.Close()

	var snapOpts []segmentation.SnapshotOption
	if srcs.Profiles != nil {
		snapOpts = append(snapOpts, segmentation.WithProfileLoader(srcs.Profiles))
	}
	snap := segmentation.NewSnapshot(srcs.Table, cfg.Source.Columns, snapOpts...)
	if _, err := snap.Reload(ctx); err != nil {
		return nil, err
	}

	rules, err := segmentation.NewRuleSet(segmentation.DefaultRuleGroups(),
		segmentation.WithCurrencySymbol(cfg.Insights.CurrencySymbol))
	if err != nil {
		return nil, err
	}
	playbook, err := segmentation.LoadPlaybook(cfg.Insights.PlaybookPath)
	if err != nil {
		return nil, err
	}
	return segmentation.NewEngine(snap, rules, playbook), nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
