package cli

import (
	"github.com/spf13/cobra"

	"github.com/ignite/segment-insights/internal/source"
)

func newOverviewCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "overview",
		Short:   "Population KPIs",
		GroupID: groupReport,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := opts.loadEngine(cmd.Context())
			if err != nil {
				return err
			}
			ov, err := engine.Overview()
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), ov)
		},
	}
}

func newBreakdownCmd(opts *options) *cobra.Command {
	var asCSV bool
	cmd := &cobra.Command{
		Use:     "breakdown",
		Short:   "Revenue breakdown by segment",
		GroupID: groupReport,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := opts.loadEngine(cmd.Context())
			if err != nil {
				return err
			}
			breakdown, err := engine.Breakdown()
			if err != nil {
				return err
			}
			if asCSV {
				return source.WriteBreakdown(cmd.OutOrStdout(), breakdown)
			}
			return writeJSON(cmd.OutOrStdout(), breakdown)
		},
	}
	cmd.Flags().BoolVar(&asCSV, "csv", false, "write CSV instead of JSON")
	return cmd
}

func newClustersCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "clusters",
		Short:   "Statistics per numeric cluster",
		GroupID: groupReport,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := opts.loadEngine(cmd.Context())
			if err != nil {
				return err
			}
			clusters, err := engine.Clusters()
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), clusters)
		},
	}
}

func newInsightsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "insights <segment>",
		Short: "Narrative insights for one segment",
		Long: `Generate the rule-based insight statements for a segment.

Examples:
  rfmctl insights "Loyal Customers"
  rfmctl insights At-Risk --currency '$'`,
		GroupID: groupReport,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := opts.loadEngine(cmd.Context())
			if err != nil {
				return err
			}
			insights, err := engine.Insights(args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), insights)
		},
	}
}

func newReportCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "report",
		Short:   "Aggregates, insights and playbook for every segment",
		GroupID: groupReport,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := opts.loadEngine(cmd.Context())
			if err != nil {
				return err
			}
			report, err := engine.Report()
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), report)
		},
	}
}
