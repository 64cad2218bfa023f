package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/querycache/health"
)

var errUnhealthy = errors.New("unhealthy")

func (a *app) aggregator(probePath string) *health.Aggregator {
	agg := health.NewAggregator()
	agg.Register(health.NewAPIChecker(a.adapter, probePath))
	agg.Register(health.NewSessionChecker(a.session))
	agg.Register(health.NewCacheChecker(a.client.Store()))
	return agg
}

func (c *cli) statusCmd() *cobra.Command {
	var probePath string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check API reachability and the stored session",
		Long: `Probe the API with an anonymous request, check the stored session, and
print a JSON report. Exits non-zero when a check is unhealthy; a missing
or expired session only degrades the report.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd.Context(), func(a *app) error {
				results := a.aggregator(probePath).CheckAll(cmd.Context())
				if err := health.NewReport(results).WriteJSON(c.stdout); err != nil {
					return err
				}
				if health.Overall(results) == health.StatusUnhealthy {
					return errUnhealthy
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&probePath, "probe-path", "/", "path requested to check reachability")
	return cmd
}
