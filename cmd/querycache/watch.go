package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/querycache/cache"
	"github.com/jonwraymond/querycache/health"
	"github.com/jonwraymond/querycache/observe"
	"github.com/jonwraymond/querycache/query"
)

type watchFlags struct {
	interval  time.Duration
	listen    string
	probePath string
}

func (c *cli) watchCmd() *cobra.Command {
	var flags watchFlags
	cmd := &cobra.Command{
		Use:   "watch <endpoint> [args-json]",
		Short: "Subscribe to a query and print every update",
		Long: `Subscribe to a query and print one line per state change until
interrupted. With --interval the query is refetched periodically. With
--listen, /metrics and the /healthz, /readyz and /health checks are served
on that address.`,
		Example: `  querycache watch getChatList --interval 15s --listen :9464`,
		Args:    cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			wargs, err := parseArgs(args[1:])
			if err != nil {
				return err
			}
			return c.withApp(cmd.Context(), func(a *app) error {
				return c.watch(cmd.Context(), a, args[0], wargs, flags)
			})
		},
	}
	cmd.Flags().DurationVar(&flags.interval, "interval", 0, "refetch period; zero disables polling")
	cmd.Flags().StringVar(&flags.listen, "listen", "", "address serving metrics and health checks")
	cmd.Flags().StringVar(&flags.probePath, "probe-path", "/", "path requested by the api health check")
	return cmd
}

func (c *cli) watch(ctx context.Context, a *app, name string, args any, flags watchFlags) error {
	sub, err := a.client.Subscribe(ctx, name, args)
	if err != nil {
		return err
	}
	defer sub.Close()

	g, ctx := errgroup.WithContext(ctx)

	if flags.listen != "" {
		ln, err := net.Listen("tcp", flags.listen)
		if err != nil {
			return err
		}
		srv := c.server(a, flags.probePath)
		a.logger.Info(ctx, "serving metrics and health", observe.Field{Key: "addr", Value: ln.Addr().String()})
		g.Go(func() error {
			if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if flags.interval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(flags.interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					if err := a.client.RefetchActive(ctx); err != nil && ctx.Err() == nil {
						a.logger.Warn(ctx, "refetch failed", observe.Field{Key: "error", Value: err})
					}
				}
			}
		})
	}

	g.Go(func() error {
		return c.printUpdates(ctx, sub)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// printUpdates writes one line per delivered snapshot until ctx ends.
func (c *cli) printUpdates(ctx context.Context, sub *query.Subscription) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case snap, ok := <-sub.Updates():
			if !ok {
				return nil
			}
			fmt.Fprintln(c.stdout, formatSnapshot(snap))
		}
	}
}

func formatSnapshot(snap cache.Snapshot) string {
	line := snap.FetchedAt.Format(time.RFC3339) + " " + snap.Status.String()
	if snap.Stale {
		line += " (stale)"
	}
	switch {
	case snap.Status == cache.StatusError:
		line += " " + snap.Err.Error()
	case snap.HasData():
		line += " " + string(snap.Data)
	}
	return line
}

func (c *cli) server(a *app, probePath string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	health.RegisterHandlers(mux, a.aggregator(probePath))
	return &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
