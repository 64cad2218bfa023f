package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonwraymond/querycache/auth"
	"github.com/jonwraymond/querycache/credential"
	"github.com/jonwraymond/querycache/endpoint"
	"github.com/jonwraymond/querycache/observe"
	"github.com/jonwraymond/querycache/query"
	"github.com/jonwraymond/querycache/resilience"
	"github.com/jonwraymond/querycache/transport"
)

// app is a fully wired client: observer, credential store, HTTP adapter
// behind the auth middleware, and the query client on top.
type app struct {
	observer observe.Observer
	logger   observe.Logger
	creds    credential.Store
	session  *auth.Session
	adapter  transport.Adapter
	client   *query.Client
}

func (c *cli) open(ctx context.Context) (*app, error) {
	cfg := c.cfg
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	registry, err := endpoint.LoadFile(cfg.Endpoints)
	if err != nil {
		return nil, err
	}

	obs, err := observe.NewObserver(ctx, cfg.Observe(c.stderr))
	if err != nil {
		return nil, err
	}
	logger := obs.Logger()

	backend, opts := cfg.Credential()
	creds, err := credential.DefaultRegistry.Create(backend, opts)
	if err != nil {
		_ = obs.Shutdown(ctx)
		return nil, err
	}

	res := cfg.Resilience()
	res.OnRetry = func(attempt int, err error, delay time.Duration) {
		logger.Warn(ctx, "retrying request",
			observe.Field{Key: "attempt", Value: attempt},
			observe.Field{Key: "delay", Value: delay.String()},
			observe.Field{Key: "error", Value: err},
		)
	}
	res.OnBreakerChange = func(from, to resilience.State) {
		logger.Warn(ctx, "circuit breaker state changed",
			observe.Field{Key: "from", Value: from.String()},
			observe.Field{Key: "to", Value: to.String()},
		)
	}
	httpAdapter := transport.NewHTTPAdapter(transport.HTTPConfig{
		BaseURL:  cfg.BaseURL,
		Executor: transport.NewExecutor(res),
	})

	authCfg := cfg.Auth()
	authCfg.OnUnauthenticated = func(ctx context.Context, se *transport.ServerError) {
		logger.Warn(ctx, "api rejected the stored session; run login again",
			observe.Field{Key: "status", Value: se.Status},
		)
	}
	adapter := transport.Chain(httpAdapter, auth.Middleware(creds, authCfg))

	client, err := query.New(adapter, registry,
		query.WithPolicy(cfg.Policy()),
		query.WithObserver(obs),
	)
	if err != nil {
		_ = creds.Close()
		_ = obs.Shutdown(ctx)
		return nil, err
	}

	return &app{
		observer: obs,
		logger:   logger,
		creds:    creds,
		session:  auth.NewSession(creds, authCfg),
		adapter:  adapter,
		client:   client,
	}, nil
}

// Close stops the client, then releases the credential store and flushes
// telemetry.
func (a *app) Close(ctx context.Context) error {
	return errors.Join(
		a.client.Close(),
		a.creds.Close(),
		a.observer.Shutdown(ctx),
	)
}

// withApp opens an app for the duration of fn.
func (c *cli) withApp(ctx context.Context, fn func(*app) error) (err error) {
	a, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		err = errors.Join(err, a.Close(shutdownCtx))
	}()
	return fn(a)
}

// parseArgs reads the optional JSON argument of query and mutate.
func parseArgs(args []string) (any, error) {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return nil, nil
	}
	raw := json.RawMessage(args[0])
	if !json.Valid(raw) {
		return nil, fmt.Errorf("args must be JSON, got %q", args[0])
	}
	return raw, nil
}
