package main

import (
	_ "embed"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/querycache/config"
)

// Set by the linker at release time.
var version = "dev"

//go:embed endpoints.yaml
var sampleEndpoints []byte

// cli carries the writers and configuration shared by every subcommand.
type cli struct {
	stdout io.Writer
	stderr io.Writer

	// environ replaces the process environment when non-nil.
	environ map[string]string

	cfg   config.Config
	flags rootFlags
}

type rootFlags struct {
	baseURL   string
	endpoints string
	logLevel  string
	backend   string
	credPath  string
	timeout   time.Duration
}

func newRootCmd(stdout, stderr io.Writer, environ map[string]string) *cobra.Command {
	c := &cli{stdout: stdout, stderr: stderr, environ: environ}

	root := &cobra.Command{
		Use:   "querycache",
		Short: "Query, mutate and watch a JSON API through a tag-invalidated cache.",
		Long: `querycache sends the endpoints declared in an endpoints file through the
query cache: identical queries share one request, mutations invalidate the
queries that provide their tags, and credentials are attached from the
configured credential store.

Settings come from QUERYCACHE_* environment variables; flags override them.`,
		Version:            version,
		SilenceErrors:      true,
		SilenceUsage:       true,
		DisableSuggestions: true,
		PersistentPreRunE:  c.loadConfig,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&c.flags.baseURL, "base-url", "", "API base URL (QUERYCACHE_BASE_URL)")
	pf.StringVarP(&c.flags.endpoints, "endpoints", "f", "", "endpoints file (QUERYCACHE_ENDPOINTS)")
	pf.StringVar(&c.flags.logLevel, "log-level", "", "debug, info, warn or error (QUERYCACHE_LOG_LEVEL)")
	pf.StringVar(&c.flags.backend, "credentials", "", "credential backend: memory or sqlite (QUERYCACHE_CREDENTIAL_BACKEND)")
	pf.StringVar(&c.flags.credPath, "credentials-path", "", "sqlite credential file (QUERYCACHE_CREDENTIAL_PATH)")
	pf.DurationVar(&c.flags.timeout, "timeout", 0, "per-request timeout (QUERYCACHE_REQUEST_TIMEOUT)")

	root.AddCommand(
		c.queryCmd(),
		c.mutateCmd(),
		c.loginCmd(),
		c.logoutCmd(),
		c.endpointsCmd(),
		c.statusCmd(),
		c.watchCmd(),
	)
	return root
}

// loadConfig reads the environment, then applies the flags that were set.
func (c *cli) loadConfig(cmd *cobra.Command, _ []string) error {
	var (
		cfg config.Config
		err error
	)
	if c.environ != nil {
		cfg, err = config.LoadFrom(c.environ)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	f := cmd.Flags()
	if f.Changed("base-url") {
		cfg.BaseURL = c.flags.baseURL
	}
	if f.Changed("endpoints") {
		cfg.Endpoints = c.flags.endpoints
	}
	if f.Changed("log-level") {
		cfg.LogLevel = c.flags.logLevel
	}
	if f.Changed("credentials") {
		cfg.CredentialBackend = c.flags.backend
	}
	if f.Changed("credentials-path") {
		cfg.CredentialPath = c.flags.credPath
	}
	if f.Changed("timeout") {
		cfg.RequestTimeout = c.flags.timeout
	}

	c.cfg = cfg
	return nil
}
