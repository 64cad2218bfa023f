package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/querycache/query"
)

func (c *cli) queryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "query <endpoint> [args-json]",
		Short: "Run a query endpoint and print its result",
		Example: `  querycache query getUser '{"id":7}'
  querycache query getPlans '{"page":2}'`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			qargs, err := parseArgs(args[1:])
			if err != nil {
				return err
			}
			return c.withApp(cmd.Context(), func(a *app) error {
				res, err := a.client.Query(cmd.Context(), args[0], qargs)
				if err != nil {
					return err
				}
				return writeJSON(c.stdout, res.Data)
			})
		},
	}
}

func (c *cli) mutateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mutate <endpoint> [args-json]",
		Short: "Run a mutation endpoint and print its result",
		Long: `Run a mutation endpoint and print its result. Field errors from a
rejected request are printed one per line before the error.`,
		Example: `  querycache mutate updateUser '{"id":7,"name":"B"}'`,
		Args:    cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			margs, err := parseArgs(args[1:])
			if err != nil {
				return err
			}
			return c.withApp(cmd.Context(), func(a *app) error {
				res, err := a.client.Mutate(cmd.Context(), args[0], margs)
				if err != nil {
					writeFieldErrors(c.stderr, err)
					return err
				}
				printInvalidated(c.stderr, res)
				return writeJSON(c.stdout, res.Data)
			})
		},
	}
}

// writeJSON indents data onto w. Non-JSON payloads are written as is.
func writeJSON(w io.Writer, data json.RawMessage) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		buf.Reset()
		buf.Write(data)
	}
	buf.WriteByte('\n')
	_, err := w.Write(buf.Bytes())
	return err
}

func printInvalidated(w io.Writer, res query.Result) {
	for _, key := range res.Invalidated {
		fmt.Fprintln(w, "invalidated:", key)
	}
}
