package main

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/jonwraymond/querycache/transport"
)

func (c *cli) loginCmd() *cobra.Command {
	var (
		endpointName string
		accessPath   string
		refreshPath  string
	)
	cmd := &cobra.Command{
		Use:   "login <credentials-json>",
		Short: "Call the login endpoint and store the returned tokens",
		Example: `  querycache login '{"email":"ada@example.com","password":"..."}'`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			creds, err := parseArgs(args)
			if err != nil {
				return err
			}
			return c.withApp(cmd.Context(), func(a *app) error {
				res, err := a.client.Mutate(cmd.Context(), endpointName, creds)
				if err != nil {
					writeFieldErrors(c.stderr, err)
					return err
				}

				parsed := gjson.ParseBytes(res.Data)
				access := parsed.Get(accessPath).String()
				refresh := parsed.Get(refreshPath).String()
				if err := a.session.Login(cmd.Context(), access, refresh); err != nil {
					return fmt.Errorf("store tokens: %w", err)
				}

				if id, err := a.session.Identity(cmd.Context()); err == nil && id.Subject != "" {
					fmt.Fprintln(c.stdout, "logged in as", id.Subject)
					return nil
				}
				fmt.Fprintln(c.stdout, "logged in")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&endpointName, "endpoint", "login", "login mutation endpoint")
	cmd.Flags().StringVar(&accessPath, "access-path", "access", "result path of the access token")
	cmd.Flags().StringVar(&refreshPath, "refresh-path", "refresh", "result path of the refresh token")
	return cmd
}

func (c *cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd.Context(), func(a *app) error {
				if err := a.session.Logout(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(c.stdout, "logged out")
				return nil
			})
		},
	}
}

// writeFieldErrors prints the per-field messages of a rejected request.
func writeFieldErrors(w io.Writer, err error) {
	var se *transport.ServerError
	if !errors.As(err, &se) {
		return
	}
	fields := se.FieldErrors()
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, msg := range fields[name] {
			fmt.Fprintf(w, "%s: %s\n", name, msg)
		}
	}
}
