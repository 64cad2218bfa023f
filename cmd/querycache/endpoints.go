package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/querycache/endpoint"
)

func (c *cli) endpointsCmd() *cobra.Command {
	var sample bool
	cmd := &cobra.Command{
		Use:   "endpoints",
		Short: "List the declared endpoints",
		Long: `List the endpoints of the endpoints file with their method, path and
tags. With --sample, print an example endpoints file instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if sample {
				_, err := c.stdout.Write(sampleEndpoints)
				return err
			}

			registry, err := endpoint.LoadFile(c.cfg.Endpoints)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tKIND\tREQUEST\tTAGS")
			for _, def := range registry.Definitions() {
				tags := "-"
				switch {
				case def.Kind == endpoint.KindMutation && def.Invalidates != nil:
					tags = "invalidates"
				case def.Provides != nil:
					tags = "provides"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s %s\t%s\n", def.Name, def.Kind, def.HTTPMethod(), def.Path, tags)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&sample, "sample", false, "print an example endpoints file")
	return cmd
}
