package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newParamsCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "params PATH",
		Short: "List the parameters a document declares",
		Args:  cobra.ExactArgs(1),
		RunE: envRunE(g, func(ctx context.Context, cmd *cobra.Command, e *env, args []string) error {
			tmpl, err := e.template(ctx, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s%s\n", tmpl.Name(), tmpl.Signature())
			if doc := tmpl.Doc(); doc != "" {
				fmt.Fprintf(out, "\n%s\n", doc)
			}
			fmt.Fprintf(out, "\nstatements per call: %d\n", tmpl.Residual().Len())

			params := tmpl.Parameters()
			if len(params) == 0 {
				return nil
			}
			fmt.Fprintln(out)
			table := newTable(out, "Name", "Default", "Line")
			for _, p := range params {
				table.Append([]string{p.Name, fmt.Sprintf("%v", p.Default), strconv.Itoa(p.Line)})
			}
			table.Render()
			return nil
		}),
	}
}
