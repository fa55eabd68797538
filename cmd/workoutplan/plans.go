package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/briangreenhill/workoutplan/internal/billing"
)

func newPlansCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plans",
		Short: "List subscription plans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalog, err := billing.NewCatalog(billing.PriceIDs{})
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PLAN\tPRICE\tDESCRIPTION")
			for _, p := range catalog.Plans() {
				name := p.Name
				if p.IsPopular {
					name += " *"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", name, p.Price(), p.Description)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			var popular []string
			for _, p := range catalog.Plans() {
				if p.IsPopular {
					popular = append(popular, p.Name)
				}
			}
			if len(popular) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "\n* most popular: %s\n", strings.Join(popular, ", "))
			}
			return nil
		},
	}
}
