package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/timmy/memevote/internal/service"
)

func (a *app) memesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memes",
		Short: "Inspect memes",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print memes with their votes and share of the total",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			voting := service.NewVotingService(store, service.NewEligibilityOracle(store), nil, nil, a.log, nil)
			memes := voting.ListMemes(cmd.Context())

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tCREATOR\tVOTES\tSHARE")
			for _, m := range memes {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.1f%%\n", m.ID, m.Title, m.CreatorAddress, m.Votes, m.VotePercentage)
			}
			return w.Flush()
		},
	})

	return cmd
}
