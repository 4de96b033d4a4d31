package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pridepath/session-pipeline/mastery"
	"github.com/pridepath/session-pipeline/orchestrator"
	"github.com/pridepath/session-pipeline/store"
)

func progressCmd() *cobra.Command {
	var modeName string
	var history int

	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Show mastery progress from the latest stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := mastery.ParseMode(modeName)
			if err != nil {
				return err
			}
			conf, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := store.Open(conf.Paths.DB)
			if err != nil {
				return err
			}
			defer st.Close()

			recs, err := st.List(cmd.Context(), string(mode), history)
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				fmt.Printf("no %s sessions recorded yet\n", mode)
				return nil
			}

			if recs[0].Flagged {
				fmt.Printf("latest session %s is flagged for review and was not scored\n", recs[0].ID)
			}
			latest, err := st.LatestScored(cmd.Context(), string(mode))
			if err != nil {
				return err
			}
			if latest != nil {
				// targets may have changed since the session was stored
				scorer := mastery.NewScorer(orchestrator.Targets(conf.Mastery))
				snap := scorer.Score(mode, latest.Tally, latest.Effectiveness)

				fmt.Printf("%s progress (session %s, %s)\n", mode, latest.ID, latest.CreatedAt.Local().Format("2006-01-02 15:04"))
				for _, s := range snap.Skills {
					fmt.Printf("  %-14s %5.1f / %-5.1f %3.0f%%\n", s.Name, s.Current, s.Target, s.Percent)
				}
				fmt.Printf("overall %d%%\n", snap.Overall)
				if snap.Achieved() {
					fmt.Println("mastery achieved")
				}
			}

			if len(recs) > 1 {
				fmt.Println("\nrecent sessions:")
				for _, r := range recs {
					flag := ""
					if r.Flagged {
						flag = "  (flagged)"
					}
					fmt.Printf("  %s  %3d%%  pride %d  avoid %d%s\n",
						r.CreatedAt.Local().Format("2006-01-02 15:04"), r.Overall, r.Tally.TotalPride(), r.Tally.TotalAvoid(), flag)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&modeName, "mode", "relationship", "coaching mode (relationship/discipline)")
	cmd.Flags().IntVar(&history, "history", 5, "number of recent sessions to list")

	return cmd
}
