package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/banshee-data/trialviewer/internal/catalog"
)

func newTrialsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "trials <id|name>",
		Short: "List the trials of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withCatalog(func(cat *catalog.Catalog) error {
				info, err := cat.Resolve(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				records, err := cat.Trials(cmd.Context(), info.ID)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(records))
				for i, r := range records {
					side := "left"
					if r.Right {
						side = "right"
					}
					outcome := "incorrect"
					if r.Correct {
						outcome = "correct"
					}
					rows = append(rows, []string{
						strconv.Itoa(i),
						strconv.Itoa(r.Start),
						strconv.Itoa(r.StimOn),
						strconv.Itoa(r.Feedback),
						side,
						strconv.FormatFloat(float64(r.Contrast), 'g', -1, 32),
						outcome,
					})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderTable(out,
					[]string{"#", "Start", "Stim on", "Feedback", "Side", "Contrast", "Outcome"},
					rows,
					[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
}
