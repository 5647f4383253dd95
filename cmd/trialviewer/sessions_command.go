package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/banshee-data/trialviewer/internal/catalog"
)

func newSessionsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List imported sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withCatalog(func(cat *catalog.Catalog) error {
				sessions, err := cat.Sessions(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(sessions) == 0 {
					fmt.Fprintln(out, "No sessions imported")
					return nil
				}
				rows := make([][]string, 0, len(sessions))
				for _, s := range sessions {
					rows = append(rows, []string{
						s.ID.String(),
						s.Name,
						s.Subject,
						strconv.Itoa(s.Trials),
						percent(s.Correct, s.Trials),
						strconv.Itoa(s.Frames),
						s.Size(),
						s.CreatedAt.Local().Format("2006-01-02 15:04"),
					})
				}
				fmt.Fprintln(out, renderTable(out,
					[]string{"ID", "Name", "Subject", "Trials", "Correct", "Frames", "Size", "Imported"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.AddCommand(newSessionShowCommand(ctx))
	cmd.AddCommand(newSessionRemoveCommand(ctx))
	return cmd
}

func newSessionShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id|name>",
		Short: "Show a session and its channel statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withCatalog(func(cat *catalog.Catalog) error {
				info, err := cat.Resolve(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				stats, err := cat.ChannelStats(cmd.Context(), info.ID)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Session:  %s\n", info.Name)
				fmt.Fprintf(out, "ID:       %s\n", info.ID)
				if info.Subject != "" {
					fmt.Fprintf(out, "Subject:  %s\n", info.Subject)
				}
				fmt.Fprintf(out, "Trials:   %d (%s correct)\n", info.Trials, percent(info.Correct, info.Trials))
				fmt.Fprintf(out, "Frames:   %d\n", info.Frames)
				fmt.Fprintf(out, "Payload:  %s\n\n", info.Size())

				rows := make([][]string, 0, len(stats))
				for _, st := range stats {
					rows = append(rows, []string{
						st.Name,
						strconv.Itoa(st.NaN),
						formatFloat(st.Min),
						formatFloat(st.Max),
						formatFloat(st.Mean),
						formatFloat(st.StdDev),
					})
				}
				fmt.Fprintln(out, renderTable(out,
					[]string{"Channel", "NaN", "Min", "Max", "Mean", "StdDev"},
					rows,
					[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight},
				))
				return nil
			})
		},
	}
}

func newSessionRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id|name>",
		Aliases: []string{"remove"},
		Short:   "Remove a session from the catalog",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withCatalog(func(cat *catalog.Catalog) error {
				info, err := cat.Resolve(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if err := cat.Delete(cmd.Context(), info.ID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %s (%s)\n", info.Name, info.ID)
				return nil
			})
		},
	}
}

func percent(n, of int) string {
	if of == 0 {
		return "-"
	}
	return fmt.Sprintf("%.0f%%", 100*float64(n)/float64(of))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
