package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/banshee-data/trialviewer/internal/catalog"
	"github.com/banshee-data/trialviewer/internal/security"
	"github.com/banshee-data/trialviewer/internal/sessionio"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "export <id|name> <dir>",
		Short: "Write a catalog session back to a session directory",
		Long: `Export writes the trials CSV and one .bytes file per channel, using
canonical channel names. <dir> must be under the working directory or the
temp directory.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[1]
			if err := security.ValidateExportDir(dir); err != nil {
				return err
			}
			return ctx.withCatalog(func(cat *catalog.Catalog) error {
				info, err := cat.Resolve(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				raw, err := cat.Load(cmd.Context(), info.ID)
				if err != nil {
					return err
				}
				raw.Name = security.SanitizeFilename(raw.Name)
				if err := sessionio.WriteDir(dir, raw); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "exported %s to %s\n", raw.Name, sessionio.TrialsPath(dir, raw.Name))
				return nil
			})
		},
	}
}
