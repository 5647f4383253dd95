package main

import (
	"fmt"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/banshee-data/trialviewer/internal/catalog"
	"github.com/banshee-data/trialviewer/internal/sessionio"
)

func newImportCommand(ctx *commandContext) *cobra.Command {
	var subject string

	cmd := &cobra.Command{
		Use:   "import <dir> <session>",
		Short: "Import a session directory into the catalog",
		Long: `Import reads <dir>/<session>.trials.csv and every <dir>/<session>.<channel>.bytes
file, validates them and stores them in the catalog under a new session id.
Legacy channel names (right_ts, left_idx, wheel, ...) are accepted.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := ctx.catalogPath()
			if err != nil {
				return err
			}

			// one importer at a time; the server may still read concurrently
			lock := flock.New(path + ".lock")
			ok, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire catalog lock: %w", err)
			}
			if !ok {
				return fmt.Errorf("catalog %s is locked by another import", path)
			}
			defer lock.Unlock()

			sess, err := sessionio.LoadDir(args[0], args[1])
			if err != nil {
				return err
			}
			return ctx.withCatalog(func(cat *catalog.Catalog) error {
				info, err := cat.Import(cmd.Context(), sess, catalog.ImportOptions{Subject: subject})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %s as %s (%d trials, %d frames, %s)\n",
					info.Name, info.ID, info.Trials, info.Frames, info.Size())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "Subject (animal) the session belongs to")
	return cmd
}
