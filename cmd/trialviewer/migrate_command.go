package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/banshee-data/trialviewer/internal/catalog"
)

// withSchema opens the catalog without the automatic upgrade every other
// command applies.
func (c *commandContext) withSchema(fn func(*catalog.Catalog) error) error {
	return c.withCatalogOpener(catalog.OpenUnmigrated, fn)
}

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the catalog schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSchema(func(cat *catalog.Catalog) error {
				if err := cat.MigrateUp(); err != nil {
					return err
				}
				return printVersion(cmd, cat)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSchema(func(cat *catalog.Catalog) error {
				if err := cat.MigrateDown(); err != nil {
					return err
				}
				return printVersion(cmd, cat)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSchema(func(cat *catalog.Catalog) error {
				return printVersion(cmd, cat)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "to <version>",
		Short: "Migrate up or down to a specific version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid version %q: %w", args[0], err)
			}
			return ctx.withSchema(func(cat *catalog.Catalog) error {
				if err := cat.MigrateTo(uint(v)); err != nil {
					return err
				}
				return printVersion(cmd, cat)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "force <version>",
		Short: "Set the schema version without running migrations (clears dirty state)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid version %q: %w", args[0], err)
			}
			return ctx.withSchema(func(cat *catalog.Catalog) error {
				if err := cat.MigrateForce(v); err != nil {
					return err
				}
				return printVersion(cmd, cat)
			})
		},
	})
	return cmd
}

func printVersion(cmd *cobra.Command, cat *catalog.Catalog) error {
	v, dirty, err := cat.MigrateVersion()
	if err != nil {
		return err
	}
	state := "clean"
	if dirty {
		state = "dirty"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (%s)\n", v, state)
	return nil
}
