package main

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/banshee-data/trialviewer/internal/catalog"
	"github.com/banshee-data/trialviewer/internal/config"
	"github.com/banshee-data/trialviewer/internal/version"
)

type commandContext struct {
	configFlag  *string
	catalogFlag *string

	configOnce sync.Once
	config     *config.ViewerConfig
	configErr  error
}

func newCommandContext(configFlag, catalogFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag, catalogFlag: catalogFlag}
}

// ensureConfig loads --config once. Without the flag the built-in defaults
// apply.
func (c *commandContext) ensureConfig() (*config.ViewerConfig, error) {
	c.configOnce.Do(func() {
		path := strings.TrimSpace(*c.configFlag)
		if path == "" {
			c.config = config.DefaultViewerConfig()
			return
		}
		c.config, c.configErr = config.LoadViewerConfig(path)
	})
	return c.config, c.configErr
}

func (c *commandContext) catalogPath() (string, error) {
	if p := strings.TrimSpace(*c.catalogFlag); p != "" {
		return p, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", err
	}
	return cfg.GetCatalogPath(), nil
}

func (c *commandContext) withCatalog(fn func(*catalog.Catalog) error) error {
	return c.withCatalogOpener(catalog.Open, fn)
}

func (c *commandContext) withCatalogOpener(open func(string) (*catalog.Catalog, error), fn func(*catalog.Catalog) error) error {
	path, err := c.catalogPath()
	if err != nil {
		return err
	}
	cat, err := open(path)
	if err != nil {
		return fmt.Errorf("open catalog %s: %w", path, err)
	}
	defer cat.Close()
	return fn(cat)
}

func newRootCommand() *cobra.Command {
	var configFlag string
	var catalogFlag string

	ctx := newCommandContext(&configFlag, &catalogFlag)

	rootCmd := &cobra.Command{
		Use:           "trialviewer",
		Short:         "Replay behavioural sessions trial by trial",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Viewer configuration file (JSON)")
	rootCmd.PersistentFlags().StringVar(&catalogFlag, "catalog", "", "Session catalog database (overrides catalog_path)")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newImportCommand(ctx))
	rootCmd.AddCommand(newExportCommand(ctx))
	rootCmd.AddCommand(newSessionsCommand(ctx))
	rootCmd.AddCommand(newTrialsCommand(ctx))
	rootCmd.AddCommand(newMigrateCommand(ctx))
	rootCmd.AddCommand(newCtlCommand())

	return rootCmd
}
