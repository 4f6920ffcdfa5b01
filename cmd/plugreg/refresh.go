package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/plugreg/plugreg/internal/github"
	"github.com/plugreg/plugreg/internal/log"
	"github.com/plugreg/plugreg/internal/reconcile"
	"github.com/plugreg/plugreg/internal/registry"
)

var refreshCmd = &cli.Command{
	Name:   "refresh",
	Usage:  "Refresh download counts from the hosting API",
	Action: refreshAction,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "registry",
			Usage: "Registry file to refresh (defaults to the configured path)",
		},
		&cli.StringFlag{
			Name:    "token",
			Usage:   "Bearer token for API requests (optional)",
			Sources: cli.EnvVars("GITHUB_TOKEN"),
		},
		&cli.BoolFlag{
			Name:  "stamp",
			Usage: "Stamp updateTime on every successfully fetched plugin",
		},
	},
	Description: `Fetch the aggregate release download count of every plugin and write
the registry back. The file is only rewritten when something actually
changed, so a no-op run leaves the working tree clean. A plugin whose
fetch fails keeps its previously known count.`,
}

func refreshAction(ctx context.Context, c *cli.Command) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	path := c.String("registry")
	if path == "" {
		path = cfg.Registry
	}

	doc, err := registry.Load(path)
	if err != nil {
		return fmt.Errorf("loading registry: %w", err)
	}

	token := c.String("token")
	if token == "" {
		token = cfg.GitHub.Token
	}
	if token == "" {
		log.Warn("No API token configured, using unauthenticated requests")
	}

	opts := []github.Option{github.WithToken(token)}
	if cfg.GitHub.APIURL != "" {
		opts = append(opts, github.WithAPIURL(cfg.GitHub.APIURL))
	}
	client := github.NewClient(opts...)

	result := reconcile.Run(ctx, doc, client, reconcile.Options{
		StampUpdateTime: c.Bool("stamp"),
	})

	if !result.Changed {
		log.Info("Nothing changed, skipping write", "registry", path)
		return nil
	}

	wrote, err := registry.Save(path, doc)
	if err != nil {
		return fmt.Errorf("writing registry: %w", err)
	}
	log.Info("Registry refreshed", "registry", path, "updated", result.Updated, "stamped", result.Stamped, "wrote", wrote)
	return nil
}
