package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/plugreg/plugreg/internal/log"
	"github.com/plugreg/plugreg/internal/registry"
)

var mergeCmd = &cli.Command{
	Name:   "merge",
	Usage:  "Merge the main plugin list with a published store registry",
	Action: mergeAction,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "main",
			Usage:    "Authoritative main registry file",
			Sources:  cli.EnvVars("MAIN_REGISTRY"),
			Required: true,
		},
		&cli.StringFlag{
			Name:     "store",
			Usage:    "Previously published store registry file",
			Sources:  cli.EnvVars("STORE_REGISTRY"),
			Required: true,
		},
		&cli.StringFlag{
			Name:     "output",
			Usage:    "Output registry file",
			Sources:  cli.EnvVars("OUTPUT_REGISTRY"),
			Required: true,
		},
	},
	Description: `Produce a merged registry: plugin membership and order come from the
main registry, download counts are carried forward from the store
registry. A missing or unparseable store registry is tolerated and
resets every count to zero.`,
}

func mergeAction(ctx context.Context, c *cli.Command) error {
	if _, err := loadConfig(c); err != nil {
		return err
	}

	mainDoc, err := registry.Load(c.String("main"))
	if err != nil {
		return fmt.Errorf("loading main registry: %w", err)
	}

	storeDoc, err := registry.Load(c.String("store"))
	if err != nil {
		if !errors.Is(err, registry.ErrNotFound) && !errors.Is(err, registry.ErrParse) {
			return fmt.Errorf("loading store registry: %w", err)
		}
		log.Warn("Store registry unusable, resetting all download counts to zero", "error", err)
		storeDoc = nil
	}

	merged := registry.Merge(mainDoc, storeDoc)

	wrote, err := registry.Save(c.String("output"), merged)
	if err != nil {
		return fmt.Errorf("writing merged registry: %w", err)
	}

	log.Info("Merge finished", "plugins", len(merged.Plugins), "output", c.String("output"), "wrote", wrote)
	return nil
}
