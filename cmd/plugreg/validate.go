package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/plugreg/plugreg/internal/registry"
)

var validateCmd = &cli.Command{
	Name:   "validate",
	Usage:  "Check registry invariants",
	Action: validateAction,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "registry",
			Usage: "Registry file to validate (defaults to the configured path)",
		},
	},
}

func validateAction(ctx context.Context, c *cli.Command) error {
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

	problems := registry.Validate(doc)
	if len(problems) == 0 {
		fmt.Printf("%s: %d plugins, no problems\n", path, len(doc.Plugins))
		return nil
	}

	for _, p := range problems {
		fmt.Println(p)
	}
	if registry.HasFatal(problems) {
		return fmt.Errorf("%s violates registry invariants", path)
	}
	return nil
}
