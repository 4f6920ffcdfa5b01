package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/plugreg/plugreg/internal/config"
	"github.com/plugreg/plugreg/internal/log"
)

func main() {
	app := &cli.Command{
		Name:  "plugreg",
		Usage: "Plugin registry maintenance CLI",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "Config file path",
				Sources: cli.EnvVars("PLUGREG_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error)",
			},
		},
		Commands: []*cli.Command{
			mergeCmd,
			refreshCmd,
			scanCmd,
			validateCmd,
			versionCmd,
		},
	}
	if err := app.Run(context.Background(), os.Args); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}

// loadConfig resolves the effective config for a command, applying the log
// level from config unless the flag overrides it.
func loadConfig(c *cli.Command) (*config.Config, error) {
	path := c.String("config")
	if path == "" {
		path = config.DefaultPath()
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	level := cfg.LogLevel
	if flagLevel := c.String("log-level"); flagLevel != "" {
		level = flagLevel
	}
	log.SetLevelFromString(level)

	return cfg, nil
}
