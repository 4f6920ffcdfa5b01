package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/plugreg/plugreg/internal/appfs"
	"github.com/plugreg/plugreg/internal/github"
	"github.com/plugreg/plugreg/internal/log"
	"github.com/plugreg/plugreg/internal/registry"
	"github.com/plugreg/plugreg/internal/scan"
)

var scanCmd = &cli.Command{
	Name:   "scan",
	Usage:  "Scan newly published plugin archives for suspicious patterns",
	Action: scanAction,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "old",
			Usage:    "Previously published registry file",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "new",
			Usage:    "Candidate registry file",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "report",
			Usage: "Markdown report output path",
			Value: "scan-report.md",
		},
		&cli.StringFlag{
			Name:    "token",
			Usage:   "Bearer token for archive downloads (optional)",
			Sources: cli.EnvVars("GITHUB_TOKEN"),
		},
		&cli.BoolFlag{
			Name:  "no-cache",
			Usage: "Ignore the scan verdict cache",
		},
	},
	Description: `Compare two registry snapshots, download the archives of plugins that
are new or changed version, and lint their code files against a set of
suspicious patterns. Findings go into a markdown report for CI. This is
a best-effort heuristic, not a security boundary; findings never fail
the run.`,
}

func scanAction(ctx context.Context, c *cli.Command) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	oldDoc, err := registry.Load(c.String("old"))
	if err != nil {
		if !errors.Is(err, registry.ErrNotFound) {
			return fmt.Errorf("loading old registry: %w", err)
		}
		log.Warn("Old registry missing, scanning every plugin", "path", c.String("old"))
		oldDoc = &registry.Document{}
	}

	newDoc, err := registry.Load(c.String("new"))
	if err != nil {
		return fmt.Errorf("loading new registry: %w", err)
	}

	rules, err := scan.CompileRules(cfg.Scan.Rules)
	if err != nil {
		return err
	}

	var cache *scan.Cache
	if !c.Bool("no-cache") {
		cachePath := cfg.Scan.CachePath
		if cachePath == "" {
			cachePath = filepath.Join(appfs.CacheDir(), "scan.db")
		}
		if err := os.MkdirAll(filepath.Dir(cachePath), 0755); err != nil {
			return fmt.Errorf("creating cache directory: %w", err)
		}
		cache, err = scan.OpenCache(cachePath, time.Duration(cfg.Scan.CacheDays)*24*time.Hour)
		if err != nil {
			log.Warn("Scan cache unavailable, continuing without it", "error", err)
			cache = nil
		}
	}

	client := github.NewClient(github.WithToken(c.String("token")))
	scanner := scan.NewScanner(client, rules, cache, cfg.Scan.MaxArchiveBytes)

	report := scanner.Run(ctx, oldDoc, newDoc)

	out, err := os.Create(c.String("report"))
	if err != nil {
		return fmt.Errorf("creating report: %w", err)
	}
	defer out.Close()
	if err := scan.WriteMarkdown(out, report); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	fmt.Println(scan.Summary(report))
	return nil
}
