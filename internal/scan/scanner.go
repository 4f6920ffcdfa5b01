package scan

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/gabriel-vasile/mimetype"
	"github.com/mholt/archives"

	"github.com/plugreg/plugreg/internal/log"
	"github.com/plugreg/plugreg/internal/registry"
)

// AssetFetcher downloads a release archive.
type AssetFetcher interface {
	FetchAsset(ctx context.Context, url string) ([]byte, error)
}

// Finding is one rule match inside an extracted archive member.
type Finding struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Rule     string `json:"rule"`
	Severity string `json:"severity"`
	Snippet  string `json:"snippet"`
}

// PluginReport is the scan verdict for one plugin version.
type PluginReport struct {
	ID       string    `json:"id"`
	Version  string    `json:"version"`
	Findings []Finding `json:"findings,omitempty"`
	// Err records a download or extraction failure. The plugin is reported
	// and the run continues.
	Err    string `json:"error,omitempty"`
	Cached bool   `json:"-"`
}

// Report covers one scanner run.
type Report struct {
	Plugins []*PluginReport
}

func (r *Report) FindingCount() int {
	total := 0
	for _, p := range r.Plugins {
		total += len(p.Findings)
	}
	return total
}

func (r *Report) FailureCount() int {
	total := 0
	for _, p := range r.Plugins {
		if p.Err != "" {
			total++
		}
	}
	return total
}

type Scanner struct {
	fetcher  AssetFetcher
	rules    []Rule
	cache    *Cache
	maxBytes int64
}

func NewScanner(fetcher AssetFetcher, rules []Rule, cache *Cache, maxBytes int64) *Scanner {
	if maxBytes <= 0 {
		maxBytes = 64 * 1024 * 1024
	}
	return &Scanner{fetcher: fetcher, rules: rules, cache: cache, maxBytes: maxBytes}
}

// SelectTargets returns the plugins from next that are newly published:
// absent from prev, or carrying a different version. Version strings are
// compared semantically when both parse, so "1.0" and "1.0.0" are not
// treated as a republish.
func SelectTargets(prev, next *registry.Document) []*registry.Plugin {
	var targets []*registry.Plugin
	for _, p := range next.Plugins {
		old := prev.Find(p.ID)
		if old == nil {
			targets = append(targets, p)
			continue
		}
		if versionChanged(old.Version, p.Version) {
			targets = append(targets, p)
		}
	}
	return targets
}

func versionChanged(oldVersion, newVersion string) bool {
	if oldVersion == newVersion {
		return false
	}
	v1, err1 := semver.NewVersion(strings.TrimPrefix(oldVersion, "v"))
	v2, err2 := semver.NewVersion(strings.TrimPrefix(newVersion, "v"))
	if err1 == nil && err2 == nil {
		return !v1.Equal(v2)
	}
	return true
}

// Run downloads and inspects the archive of every target plugin. Failures
// are per-plugin and never abort the rest of the run.
func (s *Scanner) Run(ctx context.Context, prev, next *registry.Document) *Report {
	targets := SelectTargets(prev, next)
	log.Info("Scanning newly published plugins", "targets", len(targets))

	report := &Report{}
	for _, p := range targets {
		if s.cache != nil {
			if cached, ok := s.cache.Get(p.ID, p.Version); ok {
				log.Debug("Using cached verdict", "plugin", p.ID, "version", p.Version)
				cached.Cached = true
				report.Plugins = append(report.Plugins, cached)
				continue
			}
		}

		pr := s.scanPlugin(ctx, p)
		if s.cache != nil && pr.Err == "" {
			if err := s.cache.Put(pr); err != nil {
				log.Warn("Failed to cache verdict", "plugin", p.ID, "error", err)
			}
		}
		report.Plugins = append(report.Plugins, pr)
	}
	return report
}

func (s *Scanner) scanPlugin(ctx context.Context, p *registry.Plugin) *PluginReport {
	pr := &PluginReport{ID: p.ID, Version: p.Version}

	data, err := s.fetcher.FetchAsset(ctx, p.DownloadURL)
	if err != nil {
		log.Warn("Failed to download plugin archive", "plugin", p.ID, "error", err)
		pr.Err = fmt.Sprintf("download failed: %v", err)
		return pr
	}

	mtype := mimetype.Detect(data)
	if !isArchiveType(mtype) {
		pr.Err = fmt.Sprintf("unexpected content type %s", mtype.String())
		return pr
	}

	findings, err := s.scanArchive(ctx, data)
	if err != nil {
		log.Warn("Failed to extract plugin archive", "plugin", p.ID, "error", err)
		pr.Err = fmt.Sprintf("extraction failed: %v", err)
		return pr
	}
	pr.Findings = findings

	log.Info("Scanned plugin archive", "plugin", p.ID, "version", p.Version, "findings", len(findings))
	return pr
}

func isArchiveType(mtype *mimetype.MIME) bool {
	for _, want := range []string{"application/zip", "application/gzip", "application/x-tar", "application/x-xz"} {
		if mtype.Is(want) {
			return true
		}
	}
	return false
}

func (s *Scanner) scanArchive(ctx context.Context, data []byte) ([]Finding, error) {
	format, input, err := archives.Identify(ctx, "", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("identifying archive format: %w", err)
	}
	extractor, ok := format.(archives.Extractor)
	if !ok {
		return nil, fmt.Errorf("format %s is not extractable", format.Extension())
	}

	var findings []Finding
	err = extractor.Extract(ctx, input, func(ctx context.Context, f archives.FileInfo) error {
		if f.IsDir() || !isCodeFile(f.NameInArchive) {
			return nil
		}

		fh, err := f.Open()
		if err != nil {
			return fmt.Errorf("opening %s: %w", f.NameInArchive, err)
		}
		defer fh.Close()

		content, err := io.ReadAll(io.LimitReader(fh, s.maxBytes))
		if err != nil {
			return fmt.Errorf("reading %s: %w", f.NameInArchive, err)
		}

		findings = append(findings, s.matchRules(f.NameInArchive, content)...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return findings, nil
}

var codeExtensions = map[string]bool{
	".js":    true,
	".mjs":   true,
	".cjs":   true,
	".jsm":   true,
	".ts":    true,
	".html":  true,
	".xhtml": true,
}

func isCodeFile(name string) bool {
	return codeExtensions[strings.ToLower(path.Ext(name))]
}

func (s *Scanner) matchRules(name string, content []byte) []Finding {
	var findings []Finding
	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		for _, rule := range s.rules {
			if rule.re.MatchString(line) {
				findings = append(findings, Finding{
					File:     name,
					Line:     lineNo,
					Rule:     rule.Name,
					Severity: rule.Severity,
					Snippet:  snippet(line),
				})
			}
		}
	}
	return findings
}

func snippet(line string) string {
	line = strings.TrimSpace(line)
	if len(line) > 120 {
		line = line[:120] + "…"
	}
	return line
}
