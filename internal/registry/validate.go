package registry

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Problem describes a single validation finding.
type Problem struct {
	PluginID string
	Message  string
	Fatal    bool
}

func (p Problem) String() string {
	return fmt.Sprintf("%s: %s", p.PluginID, p.Message)
}

// Validate checks registry invariants. Duplicate ids are fatal; everything
// else is advisory.
func Validate(doc *Document) []Problem {
	var problems []Problem

	seen := make(map[string]bool, len(doc.Plugins))
	for _, p := range doc.Plugins {
		if p.ID == "" {
			problems = append(problems, Problem{PluginID: "(unknown)", Message: "empty id", Fatal: true})
			continue
		}
		if seen[p.ID] {
			problems = append(problems, Problem{PluginID: p.ID, Message: "duplicate id", Fatal: true})
		}
		seen[p.ID] = true

		if p.DownloadURL == "" {
			problems = append(problems, Problem{PluginID: p.ID, Message: "missing downloadUrl"})
		}
		if p.Version != "" && !validVersion(p.Version) {
			problems = append(problems, Problem{PluginID: p.ID, Message: fmt.Sprintf("version %q is not semver", p.Version)})
		}
	}
	return problems
}

// HasFatal reports whether any problem violates a hard invariant.
func HasFatal(problems []Problem) bool {
	for _, p := range problems {
		if p.Fatal {
			return true
		}
	}
	return false
}

func validVersion(version string) bool {
	_, err := semver.NewVersion(strings.TrimPrefix(version, "v"))
	return err == nil
}
