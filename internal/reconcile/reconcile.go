package reconcile

import (
	"context"
	"sync"
	"time"

	"github.com/plugreg/plugreg/internal/github"
	"github.com/plugreg/plugreg/internal/log"
	"github.com/plugreg/plugreg/internal/registry"
)

// BatchSize caps the number of in-flight release lookups. Plugins are
// processed in fixed-size batches; the next batch starts only after every
// member of the current one settles.
const BatchSize = 5

// UpdateTimeZone is the fixed offset update timestamps are expressed in.
var UpdateTimeZone = time.FixedZone("UTC+8", 8*60*60)

const updateTimeLayout = "20060102T150405-0700"

// Fetcher resolves a repository to its aggregate release download count.
type Fetcher interface {
	RepoDownloadCount(ctx context.Context, owner, repo string) (int64, error)
}

type Options struct {
	// StampUpdateTime writes the current moment to updateTime on every
	// plugin whose fetch succeeded, and forces a persist.
	StampUpdateTime bool
	// Now is the clock used for stamping. Defaults to time.Now.
	Now func() time.Time
}

// Failure records a plugin whose count could not be refreshed. Its stored
// count is left untouched.
type Failure struct {
	ID     string
	Reason string
}

type Result struct {
	// Updated counts plugins whose downloadCount actually changed.
	Updated int
	// Stamped counts plugins that received a fresh updateTime.
	Stamped int
	Failed  []Failure
	// Changed reports whether the document needs persisting.
	Changed bool
}

type outcome struct {
	count int64
	err   error
	// unsupported marks a download URL that does not point at a known
	// hosting provider. Expected, non-fatal.
	unsupported bool
}

// Run refreshes the download count of every plugin in the document from
// the remote hosting API. The document is mutated in place; the result
// says whether anything changed. A failed fetch never erases a previously
// known count.
func Run(ctx context.Context, doc *registry.Document, fetcher Fetcher, opts Options) Result {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	stamp := now().In(UpdateTimeZone).Format(updateTimeLayout)

	var res Result
	plugins := doc.Plugins
	for start := 0; start < len(plugins); start += BatchSize {
		end := min(start+BatchSize, len(plugins))
		batch := plugins[start:end]
		outcomes := make([]outcome, len(batch))

		var wg sync.WaitGroup
		for i, p := range batch {
			owner, repo, ok := github.ParseRepoURL(p.DownloadURL)
			if !ok {
				outcomes[i] = outcome{unsupported: true}
				continue
			}
			wg.Add(1)
			go func(i int, owner, repo string) {
				defer wg.Done()
				count, err := fetcher.RepoDownloadCount(ctx, owner, repo)
				outcomes[i] = outcome{count: count, err: err}
			}(i, owner, repo)
		}
		wg.Wait()

		for i, p := range batch {
			out := outcomes[i]
			switch {
			case out.unsupported:
				log.Warn("Unsupported download URL, keeping stored count", "plugin", p.ID, "url", p.DownloadURL)
				res.Failed = append(res.Failed, Failure{ID: p.ID, Reason: "unsupported download url"})
			case out.err != nil:
				log.Warn("Failed to fetch download count, keeping stored count", "plugin", p.ID, "error", out.err)
				res.Failed = append(res.Failed, Failure{ID: p.ID, Reason: out.err.Error()})
			default:
				if out.count != p.DownloadCount {
					log.Info("Download count updated", "plugin", p.ID, "old", p.DownloadCount, "new", out.count)
					p.DownloadCount = out.count
					res.Updated++
					res.Changed = true
				} else {
					log.Debug("Download count unchanged", "plugin", p.ID, "count", out.count)
				}
				if opts.StampUpdateTime {
					p.UpdateTime = stamp
					res.Stamped++
					res.Changed = true
				}
			}
		}
	}

	log.Info("Reconcile finished", "plugins", len(plugins), "updated", res.Updated, "failed", len(res.Failed))
	return res
}
