package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/plugreg/plugreg/internal/registry"
)

type fakeFetcher struct {
	counts map[string]int64
	errs   map[string]error

	mu          sync.Mutex
	inFlight    int
	maxInFlight int
	calls       int
}

func (f *fakeFetcher) RepoDownloadCount(ctx context.Context, owner, repo string) (int64, error) {
	key := owner + "/" + repo

	f.mu.Lock()
	f.calls++
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	f.mu.Unlock()

	// Give batch members a chance to overlap.
	time.Sleep(5 * time.Millisecond)

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()

	if err, ok := f.errs[key]; ok {
		return 0, err
	}
	return f.counts[key], nil
}

func docFromJSON(t *testing.T, raw string) *registry.Document {
	t.Helper()
	var doc registry.Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		t.Fatal(err)
	}
	return &doc
}

func TestRunUpdatesChangedCounts(t *testing.T) {
	doc := docFromJSON(t, `{"plugins": [
		{"id": "a", "downloadUrl": "https://github.com/o/r", "downloadCount": 0}
	]}`)
	fetcher := &fakeFetcher{counts: map[string]int64{"o/r": 10}}

	res := Run(context.Background(), doc, fetcher, Options{})

	if !res.Changed || res.Updated != 1 {
		t.Errorf("expected 1 update, got %+v", res)
	}
	if doc.Find("a").DownloadCount != 10 {
		t.Errorf("expected count 10, got %d", doc.Find("a").DownloadCount)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	doc := docFromJSON(t, `{"plugins": [
		{"id": "a", "downloadUrl": "https://github.com/o/r", "downloadCount": 10}
	]}`)
	fetcher := &fakeFetcher{counts: map[string]int64{"o/r": 10}}

	res := Run(context.Background(), doc, fetcher, Options{})

	if res.Changed {
		t.Errorf("unchanged remote data must not flag a change: %+v", res)
	}
}

func TestRunPreservesCountOnFetchFailure(t *testing.T) {
	doc := docFromJSON(t, `{"plugins": [
		{"id": "a", "downloadUrl": "https://github.com/o/a", "downloadCount": 37},
		{"id": "b", "downloadUrl": "https://github.com/o/b", "downloadCount": 1}
	]}`)
	fetcher := &fakeFetcher{
		counts: map[string]int64{"o/b": 2},
		errs:   map[string]error{"o/a": errors.New("HTTP 500")},
	}

	res := Run(context.Background(), doc, fetcher, Options{})

	if doc.Find("a").DownloadCount != 37 {
		t.Errorf("failed fetch must not touch the stored count, got %d", doc.Find("a").DownloadCount)
	}
	if len(res.Failed) != 1 || res.Failed[0].ID != "a" {
		t.Errorf("expected a single failure for a, got %+v", res.Failed)
	}
	if doc.Find("b").DownloadCount != 2 || res.Updated != 1 {
		t.Errorf("failure of one plugin must not abort the rest: %+v", res)
	}
}

func TestRunUnsupportedURL(t *testing.T) {
	doc := docFromJSON(t, `{"plugins": [
		{"id": "a", "downloadUrl": "https://example.com/a.xpi", "downloadCount": 12}
	]}`)
	fetcher := &fakeFetcher{}

	res := Run(context.Background(), doc, fetcher, Options{})

	if fetcher.calls != 0 {
		t.Errorf("unsupported URL must not hit the API, got %d calls", fetcher.calls)
	}
	if doc.Find("a").DownloadCount != 12 {
		t.Errorf("unsupported URL must keep the stored count, got %d", doc.Find("a").DownloadCount)
	}
	if len(res.Failed) != 1 || res.Changed {
		t.Errorf("expected one recorded failure and no change, got %+v", res)
	}
}

func TestRunStampsUpdateTime(t *testing.T) {
	doc := docFromJSON(t, `{"plugins": [
		{"id": "a", "downloadUrl": "https://github.com/o/r", "downloadCount": 10},
		{"id": "bad", "downloadUrl": "https://example.com/x"}
	]}`)
	fetcher := &fakeFetcher{counts: map[string]int64{"o/r": 10}}

	now := func() time.Time {
		return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	}
	res := Run(context.Background(), doc, fetcher, Options{StampUpdateTime: true, Now: now})

	// Even with no count change, stamping alone is a reason to persist.
	if !res.Changed || res.Stamped != 1 {
		t.Errorf("expected a stamped change, got %+v", res)
	}
	if got := doc.Find("a").UpdateTime; got != "20260830T200000+0800" {
		t.Errorf("unexpected updateTime %q", got)
	}
	if doc.Find("bad").UpdateTime != "" {
		t.Error("failed plugins must not be stamped")
	}
}

func TestRunBoundsConcurrency(t *testing.T) {
	var plugins []string
	counts := make(map[string]int64)
	for i := 0; i < 17; i++ {
		plugins = append(plugins, fmt.Sprintf(`{"id": "p%d", "downloadUrl": "https://github.com/o/r%d"}`, i, i))
		counts[fmt.Sprintf("o/r%d", i)] = int64(i)
	}
	doc := docFromJSON(t, fmt.Sprintf(`{"plugins": [%s]}`, joinJSON(plugins)))
	fetcher := &fakeFetcher{counts: counts}

	Run(context.Background(), doc, fetcher, Options{})

	if fetcher.calls != 17 {
		t.Errorf("expected 17 fetches, got %d", fetcher.calls)
	}
	if fetcher.maxInFlight > BatchSize {
		t.Errorf("max in-flight %d exceeds batch size %d", fetcher.maxInFlight, BatchSize)
	}
}

func joinJSON(items []string) string {
	out := ""
	for i, item := range items {
		if i > 0 {
			out += ","
		}
		out += item
	}
	return out
}
