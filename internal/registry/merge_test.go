package registry

import (
	"encoding/json"
	"strings"
	"testing"
)

func mustDoc(t *testing.T, raw string) *Document {
	t.Helper()
	var doc Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		t.Fatalf("bad test document: %v", err)
	}
	return &doc
}

func TestMergeCarriesCountsForward(t *testing.T) {
	main := mustDoc(t, `{"plugins": [
		{"id": "x", "name": "X", "version": "2.0.0", "downloadUrl": "https://github.com/o/x", "downloadCount": 999},
		{"id": "y", "name": "Y", "version": "1.0.0", "downloadUrl": "https://github.com/o/y"}
	]}`)
	store := mustDoc(t, `{"plugins": [
		{"id": "x", "downloadCount": 42},
		{"id": "gone", "downloadCount": 7}
	]}`)

	merged := Merge(main, store)

	if len(merged.Plugins) != 2 {
		t.Fatalf("expected 2 plugins, got %d", len(merged.Plugins))
	}
	if merged.Plugins[0].ID != "x" || merged.Plugins[1].ID != "y" {
		t.Errorf("merge must keep main order, got %s, %s", merged.Plugins[0].ID, merged.Plugins[1].ID)
	}
	if got := merged.Find("x").DownloadCount; got != 42 {
		t.Errorf("expected carried-forward count 42, got %d", got)
	}
	if got := merged.Find("y").DownloadCount; got != 0 {
		t.Errorf("expected 0 for plugin missing from store, got %d", got)
	}
	if merged.Find("gone") != nil {
		t.Error("plugins dropped from main must not survive the merge")
	}
	// Every non-count field comes from main.
	if merged.Find("x").Version != "2.0.0" {
		t.Errorf("expected version from main, got %s", merged.Find("x").Version)
	}
}

func TestMergeNilStore(t *testing.T) {
	main := mustDoc(t, `{"plugins": [{"id": "a", "downloadCount": 5}]}`)

	merged := Merge(main, nil)

	if len(merged.Plugins) != 1 {
		t.Fatalf("expected 1 plugin, got %d", len(merged.Plugins))
	}
	if merged.Plugins[0].DownloadCount != 0 {
		t.Errorf("nil store must reset counts to 0, got %d", merged.Plugins[0].DownloadCount)
	}
}

func TestMergePreservesTopLevelMetadata(t *testing.T) {
	main := mustDoc(t, `{"schemaVersion": 4, "plugins": [{"id": "a"}]}`)
	store := mustDoc(t, `{"schemaVersion": 3, "plugins": []}`)

	merged := Merge(main, store)

	data, err := Encode(merged)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"schemaVersion": 4`) {
		t.Errorf("top-level metadata must come from main:\n%s", data)
	}
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	main := mustDoc(t, `{"plugins": [{"id": "a", "downloadCount": 1}]}`)
	store := mustDoc(t, `{"plugins": [{"id": "a", "downloadCount": 42}]}`)

	_ = Merge(main, store)

	if main.Plugins[0].DownloadCount != 1 {
		t.Errorf("merge mutated its main input: %d", main.Plugins[0].DownloadCount)
	}
}
