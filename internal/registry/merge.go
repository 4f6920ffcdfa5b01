package registry

// Merge combines the authoritative main document with a previously
// published store document, carrying forward download counts. The output
// has exactly the entries and order of main; every other field comes from
// main untouched. Entries missing from store get a zero count. A nil store
// degrades to "all counts reset to zero".
func Merge(main, store *Document) *Document {
	counts := make(map[string]int64)
	if store != nil {
		for _, p := range store.Plugins {
			counts[p.ID] = p.DownloadCount
		}
	}

	merged := &Document{
		Plugins: make([]*Plugin, 0, len(main.Plugins)),
		extra:   main.extra,
	}
	for _, p := range main.Plugins {
		dup := p.Clone()
		dup.DownloadCount = counts[p.ID]
		merged.Plugins = append(merged.Plugins, dup)
	}
	return merged
}
