package scan

import (
	"encoding/json"
	"time"

	"github.com/rubiojr/kv"

	"github.com/plugreg/plugreg/internal/log"
)

// Cache remembers scan verdicts per plugin version so repeat CI runs skip
// re-downloading archives that were already inspected. Entries expire so a
// republished asset under the same version is eventually rescanned.
type Cache struct {
	db     kv.Database
	expiry time.Duration
}

func OpenCache(path string, expiry time.Duration) (*Cache, error) {
	db, err := kv.New("sqlite", path)
	if err != nil {
		return nil, err
	}
	return &Cache{db: db, expiry: expiry}, nil
}

func verdictKey(id, version string) string {
	return "verdict:" + id + "@" + version
}

// Get returns the cached verdict for a plugin version, if any.
func (c *Cache) Get(id, version string) (*PluginReport, bool) {
	data, err := c.db.Get(verdictKey(id, version))
	if err != nil || data == nil {
		return nil, false
	}

	var report PluginReport
	if err := json.Unmarshal(data, &report); err != nil {
		log.Warn("Discarding unreadable cached verdict", "plugin", id, "version", version, "error", err)
		return nil, false
	}
	return &report, true
}

// Put stores a verdict with the cache expiry.
func (c *Cache) Put(report *PluginReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return err
	}
	expireAt := time.Now().Add(c.expiry)
	return c.db.Set(verdictKey(report.ID, report.Version), data, &expireAt)
}
