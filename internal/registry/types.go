package registry

import (
	"encoding/json"
)

// Plugin is a single registry entry. Unknown fields found in the source
// document are kept verbatim and written back on save; the pipelines only
// ever rewrite downloadCount and updateTime.
type Plugin struct {
	ID            string
	Name          string
	Version       string
	DownloadURL   string
	DownloadCount int64
	UpdateTime    string

	extra map[string]json.RawMessage
}

// Document is the top-level registry structure: a plugins list plus
// whatever sibling metadata the file carries. Sibling fields survive every
// transform untouched.
type Document struct {
	Plugins []*Plugin

	extra map[string]json.RawMessage
}

var knownPluginKeys = []string{"id", "name", "version", "downloadUrl", "downloadCount", "updateTime"}

func (p *Plugin) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	if raw, ok := fields["id"]; ok {
		if err := json.Unmarshal(raw, &p.ID); err != nil {
			return err
		}
	}
	if raw, ok := fields["name"]; ok {
		if err := json.Unmarshal(raw, &p.Name); err != nil {
			return err
		}
	}
	if raw, ok := fields["version"]; ok {
		if err := json.Unmarshal(raw, &p.Version); err != nil {
			return err
		}
	}
	if raw, ok := fields["downloadUrl"]; ok {
		if err := json.Unmarshal(raw, &p.DownloadURL); err != nil {
			return err
		}
	}
	if raw, ok := fields["downloadCount"]; ok {
		if err := json.Unmarshal(raw, &p.DownloadCount); err != nil {
			return err
		}
	}
	if raw, ok := fields["updateTime"]; ok {
		if err := json.Unmarshal(raw, &p.UpdateTime); err != nil {
			return err
		}
	}

	// A missing count means zero, never unknown.
	if p.DownloadCount < 0 {
		p.DownloadCount = 0
	}

	for _, key := range knownPluginKeys {
		delete(fields, key)
	}
	if len(fields) > 0 {
		p.extra = fields
	}
	return nil
}

func (p *Plugin) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.extra)+len(knownPluginKeys))
	for k, v := range p.extra {
		out[k] = v
	}
	out["id"] = p.ID
	out["name"] = p.Name
	out["version"] = p.Version
	out["downloadUrl"] = p.DownloadURL
	out["downloadCount"] = p.DownloadCount
	if p.UpdateTime != "" {
		out["updateTime"] = p.UpdateTime
	}
	return json.Marshal(out)
}

// Clone returns a deep copy of the plugin, preserved fields included.
func (p *Plugin) Clone() *Plugin {
	dup := *p
	if p.extra != nil {
		dup.extra = make(map[string]json.RawMessage, len(p.extra))
		for k, v := range p.extra {
			dup.extra[k] = v
		}
	}
	return &dup
}

func (d *Document) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	if raw, ok := fields["plugins"]; ok {
		if err := json.Unmarshal(raw, &d.Plugins); err != nil {
			return err
		}
		delete(fields, "plugins")
	}
	if len(fields) > 0 {
		d.extra = fields
	}
	return nil
}

func (d *Document) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.extra)+1)
	for k, v := range d.extra {
		out[k] = v
	}
	plugins := d.Plugins
	if plugins == nil {
		plugins = []*Plugin{}
	}
	out["plugins"] = plugins
	return json.Marshal(out)
}

// Find returns the plugin with the given id, or nil.
func (d *Document) Find(id string) *Plugin {
	for _, p := range d.Plugins {
		if p.ID == id {
			return p
		}
	}
	return nil
}
