package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var (
	// ErrNotFound is returned by Load when the registry file does not exist.
	ErrNotFound = errors.New("registry file not found")
	// ErrParse is returned by Load when the file is not valid JSON.
	ErrParse = errors.New("registry file is not valid JSON")
)

// Load reads and parses a registry document from path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("reading registry: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParse, path, err)
	}
	return &doc, nil
}

// Encode serializes a document the way Save writes it: indented JSON with
// deterministic key order and a trailing newline.
func Encode(doc *Document) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling registry: %w", err)
	}
	return append(data, '\n'), nil
}

// Save writes the document to path, atomically, and only when the encoded
// content differs from what is already on disk. It reports whether a write
// happened. Skipping identical content keeps no-op pipeline runs from
// churning version control.
func Save(path string, doc *Document) (bool, error) {
	data, err := Encode(doc)
	if err != nil {
		return false, err
	}

	existing, err := os.ReadFile(path)
	if err == nil && bytes.Equal(existing, data) {
		return false, nil
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return false, fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return false, fmt.Errorf("writing registry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return false, fmt.Errorf("writing registry: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return false, fmt.Errorf("replacing registry: %w", err)
	}
	return true, nil
}
