package variables

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// ErrEmptyDocument is returned when a Document holds no data.
var ErrEmptyDocument = errors.New("document is empty")

// Document holds a JSON payload both as a parsed tree and as its string form.
// It is safe for concurrent use.
type Document struct {
	mu   sync.RWMutex
	raw  string
	tree any
}

// StoreString parses s and keeps both representations.
func (d *Document) StoreString(s string) error {
	var tree any
	if err := json.Unmarshal([]byte(s), &tree); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.raw, d.tree = s, tree
	return nil
}

// StoreObject serialises v and keeps both representations.
func (d *Document) StoreObject(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	return d.StoreString(string(data))
}

// String returns the stored JSON text.
func (d *Document) String() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.raw
}

// Object returns the parsed tree (map[string]any, []any or a scalar).
func (d *Document) Object() any {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.tree
}

// HasData reports whether a document is stored.
func (d *Document) HasData() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.raw != ""
}

// Clear drops the stored document.
func (d *Document) Clear() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.raw == "" {
		return ErrEmptyDocument
	}
	d.raw, d.tree = "", nil
	return nil
}
