// Package outputstorage implements spec §9's output-storage indirection:
// a stored task result may be either the literal value (Inline) or a
// reference to an out-of-band blob (Ref). The Scheduler treats the two
// transparently; only the final consumer dereferences.
package outputstorage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Ref is the out-of-band reference shape stored in place of a literal
// value when a Storage indirects it.
type Ref struct {
	Backend string `json:"backend"`
	Key     string `json:"key"`
}

// Storage stores and retrieves task/workflow output, per spec §9's
// Inline(Value) | Ref(backend, key, metadata) sum.
type Storage interface {
	// Store persists value under id and returns what should be recorded
	// as the event's value: either the literal value (Inline) or a Ref.
	Store(id string, value any) (any, error)
	// Get resolves a previously stored value, following a Ref if needed.
	Get(stored any) (any, error)
}

// Inline is the identity storage: the literal value is the event payload.
// Grounded on original_source/flux/output_storage.py's
// InlineOutputStorage.
type Inline struct{}

func (Inline) Store(_ string, value any) (any, error) { return value, nil }
func (Inline) Get(stored any) (any, error)             { return stored, nil }

// LocalFile stores JSON-serialized values under a base path keyed by id,
// grounded on original_source/flux/output_storage.py's LocalFileStorage.
// The Python original's optional pickle/dill serializer is not ported:
// Go has no dynamic-pickle equivalent and nothing else in the retrieved
// example pack supplies one, so only the JSON path is implemented.
type LocalFile struct {
	BasePath string
}

func NewLocalFile(basePath string) *LocalFile {
	return &LocalFile{BasePath: basePath}
}

func (l *LocalFile) Store(id string, value any) (any, error) {
	if err := os.MkdirAll(l.BasePath, 0o755); err != nil {
		return nil, fmt.Errorf("outputstorage: mkdir: %w", err)
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("outputstorage: marshal: %w", err)
	}
	filename := id + ".json"
	if err := os.WriteFile(filepath.Join(l.BasePath, filename), data, 0o644); err != nil {
		return nil, fmt.Errorf("outputstorage: write: %w", err)
	}
	return Ref{Backend: "local_file", Key: filename}, nil
}

func (l *LocalFile) Get(stored any) (any, error) {
	ref, ok := asRef(stored)
	if !ok {
		return stored, nil
	}
	data, err := os.ReadFile(filepath.Join(l.BasePath, ref.Key))
	if err != nil {
		return nil, fmt.Errorf("outputstorage: read: %w", err)
	}
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("outputstorage: unmarshal: %w", err)
	}
	return value, nil
}

func asRef(stored any) (Ref, bool) {
	switch v := stored.(type) {
	case Ref:
		return v, true
	case map[string]any:
		backend, _ := v["backend"].(string)
		key, _ := v["key"].(string)
		if backend != "" && key != "" {
			return Ref{Backend: backend, Key: key}, true
		}
	}
	return Ref{}, false
}
