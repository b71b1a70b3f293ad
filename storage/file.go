package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const (
	StorageFile = "connections.json"

	filePerm = 0o600
	dirPerm  = 0o700
)

var _ Storage = (*FileStorage)(nil)

// FileStorage keeps every item in one JSON document and rewrites it
// atomically (temp file + rename) on each mutation.
type FileStorage struct {
	lk    sync.Mutex
	path  string
	items map[string]string
}

func NewFileStorage(path string) (*FileStorage, error) {
	f := &FileStorage{path: path, items: make(map[string]string)}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return f, nil
		}
		return nil, fmt.Errorf("read storage file: %w", err)
	}
	if len(data) == 0 {
		return f, nil
	}
	if err := json.Unmarshal(data, &f.items); err != nil {
		return nil, fmt.Errorf("unmarshal storage file %s: %w", path, err)
	}
	return f, nil
}

func (f *FileStorage) Path() string { return f.path }

func (f *FileStorage) GetItem(ctx context.Context, key string) (string, bool, error) {
	f.lk.Lock()
	defer f.lk.Unlock()
	v, ok := f.items[key]
	return v, ok, nil
}

func (f *FileStorage) SetItem(ctx context.Context, key, value string) error {
	f.lk.Lock()
	defer f.lk.Unlock()
	old, had := f.items[key]
	f.items[key] = value
	if err := f.persist(); err != nil {
		if had {
			f.items[key] = old
		} else {
			delete(f.items, key)
		}
		return err
	}
	return nil
}

func (f *FileStorage) RemoveItem(ctx context.Context, key string) error {
	f.lk.Lock()
	defer f.lk.Unlock()
	old, had := f.items[key]
	if !had {
		return nil
	}
	delete(f.items, key)
	if err := f.persist(); err != nil {
		f.items[key] = old
		return err
	}
	return nil
}

func (f *FileStorage) persist() error {
	if err := os.MkdirAll(filepath.Dir(f.path), dirPerm); err != nil {
		return fmt.Errorf("mkdir storage dir: %w", err)
	}
	data, err := json.MarshalIndent(f.items, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal storage: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".connections-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // nolint: errcheck

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(filePerm); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, f.path)
}
