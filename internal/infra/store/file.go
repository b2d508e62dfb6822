package store

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/gofrs/flock"
)

// FileStore keeps all keys in one JSON document. An advisory lock on
// "<path>.lock" serializes writers across processes sharing the file.
type FileStore struct {
	path string
	lock *flock.Flock
}

// OpenFile prepares a file store at path, creating its directory if needed.
func OpenFile(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create store directory")
	}
	return &FileStore{
		path: path,
		lock: flock.New(path + ".lock"),
	}, nil
}

// Get returns the value at key.
func (f *FileStore) Get(key string) ([]byte, bool, error) {
	if f.lock == nil {
		return nil, false, ErrClosed
	}
	if err := f.lock.RLock(); err != nil {
		return nil, false, errors.Wrap(err, "failed to acquire read lock")
	}
	defer func() { _ = f.lock.Unlock() }()

	doc, err := f.readLocked()
	if err != nil {
		return nil, false, err
	}
	v, ok := doc[key]
	if !ok {
		return nil, false, nil
	}
	return []byte(v), true, nil
}

// Set writes value at key.
func (f *FileStore) Set(key string, value []byte) error {
	return f.update(func(doc map[string]string) {
		doc[key] = string(value)
	})
}

// Remove deletes key.
func (f *FileStore) Remove(key string) error {
	return f.update(func(doc map[string]string) {
		delete(doc, key)
	})
}

// Close releases the lock handle.
func (f *FileStore) Close() error {
	if f.lock == nil {
		return nil
	}
	err := f.lock.Close()
	f.lock = nil
	return err
}

func (f *FileStore) update(mutate func(map[string]string)) error {
	if f.lock == nil {
		return ErrClosed
	}
	if err := f.lock.Lock(); err != nil {
		return errors.Wrap(err, "failed to acquire write lock")
	}
	defer func() { _ = f.lock.Unlock() }()

	doc, err := f.readLocked()
	if err != nil {
		return err
	}
	mutate(doc)
	return f.writeLocked(doc)
}

// readLocked loads the document. A missing or corrupt file reads as empty.
func (f *FileStore) readLocked() (map[string]string, error) {
	doc := make(map[string]string)

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read store file")
	}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return make(map[string]string), nil
	}
	return doc, nil
}

func (f *FileStore) writeLocked(doc map[string]string) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode store file")
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to write store file")
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return errors.Wrap(err, "failed to replace store file")
	}
	return nil
}
