// Package storage persists pipeline output: the raw and processed JSON blobs,
// secondary exports of the processed series, and the county list copy.
package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Store names a logical blob.
type Store string

const (
	Raw       Store = "raw"
	Processed Store = "processed"
)

// FileStore keeps each logical store in one JSON file. Writes are not atomic.
type FileStore struct {
	paths map[Store]string
}

func NewFileStore(rawPath, processedPath string) *FileStore {
	return &FileStore{
		paths: map[Store]string{
			Raw:       rawPath,
			Processed: processedPath,
		},
	}
}

// Path returns the file backing store.
func (s *FileStore) Path(store Store) (string, error) {
	path, ok := s.paths[store]
	if !ok || path == "" {
		return "", fmt.Errorf("unknown store %q", store)
	}
	return path, nil
}

// Save encodes payload as JSON into the store's file, creating parent directories.
func (s *FileStore) Save(store Store, payload any) error {
	path, err := s.Path(store)
	if err != nil {
		return err
	}
	if err := ensureDir(path); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s file: %w", store, err)
	}

	buffer := bufio.NewWriter(f)
	if err := json.NewEncoder(buffer).Encode(payload); err != nil {
		f.Close()
		return fmt.Errorf("encode %s payload: %w", store, err)
	}
	if err := buffer.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flush %s file: %w", store, err)
	}
	return f.Close()
}

// Load decodes the store's file into into.
func (s *FileStore) Load(store Store, into any) error {
	path, err := s.Path(store)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s file: %w", store, err)
	}
	defer f.Close()

	if err := json.NewDecoder(bufio.NewReader(f)).Decode(into); err != nil {
		return fmt.Errorf("decode %s payload: %w", store, err)
	}
	return nil
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
