package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/andrewbyteforge/pricecomparison/services/shopper/internal/domain"
)

// FileStore keeps the basket in <dir>/basket.json.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed cache in the profile directory dir.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create profile dir: %w", err)
	}
	return &FileStore{path: filepath.Join(dir, Key+".json")}, nil
}

// Path returns the cache file location.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Load(_ context.Context) ([]domain.BasketItem, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []domain.BasketItem{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read basket cache: %w", err)
	}
	return decode(data)
}

// Save writes to a temporary file and renames it over the cache so a crash
// never leaves a half-written basket.
func (s *FileStore) Save(_ context.Context, items []domain.BasketItem) error {
	data, err := encode(items)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), Key+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp basket cache: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write basket cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close basket cache: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace basket cache: %w", err)
	}
	return nil
}

func (s *FileStore) Clear(_ context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove basket cache: %w", err)
	}
	return nil
}
