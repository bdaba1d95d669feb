package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"DCAClock/internal/domain/errs"
	"DCAClock/internal/domain/models"
)

// FileConfigStore keeps every record in one JSON object keyed by asset, the
// format operators edit by hand. Legacy "KEY": "HH:MM" entries are accepted.
// The file is re-read on every call and replaced atomically on write; the
// mutex serialises writers within this process only.
type FileConfigStore struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

func NewFileConfigStore(path string) *FileConfigStore {
	return &FileConfigStore{path: path, now: time.Now}
}

func (s *FileConfigStore) List(_ context.Context) (map[string]models.AssetTradeConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *FileConfigStore) Get(_ context.Context, key string) (models.AssetTradeConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := s.load()
	if err != nil {
		return models.AssetTradeConfig{}, err
	}
	cfg, ok := records[key]
	if !ok {
		return cfg, fmt.Errorf("%s: %w", key, errs.ErrConfigNotFound)
	}
	return cfg, nil
}

func (s *FileConfigStore) CompareAndSwap(_ context.Context, key string, expectedVersion int64, cfg models.AssetTradeConfig) (models.AssetTradeConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return models.AssetTradeConfig{}, err
	}
	stored, err := swap(records, key, expectedVersion, cfg, s.now())
	if err != nil {
		return models.AssetTradeConfig{}, err
	}
	if err := s.write(records); err != nil {
		return models.AssetTradeConfig{}, err
	}
	return stored, nil
}

func (s *FileConfigStore) load() (map[string]models.AssetTradeConfig, error) {
	records := make(map[string]models.AssetTradeConfig)
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return records, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return records, nil
	}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	for k, v := range records {
		if v.Version == 0 {
			v.Version = 1
			records[k] = v
		}
	}
	return records, nil
}

func (s *FileConfigStore) write(records map[string]models.AssetTradeConfig) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode configs: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".dca_targets-*.json")
	if err != nil {
		return fmt.Errorf("temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}
