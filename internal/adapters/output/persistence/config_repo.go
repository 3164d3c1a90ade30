package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/renameio/v2"
	"gopkg.in/yaml.v3"

	"hue-rest-client/internal/domain/model"
)

// FileConfigRepository stores the configuration in a single file. Files
// ending in .yaml or .yml are YAML, everything else is JSON.
type FileConfigRepository struct {
	filepath string
	mu       sync.RWMutex
}

func NewFileConfigRepository(filepath string) *FileConfigRepository {
	return &FileConfigRepository{filepath: filepath}
}

func (r *FileConfigRepository) isYAML() bool {
	switch strings.ToLower(filepath.Ext(r.filepath)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Get returns an empty configuration when the file does not exist yet.
func (r *FileConfigRepository) Get(ctx context.Context) (*model.Config, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	data, err := os.ReadFile(r.filepath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &model.Config{}, nil
		}
		return nil, err
	}

	var cfg model.Config
	if r.isYAML() {
		err = yaml.Unmarshal(data, &cfg)
	} else {
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", r.filepath, err)
	}
	return &cfg, nil
}

// Save replaces the file atomically. The client key is a secret, so the file
// is only readable by its owner.
func (r *FileConfigRepository) Save(ctx context.Context, config *model.Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		data []byte
		err  error
	)
	if r.isYAML() {
		data, err = yaml.Marshal(config)
	} else {
		data, err = json.MarshalIndent(config, "", "  ")
	}
	if err != nil {
		return err
	}

	pending, err := renameio.NewPendingFile(r.filepath, renameio.WithPermissions(0o600))
	if err != nil {
		return fmt.Errorf("create pending config file: %w", err)
	}
	defer func() { _ = pending.Cleanup() }()

	if _, err := pending.Write(data); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace config: %w", err)
	}
	return nil
}
