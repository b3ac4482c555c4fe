package confstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/modbus2mqtt/oci-lxc-deployer/internal/idmap"
)

// Store performs whole-file read-modify-write updates on the persisted
// text stores. It does not lock: callers serialize writers per
// container identity.
type Store struct {
	logger *zap.Logger
}

// NewStore creates a store bound to a logger.
func NewStore(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{logger: logger}
}

// UpdateConfigKind replaces the idmap lines of one kind in the config
// file at path, creating the file (and its directory) when missing.
func (s *Store) UpdateConfigKind(path string, kind idmap.Kind, newLines []string) error {
	if !kind.Valid() {
		return idmap.InvalidKindError{Kind: kind}
	}

	text, err := readOrEmpty(path)
	if err != nil {
		return fmt.Errorf("confstore: read %s: %w", path, err)
	}

	merged, err := MergeKind(text, kind, newLines)
	if err != nil {
		return err
	}

	if err := writeFile(path, merged); err != nil {
		return fmt.Errorf("confstore: write %s: %w", path, err)
	}

	s.logger.Info("updated container config",
		zap.String("path", path),
		zap.String("kind", string(kind)),
		zap.Int("lines", len(newLines)))
	return nil
}

// AppendEntries merges entries into the flat store at path, skipping
// lines already present. Safe to call repeatedly with the same input.
func (s *Store) AppendEntries(path string, entries []string) error {
	if len(entries) == 0 {
		return nil
	}

	text, err := readOrEmpty(path)
	if err != nil {
		return fmt.Errorf("confstore: read %s: %w", path, err)
	}

	merged := MergeAppendOnly(text, entries)
	if merged == text {
		s.logger.Debug("store already up to date", zap.String("path", path))
		return nil
	}

	if err := writeFile(path, merged); err != nil {
		return fmt.Errorf("confstore: write %s: %w", path, err)
	}

	s.logger.Info("appended store entries",
		zap.String("path", path),
		zap.Int("entries", len(entries)))
	return nil
}

// ReadConfig returns the config file content, or empty text when the
// file does not exist.
func (s *Store) ReadConfig(path string) (string, error) {
	return readOrEmpty(path)
}

func readOrEmpty(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0644)
}
