// Package snapshot persists whole-graph snapshots to a local JSON file.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"kgraph/domain/core/entities"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BackupSuffix is appended to the path of the previous snapshot
const BackupSuffix = ".bak"

// FileStore reads and writes a snapshot file. Writes go to a temporary file
// first; the previous snapshot is rotated to path+".bak" and the new one is
// renamed into place, so a crash never leaves a truncated snapshot behind.
type FileStore struct {
	path   string
	logger *zap.Logger
}

// NewFileStore creates a store for the snapshot at path
func NewFileStore(path string, logger *zap.Logger) *FileStore {
	return &FileStore{path: path, logger: logger}
}

// Path returns the snapshot location
func (f *FileStore) Path() string {
	return f.path
}

// Encode renders a snapshot in its file format
func Encode(snap *entities.Snapshot) ([]byte, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Decode parses the file format
func Decode(data []byte) (*entities.Snapshot, error) {
	var snap entities.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Save writes snap atomically
func (f *FileStore) Save(snap *entities.Snapshot) error {
	data, err := Encode(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	tmp := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", filepath.Base(f.path), uuid.NewString()))
	if err := writeSynced(tmp, data); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	if _, err := os.Stat(f.path); err == nil {
		if err := os.Rename(f.path, f.path+BackupSuffix); err != nil {
			os.Remove(tmp)
			return fmt.Errorf("failed to rotate previous snapshot: %w", err)
		}
	}

	if err := os.Rename(tmp, f.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to move snapshot into place: %w", err)
	}

	f.logger.Debug("Snapshot written",
		zap.String("path", f.path),
		zap.Int("nodes", len(snap.Nodes)),
		zap.Int("edges", len(snap.Edges)),
		zap.Int("bytes", len(data)))
	return nil
}

func writeSynced(path string, data []byte) error {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		return err
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// Load reads the snapshot. It returns nil and no error when there is none.
// If the main file is missing but a backup exists (a crash between rotation
// and rename), the backup is used.
func (f *FileStore) Load() (*entities.Snapshot, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		data, err = os.ReadFile(f.path + BackupSuffix)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		if err == nil {
			f.logger.Warn("Snapshot missing, using backup", zap.String("path", f.path+BackupSuffix))
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	snap, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse snapshot %s: %w", f.path, err)
	}
	return snap, nil
}
