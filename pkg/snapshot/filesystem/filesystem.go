// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package filesystem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/leseb/ragproxy/pkg/snapshot"
)

func init() {
	snapshot.Providers.Register("filesystem", func(_ context.Context, params map[string]string) (snapshot.Store, error) {
		return New(params["base_dir"])
	})
}

// compile-time check
var _ snapshot.Store = (*Store)(nil)

// snapshotMetadata is the on-disk representation stored in the sidecar.
type snapshotMetadata struct {
	Name        string    `json:"name"`
	ContentType string    `json:"content_type"`
	Bytes       int       `json:"bytes"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Store implements snapshot.Store backed by a local directory.
//
// Layout:
//
//	<baseDir>/<name>            raw bytes
//	<baseDir>/<name>.meta.json  JSON metadata sidecar
type Store struct {
	baseDir string

	// mu keeps a data file and its sidecar from the same Put.
	mu sync.Mutex
}

// New creates a filesystem-backed Store, creating baseDir if it does not exist.
func New(baseDir string) (*Store, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("filesystem snapshot store: base_dir is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create base dir %s: %w", baseDir, err)
	}
	return &Store{baseDir: baseDir}, nil
}

// Put writes the data and metadata atomically (temp file + rename).
func (s *Store) Put(_ context.Context, snap *snapshot.Snapshot) error {
	if err := snapshot.ValidateName(snap.Name); err != nil {
		return err
	}
	updated := snap.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}

	metaBytes, err := json.Marshal(snapshotMetadata{
		Name:        snap.Name,
		ContentType: snap.ContentType,
		Bytes:       len(snap.Data),
		UpdatedAt:   updated,
	})
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeAtomic(snap.Name, snap.Data); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := s.writeAtomic(snap.Name+".meta.json", metaBytes); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

// Get reads the named snapshot and its metadata.
func (s *Store) Get(_ context.Context, name string) (*snapshot.Snapshot, error) {
	if err := snapshot.ValidateName(name); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.dataPath(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("snapshot %s: %w", name, snapshot.ErrNotFound)
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	snap := &snapshot.Snapshot{Name: name, Data: data}
	metaBytes, err := os.ReadFile(s.metaPath(name))
	switch {
	case err == nil:
		var meta snapshotMetadata
		if err := json.Unmarshal(metaBytes, &meta); err != nil {
			return nil, fmt.Errorf("decode metadata for %s: %w", name, err)
		}
		snap.ContentType = meta.ContentType
		snap.UpdatedAt = meta.UpdatedAt
	case errors.Is(err, os.ErrNotExist):
		if info, statErr := os.Stat(s.dataPath(name)); statErr == nil {
			snap.UpdatedAt = info.ModTime()
		}
	default:
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	return snap, nil
}

// Close is a no-op for the filesystem store.
func (s *Store) Close(_ context.Context) error {
	return nil
}

func (s *Store) dataPath(name string) string {
	return filepath.Join(s.baseDir, name)
}

func (s *Store) metaPath(name string) string {
	return filepath.Join(s.baseDir, name+".meta.json")
}

// writeAtomic writes data to a uniquely named temp file in baseDir and
// renames it over name.
func (s *Store) writeAtomic(name string, data []byte) error {
	tmp, err := os.CreateTemp(s.baseDir, name+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, filepath.Join(s.baseDir, name)); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
