package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// FileStore keeps one JSON file per checkpoint, named
// <project>_<stage>.json inside a single directory.
type FileStore struct {
	dir string
}

// NewFileStore creates the checkpoint directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create checkpoint dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(project, stage string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_%s.json", project, stage))
}

// Save implements Store.
func (s *FileStore) Save(project, stage string, data any) (string, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshal checkpoint data: %w", err)
	}
	rec := Record{
		Stage:     stage,
		Project:   project,
		Timestamp: time.Now().UTC(),
		Data:      payload,
	}
	out, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal checkpoint: %w", err)
	}

	p := s.path(project, stage)
	if err := os.WriteFile(p, out, 0o644); err != nil {
		return "", fmt.Errorf("write checkpoint: %w", err)
	}
	return p, nil
}

// Load implements Store.
func (s *FileStore) Load(project, stage string) (json.RawMessage, error) {
	data, err := os.ReadFile(s.path(project, stage))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse checkpoint: %w", err)
	}
	return rec.Data, nil
}

// Exists implements Store.
func (s *FileStore) Exists(project, stage string) (bool, error) {
	_, err := os.Stat(s.path(project, stage))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// List implements Store.
func (s *FileStore) List(project string) ([]Info, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read checkpoint dir: %w", err)
	}

	var infos []Info
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		p := filepath.Join(s.dir, e.Name())
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil || rec.Stage == "" {
			// Malformed records are skipped rather than aborting enumeration.
			continue
		}
		if project != "" && rec.Project != project {
			continue
		}
		infos = append(infos, Info{
			Location:  p,
			Stage:     rec.Stage,
			Project:   rec.Project,
			Timestamp: rec.Timestamp,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Location < infos[j].Location })
	return infos, nil
}

// Delete implements Store.
func (s *FileStore) Delete(project, stage string) (bool, error) {
	err := os.Remove(s.path(project, stage))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("delete checkpoint: %w", err)
	}
	return true, nil
}

// Clear implements Store.
func (s *FileStore) Clear(project string) error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("read checkpoint dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		p := filepath.Join(s.dir, e.Name())
		if project != "" {
			data, err := os.ReadFile(p)
			if err != nil {
				continue
			}
			var rec Record
			if err := json.Unmarshal(data, &rec); err != nil {
				continue
			}
			if rec.Project != project {
				continue
			}
		}
		if err := os.Remove(p); err != nil {
			return fmt.Errorf("clear checkpoint %s: %w", e.Name(), err)
		}
	}
	return nil
}

// Close implements Store. File stores hold no resources.
func (s *FileStore) Close() error { return nil }
