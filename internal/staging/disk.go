package staging

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// DiskStore stages artifacts in two local directories.
type DiskStore struct {
	dirs map[Area]string
}

// NewDiskStore creates the upload and formatted directories if needed.
func NewDiskStore(uploadDir, formattedDir string) (*DiskStore, error) {
	dirs := map[Area]string{
		AreaUploads:   uploadDir,
		AreaFormatted: formattedDir,
	}
	for area, dir := range dirs {
		if dir == "" {
			return nil, fmt.Errorf("staging: %s directory is empty", area)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("staging: create %s directory: %w", area, err)
		}
	}
	return &DiskStore{dirs: dirs}, nil
}

func (s *DiskStore) path(area Area, name string) (string, error) {
	dir, ok := s.dirs[area]
	if !ok {
		return "", fmt.Errorf("staging: unknown area %q", area)
	}
	if err := validName(name); err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// Dir returns the directory backing an area.
func (s *DiskStore) Dir(area Area) string {
	return s.dirs[area]
}

func (s *DiskStore) Put(ctx context.Context, area Area, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.path(area, name)
	if err != nil {
		return err
	}
	return os.WriteFile(p, data, 0o600)
}

func (s *DiskStore) Delete(_ context.Context, area Area, name string) error {
	p, err := s.path(area, name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *DiskStore) Sweep(ctx context.Context, olderThan time.Time) (int, error) {
	removed := 0
	for _, area := range Areas {
		entries, err := os.ReadDir(s.dirs[area])
		if err != nil {
			return removed, err
		}
		for _, e := range entries {
			if err := ctx.Err(); err != nil {
				return removed, err
			}
			if e.IsDir() {
				continue
			}
			info, err := e.Info()
			if err != nil {
				continue
			}
			if !info.ModTime().Before(olderThan) {
				continue
			}
			if err := os.Remove(filepath.Join(s.dirs[area], e.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return removed, err
			}
			removed++
		}
	}
	return removed, nil
}

// Check verifies both directories exist and are writable.
func (s *DiskStore) Check(_ context.Context) error {
	for _, area := range Areas {
		dir := s.dirs[area]
		f, err := os.CreateTemp(dir, ".probe-*")
		if err != nil {
			return fmt.Errorf("%s directory not writable: %w", area, err)
		}
		name := f.Name()
		_ = f.Close()
		_ = os.Remove(name)
	}
	return nil
}

func (s *DiskStore) Describe() map[string]string {
	return map[string]string{
		"backend":      "disk",
		"uploadDir":    s.dirs[AreaUploads],
		"formattedDir": s.dirs[AreaFormatted],
	}
}
