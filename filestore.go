package tapbank

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// FileRepository keeps the snapshot in a single JSON file. Writes go to a temporary
// file first and are renamed over the target, so a crash mid-write leaves the previous
// snapshot intact.
type FileRepository struct {
	path string
}

var (
	_ Repository = (*FileRepository)(nil)
)

func NewFileRepository(path string) *FileRepository {
	return &FileRepository{path: path}
}

func (f *FileRepository) Load(_ context.Context) (Snapshot, error) {
	bits, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoSnapshot
		}
		return nil, err
	}
	return DecodeSnapshot(bits)
}

func (f *FileRepository) Save(_ context.Context, snap Snapshot) error {
	bits, err := EncodeSnapshot(snap)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(f.path); dir != "" {
		if err = os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := f.path + ".tmp"
	if err = os.WriteFile(tmp, bits, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}
