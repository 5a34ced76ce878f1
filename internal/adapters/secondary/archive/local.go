package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	output "churn-insight-service/internal/core/ports/output"
)

type localArchive struct {
	dir string
}

// NewLocalArchive keeps raw uploads as files under dir.
func NewLocalArchive(dir string) output.RawArchive {
	return &localArchive{dir: dir}
}

func (a *localArchive) Put(ctx context.Context, key string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	clean, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	path := filepath.Join(a.dir, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create archive dir: %w", err)
	}

	// write then rename so a reader never sees a partial file
	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create archive file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write archive file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close archive file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("rename archive file: %w", err)
	}
	return path, nil
}

// cleanKey rejects keys that would escape the archive root.
func cleanKey(key string) (string, error) {
	clean := filepath.ToSlash(filepath.Clean("/" + key))[1:]
	if clean == "" || strings.HasPrefix(clean, "..") || clean != strings.TrimPrefix(key, "/") {
		return "", fmt.Errorf("invalid archive key %q", key)
	}
	return clean, nil
}

type noopArchive struct{}

// NewNoopArchive discards uploads.
func NewNoopArchive() output.RawArchive {
	return noopArchive{}
}

func (noopArchive) Put(context.Context, string, []byte) (string, error) {
	return "", nil
}

var (
	_ output.RawArchive = (*localArchive)(nil)
	_ output.RawArchive = noopArchive{}
)
