package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"chatrelay/internal/core/domain"
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// DiskStore writes uploads under a local directory and serves them back
// as /uploads/ static files.
type DiskStore struct {
	dir string
}

func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("uploads dir: %w", err)
	}
	return &DiskStore{dir: dir}, nil
}

// Save stores the blob under a timestamp-prefixed name so concurrent
// uploads of the same filename never collide on disk.
func (s *DiskStore) Save(ctx context.Context, filename string, r io.Reader) (domain.Upload, error) {
	name := fmt.Sprintf("%d-%s", time.Now().UnixMilli(), filepath.Base(filename))
	path := filepath.Join(s.dir, name)
	f, err := os.Create(path)
	if err != nil {
		return domain.Upload{}, fmt.Errorf("blob create: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return domain.Upload{}, fmt.Errorf("blob write: %w", err)
	}
	if err := f.Close(); err != nil {
		return domain.Upload{}, fmt.Errorf("blob close: %w", err)
	}
	return domain.Upload{URL: "/uploads/" + name, Kind: classify(path)}, nil
}

// classify decides image vs file: the extension allow-list first, a
// content sniff for images saved under an unknown extension.
func classify(path string) string {
	if imageExtensions[strings.ToLower(filepath.Ext(path))] {
		return domain.KindImage
	}
	if mt, err := mimetype.DetectFile(path); err == nil && strings.HasPrefix(mt.String(), "image/") {
		return domain.KindImage
	}
	return domain.KindFile
}
