package runner

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/izavyalov-dev/snapshard/bundle"
)

// loadDir reads every regular file under root into a bundle keyed by
// slash-separated relative path. A missing root yields an empty bundle.
func loadDir(root string) (*bundle.SnapshotBundle, error) {
	loaded := bundle.New()
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return loaded, nil
	}

	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		loaded.Add(filepath.ToSlash(rel), data)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return loaded, nil
}

// materialize writes every blob of the bundle under root, creating parent
// directories as needed.
func materialize(root string, b *bundle.SnapshotBundle) error {
	for _, blobPath := range b.Paths() {
		data, _ := b.Get(blobPath)
		target := filepath.Join(root, filepath.FromSlash(blobPath))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(target, data, 0o644); err != nil {
			return err
		}
	}
	return nil
}
