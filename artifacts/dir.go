// Package artifacts provides read-only sources of model artifacts and
// watches a directory bundle for changes.
package artifacts

import (
	"os"
	"path/filepath"

	"github.com/peterbourgon/diskv"
	"github.com/pkg/errors"
)

// flatTransform keeps every key at its own relative path under the base.
func flatTransform(string) []string {
	return []string{}
}

// DirSource reads artifacts from a directory tree. Names are slash separated
// paths relative to the root.
type DirSource struct {
	root  string
	store *diskv.Diskv
}

// NewDirSource opens root. With compressed set, every artifact is expected
// to be gzip encoded on disk.
func NewDirSource(root string, compressed bool) (*DirSource, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, errors.Wrap(err, "artifact directory")
	}
	if !info.IsDir() {
		return nil, errors.Errorf("%s is not a directory", root)
	}
	opts := diskv.Options{
		BasePath:     root,
		Transform:    flatTransform,
		CacheSizeMax: 0,
	}
	if compressed {
		opts.Compression = diskv.NewGzipCompression()
	}
	return &DirSource{root: root, store: diskv.New(opts)}, nil
}

func (s *DirSource) Read(name string) ([]byte, error) {
	payload, err := s.store.Read(filepath.FromSlash(name))
	if err != nil {
		return nil, errors.Wrapf(err, "artifact %s", name)
	}
	return payload, nil
}

func (s *DirSource) Root() string {
	return s.root
}

func (s *DirSource) String() string {
	return "dir:" + s.root
}
