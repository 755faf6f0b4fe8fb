package artifacts

import (
	"github.com/pkg/errors"

	"prendaml/config"
	"prendaml/db"
)

// Source is a read-only view of a bundle.
type Source interface {
	Read(name string) ([]byte, error)
	String() string
}

// Open returns the bundle named by kind and path. The returned close function
// is never nil.
func Open(kind, path string, compressed bool) (Source, func() error, error) {
	switch kind {
	case config.SourceDir, "":
		src, err := NewDirSource(path, compressed)
		if err != nil {
			return nil, nil, err
		}
		return src, func() error { return nil }, nil
	case config.SourceSQLite:
		store, err := db.Open(path, true)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return nil, nil, errors.Errorf("unsupported artifact source %q", kind)
	}
}
