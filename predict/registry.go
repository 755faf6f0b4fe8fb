package predict

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// Snapshot is a complete, immutable set of loaded variants.
type Snapshot struct {
	Variants []*Variant
	LoadedAt time.Time
	Source   string

	byName  map[string]*Variant
	byRoute map[string]*Variant
}

// Load reads the manifest from src and builds every variant it declares.
// Any failing artifact fails the whole snapshot.
func Load(src Source) (*Snapshot, error) {
	data, err := src.Read(ManifestName)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", ManifestName)
	}
	manifest, err := ParseManifest(data)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		Variants: make([]*Variant, 0, len(manifest.Variants)),
		LoadedAt: time.Now(),
		Source:   describe(src),
		byName:   make(map[string]*Variant, len(manifest.Variants)),
		byRoute:  make(map[string]*Variant, len(manifest.Variants)),
	}
	for _, cfg := range manifest.Variants {
		if _, dup := snap.byName[cfg.Name]; dup {
			return nil, fmt.Errorf("duplicate variant %q", cfg.Name)
		}
		if other, dup := snap.byRoute[cfg.Route]; dup {
			return nil, fmt.Errorf("variants %q and %q share route %s", other.Name(), cfg.Name, cfg.Route)
		}
		v, err := NewVariant(cfg, src)
		if err != nil {
			return nil, errors.Wrapf(err, "variant %q", cfg.Name)
		}
		snap.Variants = append(snap.Variants, v)
		snap.byName[cfg.Name] = v
		snap.byRoute[cfg.Route] = v
	}
	return snap, nil
}

func describe(src Source) string {
	if s, ok := src.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", src)
}

func (s *Snapshot) ByName(name string) (*Variant, bool) {
	v, ok := s.byName[name]
	return v, ok
}

func (s *Snapshot) ByRoute(route string) (*Variant, bool) {
	v, ok := s.byRoute[route]
	return v, ok
}

// Registry publishes the current snapshot. Readers never block and never see
// a partially loaded set.
type Registry struct {
	current atomic.Pointer[Snapshot]
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Reload builds a new snapshot from src and publishes it. On error the
// previous snapshot stays in place.
func (r *Registry) Reload(src Source) (*Snapshot, error) {
	snap, err := Load(src)
	if err != nil {
		return nil, err
	}
	r.current.Store(snap)
	return snap, nil
}

// Snapshot returns the published snapshot, or nil before the first load.
func (r *Registry) Snapshot() *Snapshot {
	return r.current.Load()
}

func (r *Registry) Set(snap *Snapshot) {
	r.current.Store(snap)
}
