package manifest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"

	"github.com/chenyanchen/bundlegate"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

// Entry is one bundle load. An empty Name is a leaf consumer; an empty After means no dependency.
type Entry struct {
	Name  string `yaml:"name,omitempty"`
	After string `yaml:"after,omitempty"`
}

func (e Entry) Dependency() bundlegate.Dependency {
	if e.After == "" {
		return bundlegate.NoDependency
	}
	return bundlegate.After(e.After)
}

func (e Entry) Bundle() bundlegate.Bundle {
	if e.Name == "" {
		return bundlegate.Leaf
	}
	return bundlegate.As(e.Name)
}

func (e Entry) String() string {
	if e.Name != "" {
		return e.Name
	}
	if e.After != "" {
		return "leaf(after " + e.After + ")"
	}
	return "leaf"
}

type Manifest struct {
	Bundles []Entry `yaml:"bundles"`
}

// DuplicateBundleError means the same bundle name is declared more than once.
type DuplicateBundleError struct {
	Name string
}

func (e DuplicateBundleError) Error() string {
	return fmt.Sprintf("duplicate bundle: %s", e.Name)
}

// InitFunc returns the initialization callback for one entry.
type InitFunc func(e Entry) func()

func Load(r io.Reader) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func LoadFile(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Validate rejects duplicate bundle names. Dependencies are not resolved here:
// a bundle may wait on a name no entry provides.
func (m *Manifest) Validate() error {
	seen := make(map[string]struct{}, len(m.Bundles))
	for _, e := range m.Bundles {
		if e.Name == "" {
			continue
		}
		if _, ok := seen[e.Name]; ok {
			return DuplicateBundleError{Name: e.Name}
		}
		seen[e.Name] = struct{}{}
	}
	return nil
}

// Shuffled returns the entries in a pseudo-random arrival order derived from seed.
func (m *Manifest) Shuffled(seed int64) []Entry {
	out := append([]Entry(nil), m.Bundles...)
	rnd := rand.New(rand.NewSource(seed))
	rnd.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// Apply hands every entry to reg concurrently and returns once all Manage calls returned.
// Callbacks of entries whose dependency is not ready yet keep waiting after Apply returns.
func Apply(ctx context.Context, reg *bundlegate.Registry, m *Manifest, init InitFunc) error {
	if reg == nil {
		return fmt.Errorf("apply manifest: registry is nil")
	}
	g, ctx := errgroup.WithContext(ctx)
	for _, e := range m.Bundles {
		e := e
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return manage(reg, e, init)
		})
	}
	return g.Wait()
}

// Replay hands entries to reg one by one in the given order.
func Replay(reg *bundlegate.Registry, entries []Entry, init InitFunc) error {
	if reg == nil {
		return fmt.Errorf("replay manifest: registry is nil")
	}
	for _, e := range entries {
		if err := manage(reg, e, init); err != nil {
			return err
		}
	}
	return nil
}

func manage(reg *bundlegate.Registry, e Entry, init InitFunc) error {
	var cb func()
	if init != nil {
		cb = init(e)
	}
	if cb == nil {
		cb = func() {}
	}
	if err := reg.Manage(e.Dependency(), e.Bundle(), cb); err != nil {
		return fmt.Errorf("manage %s: %w", e, err)
	}
	return nil
}
