// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package source bridges registry clients to the solver. A Manager owns all
// metadata caching for one resolution session: every client call is memoized,
// concurrent fetches for the same key collapse into one, and the solver's
// cancellation hook is wired to a context.
package source

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	radix "github.com/armon/go-radix"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/burrowpm/burrow/pubgrub"
)

// Metadata is one package version's registry record, still in wire form.
type Metadata struct {
	// Deps maps dependency names (optionally "name[extra]") to constraint
	// strings in the ecosystem's notation.
	Deps map[string]string
	// Yanked versions are listed but must not be selected.
	Yanked bool
}

// Client is the transport seam: anything that can enumerate versions and
// fetch per-version metadata. Implementations may hit the network; the
// Manager guarantees each (name) and (name, version) is fetched at most once
// per session.
type Client interface {
	ListVersions(ctx context.Context, name string) ([]string, error)
	GetMetadata(ctx context.Context, name, version string) (Metadata, error)
}

// Manager implements pubgrub.DependencyProvider over a Client. It is safe for
// concurrent use; Prefetch may warm the cache while a solve is running.
type Manager struct {
	ctx    context.Context
	client Client
	l      *logrus.Logger

	group singleflight.Group

	mu       sync.Mutex
	versions map[string][]pubgrub.Version
	meta     map[string]Metadata
	names    *radix.Tree
}

// NewManager returns a Manager whose provider calls are bounded by ctx: once
// ctx is done, ShouldCancel fails and the solve aborts cleanly. A nil logger
// disables trace output.
func NewManager(ctx context.Context, client Client, l *logrus.Logger) *Manager {
	if l == nil {
		l = logrus.New()
		l.SetOutput(io.Discard)
	}
	return &Manager{
		ctx:      ctx,
		client:   client,
		l:        l,
		versions: make(map[string][]pubgrub.Version),
		meta:     make(map[string]Metadata),
		names:    radix.New(),
	}
}

// Normalize canonicalizes a package name: lower-cased, with underscore and dot
// runs treated as hyphens. Two names normalizing equal denote the same
// package.
func Normalize(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	hyphen := false
	for _, r := range strings.ToLower(name) {
		if r == '-' || r == '_' || r == '.' {
			hyphen = true
			continue
		}
		if hyphen && b.Len() > 0 {
			b.WriteByte('-')
		}
		hyphen = false
		b.WriteRune(r)
	}
	return b.String()
}

// ParsePackage parses "name" or "name[extra]" into a solver package with a
// normalized name.
func ParsePackage(s string) (pubgrub.Package, error) {
	name, rest, found := strings.Cut(s, "[")
	if !found {
		return pubgrub.Package{Name: Normalize(name)}, nil
	}
	extra, ok := strings.CutSuffix(rest, "]")
	if !ok || extra == "" {
		return pubgrub.Package{}, errors.Errorf("malformed package reference %q", s)
	}
	return pubgrub.Package{Name: Normalize(name), Extra: Normalize(extra)}, nil
}

// ListVersions returns the known versions of the package, newest first. A
// package and its extras share one version list.
func (m *Manager) ListVersions(pkg pubgrub.Package) ([]pubgrub.Version, error) {
	vs, err := m.fetchVersions(pkg.Name)
	if err != nil {
		return nil, errors.Wrapf(err, "listing versions of %s", pkg.Name)
	}
	return vs, nil
}

func (m *Manager) fetchVersions(name string) ([]pubgrub.Version, error) {
	name = Normalize(name)
	m.mu.Lock()
	if vs, ok := m.versions[name]; ok {
		m.mu.Unlock()
		return vs, nil
	}
	m.mu.Unlock()

	v, err, _ := m.group.Do("versions:"+name, func() (interface{}, error) {
		if m.l.Level >= logrus.DebugLevel {
			m.l.WithField("name", name).Debug("Fetching version list")
		}
		raw, err := m.client.ListVersions(m.ctx, name)
		if err != nil {
			return nil, err
		}
		vs := make([]pubgrub.Version, 0, len(raw))
		for _, s := range raw {
			pv, err := pubgrub.ParseVersion(s)
			if err != nil {
				return nil, err
			}
			vs = append(vs, pv)
		}
		sort.Slice(vs, func(i, j int) bool { return vs[i].Compare(vs[j]) > 0 })

		m.mu.Lock()
		m.versions[name] = vs
		m.names.Insert(name, struct{}{})
		m.mu.Unlock()
		return vs, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]pubgrub.Version), nil
}

// GetDependencies converts one version's metadata into solver constraints. A
// yanked version maps to the unavailable sentinel. An extra package
// additionally pins its base package to the same version.
func (m *Manager) GetDependencies(pkg pubgrub.Package, version pubgrub.Version) (pubgrub.Dependencies, error) {
	meta, err := m.fetchMetadata(pkg.Name, version)
	if err != nil {
		return pubgrub.Dependencies{}, errors.Wrapf(err, "fetching metadata of %s %s", pkg.Name, version)
	}
	if meta.Yanked {
		if m.l.Level >= logrus.DebugLevel {
			m.l.WithFields(logrus.Fields{
				"name":    pkg.Name,
				"version": version.String(),
			}).Debug("Version is yanked, reporting unavailable")
		}
		return pubgrub.UnavailableDependencies(), nil
	}

	deps := make(map[pubgrub.Package]pubgrub.Range, len(meta.Deps)+1)
	for rawName, rawConstraint := range meta.Deps {
		dep, err := ParsePackage(rawName)
		if err != nil {
			return pubgrub.Dependencies{}, errors.Wrapf(err, "dependency of %s %s", pkg, version)
		}
		set, err := pubgrub.ParseRange(rawConstraint)
		if err != nil {
			return pubgrub.Dependencies{}, errors.Wrapf(err, "constraint on %s declared by %s %s", dep, pkg, version)
		}
		deps[dep] = set
	}
	if pkg.Extra != "" {
		deps[pubgrub.Package{Name: pkg.Name}] = pubgrub.Singleton(version)
	}
	return pubgrub.KnownDependencies(deps), nil
}

func (m *Manager) fetchMetadata(name string, version pubgrub.Version) (Metadata, error) {
	name = Normalize(name)
	key := fmt.Sprintf("%s@%s", name, version)
	m.mu.Lock()
	if meta, ok := m.meta[key]; ok {
		m.mu.Unlock()
		return meta, nil
	}
	m.mu.Unlock()

	v, err, _ := m.group.Do("metadata:"+key, func() (interface{}, error) {
		if m.l.Level >= logrus.DebugLevel {
			m.l.WithFields(logrus.Fields{
				"name":    name,
				"version": version.String(),
			}).Debug("Fetching metadata")
		}
		meta, err := m.client.GetMetadata(m.ctx, name, version.String())
		if err != nil {
			return Metadata{}, err
		}
		m.mu.Lock()
		m.meta[key] = meta
		m.mu.Unlock()
		return meta, nil
	})
	if err != nil {
		return Metadata{}, err
	}
	return v.(Metadata), nil
}

// ChoosePackageVersion applies the default fail-fast heuristic over the
// manager's cached version lists.
func (m *Manager) ChoosePackageVersion(candidates []pubgrub.Candidate) (pubgrub.Package, *pubgrub.Version, error) {
	return pubgrub.ChooseFewestVersions(m.ListVersions, candidates)
}

// ShouldCancel reports the manager context's cancellation to the solver.
func (m *Manager) ShouldCancel() error {
	if err := m.ctx.Err(); err != nil {
		return err
	}
	return nil
}

// Prefetch warms the version cache for the given names with at most limit
// concurrent fetches. Errors are returned but the cache keeps whatever
// completed; a subsequent solve simply re-fetches the failures.
func (m *Manager) Prefetch(ctx context.Context, names []string, limit int) error {
	if limit < 1 {
		limit = 1
	}
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, name := range names {
		name := name
		g.Go(func() error {
			_, err := m.fetchVersions(name)
			return err
		})
	}
	return g.Wait()
}

// Suggest returns the cached package names starting with the normalized
// prefix, for "did you mean" hints on unknown packages.
func (m *Manager) Suggest(prefix string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	m.names.WalkPrefix(Normalize(prefix), func(s string, _ interface{}) bool {
		out = append(out, s)
		return false
	})
	sort.Strings(out)
	return out
}

// SuggestFor returns "did you mean" candidates for a name that failed to
// resolve, shortening the prefix until the cached names match something.
// Prefixes shorter than two characters are too noisy to suggest from.
func (m *Manager) SuggestFor(name string) []string {
	name = Normalize(name)
	for prefix := name; len(prefix) >= 2; prefix = prefix[:len(prefix)-1] {
		var matches []string
		for _, s := range m.Suggest(prefix) {
			if s != name {
				matches = append(matches, s)
			}
		}
		if len(matches) > 0 {
			return matches
		}
	}
	return nil
}
