// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pubgrub

import (
	"sort"
)

// OfflineProvider is a DependencyProvider backed entirely by in-memory data.
// It serves tests, lockfile verification, and any caller that has already
// gathered the full metadata it needs.
type OfflineProvider struct {
	versions  map[Package][]Version
	deps      map[Package]map[string]Dependencies
	preferred map[Package]Version
}

// NewOfflineProvider returns an empty provider. Packages and versions are
// registered with AddDependencies.
func NewOfflineProvider() *OfflineProvider {
	return &OfflineProvider{
		versions:  make(map[Package][]Version),
		deps:      make(map[Package]map[string]Dependencies),
		preferred: make(map[Package]Version),
	}
}

// AddDependencies registers pkg@version with the given dependency constraints.
// Registering the same version twice replaces its dependencies.
func (op *OfflineProvider) AddDependencies(pkg Package, version Version, deps Dependencies) {
	byVersion, ok := op.deps[pkg]
	if !ok {
		byVersion = make(map[string]Dependencies)
		op.deps[pkg] = byVersion
	}
	if _, exists := byVersion[version.String()]; !exists {
		op.versions[pkg] = append(op.versions[pkg], version)
		vs := op.versions[pkg]
		sort.Slice(vs, func(i, j int) bool { return vs[i].Compare(vs[j]) > 0 })
	}
	byVersion[version.String()] = deps
}

// Prefer pins the version ListVersions offers first for a package, ahead of
// the newest-first default. Resolving against a previous solution's pins
// makes a re-solve reproduce it when it is still viable.
func (op *OfflineProvider) Prefer(pkg Package, version Version) {
	op.preferred[pkg] = version
}

// ListVersions returns the package's registered versions, the preferred
// version first if one is pinned, then newest first.
func (op *OfflineProvider) ListVersions(pkg Package) ([]Version, error) {
	vs := op.versions[pkg]
	out := make([]Version, 0, len(vs))
	pref, pinned := op.preferred[pkg]
	if pinned {
		for _, v := range vs {
			if v.Compare(pref) == 0 {
				out = append(out, v)
				break
			}
		}
	}
	for _, v := range vs {
		if pinned && v.Compare(pref) == 0 {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// GetDependencies returns the registered dependencies of pkg@version, or the
// unavailable sentinel for unknown versions.
func (op *OfflineProvider) GetDependencies(pkg Package, version Version) (Dependencies, error) {
	if deps, ok := op.deps[pkg][version.String()]; ok {
		return deps, nil
	}
	return UnavailableDependencies(), nil
}

// ChoosePackageVersion applies the fewest-versions heuristic over the
// provider's own version lists.
func (op *OfflineProvider) ChoosePackageVersion(candidates []Candidate) (Package, *Version, error) {
	return ChooseFewestVersions(op.ListVersions, candidates)
}

// ShouldCancel never cancels; the provider does no blocking work.
func (op *OfflineProvider) ShouldCancel() error {
	return nil
}
