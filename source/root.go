// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package source

import (
	"github.com/burrowpm/burrow/pubgrub"
)

// RootedProvider overlays a synthetic root package, whose dependencies come
// from a project manifest rather than any registry, onto an inner provider.
type RootedProvider struct {
	inner   pubgrub.DependencyProvider
	root    pubgrub.Package
	version pubgrub.Version
	deps    map[pubgrub.Package]pubgrub.Range
	pins    map[pubgrub.Package]pubgrub.Version
}

// WithRoot wraps inner so that root@version exists with the given
// dependencies. Every other package resolves through inner.
func WithRoot(inner pubgrub.DependencyProvider, root pubgrub.Package, version pubgrub.Version, deps map[pubgrub.Package]pubgrub.Range) *RootedProvider {
	return &RootedProvider{
		inner:   inner,
		root:    root,
		version: version,
		deps:    deps,
	}
}

// PreferPins biases version choice toward the given pins (a previous
// solution) when they are still allowed, making re-resolution reproduce the
// lockfile whenever it remains valid.
func (rp *RootedProvider) PreferPins(pins map[pubgrub.Package]pubgrub.Version) {
	rp.pins = pins
}

func (rp *RootedProvider) ListVersions(pkg pubgrub.Package) ([]pubgrub.Version, error) {
	if pkg == rp.root {
		return []pubgrub.Version{rp.version}, nil
	}
	vs, err := rp.inner.ListVersions(pkg)
	if err != nil {
		return nil, err
	}
	pin, ok := rp.pins[pkg]
	if !ok {
		return vs, nil
	}
	out := make([]pubgrub.Version, 0, len(vs))
	for _, v := range vs {
		if v.Compare(pin) == 0 {
			out = append(out, v)
		}
	}
	for _, v := range vs {
		if v.Compare(pin) != 0 {
			out = append(out, v)
		}
	}
	return out, nil
}

func (rp *RootedProvider) GetDependencies(pkg pubgrub.Package, version pubgrub.Version) (pubgrub.Dependencies, error) {
	if pkg == rp.root {
		return pubgrub.KnownDependencies(rp.deps), nil
	}
	return rp.inner.GetDependencies(pkg, version)
}

func (rp *RootedProvider) ChoosePackageVersion(candidates []pubgrub.Candidate) (pubgrub.Package, *pubgrub.Version, error) {
	return pubgrub.ChooseFewestVersions(rp.ListVersions, candidates)
}

func (rp *RootedProvider) ShouldCancel() error {
	return rp.inner.ShouldCancel()
}
