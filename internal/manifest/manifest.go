// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package manifest defines the on-disk TOML formats: the project manifest,
// the offline registry fixture, and the lockfile.
package manifest

import (
	"crypto/sha256"
	"fmt"
	"os"
	"sort"

	toml "github.com/pelletier/go-toml"
	"github.com/pkg/errors"

	"github.com/burrowpm/burrow/pubgrub"
	"github.com/burrowpm/burrow/source"
)

// Manifest is the project file naming the root package and its direct
// dependency constraints.
//
//	name = "myapp"
//	version = "1.0.0"
//
//	[dependencies]
//	requests = ">=2.0.0,<3.0.0"
type Manifest struct {
	Name         string            `toml:"name"`
	Version      string            `toml:"version"`
	Dependencies map[string]string `toml:"dependencies"`
}

// Load reads and validates a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading manifest %s", path)
	}
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrapf(err, "parsing manifest %s", path)
	}
	if err := m.validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid manifest %s", path)
	}
	return &m, nil
}

func (m *Manifest) validate() error {
	if m.Name == "" {
		return errors.New("missing project name")
	}
	if _, err := pubgrub.ParseVersion(m.Version); err != nil {
		return err
	}
	for name, constraint := range m.Dependencies {
		if _, err := source.ParsePackage(name); err != nil {
			return err
		}
		if _, err := pubgrub.ParseRange(constraint); err != nil {
			return errors.Wrapf(err, "dependency %s", name)
		}
	}
	return nil
}

// RootPackage returns the solver identity of the project itself.
func (m *Manifest) RootPackage() (pubgrub.Package, pubgrub.Version) {
	return pubgrub.Package{Name: source.Normalize(m.Name)}, pubgrub.MustVersion(m.Version)
}

// RootDependencies converts the manifest's constraint map into solver types.
// Load has already validated every entry.
func (m *Manifest) RootDependencies() map[pubgrub.Package]pubgrub.Range {
	deps := make(map[pubgrub.Package]pubgrub.Range, len(m.Dependencies))
	for name, constraint := range m.Dependencies {
		pkg, _ := source.ParsePackage(name)
		deps[pkg] = pubgrub.MustRange(constraint)
	}
	return deps
}

// InputsDigest fingerprints everything that influences resolution: the root
// identity and the sorted constraint list. Lockfiles carry it so a stale lock
// is detectable without re-solving.
func (m *Manifest) InputsDigest() string {
	h := sha256.New()
	fmt.Fprintf(h, "%s %s\n", source.Normalize(m.Name), m.Version)
	names := make([]string, 0, len(m.Dependencies))
	for name := range m.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(h, "%s %s\n", source.Normalize(name), m.Dependencies[name])
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
