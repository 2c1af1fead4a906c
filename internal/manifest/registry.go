// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package manifest

import (
	"context"
	"os"

	toml "github.com/pelletier/go-toml"
	"github.com/pkg/errors"

	"github.com/burrowpm/burrow/source"
)

// RegistryFile is an offline registry fixture: the full version and
// dependency listing of every package a resolution may touch.
//
//	[[package]]
//	name = "requests"
//
//	  [[package.version]]
//	  version = "2.1.0"
//	  dependencies = { urllib = ">=1.0.0" }
type RegistryFile struct {
	Packages []RegistryPackage `toml:"package"`
}

type RegistryPackage struct {
	Name     string            `toml:"name"`
	Versions []RegistryVersion `toml:"version"`
}

type RegistryVersion struct {
	Version      string            `toml:"version"`
	Yanked       bool              `toml:"yanked,omitempty"`
	Dependencies map[string]string `toml:"dependencies,omitempty"`
}

// LoadRegistry reads a registry fixture file.
func LoadRegistry(path string) (*RegistryFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading registry %s", path)
	}
	var r RegistryFile
	if err := toml.Unmarshal(data, &r); err != nil {
		return nil, errors.Wrapf(err, "parsing registry %s", path)
	}
	return &r, nil
}

// Client turns the fixture into a source.Client serving its contents.
func (r *RegistryFile) Client() source.Client {
	c := &fixtureClient{
		versions: make(map[string][]string),
		meta:     make(map[string]source.Metadata),
	}
	for _, pkg := range r.Packages {
		name := source.Normalize(pkg.Name)
		for _, v := range pkg.Versions {
			c.versions[name] = append(c.versions[name], v.Version)
			c.meta[name+"@"+v.Version] = source.Metadata{
				Deps:   v.Dependencies,
				Yanked: v.Yanked,
			}
		}
	}
	return c
}

type fixtureClient struct {
	versions map[string][]string
	meta     map[string]source.Metadata
}

func (c *fixtureClient) ListVersions(_ context.Context, name string) ([]string, error) {
	vs, ok := c.versions[name]
	if !ok {
		return nil, errors.Errorf("package %s is not in the registry", name)
	}
	return vs, nil
}

func (c *fixtureClient) GetMetadata(_ context.Context, name, version string) (source.Metadata, error) {
	meta, ok := c.meta[name+"@"+version]
	if !ok {
		return source.Metadata{}, errors.Errorf("package %s has no version %s in the registry", name, version)
	}
	return meta, nil
}
