// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package manifest

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/gofrs/flock"
	toml "github.com/pelletier/go-toml"
	"github.com/pkg/errors"

	"github.com/burrowpm/burrow/pubgrub"
)

// LockFile records one successful resolution: the solver inputs' digest and
// every resolved pin, sorted by package for stable diffs.
type LockFile struct {
	InputsDigest string          `toml:"inputs-digest"`
	Packages     []LockedPackage `toml:"package"`
}

type LockedPackage struct {
	Name    string `toml:"name"`
	Extra   string `toml:"extra,omitempty"`
	Version string `toml:"version"`
}

// LockFromSolution builds a lockfile from a solver result, excluding the root
// itself.
func LockFromSolution(root pubgrub.Package, solution map[pubgrub.Package]pubgrub.Version, digest string) *LockFile {
	lock := &LockFile{InputsDigest: digest}
	for pkg, v := range solution {
		if pkg == root {
			continue
		}
		lock.Packages = append(lock.Packages, LockedPackage{
			Name:    pkg.Name,
			Extra:   pkg.Extra,
			Version: v.String(),
		})
	}
	sort.Slice(lock.Packages, func(i, j int) bool {
		a, b := lock.Packages[i], lock.Packages[j]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.Extra < b.Extra
	})
	return lock
}

// Pins returns the lock's contents as solver pins, for preferred-version
// re-solving.
func (l *LockFile) Pins() (map[pubgrub.Package]pubgrub.Version, error) {
	pins := make(map[pubgrub.Package]pubgrub.Version, len(l.Packages))
	for _, p := range l.Packages {
		v, err := pubgrub.ParseVersion(p.Version)
		if err != nil {
			return nil, errors.Wrapf(err, "locked package %s", p.Name)
		}
		pins[pubgrub.Package{Name: p.Name, Extra: p.Extra}] = v
	}
	return pins, nil
}

// LoadLock reads a lockfile; a missing file is not an error and yields nil.
func LoadLock(path string) (*LockFile, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading lockfile %s", path)
	}
	var l LockFile
	if err := toml.Unmarshal(data, &l); err != nil {
		return nil, errors.Wrapf(err, "parsing lockfile %s", path)
	}
	return &l, nil
}

// WriteLock writes the lockfile under an advisory file lock, via a temp file
// renamed into place so readers never observe a partial write.
func WriteLock(path string, lock *LockFile) error {
	data, err := toml.Marshal(*lock)
	if err != nil {
		return errors.Wrap(err, "encoding lockfile")
	}

	fl := flock.New(path + ".flock")
	if err := fl.Lock(); err != nil {
		return errors.Wrapf(err, "locking %s", path)
	}
	defer func() {
		fl.Unlock()
		os.Remove(fl.Path())
	}()

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return errors.Wrap(err, "creating temp lockfile")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "writing temp lockfile")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "closing temp lockfile")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrapf(err, "replacing %s", path)
	}
	return nil
}
