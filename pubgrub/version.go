// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pubgrub

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Package identifies a package in the ecosystem. The Extra field carries an
// optional feature qualifier ("requests[socks]"-style); a package and its
// extras are distinct solver packages.
//
// Package is a comparable value type, suitable for use as a map key.
type Package struct {
	Name  string
	Extra string
}

func (p Package) String() string {
	if p.Extra == "" {
		return p.Name
	}
	return fmt.Sprintf("%s[%s]", p.Name, p.Extra)
}

// less establishes the total order used for deterministic iteration over
// package sets.
func (p Package) less(o Package) bool {
	if p.Name != o.Name {
		return p.Name < o.Name
	}
	return p.Extra < o.Extra
}

// Version is a totally ordered version value. Ordering, including pre-release
// precedence, follows the semver spec as implemented by Masterminds/semver;
// getting this wrong silently yields wrong solutions rather than errors, so
// no comparison happens outside Compare.
//
// The zero Version is not valid; obtain one via ParseVersion or MustVersion.
type Version struct {
	sv *semver.Version
}

// ParseVersion parses a version in the ecosystem's notation.
func ParseVersion(s string) (Version, error) {
	sv, err := semver.NewVersion(s)
	if err != nil {
		return Version{}, fmt.Errorf("invalid version %q: %s", s, err)
	}
	return Version{sv: sv}, nil
}

// MustVersion is ParseVersion for static inputs; it panics on bad input.
func MustVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Compare returns -1, 0, or 1 as v sorts before, equal to, or after o.
func (v Version) Compare(o Version) int {
	return v.sv.Compare(o.sv)
}

func (v Version) String() string {
	if v.sv == nil {
		return "<invalid>"
	}
	return v.sv.Original()
}

// nextMajor and nextMinor produce the exclusive upper bounds used by caret
// constraints.
func (v Version) nextMajor() Version {
	return Version{sv: semver.New(v.sv.Major()+1, 0, 0, "", "")}
}

func (v Version) nextMinor() Version {
	return Version{sv: semver.New(v.sv.Major(), v.sv.Minor()+1, 0, "", "")}
}
