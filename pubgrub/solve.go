// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pubgrub

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
)

// Candidate pairs an undecided package with the versions its accumulated
// constraints still allow.
type Candidate struct {
	Pkg     Package
	Allowed Range
}

// Dependencies is the answer to a GetDependencies query: either the
// dependency constraints of the queried version, or a sentinel marking the
// version as actually unavailable (lazy invalidation by the provider).
type Dependencies struct {
	Unavailable bool
	Deps        map[Package]Range
}

// KnownDependencies wraps a dependency map; a nil map means no dependencies.
func KnownDependencies(deps map[Package]Range) Dependencies {
	return Dependencies{Deps: deps}
}

// UnavailableDependencies marks the queried version as unselectable.
func UnavailableDependencies() Dependencies {
	return Dependencies{Unavailable: true}
}

// DependencyProvider is the solver's single seam to the outside world: all
// package metadata flows through it, and it owns the decision heuristic. The
// solver never retries a failed call; errors are fatal to the solve.
type DependencyProvider interface {
	// ListVersions returns the known versions of a package, most preferred
	// first (the order consistent with the decision heuristic).
	ListVersions(pkg Package) ([]Version, error)

	// GetDependencies returns the dependency constraints of pkg@version.
	GetDependencies(pkg Package, version Version) (Dependencies, error)

	// ChoosePackageVersion picks which undecided package to decide next and
	// a version for it inside its allowed range, or nil when no version
	// fits. candidates is never empty.
	ChoosePackageVersion(candidates []Candidate) (Package, *Version, error)

	// ShouldCancel is polled once per decision step; a non-nil return aborts
	// the solve with a CancelledError.
	ShouldCancel() error
}

// Solver runs PubGrub solves against a dependency provider. A Solver may be
// reused; each Solve call owns its entire state exclusively, so separate
// Solver instances are independent.
type Solver struct {
	dp DependencyProvider
	l  *logrus.Logger
}

// NewSolver returns a Solver using the given provider. A nil logger
// suppresses trace output.
func NewSolver(dp DependencyProvider, l *logrus.Logger) *Solver {
	if l == nil {
		l = logrus.New()
		l.Out = io.Discard
	}
	return &Solver{dp: dp, l: l}
}

// Solve resolves the dependency closure of root@rootVersion. On success every
// returned version lies within the intersection of all constraints reachable
// from the root. On failure the error is a *NoSolutionError carrying the full
// derivation tree, or one of the typed fatal errors (ProviderError,
// CancelledError, SelfDependencyError, EmptyRangeError).
func (s *Solver) Solve(root Package, rootVersion Version) (map[Package]Version, error) {
	st := newState(root, rootVersion, s.l)

	// Versions already decided once: their dependency clauses are in the
	// arena, so re-deciding after a backtrack skips the provider round trip.
	decided := make(map[Package]map[string]bool)

	next := root
	for {
		if err := s.dp.ShouldCancel(); err != nil {
			return nil, &CancelledError{Err: err}
		}

		if err := st.unitPropagation(next); err != nil {
			return nil, err
		}

		candidates := st.partial.potentialPackages()
		if len(candidates) == 0 {
			solution := st.partial.extractSolution()
			if s.l.Level >= logrus.InfoLevel {
				s.l.WithField("packages", len(solution)).Info("Solve succeeded")
			}
			return solution, nil
		}

		pkg, version, err := s.dp.ChoosePackageVersion(candidates)
		if err != nil {
			return nil, &ProviderError{Op: "choose_package_version", Pkg: pkg, Err: err}
		}
		next = pkg

		allowed := st.partial.termIntersectionFor(pkg)
		if allowed == nil || !allowed.IsPositive() {
			panic(fmt.Sprintf("pubgrub: provider chose %s, which was not a candidate", pkg))
		}

		if version == nil {
			// Nothing satisfies the allowed range: synthesize the fact and
			// let propagation raise the conflict.
			if s.l.Level >= logrus.InfoLevel {
				s.l.WithFields(logrus.Fields{
					"name":  pkg,
					"range": allowed.Set().String(),
				}).Info("No versions satisfy range")
			}
			st.addIncompatibility(noVersions(pkg, *allowed))
			continue
		}
		if !allowed.Contains(*version) {
			return nil, &ProviderError{
				Op:  "choose_package_version",
				Pkg: pkg,
				Err: fmt.Errorf("chose %s outside the allowed range %s", *version, allowed.Set()),
			}
		}

		if decided[pkg][version.String()] {
			if s.l.Level >= logrus.DebugLevel {
				s.l.WithFields(logrus.Fields{
					"name":    pkg,
					"version": version.String(),
				}).Debug("Re-deciding previously expanded version")
			}
			st.partial.addDecision(pkg, *version)
			continue
		}

		deps, err := s.dp.GetDependencies(pkg, *version)
		if err != nil {
			return nil, &ProviderError{Op: "get_dependencies", Pkg: pkg, Err: err}
		}
		if deps.Unavailable {
			if s.l.Level >= logrus.WarnLevel {
				s.l.WithFields(logrus.Fields{
					"name":    pkg,
					"version": version.String(),
				}).Warn("Version reported unavailable by provider")
			}
			st.addIncompatibility(unavailableDeps(pkg, *version))
			continue
		}
		for dep, set := range deps.Deps {
			if dep == pkg {
				return nil, &SelfDependencyError{Pkg: pkg, Version: *version}
			}
			if set.IsEmpty() {
				return nil, &EmptyRangeError{Pkg: pkg, Version: *version, Dependency: dep}
			}
		}

		if decided[pkg] == nil {
			decided[pkg] = make(map[string]bool)
		}
		decided[pkg][version.String()] = true

		ids := st.addDependencyIncompats(pkg, *version, deps.Deps)
		if st.partial.addVersion(pkg, *version, ids, st.store) {
			if s.l.Level >= logrus.InfoLevel {
				s.l.WithFields(logrus.Fields{
					"name":    pkg,
					"version": version.String(),
				}).Info("Accepted version")
			}
		} else if s.l.Level >= logrus.DebugLevel {
			s.l.WithFields(logrus.Fields{
				"name":    pkg,
				"version": version.String(),
			}).Debug("Version withheld; its dependency clauses conflict")
		}
	}
}

// ChooseFewestVersions is the default decision heuristic: decide the package
// with the fewest allowed versions remaining (failing fast on the most
// constrained one), and pick the first listed version inside the range. Ties
// keep candidate order, which the partial solution makes deterministic.
func ChooseFewestVersions(listVersions func(Package) ([]Version, error), candidates []Candidate) (Package, *Version, error) {
	bestCount := -1
	var best Candidate
	var bestVersion *Version
	for _, c := range candidates {
		versions, err := listVersions(c.Pkg)
		if err != nil {
			// Attribute the failure to the package being listed.
			return c.Pkg, nil, err
		}
		count := 0
		var first *Version
		for i := range versions {
			if c.Allowed.Contains(versions[i]) {
				if first == nil {
					v := versions[i]
					first = &v
				}
				count++
			}
		}
		if bestCount < 0 || count < bestCount {
			bestCount = count
			best = c
			bestVersion = first
		}
	}
	return best.Pkg, bestVersion, nil
}
