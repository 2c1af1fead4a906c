// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pubgrub

import (
	"sort"

	"github.com/sirupsen/logrus"
)

// state is the complete in-memory state of one solve: the clause arena, the
// per-package clause index, the partial solution and the propagation work
// list. It is created fresh per Solve call and never shared.
type state struct {
	l *logrus.Logger

	root        Package
	rootVersion Version

	// incompats indexes every clause by the packages it mentions, so
	// propagation touches only clauses that can fire.
	incompats map[Package][]incompID

	// contradicted caches clauses already known to be contradicted; they stay
	// dead until the next backtrack, bounding repeated propagation work.
	contradicted map[incompID]struct{}

	// depClauses tracks live dependency clauses per (package, dependency)
	// pair so versions that declare the identical dependency collapse into
	// one clause instead of piling up near-duplicates.
	depClauses map[dependencyKey][]incompID

	partial *partialSolution
	store   *arena

	// Work list reused across unitPropagation calls.
	buf []Package
}

func newState(root Package, rootVersion Version, l *logrus.Logger) *state {
	s := &state{
		l:            l,
		root:         root,
		rootVersion:  rootVersion,
		incompats:    make(map[Package][]incompID),
		contradicted: make(map[incompID]struct{}),
		depClauses:   make(map[dependencyKey][]incompID),
		partial:      newPartialSolution(),
		store:        &arena{},
	}
	s.addIncompatibility(notRoot(root, rootVersion))
	return s
}

// addIncompatibility stores a clause and indexes it under every package it
// mentions.
func (s *state) addIncompatibility(inc Incompatibility) incompID {
	id := s.store.alloc(inc)
	s.index(id)
	return id
}

func (s *state) index(id incompID) {
	for _, pt := range s.store.at(id).terms {
		s.incompats[pt.pkg] = append(s.incompats[pt.pkg], id)
	}
}

// addDependencyIncompats converts a version's dependency map into binary
// clauses, in sorted package order so clause ids are deterministic.
func (s *state) addDependencyIncompats(pkg Package, version Version, deps map[Package]Range) []incompID {
	sorted := make([]Package, 0, len(deps))
	for dep := range deps {
		sorted = append(sorted, dep)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].less(sorted[j]) })

	ids := make([]incompID, 0, len(sorted))
	for _, dep := range sorted {
		ids = append(ids, s.addDependencyIncompat(pkg, version, dep, deps[dep]))
	}
	return ids
}

// dependencyKey identifies the clause family "versions of pkg depending on
// dep".
type dependencyKey struct {
	pkg Package
	dep Package
}

// addDependencyIncompat records one dependency edge. When an earlier version
// of pkg already declared the same dependency range on dep, the two clauses
// merge into a single clause over the union of the version sets; the
// superseded clause leaves the index but stays in the arena for any causal
// chains that already reference it.
func (s *state) addDependencyIncompat(pkg Package, version Version, dep Package, depSet Range) incompID {
	key := dependencyKey{pkg: pkg, dep: dep}
	for i, past := range s.depClauses[key] {
		if !s.store.at(past).depSet.Equal(depSet) {
			continue
		}
		merged := fromDependencyRange(pkg, s.store.at(past).set.Union(Singleton(version)), dep, depSet)
		id := s.store.alloc(merged)
		for _, pt := range s.store.at(id).terms {
			s.removeFromIndex(pt.pkg, past)
		}
		s.depClauses[key][i] = id
		s.index(id)
		if s.l.Level >= logrus.DebugLevel {
			s.l.WithFields(logrus.Fields{
				"clause": s.store.at(id).String(),
			}).Debug("Merged dependency clauses")
		}
		return id
	}
	id := s.addIncompatibility(fromDependency(pkg, version, dep, depSet))
	s.depClauses[key] = append(s.depClauses[key], id)
	return id
}

func (s *state) removeFromIndex(pkg Package, id incompID) {
	ids := s.incompats[pkg]
	for i, existing := range ids {
		if existing == id {
			s.incompats[pkg] = append(ids[:i], ids[i+1:]...)
			return
		}
	}
}

// unitPropagation drives derivations to a fixed point starting from a package
// whose assignments just changed. A fully satisfied clause hands off to
// conflict resolution; its learned clause re-enters propagation. The returned
// error is non-nil only for a proven NoSolution.
func (s *state) unitPropagation(pkg Package) error {
	s.buf = s.buf[:0]
	s.buf = append(s.buf, pkg)

	for len(s.buf) > 0 {
		current := s.buf[len(s.buf)-1]
		s.buf = s.buf[:len(s.buf)-1]

		// Newest clauses first: learned clauses are the most likely to fire.
		ids := s.incompats[current]
		conflict := incompID(-1)
		for k := len(ids) - 1; k >= 0; k-- {
			id := ids[k]
			if _, dead := s.contradicted[id]; dead {
				continue
			}
			inc := s.store.at(id)
			switch rel, almost := s.partial.relation(inc); rel {
			case incompatSatisfied:
				if s.l.Level >= logrus.DebugLevel {
					s.l.WithFields(logrus.Fields{
						"clause": inc.String(),
					}).Debug("Clause satisfied by partial solution, entering conflict resolution")
				}
				conflict = id
			case incompatAlmostSatisfied:
				s.buf = append(s.buf, almost)
				s.partial.addDerivation(almost, id, s.store)
				if s.l.Level >= logrus.DebugLevel {
					s.l.WithFields(logrus.Fields{
						"name": almost,
						"term": s.partial.termIntersectionFor(almost).String(),
					}).Debug("Derived narrowed term")
				}
				s.contradicted[id] = struct{}{}
			case incompatContradicted:
				s.contradicted[id] = struct{}{}
			}
			if conflict >= 0 {
				break
			}
		}

		if conflict >= 0 {
			almost, rootCause, err := s.conflictResolution(conflict)
			if err != nil {
				return err
			}
			s.buf = s.buf[:0]
			s.buf = append(s.buf, almost)
			s.partial.addDerivation(almost, rootCause, s.store)
			s.contradicted[rootCause] = struct{}{}
		}
	}
	return nil
}

// conflictResolution backtracks out of a fully satisfied clause. It walks the
// causal chain, merging prior causes while satisfier and previous satisfier
// share a decision level, and stops once they differ: the partial solution
// rewinds to the previous satisfier's level and the learned clause is
// returned for continued propagation. A terminal clause proves
// unsatisfiability instead.
func (s *state) conflictResolution(conflict incompID) (Package, incompID, error) {
	current := conflict
	changed := false
	for {
		inc := s.store.at(current)
		if inc.isTerminal(s.root, s.rootVersion) {
			return Package{}, 0, &NoSolutionError{Tree: s.buildDerivationTree(current)}
		}

		pkg, outcome := s.partial.satisfierSearch(inc, s.store)
		if outcome.differentLevels {
			s.backtrack(current, changed, outcome.previousLevel)
			if s.l.Level >= logrus.DebugLevel {
				s.l.WithFields(logrus.Fields{
					"level":   outcome.previousLevel,
					"learned": s.store.at(current).String(),
				}).Debug("Backtracked with learned clause")
			}
			return pkg, current, nil
		}

		merged := priorCause(current, outcome.satisfierCause, pkg, s.store)
		if s.l.Level >= logrus.DebugLevel {
			s.l.WithFields(logrus.Fields{
				"prior": merged.String(),
			}).Debug("Merged prior cause")
		}
		current = s.store.alloc(merged)
		changed = true
	}
}

// backtrack rewinds the partial solution, forgets the contradicted-clause
// cache (no longer valid for the shorter history), and indexes the learned
// clause if conflict resolution created a new one.
func (s *state) backtrack(inc incompID, incompatChanged bool, toLevel int) {
	s.partial.backtrack(toLevel, s.store)
	s.contradicted = make(map[incompID]struct{})
	if incompatChanged {
		s.index(inc)
	}
}

// buildDerivationTree converts the causal chain ending in the terminal clause
// into the externally visible explanation tree. Clauses appearing more than
// once in the chain are tagged with shared ids so the reporter can reference
// them instead of re-explaining.
func (s *state) buildDerivationTree(terminal incompID) DerivationTree {
	shared := make(map[incompID]struct{})
	seen := make(map[incompID]struct{})
	stack := []incompID{terminal}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		c1, c2, derived := s.store.at(id).causes()
		if !derived {
			continue
		}
		if _, dup := seen[id]; dup {
			shared[id] = struct{}{}
			continue
		}
		seen[id] = struct{}{}
		stack = append(stack, c1, c2)
	}
	return s.treeOf(terminal, shared)
}

func (s *state) treeOf(id incompID, shared map[incompID]struct{}) DerivationTree {
	inc := s.store.at(id)
	switch inc.kind {
	case kindDerived:
		node := &Derived{
			terms:  append([]pkgTerm(nil), inc.terms...),
			Cause1: s.treeOf(inc.cause1, shared),
			Cause2: s.treeOf(inc.cause2, shared),
		}
		if _, ok := shared[id]; ok {
			n := int(id)
			node.SharedID = &n
		}
		return node
	case kindNotRoot:
		return &External{Kind: ExternalNotRoot, Pkg: inc.pkg, Set: inc.set}
	case kindNoVersions:
		return &External{Kind: ExternalNoVersions, Pkg: inc.pkg, Set: inc.set}
	case kindUnavailableDeps:
		return &External{Kind: ExternalUnavailableDeps, Pkg: inc.pkg, Set: inc.set}
	default:
		return &External{Kind: ExternalDependency, Pkg: inc.pkg, Set: inc.set, Dep: inc.dep, DepSet: inc.depSet}
	}
}
