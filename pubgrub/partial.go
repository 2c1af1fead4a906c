// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pubgrub

import "fmt"

// datedDerivation is one propagation-forced assignment: the term it implies is
// recovered by negating its cause's term for the package, so only the causal
// id and position need storing.
type datedDerivation struct {
	globalIndex int
	level       int
	cause       incompID
}

// decisionRecord is the solver's free choice of a concrete version.
type decisionRecord struct {
	globalIndex int
	version     Version
	term        Term
}

// packageAssignments accumulates every assignment for one package together
// with the memoized intersection of their terms. The memo is what makes
// relation checks cheap; it is the single most consulted piece of solver
// state.
type packageAssignments struct {
	smallestLevel int
	highestLevel  int
	derivations   []datedDerivation
	decision      *decisionRecord
	derivedTerm   Term
}

// termIntersection returns the intersection of every term assigned so far,
// decision included.
func (pa *packageAssignments) termIntersection() *Term {
	if pa.decision != nil {
		return &pa.decision.term
	}
	return &pa.derivedTerm
}

// satisfier scans the package's assignments oldest-first, accumulating term
// intersections starting from start, and returns the position, global index
// and decision level of the earliest assignment at which the incompatibility
// term became satisfied. The decision, when present, is always the final
// assignment.
func (pa *packageAssignments) satisfier(pkg Package, incompatTerm Term, start Term, store *arena) (int, int, int) {
	accum := start
	for idx, dd := range pa.derivations {
		accum = accum.Intersect(store.at(dd.cause).get(pkg).Negate())
		if accum.subsetOf(incompatTerm) {
			return idx, dd.globalIndex, dd.level
		}
	}
	if pa.decision == nil {
		panic(fmt.Sprintf(
			"pubgrub: no satisfier for %s: accumulated %s is not a subset of %s and the last assignment is not a decision (broken version ordering?)",
			pkg, accum, incompatTerm))
	}
	return len(pa.derivations), pa.decision.globalIndex, pa.highestLevel
}

// partialSolution is the evolving assignment state of one solve: per-package
// assignment histories, a global insertion counter and the current decision
// level. Packages are additionally kept in first-assignment order so that all
// iteration is deterministic.
type partialSolution struct {
	nextIndex   int
	level       int
	assignments map[Package]*packageAssignments
	order       []Package
}

func newPartialSolution() *partialSolution {
	return &partialSolution{
		assignments: make(map[Package]*packageAssignments),
	}
}

// addDecision appends a Decision for the package, raising the decision level.
// Calling it for a package that already has a decision, or with a version
// outside the package's current term intersection, is a programming error and
// panics.
func (ps *partialSolution) addDecision(pkg Package, version Version) {
	pa, ok := ps.assignments[pkg]
	if !ok {
		panic(fmt.Sprintf("pubgrub: decision on %s before any derivation", pkg))
	}
	if pa.decision != nil {
		panic(fmt.Sprintf("pubgrub: second decision on %s", pkg))
	}
	if !pa.derivedTerm.Contains(version) {
		panic(fmt.Sprintf("pubgrub: decision %s@%s outside derived term %s", pkg, version, pa.derivedTerm))
	}

	ps.level++
	pa.highestLevel = ps.level
	pa.decision = &decisionRecord{
		globalIndex: ps.nextIndex,
		version:     version,
		term:        exactTerm(version),
	}
	ps.nextIndex++
}

// addDerivation appends a Derivation forced by the given incompatibility and
// refreshes the package's memoized term intersection.
func (ps *partialSolution) addDerivation(pkg Package, cause incompID, store *arena) {
	term := store.at(cause).get(pkg).Negate()
	dd := datedDerivation{
		globalIndex: ps.nextIndex,
		level:       ps.level,
		cause:       cause,
	}
	ps.nextIndex++

	if pa, ok := ps.assignments[pkg]; ok {
		if pa.decision != nil {
			panic(fmt.Sprintf("pubgrub: derivation for %s after its decision", pkg))
		}
		pa.highestLevel = ps.level
		pa.derivations = append(pa.derivations, dd)
		pa.derivedTerm = pa.derivedTerm.Intersect(term)
		return
	}

	ps.assignments[pkg] = &packageAssignments{
		smallestLevel: ps.level,
		highestLevel:  ps.level,
		derivations:   []datedDerivation{dd},
		derivedTerm:   term,
	}
	ps.order = append(ps.order, pkg)
}

// termIntersectionFor returns the memoized intersection for a package, or nil
// when the package has no assignments yet.
func (ps *partialSolution) termIntersectionFor(pkg Package) *Term {
	pa, ok := ps.assignments[pkg]
	if !ok {
		return nil
	}
	return pa.termIntersection()
}

// relation evaluates an incompatibility against the partial solution.
func (ps *partialSolution) relation(inc *Incompatibility) (incompatRelation, Package) {
	return inc.relation(ps.termIntersectionFor)
}

// potentialPackages lists, in deterministic order, the undecided packages
// whose accumulated term is positive, paired with the versions still allowed
// for them. These are the candidates offered to the decision heuristic.
func (ps *partialSolution) potentialPackages() []Candidate {
	var out []Candidate
	for _, pkg := range ps.order {
		pa := ps.assignments[pkg]
		if pa.decision != nil || !pa.derivedTerm.IsPositive() {
			continue
		}
		out = append(out, Candidate{Pkg: pkg, Allowed: pa.derivedTerm.Set()})
	}
	return out
}

// extractSolution returns the decided versions. Valid only once every
// positively-constrained package has a decision.
func (ps *partialSolution) extractSolution() map[Package]Version {
	solution := make(map[Package]Version)
	for _, pkg := range ps.order {
		if pa := ps.assignments[pkg]; pa.decision != nil {
			solution[pkg] = pa.decision.version
		}
	}
	return solution
}

// backtrack drops every assignment made after the target decision level and
// recomputes the memoized intersections of the packages it truncated.
func (ps *partialSolution) backtrack(toLevel int, store *arena) {
	ps.level = toLevel
	kept := ps.order[:0]
	for _, pkg := range ps.order {
		pa := ps.assignments[pkg]
		switch {
		case pa.smallestLevel > toLevel:
			delete(ps.assignments, pkg)
			continue
		case pa.highestLevel <= toLevel:
			// Untouched by the backtrack.
		default:
			// A decision always carries the package's highest level, so any
			// decision in this branch is gone after truncation.
			pa.decision = nil
			for len(pa.derivations) > 0 && pa.derivations[len(pa.derivations)-1].level > toLevel {
				pa.derivations = pa.derivations[:len(pa.derivations)-1]
			}
			if len(pa.derivations) == 0 {
				panic(fmt.Sprintf("pubgrub: backtrack emptied assignments for %s without removing it", pkg))
			}
			pa.highestLevel = pa.derivations[len(pa.derivations)-1].level
			pa.derivedTerm = anyTerm()
			for _, dd := range pa.derivations {
				pa.derivedTerm = pa.derivedTerm.Intersect(store.at(dd.cause).get(pkg).Negate())
			}
		}
		kept = append(kept, pkg)
	}
	ps.order = kept
}

// addVersion records the decision unless one of the version's own dependency
// clauses would be immediately satisfied (meaning a dependency already sits at
// an incompatible version); in that case the decision is withheld and
// propagation deals with the new clauses instead.
func (ps *partialSolution) addVersion(pkg Package, version Version, newIncompats []incompID, store *arena) bool {
	exact := exactTerm(version)
	lookup := func(p Package) *Term {
		if p == pkg {
			return &exact
		}
		return ps.termIntersectionFor(p)
	}
	for _, id := range newIncompats {
		if rel, _ := store.at(id).relation(lookup); rel == incompatSatisfied {
			return false
		}
	}
	ps.addDecision(pkg, version)
	return true
}

// satisfierOutcome reports how conflict resolution should proceed after
// locating the satisfier of a conflicting incompatibility.
type satisfierOutcome struct {
	// When true, the satisfier and the previous satisfier live at different
	// decision levels: backtrack to previousLevel and learn the clause.
	differentLevels bool
	previousLevel   int
	// Otherwise, merge with the satisfier's cause and continue resolving.
	satisfierCause incompID
}

// satisfierSearch finds the incompatibility's most recent satisfier and
// classifies it against the previous satisfier's decision level.
func (ps *partialSolution) satisfierSearch(inc *Incompatibility, store *arena) (Package, satisfierOutcome) {
	type hit struct {
		idx         int
		globalIndex int
		level       int
	}
	satisfied := make(map[Package]hit, len(inc.terms))

	for _, pt := range inc.terms {
		pa, ok := ps.assignments[pt.pkg]
		if !ok {
			panic(fmt.Sprintf("pubgrub: satisfier search for unassigned package %s", pt.pkg))
		}
		idx, gi, lvl := pa.satisfier(pt.pkg, pt.term, anyTerm(), store)
		satisfied[pt.pkg] = hit{idx: idx, globalIndex: gi, level: lvl}
	}

	// The satisfier is the most recent assignment among the per-package hits.
	var satisfierPkg Package
	best := hit{globalIndex: -1}
	for _, pt := range inc.terms {
		if h := satisfied[pt.pkg]; h.globalIndex > best.globalIndex {
			best = h
			satisfierPkg = pt.pkg
		}
	}

	// Re-run the satisfier's package seeded with the satisfier itself to find
	// the previous satisfier, then take the most recent of the rest.
	satisfierPA := ps.assignments[satisfierPkg]
	var accum Term
	if best.idx == len(satisfierPA.derivations) {
		if satisfierPA.decision == nil {
			panic("pubgrub: satisfier index points past derivations without a decision")
		}
		accum = satisfierPA.decision.term
	} else {
		accum = store.at(satisfierPA.derivations[best.idx].cause).get(satisfierPkg).Negate()
	}
	incompatTerm := inc.get(satisfierPkg)
	idx, gi, lvl := satisfierPA.satisfier(satisfierPkg, *incompatTerm, accum, store)
	satisfied[satisfierPkg] = hit{idx: idx, globalIndex: gi, level: lvl}

	previous := hit{globalIndex: -1}
	for _, h := range satisfied {
		if h.globalIndex > previous.globalIndex {
			previous = h
		}
	}
	previousLevel := previous.level
	if previousLevel < 1 {
		previousLevel = 1
	}

	if previousLevel < best.level {
		return satisfierPkg, satisfierOutcome{differentLevels: true, previousLevel: previousLevel}
	}
	if best.idx == len(satisfierPA.derivations) {
		panic("pubgrub: same-level satisfier must be a derivation")
	}
	return satisfierPkg, satisfierOutcome{satisfierCause: satisfierPA.derivations[best.idx].cause}
}
