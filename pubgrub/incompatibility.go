// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pubgrub

import (
	"fmt"
	"sort"
	"strings"
)

// incompID is an arena index. Incompatibilities reference their causal parents
// only through ids, never directly, so the causal graph has no cycles of
// ownership and ids stay cheap to copy.
type incompID int

// arena owns every incompatibility created during one solve. Lookup is O(1)
// by id; nothing is ever removed before the solve ends.
type arena struct {
	incompats []Incompatibility
}

func (a *arena) alloc(inc Incompatibility) incompID {
	a.incompats = append(a.incompats, inc)
	return incompID(len(a.incompats) - 1)
}

func (a *arena) at(id incompID) *Incompatibility {
	return &a.incompats[id]
}

// incompKind records where an incompatibility came from; derived kinds carry
// their two causal parents.
type incompKind uint8

const (
	kindNotRoot incompKind = iota
	kindNoVersions
	kindUnavailableDeps
	kindFromDependency
	kindDerived
)

// pkgTerm is one entry of an incompatibility's term set.
type pkgTerm struct {
	pkg  Package
	term Term
}

// Incompatibility is an immutable set of package terms that cannot all hold
// simultaneously. The term set is kept sorted by package so that display and
// iteration order are deterministic.
type Incompatibility struct {
	terms []pkgTerm
	kind  incompKind

	// External-kind payloads.
	pkg    Package
	set    Range
	dep    Package
	depSet Range

	// Derived-kind causal parents.
	cause1, cause2 incompID
}

// notRoot seeds the solve: the root package at its version must be selected.
func notRoot(root Package, version Version) Incompatibility {
	return Incompatibility{
		terms: []pkgTerm{{pkg: root, term: NegativeTerm(Singleton(version))}},
		kind:  kindNotRoot,
		pkg:   root,
		set:   Singleton(version),
	}
}

// noVersions records that the provider has no version of pkg inside the term's
// set.
func noVersions(pkg Package, term Term) Incompatibility {
	if !term.positive {
		panic("pubgrub: no-versions incompatibility built from a negative term")
	}
	return Incompatibility{
		terms: []pkgTerm{{pkg: pkg, term: term}},
		kind:  kindNoVersions,
		pkg:   pkg,
		set:   term.set,
	}
}

// unavailableDeps records that the dependency list of pkg@version could not
// be obtained, making the version unselectable.
func unavailableDeps(pkg Package, version Version) Incompatibility {
	set := Singleton(version)
	return Incompatibility{
		terms: []pkgTerm{{pkg: pkg, term: PositiveTerm(set)}},
		kind:  kindUnavailableDeps,
		pkg:   pkg,
		set:   set,
	}
}

// fromDependency encodes "pkg@version depends on dep in depSet" as the clause
// {pkg == version, not dep in depSet}.
func fromDependency(pkg Package, version Version, dep Package, depSet Range) Incompatibility {
	return fromDependencyRange(pkg, Singleton(version), dep, depSet)
}

// fromDependencyRange is fromDependency over a set of versions that all
// declare the identical dependency; clause merging produces these.
func fromDependencyRange(pkg Package, set Range, dep Package, depSet Range) Incompatibility {
	inc := Incompatibility{
		kind:   kindFromDependency,
		pkg:    pkg,
		set:    set,
		dep:    dep,
		depSet: depSet,
	}
	inc.insert(pkg, PositiveTerm(set))
	inc.insert(dep, NegativeTerm(depSet))
	return inc
}

// insert adds or replaces the term for a package, keeping the set sorted.
func (inc *Incompatibility) insert(pkg Package, term Term) {
	i := sort.Search(len(inc.terms), func(i int) bool {
		return !inc.terms[i].pkg.less(pkg)
	})
	if i < len(inc.terms) && inc.terms[i].pkg == pkg {
		inc.terms[i].term = term
		return
	}
	inc.terms = append(inc.terms, pkgTerm{})
	copy(inc.terms[i+1:], inc.terms[i:])
	inc.terms[i] = pkgTerm{pkg: pkg, term: term}
}

// get returns the term for a package, or nil if the incompatibility does not
// mention it.
func (inc *Incompatibility) get(pkg Package) *Term {
	i := sort.Search(len(inc.terms), func(i int) bool {
		return !inc.terms[i].pkg.less(pkg)
	})
	if i < len(inc.terms) && inc.terms[i].pkg == pkg {
		return &inc.terms[i].term
	}
	return nil
}

// priorCause merges the current conflict clause with the cause of its
// satisfier using the rule of resolution: terms for the shared package are
// unioned (and dropped if that union is the always-true term), terms for every
// other package are intersected.
func priorCause(current, satisfierCause incompID, pkg Package, store *arena) Incompatibility {
	merged := Incompatibility{
		kind:   kindDerived,
		cause1: current,
		cause2: satisfierCause,
	}

	cur := store.at(current)
	cause := store.at(satisfierCause)

	var sharedCurrent Term
	for _, pt := range cur.terms {
		if pt.pkg == pkg {
			sharedCurrent = pt.term
			continue
		}
		merged.insert(pt.pkg, pt.term)
	}
	for _, pt := range cause.terms {
		if pt.pkg == pkg {
			continue
		}
		if existing := merged.get(pt.pkg); existing != nil {
			merged.insert(pt.pkg, existing.Intersect(pt.term))
		} else {
			merged.insert(pt.pkg, pt.term)
		}
	}

	sharedCause := cause.get(pkg)
	if sharedCause == nil {
		panic("pubgrub: satisfier cause does not mention the shared package")
	}
	union := sharedCurrent.Union(*sharedCause)
	if !union.equal(anyTerm()) {
		merged.insert(pkg, union)
	}
	return merged
}

// isTerminal reports whether the incompatibility proves overall
// unsatisfiability: either it is empty, or its only term implicates the root
// selection itself.
func (inc *Incompatibility) isTerminal(root Package, rootVersion Version) bool {
	switch len(inc.terms) {
	case 0:
		return true
	case 1:
		return inc.terms[0].pkg == root && inc.terms[0].term.Contains(rootVersion)
	default:
		return false
	}
}

// incompatRelation is the verdict of evaluating a whole incompatibility
// against the partial solution.
type incompatRelation uint8

const (
	incompatSatisfied incompatRelation = iota
	incompatAlmostSatisfied
	incompatContradicted
	incompatInconclusive
)

// relation evaluates the incompatibility against per-package assignment
// intersections supplied by lookup (nil meaning "no assignments yet"). When
// the result is almost-satisfied or contradicted, the deciding package is
// returned alongside.
func (inc *Incompatibility) relation(lookup func(Package) *Term) (incompatRelation, Package) {
	rel := incompatSatisfied
	var undetermined Package
	for _, pt := range inc.terms {
		assigned := lookup(pt.pkg)
		if assigned == nil {
			// No assignments is equivalent to intersecting with the
			// always-true term: inconclusive for any non-trivial term.
			if rel == incompatSatisfied {
				rel = incompatAlmostSatisfied
				undetermined = pt.pkg
			} else {
				rel = incompatInconclusive
			}
			continue
		}
		switch pt.term.Relation(*assigned) {
		case RelationSatisfied:
		case RelationContradicted:
			return incompatContradicted, pt.pkg
		case RelationInconclusive:
			if rel == incompatSatisfied {
				rel = incompatAlmostSatisfied
				undetermined = pt.pkg
			} else {
				rel = incompatInconclusive
			}
		}
	}
	return rel, undetermined
}

// causes returns the two parents of a derived incompatibility.
func (inc *Incompatibility) causes() (incompID, incompID, bool) {
	if inc.kind != kindDerived {
		return 0, 0, false
	}
	return inc.cause1, inc.cause2, true
}

func (inc *Incompatibility) String() string {
	return termsString(inc.terms)
}

// termsString renders a term set the way failure reports phrase them.
func termsString(terms []pkgTerm) string {
	switch len(terms) {
	case 0:
		return "version solving failed"
	case 1:
		pt := terms[0]
		if pt.term.positive {
			return fmt.Sprintf("%s %s is forbidden", pt.pkg, pt.term.set)
		}
		return fmt.Sprintf("%s %s is mandatory", pt.pkg, pt.term.set)
	case 2:
		if terms[0].term.positive && !terms[1].term.positive {
			return dependsString(terms[0].pkg, terms[0].term.set, terms[1].pkg, terms[1].term.set)
		}
		if !terms[0].term.positive && terms[1].term.positive {
			return dependsString(terms[1].pkg, terms[1].term.set, terms[0].pkg, terms[0].term.set)
		}
	}
	parts := make([]string, 0, len(terms))
	for _, pt := range terms {
		parts = append(parts, fmt.Sprintf("%s %s", pt.pkg, pt.term))
	}
	return strings.Join(parts, ", ") + " are incompatible"
}

func dependsString(pkg Package, set Range, dep Package, depSet Range) string {
	switch {
	case set.IsAny() && depSet.IsAny():
		return fmt.Sprintf("%s depends on %s", pkg, dep)
	case set.IsAny():
		return fmt.Sprintf("%s depends on %s %s", pkg, dep, depSet)
	case depSet.IsAny():
		return fmt.Sprintf("%s %s depends on %s", pkg, set, dep)
	default:
		return fmt.Sprintf("%s %s depends on %s %s", pkg, set, dep, depSet)
	}
}
