// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pubgrub

import "fmt"

// Term is a signed version-set constraint on a single package. A positive term
// means "the package's version lies in the set"; a negative term means it does
// not. Terms are immutable.
type Term struct {
	positive bool
	set      Range
}

// PositiveTerm builds the constraint "version in r".
func PositiveTerm(r Range) Term {
	return Term{positive: true, set: r}
}

// NegativeTerm builds the constraint "version not in r".
func NegativeTerm(r Range) Term {
	return Term{positive: false, set: r}
}

// exactTerm is the positive singleton term recorded for decisions.
func exactTerm(v Version) Term {
	return Term{positive: true, set: Singleton(v)}
}

// anyTerm is satisfied by every assignment; it is the identity for
// intersection. Expressed as "not nothing".
func anyTerm() Term {
	return Term{positive: false, set: EmptyRange()}
}

// emptyTerm is satisfied by no assignment.
func emptyTerm() Term {
	return Term{positive: true, set: EmptyRange()}
}

// Negate returns the logical inverse of the term.
func (t Term) Negate() Term {
	return Term{positive: !t.positive, set: t.set}
}

// IsPositive reports whether the term asserts membership rather than
// exclusion.
func (t Term) IsPositive() bool {
	return t.positive
}

// Set returns the version set a positive term asserts membership of. It is
// only meaningful for positive terms; the solver consults it when choosing a
// candidate version for an undecided package.
func (t Term) Set() Range {
	return t.set
}

// Intersect returns the term allowing exactly the versions allowed by both
// terms.
func (t Term) Intersect(o Term) Term {
	switch {
	case t.positive && o.positive:
		return PositiveTerm(t.set.Intersect(o.set))
	case t.positive:
		return PositiveTerm(t.set.Intersect(o.set.Complement()))
	case o.positive:
		return PositiveTerm(t.set.Complement().Intersect(o.set))
	default:
		return NegativeTerm(t.set.Union(o.set))
	}
}

// Union returns the term allowing the versions allowed by either term.
func (t Term) Union(o Term) Term {
	return t.Negate().Intersect(o.Negate()).Negate()
}

// Contains reports whether a version satisfies the term.
func (t Term) Contains(v Version) bool {
	if t.positive {
		return t.set.Contains(v)
	}
	return !t.set.Contains(v)
}

// equal is structural equality; normalized ranges make it semantic for terms
// of the same sign.
func (t Term) equal(o Term) bool {
	return t.positive == o.positive && t.set.Equal(o.set)
}

// subsetOf reports whether every version satisfying t also satisfies o.
func (t Term) subsetOf(o Term) bool {
	return t.Intersect(o).equal(t)
}

// Relation describes how a term compares against the accumulated assignment
// intersection for its package.
type Relation uint8

const (
	// RelationSatisfied: the assignments guarantee the term holds.
	RelationSatisfied Relation = iota
	// RelationContradicted: the assignments guarantee the term cannot hold.
	RelationContradicted
	// RelationInconclusive: neither is guaranteed yet.
	RelationInconclusive
)

func (r Relation) String() string {
	switch r {
	case RelationSatisfied:
		return "satisfied"
	case RelationContradicted:
		return "contradicted"
	default:
		return "inconclusive"
	}
}

// Relation evaluates the term against the intersection of all assignments
// seen for the package. It is total: any two terms over the same package
// produce a Relation.
func (t Term) Relation(assigned Term) Relation {
	full := t.Intersect(assigned)
	if full.equal(assigned) {
		return RelationSatisfied
	}
	if full.equal(emptyTerm()) {
		return RelationContradicted
	}
	return RelationInconclusive
}

func (t Term) String() string {
	if t.positive {
		return t.set.String()
	}
	return fmt.Sprintf("not %s", t.set.String())
}
