// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pubgrub

import "testing"

func TestTermIntersect(t *testing.T) {
	pos := func(s string) Term { return PositiveTerm(MustRange(s)) }
	neg := func(s string) Term { return NegativeTerm(MustRange(s)) }

	cases := []struct {
		name string
		a, b Term
		want Term
	}{
		{"pos-pos", pos(">=1.0.0"), pos("<2.0.0"), pos(">=1.0.0,<2.0.0")},
		{"pos-neg", pos(">=1.0.0"), neg(">=2.0.0"), pos(">=1.0.0,<2.0.0")},
		{"neg-pos", neg(">=2.0.0"), pos(">=1.0.0"), pos(">=1.0.0,<2.0.0")},
		{"neg-neg", neg("<1.0.0"), neg(">=2.0.0"), neg("<1.0.0 || >=2.0.0")},
		{"disjoint", pos("<1.0.0"), pos(">=2.0.0"), emptyTerm()},
		{"identity", pos(">=1.0.0"), anyTerm(), pos(">=1.0.0")},
	}
	for _, c := range cases {
		if got := c.a.Intersect(c.b); !got.equal(c.want) {
			t.Errorf("%s: %s ∩ %s = %s, want %s", c.name, c.a, c.b, got, c.want)
		}
	}
}

func TestTermRelation(t *testing.T) {
	pos := func(s string) Term { return PositiveTerm(MustRange(s)) }
	neg := func(s string) Term { return NegativeTerm(MustRange(s)) }

	cases := []struct {
		name     string
		term     Term
		assigned Term
		want     Relation
	}{
		{"superset satisfies", pos(">=1.0.0"), pos(">=1.5.0,<2.0.0"), RelationSatisfied},
		{"disjoint contradicts", pos(">=2.0.0"), pos("<1.0.0"), RelationContradicted},
		{"overlap inconclusive", pos(">=1.0.0"), pos("<2.0.0"), RelationInconclusive},
		{"negative satisfied by disjoint", neg(">=2.0.0"), pos("<1.0.0"), RelationSatisfied},
		{"negative contradicted by subset", neg(">=1.0.0"), pos(">=2.0.0"), RelationContradicted},
		{"exact against exact", pos("==1.0.0"), exactTerm(MustVersion("1.0.0")), RelationSatisfied},
		{"exact mismatch", pos("==2.0.0"), exactTerm(MustVersion("1.0.0")), RelationContradicted},
		{"anything satisfies anyTerm", anyTerm(), pos("==1.0.0"), RelationSatisfied},
	}
	for _, c := range cases {
		if got := c.term.Relation(c.assigned); got != c.want {
			t.Errorf("%s: (%s).Relation(%s) = %s, want %s", c.name, c.term, c.assigned, got, c.want)
		}
	}
}

func TestTermNegateAndContains(t *testing.T) {
	term := PositiveTerm(MustRange(">=1.0.0,<2.0.0"))
	v := MustVersion("1.5.0")

	if !term.Contains(v) {
		t.Errorf("%s should contain %s", term, v)
	}
	if term.Negate().Contains(v) {
		t.Errorf("%s should not contain %s", term.Negate(), v)
	}
	if !term.Negate().Negate().equal(term) {
		t.Errorf("double negation changed the term: %s", term.Negate().Negate())
	}
}

func TestTermUnionDropsToAny(t *testing.T) {
	// The union of a term and its negation allows everything; conflict
	// resolution relies on this to drop the shared package from a merged
	// clause.
	term := PositiveTerm(MustRange(">=1.0.0"))
	if got := term.Union(term.Negate()); !got.equal(anyTerm()) {
		t.Errorf("t ∪ ¬t = %s, want %s", got, anyTerm())
	}
}
