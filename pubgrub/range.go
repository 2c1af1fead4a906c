// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pubgrub

import (
	"fmt"
	"strings"
)

// Range is an immutable set of versions, stored as ordered, disjoint,
// non-adjacent intervals. Every constructor and operation returns a Range in
// that normalized form, so structural equality of two normalized Ranges is
// semantic equality.
type Range struct {
	segments []interval
}

type boundKind uint8

const (
	unbounded boundKind = iota
	inclusive
	exclusive
)

type bound struct {
	kind boundKind
	v    Version
}

type interval struct {
	lo, hi bound
}

// EmptyRange returns the set containing no versions.
func EmptyRange() Range {
	return Range{}
}

// AnyRange returns the set of all versions.
func AnyRange() Range {
	return Range{segments: []interval{{lo: bound{kind: unbounded}, hi: bound{kind: unbounded}}}}
}

// Singleton returns the set containing exactly v.
func Singleton(v Version) Range {
	return Range{segments: []interval{{
		lo: bound{kind: inclusive, v: v},
		hi: bound{kind: inclusive, v: v},
	}}}
}

// AtLeast returns the set of versions >= v.
func AtLeast(v Version) Range {
	return Range{segments: []interval{{lo: bound{kind: inclusive, v: v}, hi: bound{kind: unbounded}}}}
}

// GreaterThan returns the set of versions > v.
func GreaterThan(v Version) Range {
	return Range{segments: []interval{{lo: bound{kind: exclusive, v: v}, hi: bound{kind: unbounded}}}}
}

// AtMost returns the set of versions <= v.
func AtMost(v Version) Range {
	return Range{segments: []interval{{lo: bound{kind: unbounded}, hi: bound{kind: inclusive, v: v}}}}
}

// LessThan returns the set of versions < v.
func LessThan(v Version) Range {
	return Range{segments: []interval{{lo: bound{kind: unbounded}, hi: bound{kind: exclusive, v: v}}}}
}

// Between returns the half-open set lo <= versions < hi.
func Between(lo, hi Version) Range {
	seg := interval{lo: bound{kind: inclusive, v: lo}, hi: bound{kind: exclusive, v: hi}}
	if !validSegment(seg.lo, seg.hi) {
		return EmptyRange()
	}
	return Range{segments: []interval{seg}}
}

// IsEmpty reports whether the set contains no versions.
func (r Range) IsEmpty() bool {
	return len(r.segments) == 0
}

// IsAny reports whether the set contains all versions.
func (r Range) IsAny() bool {
	return len(r.segments) == 1 &&
		r.segments[0].lo.kind == unbounded && r.segments[0].hi.kind == unbounded
}

// Contains reports whether v is a member of the set.
func (r Range) Contains(v Version) bool {
	for _, seg := range r.segments {
		if aboveLower(seg.lo, v) && belowUpper(seg.hi, v) {
			return true
		}
	}
	return false
}

func aboveLower(b bound, v Version) bool {
	switch b.kind {
	case unbounded:
		return true
	case inclusive:
		return v.Compare(b.v) >= 0
	default:
		return v.Compare(b.v) > 0
	}
}

func belowUpper(b bound, v Version) bool {
	switch b.kind {
	case unbounded:
		return true
	case inclusive:
		return v.Compare(b.v) <= 0
	default:
		return v.Compare(b.v) < 0
	}
}

// validSegment reports whether lo..hi denotes a non-empty interval.
func validSegment(lo, hi bound) bool {
	if lo.kind == unbounded || hi.kind == unbounded {
		return true
	}
	c := lo.v.Compare(hi.v)
	if c != 0 {
		return c < 0
	}
	return lo.kind == inclusive && hi.kind == inclusive
}

// cmpLower orders two lower bounds by where the interval starts; unbounded
// starts first, and at equal versions an inclusive bound starts before an
// exclusive one.
func cmpLower(a, b bound) int {
	switch {
	case a.kind == unbounded && b.kind == unbounded:
		return 0
	case a.kind == unbounded:
		return -1
	case b.kind == unbounded:
		return 1
	}
	if c := a.v.Compare(b.v); c != 0 {
		return c
	}
	if a.kind == b.kind {
		return 0
	}
	if a.kind == inclusive {
		return -1
	}
	return 1
}

// cmpUpper orders two upper bounds by where the interval ends; unbounded ends
// last, and at equal versions an exclusive bound ends before an inclusive one.
func cmpUpper(a, b bound) int {
	switch {
	case a.kind == unbounded && b.kind == unbounded:
		return 0
	case a.kind == unbounded:
		return 1
	case b.kind == unbounded:
		return -1
	}
	if c := a.v.Compare(b.v); c != 0 {
		return c
	}
	if a.kind == b.kind {
		return 0
	}
	if a.kind == exclusive {
		return -1
	}
	return 1
}

// Intersect returns the set of versions in both r and o. Runs in a single
// merge pass over the two segment lists.
func (r Range) Intersect(o Range) Range {
	var segments []interval
	i, j := 0, 0
	for i < len(r.segments) && j < len(o.segments) {
		left, right := r.segments[i], o.segments[j]

		lo := left.lo
		if cmpLower(right.lo, lo) > 0 {
			lo = right.lo
		}
		hi := left.hi
		if cmpUpper(right.hi, hi) < 0 {
			hi = right.hi
		}

		// Advance whichever side's segment is exhausted at this end bound.
		if cmpUpper(left.hi, hi) == 0 {
			i++
		}
		if cmpUpper(right.hi, hi) == 0 {
			j++
		}
		if validSegment(lo, hi) {
			segments = append(segments, interval{lo: lo, hi: hi})
		}
	}
	return Range{segments: segments}
}

// Union returns the set of versions in either r or o.
func (r Range) Union(o Range) Range {
	return r.Complement().Intersect(o.Complement()).Complement()
}

// Complement returns the set of versions not in r.
func (r Range) Complement() Range {
	if len(r.segments) == 0 {
		return AnyRange()
	}
	first := r.segments[0]
	if first.lo.kind == unbounded {
		if first.hi.kind == unbounded {
			return EmptyRange()
		}
		return negateSegments(flipToLower(first.hi), r.segments[1:])
	}
	return negateSegments(bound{kind: unbounded}, r.segments)
}

// flipToUpper turns a lower bound into the upper bound of the gap before it.
func flipToUpper(b bound) bound {
	if b.kind == inclusive {
		return bound{kind: exclusive, v: b.v}
	}
	return bound{kind: inclusive, v: b.v}
}

// flipToLower turns an upper bound into the lower bound of the gap after it.
func flipToLower(b bound) bound {
	switch b.kind {
	case unbounded:
		return bound{kind: unbounded}
	case inclusive:
		return bound{kind: exclusive, v: b.v}
	default:
		return bound{kind: inclusive, v: b.v}
	}
}

// negateSegments emits the gaps between segments, beginning with a gap that
// starts at the given lower bound.
func negateSegments(start bound, segments []interval) Range {
	var out []interval
	for _, seg := range segments {
		out = append(out, interval{lo: start, hi: flipToUpper(seg.lo)})
		start = flipToLower(seg.hi)
	}
	if start.kind != unbounded {
		out = append(out, interval{lo: start, hi: bound{kind: unbounded}})
	}
	return Range{segments: out}
}

// Equal reports whether two normalized ranges denote the same version set.
func (r Range) Equal(o Range) bool {
	if len(r.segments) != len(o.segments) {
		return false
	}
	for i := range r.segments {
		if !boundEqual(r.segments[i].lo, o.segments[i].lo) ||
			!boundEqual(r.segments[i].hi, o.segments[i].hi) {
			return false
		}
	}
	return true
}

func boundEqual(a, b bound) bool {
	if a.kind != b.kind {
		return false
	}
	if a.kind == unbounded {
		return true
	}
	return a.v.Compare(b.v) == 0
}

// Subset reports whether every version in r is also in o.
func (r Range) Subset(o Range) bool {
	return r.Intersect(o).Equal(r)
}

// Disjoint reports whether r and o share no versions.
func (r Range) Disjoint(o Range) bool {
	return r.Intersect(o).IsEmpty()
}

func (r Range) String() string {
	if len(r.segments) == 0 {
		return "none"
	}
	parts := make([]string, 0, len(r.segments))
	for _, seg := range r.segments {
		parts = append(parts, seg.String())
	}
	return strings.Join(parts, " || ")
}

func (seg interval) String() string {
	lo, hi := seg.lo, seg.hi
	switch {
	case lo.kind == unbounded && hi.kind == unbounded:
		return "*"
	case lo.kind == unbounded && hi.kind == inclusive:
		return fmt.Sprintf("<=%s", hi.v)
	case lo.kind == unbounded:
		return fmt.Sprintf("<%s", hi.v)
	case hi.kind == unbounded && lo.kind == inclusive:
		return fmt.Sprintf(">=%s", lo.v)
	case hi.kind == unbounded:
		return fmt.Sprintf(">%s", lo.v)
	case lo.kind == inclusive && hi.kind == inclusive && lo.v.Compare(hi.v) == 0:
		return fmt.Sprintf("==%s", lo.v)
	}
	var b strings.Builder
	if lo.kind == inclusive {
		fmt.Fprintf(&b, ">=%s", lo.v)
	} else {
		fmt.Fprintf(&b, ">%s", lo.v)
	}
	if hi.kind == inclusive {
		fmt.Fprintf(&b, ",<=%s", hi.v)
	} else {
		fmt.Fprintf(&b, ",<%s", hi.v)
	}
	return b.String()
}

// ParseRange parses the ecosystem's constraint notation into a Range.
//
// A constraint is a disjunction ("||") of conjunctions (","). Each element is
// one of:
//
//	*            any version
//	==1.2.3      exactly 1.2.3 (a bare "1.2.3" means the same)
//	!=1.2.3      any version except 1.2.3
//	>=1.2.3, >1.2.3, <=1.2.3, <1.2.3
//	^1.2.3       >=1.2.3,<2.0.0 (for 0.x: >=0.2.3,<0.3.0)
func ParseRange(s string) (Range, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "*" {
		return AnyRange(), nil
	}

	result := EmptyRange()
	for _, alt := range strings.Split(s, "||") {
		conj := AnyRange()
		for _, elem := range strings.Split(alt, ",") {
			r, err := parseComparator(strings.TrimSpace(elem))
			if err != nil {
				return Range{}, err
			}
			conj = conj.Intersect(r)
		}
		result = result.Union(conj)
	}
	return result, nil
}

// MustRange is ParseRange for static inputs; it panics on bad input.
func MustRange(s string) Range {
	r, err := ParseRange(s)
	if err != nil {
		panic(err)
	}
	return r
}

func parseComparator(s string) (Range, error) {
	if s == "" || s == "*" {
		return AnyRange(), nil
	}

	op := ""
	for _, candidate := range []string{"==", "!=", ">=", "<=", ">", "<", "=", "^"} {
		if strings.HasPrefix(s, candidate) {
			op = candidate
			break
		}
	}
	v, err := ParseVersion(strings.TrimSpace(strings.TrimPrefix(s, op)))
	if err != nil {
		return Range{}, fmt.Errorf("constraint %q: %s", s, err)
	}

	switch op {
	case "", "=", "==":
		return Singleton(v), nil
	case "!=":
		return Singleton(v).Complement(), nil
	case ">=":
		return AtLeast(v), nil
	case ">":
		return GreaterThan(v), nil
	case "<=":
		return AtMost(v), nil
	case "<":
		return LessThan(v), nil
	case "^":
		if v.sv.Major() == 0 {
			return Between(v, v.nextMinor()), nil
		}
		return Between(v, v.nextMajor()), nil
	}
	return Range{}, fmt.Errorf("unrecognized constraint operator in %q", s)
}
