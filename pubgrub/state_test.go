// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pubgrub

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
)

func newTestState(t *testing.T) *state {
	t.Helper()
	l := logrus.New()
	l.SetOutput(io.Discard)
	return newState(Package{Name: "root"}, MustVersion("1.0.0"), l)
}

func TestDependencyClausesMergeAcrossVersions(t *testing.T) {
	st := newTestState(t)
	foo := Package{Name: "foo"}
	bar := Package{Name: "bar"}
	set := MustRange("^1.0.0")

	first := st.addDependencyIncompats(foo, MustVersion("1.1.0"), map[Package]Range{bar: set})
	second := st.addDependencyIncompats(foo, MustVersion("1.0.0"), map[Package]Range{bar: set})
	if first[0] == second[0] {
		t.Fatalf("identical dependency clauses did not merge into a new clause")
	}

	merged := st.store.at(second[0])
	for _, v := range []string{"1.0.0", "1.1.0"} {
		if !merged.set.Contains(MustVersion(v)) {
			t.Errorf("merged clause %q does not cover foo %s", merged, v)
		}
	}
	if ids := st.incompats[foo]; len(ids) != 1 || ids[0] != second[0] {
		t.Errorf("index for foo is %v, want only the merged clause %d", ids, second[0])
	}
	if ids := st.incompats[bar]; len(ids) != 1 || ids[0] != second[0] {
		t.Errorf("index for bar is %v, want only the merged clause %d", ids, second[0])
	}
}

func TestDependencyClausesDifferentRangesStaySeparate(t *testing.T) {
	st := newTestState(t)
	foo := Package{Name: "foo"}
	bar := Package{Name: "bar"}

	st.addDependencyIncompats(foo, MustVersion("2.0.0"), map[Package]Range{bar: MustRange("^2.0.0")})
	st.addDependencyIncompats(foo, MustVersion("1.0.0"), map[Package]Range{bar: MustRange("^1.0.0")})

	if ids := st.incompats[bar]; len(ids) != 2 {
		t.Errorf("index for bar is %v, want two separate clauses", ids)
	}
}

func TestDependencyClausesDifferentDepsStaySeparate(t *testing.T) {
	st := newTestState(t)
	foo := Package{Name: "foo"}

	st.addDependencyIncompats(foo, MustVersion("1.1.0"), map[Package]Range{
		{Name: "bar"}: MustRange("^1.0.0"),
	})
	st.addDependencyIncompats(foo, MustVersion("1.0.0"), map[Package]Range{
		{Name: "baz"}: MustRange("^1.0.0"),
	})

	if ids := st.incompats[foo]; len(ids) != 2 {
		t.Errorf("index for foo is %v, want two separate clauses", ids)
	}
}
