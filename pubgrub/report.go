// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pubgrub

import (
	"fmt"
	"strings"
)

// DerivationTree is the causal explanation carried by a NoSolutionError. Leaf
// nodes are External facts (dependency edges, missing versions); interior
// nodes are Derived clauses merged during conflict resolution. The tree alone
// is sufficient to render a deterministic explanation without re-running the
// solver.
type DerivationTree interface {
	derivationTreeNode()
}

// ExternalKind distinguishes the leaf causes of a failure.
type ExternalKind uint8

const (
	// ExternalNotRoot is the seed clause selecting the root package.
	ExternalNotRoot ExternalKind = iota
	// ExternalNoVersions: the provider had no version of Pkg inside Set.
	ExternalNoVersions
	// ExternalUnavailableDeps: dependency metadata for Pkg in Set was
	// unavailable.
	ExternalUnavailableDeps
	// ExternalDependency: Pkg in Set depends on Dep in DepSet.
	ExternalDependency
)

// External is a leaf cause with its own standalone reason.
type External struct {
	Kind   ExternalKind
	Pkg    Package
	Set    Range
	Dep    Package
	DepSet Range
}

func (*External) derivationTreeNode() {}

func (e *External) String() string {
	switch e.Kind {
	case ExternalNotRoot:
		return fmt.Sprintf("we are solving dependencies of %s %s", e.Pkg, e.Set)
	case ExternalNoVersions:
		if e.Set.IsAny() {
			return fmt.Sprintf("there is no available version for %s", e.Pkg)
		}
		return fmt.Sprintf("there is no version of %s in %s", e.Pkg, e.Set)
	case ExternalUnavailableDeps:
		if e.Set.IsAny() {
			return fmt.Sprintf("dependencies of %s are unavailable", e.Pkg)
		}
		return fmt.Sprintf("dependencies of %s at version %s are unavailable", e.Pkg, e.Set)
	default:
		return dependsString(e.Pkg, e.Set, e.Dep, e.DepSet)
	}
}

// Derived is a clause learned by merging two causes.
type Derived struct {
	// SharedID marks a node appearing multiple times in the tree; the
	// reporter explains it once and refers back by line number.
	SharedID *int
	Cause1   DerivationTree
	Cause2   DerivationTree

	terms []pkgTerm
}

func (*Derived) derivationTreeNode() {}

func (d *Derived) String() string {
	return termsString(d.terms)
}

// Explain renders the derivation tree as the causal chain shown to users:
// one "Because X and Y, Z." clause per merge, with line references for causes
// that are shared between branches.
func Explain(tree DerivationTree) string {
	switch node := tree.(type) {
	case *External:
		return node.String()
	case *Derived:
		e := &explainer{sharedRefs: make(map[int]int)}
		e.explain(node)
		return strings.Join(e.lines, "\n")
	default:
		return "version solving failed"
	}
}

// explainer accumulates report lines while walking a Derived tree. Every
// shared node receives a "(N)" line reference the first time it is fully
// explained, and later mentions cite the reference instead of recursing
// again.
type explainer struct {
	refCount   int
	sharedRefs map[int]int
	lines      []string
}

func (e *explainer) explain(d *Derived) {
	e.explainInner(d)
	if d.SharedID != nil {
		if _, done := e.sharedRefs[*d.SharedID]; !done {
			e.addLineRef()
			e.sharedRefs[*d.SharedID] = e.refCount
		}
	}
}

func (e *explainer) explainInner(d *Derived) {
	cause1, cause2 := d.Cause1, d.Cause2
	ext1, ok1 := cause1.(*External)
	ext2, ok2 := cause2.(*External)
	der1, _ := cause1.(*Derived)
	der2, _ := cause2.(*Derived)

	switch {
	case ok1 && ok2:
		e.lines = append(e.lines, fmt.Sprintf("Because %s and %s, %s.", ext1, ext2, d))
	case ok1:
		e.oneEach(der2, ext1, d)
	case ok2:
		e.oneEach(der1, ext2, d)
	default:
		ref1 := e.refOf(der1)
		ref2 := e.refOf(der2)
		switch {
		case ref1 > 0 && ref2 > 0:
			e.lines = append(e.lines, fmt.Sprintf("Because %s (%d) and %s (%d), %s.", der1, ref1, der2, ref2, d))
		case ref1 > 0:
			e.explain(der2)
			e.lines = append(e.lines, fmt.Sprintf("And because %s (%d), %s.", der1, ref1, d))
		case ref2 > 0:
			e.explain(der1)
			e.lines = append(e.lines, fmt.Sprintf("And because %s (%d), %s.", der2, ref2, d))
		default:
			e.explain(der1)
			if der1.SharedID != nil {
				e.lines = append(e.lines, "")
				e.explainInner(d)
				return
			}
			e.addLineRef()
			ref := e.refCount
			e.lines = append(e.lines, "")
			e.explain(der2)
			e.lines = append(e.lines, fmt.Sprintf("And because %s (%d), %s.", der1, ref, d))
		}
	}
}

// oneEach explains one derived and one external cause.
func (e *explainer) oneEach(derived *Derived, external *External, current *Derived) {
	if ref := e.refOf(derived); ref > 0 {
		e.lines = append(e.lines, fmt.Sprintf("Because %s (%d) and %s, %s.", derived, ref, external, current))
		return
	}

	// When the derived cause itself ends in an external fact, chain the two
	// external explanations into a single sentence.
	priorDerived, _ := derived.Cause1.(*Derived)
	priorExternal, _ := derived.Cause2.(*External)
	if priorDerived == nil {
		priorDerived, _ = derived.Cause2.(*Derived)
		priorExternal, _ = derived.Cause1.(*External)
	}
	if priorDerived != nil && priorExternal != nil {
		e.explain(priorDerived)
		e.lines = append(e.lines, fmt.Sprintf("And because %s and %s, %s.", priorExternal, external, current))
		return
	}

	e.explain(derived)
	e.lines = append(e.lines, fmt.Sprintf("And because %s, %s.", external, current))
}

func (e *explainer) refOf(d *Derived) int {
	if d.SharedID == nil {
		return 0
	}
	return e.sharedRefs[*d.SharedID]
}

func (e *explainer) addLineRef() {
	e.refCount++
	if len(e.lines) > 0 {
		e.lines[len(e.lines)-1] = fmt.Sprintf("%s (%d)", e.lines[len(e.lines)-1], e.refCount)
	}
}
