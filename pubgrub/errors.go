// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pubgrub

import "fmt"

// NoSolutionError is the expected failure mode: a proof that no consistent
// set of versions exists. Its derivation tree renders as a human-readable
// causal chain; it indicates an unsatisfiable input, not a bug.
type NoSolutionError struct {
	Tree DerivationTree
}

func (e *NoSolutionError) Error() string {
	return Explain(e.Tree)
}

// ProviderError wraps a failure bubbled up from the dependency provider.
// Provider failures are fatal to the solve; any retry policy belongs inside
// the provider.
type ProviderError struct {
	Op  string
	Pkg Package
	Err error
}

func (e *ProviderError) Error() string {
	if e.Pkg == (Package{}) {
		return fmt.Sprintf("provider error during %s: %s", e.Op, e.Err)
	}
	return fmt.Sprintf("provider error during %s of %s: %s", e.Op, e.Pkg, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// SelfDependencyError reports a package declaring a dependency on itself.
type SelfDependencyError struct {
	Pkg     Package
	Version Version
}

func (e *SelfDependencyError) Error() string {
	return fmt.Sprintf("%s %s depends on itself", e.Pkg, e.Version)
}

// EmptyRangeError reports a dependency declared on an empty version set,
// which can never be satisfied.
type EmptyRangeError struct {
	Pkg        Package
	Version    Version
	Dependency Package
}

func (e *EmptyRangeError) Error() string {
	return fmt.Sprintf("%s %s depends on %s in an empty version set", e.Pkg, e.Version, e.Dependency)
}

// CancelledError reports that the provider's cancellation hook stopped the
// solve. Distinct from NoSolutionError: the input was not proven
// unsatisfiable.
type CancelledError struct {
	Err error
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("version solving cancelled: %s", e.Err)
}

func (e *CancelledError) Unwrap() error { return e.Err }
