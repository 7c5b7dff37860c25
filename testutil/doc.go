// Package testutil provides testing utilities for slabtape.
//
// This package is intended for use in tests and benchmarks only.
//
// # Random Workloads
//
//	rng := testutil.NewRNG(seed)
//	ops := rng.Ops(1000, 0.6) // push-biased push/pop sequence
//
// # Reference Model
//
// Model is a plain slice-backed stack. Randomized tests apply the same
// operations to a tape and a Model and compare the two:
//
//	var m testutil.Model[int]
//	m.Push(1)
//	v, ok := m.Pop()
package testutil
