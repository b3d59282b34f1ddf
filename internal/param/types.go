// Package param implements the typed, adaptable parameter tree every
// algorithm in this module manipulates: leaves carry a value and an
// attached mutation operator (adaptor), trees are ordered sequences of
// leaves and sub-trees, and streamline/assign give the engine a uniform,
// type-erased way of reading and writing an individual's active parameters.
package param

import "fmt"

// Scalar enumerates the leaf value domains this module supports: double,
// float, int32 and bool, per the source spec's parameter types.
type Scalar interface {
	~float64 | ~float32 | ~int32 | ~bool
}

// Numeric is the subset of Scalar that supports Gaussian adaption.
type Numeric interface {
	~float64 | ~float32 | ~int32
}

// Boundary describes the declared range of a single leaf, for reporting.
type Boundary struct {
	Name        string
	Constrained bool
	Lower       float64
	Upper       float64
}

// Node is implemented by both Leaf[T] and Tree. The engine drives
// traversal, randomization and adaption entirely through this interface;
// it never needs to know a leaf's concrete value type.
type Node interface {
	Name() string
	IsActive() bool
	SetActive(bool)

	// RandomInit assigns a fresh random value, honoring the leaf's
	// random-init-blocked flag. No-op on inactive nodes.
	RandomInit(rng RNG)
	// Adapt perturbs every active leaf beneath this node and returns the
	// number of leaves actually changed.
	Adapt(rng RNG) int
	// Boundaries reports the declared range of every active, constrained
	// leaf beneath this node.
	Boundaries() []Boundary
	// Clone returns a deep copy: a candidate's parameter tree and its
	// adaptors are never aliased across clones.
	Clone() Node

	accept(v visitor)
}

// RNG is the minimal random source the parameter tree depends on. Any
// *rand.Rand satisfies it; tests and algorithms may substitute a seeded
// or mocked source.
type RNG interface {
	Float64() float64
	NormFloat64() float64
	Intn(n int) int
}

// visitor dispatches over the sum of leaf kinds for streamline/assign.
// It is unexported: only this package may implement new leaf kinds.
type visitor interface {
	visitFloat64(*Leaf[float64])
	visitFloat32(*Leaf[float32])
	visitInt32(*Leaf[int32])
	visitBool(*Leaf[bool])
}

// ErrOutOfValues is returned by Assign* when the supplied sequence has
// fewer values than there are active leaves of the target type.
var ErrOutOfValues = fmt.Errorf("param: assign: ran out of values for active leaves")

// ErrUnknownName is returned by the Assign*Named functions when the name->sequence map is
// missing an entry, or that entry is exhausted, for an active leaf.
var ErrUnknownName = fmt.Errorf("param: assign: missing or exhausted named sequence")
