// Package candidate implements one point in parameter space plus its
// fitness state: the dirty/processing state machine, personality traits,
// and the adapt/evaluate/compare/clone surface every algorithm drives a
// population through.
package candidate

import (
	"errors"

	"github.com/niceyeti/genevo/internal/param"
)

// ProcessingStatus tracks whether a candidate's cached fitness reflects
// its current parameters, per spec §4.3's state machine:
//
//	UNPROCESSED --set-dirty--> DO_PROCESS --process-ok--> PROCESSED
//	                              |
//	                              +----process-throws--> ERROR
//	PROCESSED --param-changed--> DO_PROCESS (dirty re-set)
type ProcessingStatus int

const (
	Unprocessed ProcessingStatus = iota
	DoProcess
	Processed
	ErrorStatus
)

func (s ProcessingStatus) String() string {
	switch s {
	case Unprocessed:
		return "UNPROCESSED"
	case DoProcess:
		return "DO_PROCESS"
	case Processed:
		return "PROCESSED"
	case ErrorStatus:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// FitnessValue holds one criterion's raw (as computed) and transformed
// (post-penalty) value.
type FitnessValue struct {
	Raw         float64
	Transformed float64
}

// ResultRegister lets a FitnessFunc fill in secondary-criterion results
// while it's computing the primary one.
type ResultRegister interface {
	RegisterSecondaryResult(i int, v float64)
}

// FitnessFunc is the user-supplied evaluation callback. It returns the
// primary fitness and may call reg.RegisterSecondaryResult for positions
// 1..N-1. A non-nil error marks the candidate invalid.
type FitnessFunc func(params param.Node, reg ResultRegister) (primary float64, err error)

// ErrDirty is returned by Fitness when the candidate is dirty and lazy
// evaluation is not permitted (no FitnessFunc attached, or lazy
// evaluation not enabled via SetFitnessFunc).
var ErrDirty = errors.New("candidate: fitness read while dirty")

// Candidate is a parameter tree plus its fitness state, per spec §3.
type Candidate struct {
	// Params is the candidate's exclusively-owned parameter tree.
	Params param.Node

	Maximize  bool
	WorstCase float64

	Primary   FitnessValue
	Secondary []FitnessValue

	Traits PersonalityTraits

	Constraints *ConstraintSet

	// EvaluationID correlates a submitted candidate with its returned
	// result across the broker (spec §6's external evaluator protocol).
	EvaluationID string
	// AssignedIteration records which cycle this candidate was sent out
	// in, for the broker's generation discipline (spec §4.2).
	AssignedIteration uint64
	// InsertionSeq breaks fitness ties deterministically by arrival/
	// creation order, per spec §4.4's sort tie-break rule.
	InsertionSeq uint64
	// IsSubstitute marks a clone manufactured by the broker to fill out
	// a population after a reception timeout (spec §4.2 step 5): it is
	// not a genuine evaluation.
	IsSubstitute bool

	dirty    bool
	invalid  bool
	status   ProcessingStatus
	evalFunc FitnessFunc
	lazy     bool
}

// New returns a brand-new, dirty, unprocessed candidate owning params.
func New(params param.Node, maximize bool, worstCase float64) *Candidate {
	return &Candidate{
		Params:    params,
		Maximize:  maximize,
		WorstCase: worstCase,
		Primary:   FitnessValue{Raw: worstCase, Transformed: worstCase},
		dirty:     true,
		status:    Unprocessed,
	}
}

// SetFitnessFunc attaches the evaluation callback used by both Evaluate
// and, when lazy evaluation is enabled, by Fitness on a dirty read.
func (c *Candidate) SetFitnessFunc(fn FitnessFunc, lazy bool) {
	c.evalFunc = fn
	c.lazy = lazy
}

func (c *Candidate) IsDirty() bool            { return c.dirty }
func (c *Candidate) Status() ProcessingStatus { return c.status }
func (c *Candidate) IsInvalid() bool          { return c.invalid }
func (c *Candidate) Criteria() int            { return 1 + len(c.Secondary) }

// SetDirty marks the candidate's cached fitness stale, e.g. after a
// parameter mutation outside of Adapt. Per the state machine, both
// PROCESSED and UNPROCESSED candidates move to DO_PROCESS.
func (c *Candidate) SetDirty() {
	c.dirty = true
	if c.status == Processed || c.status == Unprocessed {
		c.status = DoProcess
	}
}

// Adapt mutates every active leaf of the parameter tree via its attached
// adaptor and marks the candidate dirty if anything changed. Returns the
// number of leaves changed.
func (c *Candidate) Adapt(rng param.RNG) int {
	n := c.Params.Adapt(rng)
	if n > 0 {
		c.SetDirty()
	}
	return n
}

// RandomInit randomizes every active, unblocked leaf and marks the
// candidate dirty.
func (c *Candidate) RandomInit(rng param.RNG) {
	c.Params.RandomInit(rng)
	c.SetDirty()
}

type secondaryRegister struct {
	values []FitnessValue
}

func (r *secondaryRegister) RegisterSecondaryResult(i int, v float64) {
	idx := i - 1
	if idx < 0 {
		return
	}
	for len(r.values) <= idx {
		r.values = append(r.values, FitnessValue{})
	}
	r.values[idx] = FitnessValue{Raw: v, Transformed: v}
}

// Evaluate runs fn against the candidate's current parameters. On
// success, fitness is cached, any registered constraint violation is
// folded into the transformed primary fitness as a penalty, dirty is
// cleared and status becomes PROCESSED. On failure the candidate is
// marked invalid with worst-case fitness in every slot and status
// becomes ERROR; the error is still returned so the caller can log it.
func (c *Candidate) Evaluate(fn FitnessFunc) error {
	reg := &secondaryRegister{}
	primary, err := fn(c.Params, reg)
	if err != nil {
		c.MarkInvalid()
		c.status = ErrorStatus
		return err
	}

	c.Primary = FitnessValue{Raw: primary, Transformed: primary}
	c.Secondary = reg.values

	if c.Constraints != nil {
		if penalty := c.Constraints.Violation(c.Params); penalty > 0 {
			c.Primary.Transformed += penalty
		}
	}

	c.invalid = false
	c.dirty = false
	c.status = Processed
	return nil
}

// EvaluateWithAttached runs the attached FitnessFunc (set via
// SetFitnessFunc), for executors that drive evaluation without knowing
// the problem-specific callback.
func (c *Candidate) EvaluateWithAttached() error {
	if c.evalFunc == nil {
		return errors.New("candidate: no fitness function attached")
	}
	return c.Evaluate(c.evalFunc)
}

// RestoreState sets the dirty/invalid/status fields directly, for
// checkpoint restore (internal/checkpoint), which reconstructs a
// candidate's parameter values and fitness through the exported surface
// but has no other way to reach this private state machine.
func (c *Candidate) RestoreState(dirty, invalid bool, status ProcessingStatus) {
	c.dirty = dirty
	c.invalid = invalid
	c.status = status
}

// MarkInvalid assigns the worst-case sentinel to every fitness slot and
// flags the candidate invalid: it may still participate in selection
// (where it loses) but must never update a best-ever record.
func (c *Candidate) MarkInvalid() {
	c.invalid = true
	c.Primary = FitnessValue{Raw: c.WorstCase, Transformed: c.WorstCase}
	for i := range c.Secondary {
		c.Secondary[i] = FitnessValue{Raw: c.WorstCase, Transformed: c.WorstCase}
	}
	c.dirty = false
}

// Fitness returns the cached primary fitness. If dirty, it fails unless
// an evaluation function is attached and lazy evaluation is enabled, in
// which case it evaluates on demand first.
func (c *Candidate) Fitness() (FitnessValue, error) {
	if c.dirty {
		if !c.lazy || c.evalFunc == nil {
			return FitnessValue{}, ErrDirty
		}
		if err := c.Evaluate(c.evalFunc); err != nil {
			return FitnessValue{}, err
		}
	}
	return c.Primary, nil
}

// IsBetterThan reports whether c's transformed primary fitness ranks
// ahead of other's, honoring Maximize, with ties broken by raw fitness
// and then by InsertionSeq (earlier wins), per spec §4.4.
func (c *Candidate) IsBetterThan(other *Candidate) bool {
	if c.Primary.Transformed != other.Primary.Transformed {
		if c.Maximize {
			return c.Primary.Transformed > other.Primary.Transformed
		}
		return c.Primary.Transformed < other.Primary.Transformed
	}
	if c.Primary.Raw != other.Primary.Raw {
		if c.Maximize {
			return c.Primary.Raw > other.Primary.Raw
		}
		return c.Primary.Raw < other.Primary.Raw
	}
	return c.InsertionSeq < other.InsertionSeq
}

// Dominates reports whether c Pareto-dominates other across all criteria
// (at least as good in every criterion, strictly better in at least
// one), for multi-criterion selection (spec §4.4).
func (c *Candidate) Dominates(other *Candidate) bool {
	betterOrEqual := func(a, b FitnessValue, maximize bool) (ok, strictlyBetter bool) {
		if maximize {
			return a.Transformed >= b.Transformed, a.Transformed > b.Transformed
		}
		return a.Transformed <= b.Transformed, a.Transformed < b.Transformed
	}

	anyStrict := false
	ok, strict := betterOrEqual(c.Primary, other.Primary, c.Maximize)
	if !ok {
		return false
	}
	anyStrict = anyStrict || strict

	n := len(c.Secondary)
	if len(other.Secondary) < n {
		n = len(other.Secondary)
	}
	for i := 0; i < n; i++ {
		ok, strict := betterOrEqual(c.Secondary[i], other.Secondary[i], c.Maximize)
		if !ok {
			return false
		}
		anyStrict = anyStrict || strict
	}
	return anyStrict
}

// Clone deep-copies the candidate: a new parameter tree (and its
// adaptors), a copy of the fitness vector and traits, but never aliasing
// the original's sub-objects.
func (c *Candidate) Clone() *Candidate {
	cp := *c
	cp.Params = c.Params.Clone()
	cp.Secondary = append([]FitnessValue(nil), c.Secondary...)
	cp.Traits.Swarm.Velocity = append([]float64(nil), c.Traits.Swarm.Velocity...)
	if c.Constraints != nil {
		cp.Constraints = c.Constraints.Clone()
	}
	return &cp
}

// Equals compares Maximize, WorstCase, every fitness slot, the
// dirty/invalid/status state and the float64 and bool leaf values, used
// by the clone/checkpoint round-trip tests. Traits, constraints, the
// evaluation/iteration/insertion bookkeeping and float32/int32 leaf
// values are not compared.
func (c *Candidate) Equals(other *Candidate) bool {
	if other == nil {
		return false
	}
	if c.Maximize != other.Maximize || c.WorstCase != other.WorstCase {
		return false
	}
	if c.Primary != other.Primary {
		return false
	}
	if len(c.Secondary) != len(other.Secondary) {
		return false
	}
	for i := range c.Secondary {
		if c.Secondary[i] != other.Secondary[i] {
			return false
		}
	}
	if c.dirty != other.dirty || c.invalid != other.invalid || c.status != other.status {
		return false
	}
	return paramValuesEqual(c.Params, other.Params)
}

func paramValuesEqual(a, b param.Node) bool {
	af, bf := param.StreamlineFloat64(a), param.StreamlineFloat64(b)
	if len(af) != len(bf) {
		return false
	}
	for i := range af {
		if af[i] != bf[i] {
			return false
		}
	}
	ab, bb := param.StreamlineBool(a), param.StreamlineBool(b)
	if len(ab) != len(bb) {
		return false
	}
	for i := range ab {
		if ab[i] != bb[i] {
			return false
		}
	}
	return true
}
