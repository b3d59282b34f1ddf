// Package ea implements the evolutionary-algorithm specialization of
// the iteration engine: clone-and-mutate variation, plus/comma/
// nu1pretain selection (with a Pareto-mode alternative for
// multi-criterion candidates), and parent/child bookkeeping, per spec
// §4.4.
package ea

import (
	"context"
	"fmt"
	"sort"

	"github.com/niceyeti/genevo/internal/candidate"
	"github.com/niceyeti/genevo/internal/engine"
	"github.com/niceyeti/genevo/internal/executor"
	"github.com/niceyeti/genevo/internal/param"
	"github.com/niceyeti/genevo/internal/population"
)

// SelectionMode is one of the three competition schemes of spec §4.4.
type SelectionMode int

const (
	Plus SelectionMode = iota
	Comma
	Nu1PRetain
)

func (m SelectionMode) String() string {
	switch m {
	case Plus:
		return "plus"
	case Comma:
		return "comma"
	case Nu1PRetain:
		return "nu1pretain"
	default:
		return "unknown"
	}
}

// PostProcessor improves a single surviving candidate further, e.g. via
// a nested EA run with its own bounded budget (spec §4.4's recursive
// post-optimization). A nil PostProcessor disables the step entirely.
type PostProcessor interface {
	Improve(ctx context.Context, c *candidate.Candidate) (*candidate.Candidate, error)
}

// EA drives one evolutionary-algorithm instance. It implements
// engine.Algorithm; an *engine.Engine wraps it to apply halt criteria,
// checkpointing and info hooks uniformly across specializations.
type EA struct {
	Mu, Lambda int
	Mode       SelectionMode
	ParetoMode bool

	Pop      *population.Population
	Exec     executor.Executor
	RNG      param.RNG
	Fitness  candidate.FitnessFunc
	PostProc PostProcessor

	label string
	seq   uint64
}

// New returns an EA over a freshly sized population. Members must hold
// at least one seed parent before Init is called (Init clones seeds up
// to Mu parents and fills the Lambda child slots by cloning parents).
func New(mu, lambda int, mode SelectionMode, pop *population.Population, exec executor.Executor, rng param.RNG, fitness candidate.FitnessFunc) *EA {
	pop.DefaultSize = mu + lambda
	return &EA{
		Mu:      mu,
		Lambda:  lambda,
		Mode:    mode,
		Pop:     pop,
		Exec:    exec,
		RNG:     rng,
		Fitness: fitness,
		label:   "ea",
	}
}

func (e *EA) Name() string { return e.label }

// Init grows the parents to Mu with random-initialized clones of the
// seeds, evaluates all Mu parents, and grows the population to
// Mu+Lambda by cloning, matching the
// auto-expand edge case of spec §8 ("population smaller than default
// size auto-expands by cloning and random-initializing").
func (e *EA) Init(ctx context.Context) error {
	if len(e.Pop.Members) == 0 {
		return fmt.Errorf("ea: init: population has no seed parents")
	}
	seeded := len(e.Pop.Members)
	for i := seeded; i < e.Mu; i++ {
		src := e.Pop.Members[i%seeded]
		clone := src.Clone()
		clone.RandomInit(e.RNG)
		e.stampSeq(clone)
		e.Pop.Members = append(e.Pop.Members, clone)
	}
	for _, c := range e.Pop.Members[:e.Mu] {
		if c.Traits.Kind != candidate.KindEA {
			c.Traits = candidate.NewEATraits()
		}
		c.Traits.EA.ParentCounter = 1
		e.stampSeq(c)
	}
	// Seed child slots so Pop.Len() == Mu+Lambda from the start; the
	// first cycle's variation overwrites them immediately.
	for len(e.Pop.Members) < e.Mu+e.Lambda {
		src := e.Pop.Members[len(e.Pop.Members)%e.Mu]
		clone := src.Clone()
		clone.Traits.EA.ParentCounter = 0
		e.Pop.Members = append(e.Pop.Members, clone)
	}

	return e.Exec.Execute(ctx, e.Pop.Members[:e.Mu], e.Fitness, e.RNG, 0, false)
}

func (e *EA) stampSeq(c *candidate.Candidate) {
	c.InsertionSeq = e.seq
	e.seq++
}

// CycleLogic runs one generation: variation, evaluation, selection,
// bookkeeping.
func (e *EA) CycleLogic(ctx context.Context, iteration uint64) (engine.CycleResult, error) {
	parents := e.Pop.Members[:e.Mu]
	children := e.Pop.Members[e.Mu : e.Mu+e.Lambda]

	// 1. Variation: clone each parent into a child slot round-robin,
	// mutate, reset the child's parentCounter.
	for i := 0; i < e.Lambda; i++ {
		parent := parents[i%e.Mu]
		child := parent.Clone()
		child.Traits.EA.ParentCounter = 0
		child.Traits.EA.ParentID = i % e.Mu
		child.Adapt(e.RNG)
		e.stampSeq(child)
		children[i] = child
	}
	e.Pop.Members = append(append([]*candidate.Candidate{}, parents...), children...)

	// 2. Evaluation: children always; parents too on the first cycle
	// under plus/nu1pretain.
	// toSubmit is a fresh slice in that first-cycle branch (it
	// concatenates two otherwise-separate views), so any broker-timeout
	// substitution Execute writes into it has to be copied back onto
	// parents/children explicitly — those are what selection below
	// actually reads, not e.Pop.Members.
	includeParents := iteration == 0 && e.Mode != Comma
	toSubmit := children
	if includeParents {
		toSubmit = append(append([]*candidate.Candidate{}, parents...), children...)
	}
	if err := e.Exec.Execute(ctx, toSubmit, e.Fitness, e.RNG, iteration, false); err != nil {
		return engine.CycleResult{}, fmt.Errorf("ea: evaluation: %w", err)
	}
	if includeParents {
		copy(parents, toSubmit[:e.Mu])
		copy(children, toSubmit[e.Mu:])
	}

	// 3. Selection.
	var survivors []*candidate.Candidate
	if e.ParetoMode && parents[0].Criteria() > 1 {
		survivors = e.paretoSelect(parents, children)
	} else {
		survivors = e.singleCriterionSelect(parents, children)
	}

	// 4. Bookkeeping.
	for i, c := range survivors {
		if c.Traits.EA.ParentCounter == 0 {
			c.Traits.EA.ParentCounter = 1
		} else {
			c.Traits.EA.ParentCounter++
		}
		c.Traits.EA.PopulationPosition = i
	}
	e.Pop.Members = survivors
	e.Pop.Resize(e.Mu + e.Lambda)

	best := survivors[0]
	return engine.CycleResult{BestRaw: best.Primary.Raw, BestTransformed: best.Primary.Transformed}, nil
}

// singleCriterionSelect implements plus/comma/nu1pretain over a
// single fitness criterion, sorting by candidate.IsBetterThan (which
// already encodes the raw-fitness and insertion-order tie-breaks of
// spec §4.4).
func (e *EA) singleCriterionSelect(parents, children []*candidate.Candidate) []*candidate.Candidate {
	sortBest := func(pool []*candidate.Candidate) []*candidate.Candidate {
		sorted := append([]*candidate.Candidate{}, pool...)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].IsBetterThan(sorted[j])
		})
		return sorted
	}

	switch e.Mode {
	case Plus:
		pool := append(append([]*candidate.Candidate{}, parents...), children...)
		return truncate(sortBest(pool), e.Mu)
	case Comma:
		return truncate(sortBest(children), e.Mu)
	case Nu1PRetain:
		// One retained parent competes against the best child; if it
		// wins, it keeps its slot and the remaining mu-1 slots are
		// filled from the best children, so the survivor set stays mu
		// in size like comma mode. Otherwise it's plain comma.
		sortedParents := sortBest(parents)
		sortedChildren := sortBest(children)
		bestParent, bestChild := sortedParents[0], sortedChildren[0]
		if bestParent.IsBetterThan(bestChild) {
			survivors := append([]*candidate.Candidate{bestParent}, sortedChildren...)
			return truncate(survivors, e.Mu)
		}
		return truncate(sortedChildren, e.Mu)
	default:
		return truncate(sortBest(children), e.Mu)
	}
}

func truncate(sorted []*candidate.Candidate, n int) []*candidate.Candidate {
	if n < len(sorted) {
		return sorted[:n]
	}
	for len(sorted) < n && len(sorted) > 0 {
		sorted = append(sorted, sorted[len(sorted)-1].Clone())
	}
	return sorted
}

// PostEvaluationWork runs the optional recursive post-optimization
// step on every surviving parent, replacing it if the post-processor
// finds something better.
func (e *EA) PostEvaluationWork(ctx context.Context, iteration uint64, result engine.CycleResult) error {
	if e.PostProc == nil {
		return nil
	}
	for i, c := range e.Pop.Members[:e.Mu] {
		improved, err := e.PostProc.Improve(ctx, c.Clone())
		if err != nil {
			return fmt.Errorf("ea: post-processor: %w", err)
		}
		if improved != nil && improved.IsBetterThan(c) {
			e.Pop.Members[i] = improved
		}
	}
	return nil
}

func (e *EA) CustomHalt() bool { return false }

func (e *EA) Finalize(ctx context.Context) error { return nil }

// Best returns the current best parent (index 0 after selection's
// sort), for callers that want the running best without waiting for
// the engine to finish.
func (e *EA) Best() *candidate.Candidate {
	if len(e.Pop.Members) == 0 {
		return nil
	}
	return e.Pop.Members[0]
}
