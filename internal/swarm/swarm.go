// Package swarm implements the particle-swarm specialization of the
// iteration engine: neighborhood partitioning, local/global best
// tracking, and a standard velocity/position update driven by the
// swarm personality traits of spec §3.
package swarm

import (
	"context"
	"fmt"

	"github.com/niceyeti/genevo/internal/candidate"
	"github.com/niceyeti/genevo/internal/engine"
	"github.com/niceyeti/genevo/internal/executor"
	"github.com/niceyeti/genevo/internal/param"
	"github.com/niceyeti/genevo/internal/population"
)

// Swarm drives one particle-swarm instance, partitioned into
// NeighborhoodSizes[i] particles each. It implements engine.Algorithm.
type Swarm struct {
	NeighborhoodSizes []int

	Pop     *population.Population
	Exec    executor.Executor
	RNG     param.RNG
	Fitness candidate.FitnessFunc

	// localBests[i]/globalBest are algorithm-owned deep clones, never
	// aliases of live population members, per spec §3's ownership rule.
	localBests []*candidate.Candidate
	globalBest *candidate.Candidate

	label string
}

// New returns a swarm over the given neighborhood layout. Pop must
// already contain sum(neighborhoodSizes) particles before Init.
func New(neighborhoodSizes []int, pop *population.Population, exec executor.Executor, rng param.RNG, fitness candidate.FitnessFunc) *Swarm {
	total := 0
	for _, n := range neighborhoodSizes {
		total += n
	}
	pop.DefaultSize = total
	return &Swarm{
		NeighborhoodSizes: neighborhoodSizes,
		Pop:               pop,
		Exec:              exec,
		RNG:               rng,
		Fitness:           fitness,
		label:             "swarm",
	}
}

func (s *Swarm) Name() string { return s.label }

// Init assigns each particle its neighborhood id, gives each particle
// without a velocity a zero velocity, and runs the first evaluation so
// local/global bests can be seeded.
func (s *Swarm) Init(ctx context.Context) error {
	groups, missing := s.Pop.Partition(s.NeighborhoodSizes)
	for i, missingCount := range missing {
		if missingCount > 0 {
			return fmt.Errorf("swarm: init: neighborhood %d short %d particles", i, missingCount)
		}
		for _, c := range groups[i] {
			if c.Traits.Kind != candidate.KindSwarm {
				c.Traits.Kind = candidate.KindSwarm
			}
			c.Traits.Swarm.NeighborhoodID = i
			c.Traits.Swarm.SkipPositionUpdate = true
			if c.Traits.Swarm.Velocity == nil {
				dims := len(param.StreamlineFloat64(c.Params))
				c.Traits.Swarm.Velocity = make([]float64, dims)
			}
		}
	}

	if err := s.Exec.Execute(ctx, s.Pop.Members, s.Fitness, s.RNG, 0, false); err != nil {
		return fmt.Errorf("swarm: init evaluation: %w", err)
	}

	s.localBests = make([]*candidate.Candidate, len(s.NeighborhoodSizes))
	for i, group := range groups {
		s.localBests[i] = bestOf(group).Clone()
	}
	s.globalBest = bestOfBests(s.localBests).Clone()
	return nil
}

// CycleLogic first repairs any neighborhood that lost members since the
// previous cycle (spec §3), then updates every particle's
// velocity/position from its local and global bests, evaluates the new
// positions, and refreshes bests.
func (s *Swarm) CycleLogic(ctx context.Context, iteration uint64) (engine.CycleResult, error) {
	groups, missing := s.Pop.Partition(s.NeighborhoodSizes)

	// Repair every short neighborhood in one pass: FillBySubstitution
	// tops the whole population up to DefaultSize in a single call, so
	// it must run once against the total shortfall, with the result
	// distributed back to the neighborhoods that reported it missing.
	added := s.Pop.FillBySubstitution(s.RNG)
	cursor := 0
	for i := range groups {
		for ; cursor < len(added) && missing[i] > 0; missing[i]-- {
			c := added[cursor]
			cursor++
			c.Traits.Swarm.NeighborhoodID = i
			c.Traits.Swarm.SkipPositionUpdate = true
			c.RandomInit(s.RNG)
			groups[i] = append(groups[i], c)
		}
	}

	for i, group := range groups {
		for _, c := range group {
			if c.Traits.Swarm.SkipPositionUpdate {
				c.Traits.Swarm.SkipPositionUpdate = false
				continue
			}
			s.updatePosition(c, s.localBests[i], s.globalBest)
		}
	}

	if err := s.Exec.Execute(ctx, s.Pop.Members, s.Fitness, s.RNG, iteration, false); err != nil {
		return engine.CycleResult{}, fmt.Errorf("swarm: evaluation: %w", err)
	}

	groups, _ = s.Pop.Partition(s.NeighborhoodSizes)
	for i, group := range groups {
		candidateBest := bestOf(group)
		if candidateBest.IsBetterThan(s.localBests[i]) {
			s.localBests[i] = candidateBest.Clone()
		}
	}
	if bestOfBests(s.localBests).IsBetterThan(s.globalBest) {
		s.globalBest = bestOfBests(s.localBests).Clone()
	}

	return engine.CycleResult{BestRaw: s.globalBest.Primary.Raw, BestTransformed: s.globalBest.Primary.Transformed}, nil
}

// updatePosition applies the canonical velocity update
// v' = v + c_local*r_local*(localBest-x) + c_global*r_global*(globalBest-x) + c_delta*r
// componentwise over the candidate's streamlined float64 parameters,
// resampling c_local/c_global/c_delta first when ResamplePerIteration
// is set, per spec §3.
func (s *Swarm) updatePosition(c, localBest, globalBest *candidate.Candidate) {
	traits := &c.Traits.Swarm
	if traits.ResamplePerIteration {
		traits.CLocal = sampleRange(s.RNG, traits.CLocalRange)
		traits.CGlobal = sampleRange(s.RNG, traits.CGlobalRange)
		traits.CDelta = sampleRange(s.RNG, traits.CDeltaRange)
	}

	x := param.StreamlineFloat64(c.Params)
	lb := param.StreamlineFloat64(localBest.Params)
	gb := param.StreamlineFloat64(globalBest.Params)

	if len(traits.Velocity) != len(x) {
		traits.Velocity = make([]float64, len(x))
	}

	next := make([]float64, len(x))
	for i := range x {
		rLocal, rGlobal := s.RNG.Float64(), s.RNG.Float64()
		traits.Velocity[i] = traits.Velocity[i] +
			traits.CLocal*rLocal*(lb[i]-x[i]) +
			traits.CGlobal*rGlobal*(gb[i]-x[i]) +
			traits.CDelta*s.RNG.Float64()
		next[i] = x[i] + traits.Velocity[i]
	}

	param.AssignFloat64(c.Params, next)
	c.SetDirty()
}

func sampleRange(rng param.RNG, r [2]float64) float64 {
	if r[0] == 0 && r[1] == 0 {
		return 0
	}
	return r[0] + rng.Float64()*(r[1]-r[0])
}

func bestOf(group []*candidate.Candidate) *candidate.Candidate {
	best := group[0]
	for _, c := range group[1:] {
		if c.IsBetterThan(best) {
			best = c
		}
	}
	return best
}

func bestOfBests(bests []*candidate.Candidate) *candidate.Candidate {
	return bestOf(bests)
}

func (s *Swarm) PostEvaluationWork(ctx context.Context, iteration uint64, result engine.CycleResult) error {
	return nil
}

func (s *Swarm) CustomHalt() bool { return false }

func (s *Swarm) Finalize(ctx context.Context) error { return nil }

// GlobalBest returns the algorithm-owned deep clone of the best
// particle ever observed.
func (s *Swarm) GlobalBest() *candidate.Candidate { return s.globalBest }
