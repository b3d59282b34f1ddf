package scan

import (
	"context"
	"fmt"
	"sort"

	"github.com/niceyeti/genevo/internal/candidate"
	"github.com/niceyeti/genevo/internal/engine"
	"github.com/niceyeti/genevo/internal/executor"
	"github.com/niceyeti/genevo/internal/param"
)

// Scan drives an exhaustive grid (or random-probe) walk over a
// declared set of dimensions, one evaluation per cycle, implementing
// engine.Algorithm. CustomHalt reports true once the grid (or sample
// budget) is exhausted, per spec §8 scenario 4.
type Scan struct {
	Spec Spec

	Exec     executor.Executor
	RNG      param.RNG
	Fitness  candidate.FitnessFunc
	Maximize bool

	dims    []Dim // sorted by ID, so streamline order matches assignment order
	indices []int
	total   uint64
	count   uint64
	best    *candidate.Candidate
	label   string
}

// New returns a scan driver over the given parsed spec.
func New(spec Spec, exec executor.Executor, rng param.RNG, fitness candidate.FitnessFunc, maximize bool) *Scan {
	dims := append([]Dim{}, spec.Dims...)
	sort.Slice(dims, func(i, j int) bool { return dims[i].ID < dims[j].ID })

	total := uint64(1)
	if spec.Mode == Sample {
		total = uint64(spec.SampleCount)
	} else {
		for _, d := range dims {
			steps := uint64(d.Steps)
			if steps < 1 {
				steps = 1
			}
			total *= steps
		}
	}

	return &Scan{
		Spec:    spec,
		Exec:    exec,
		RNG:     rng,
		Fitness: fitness,
		dims:    dims,
		indices: make([]int, len(dims)),
		total:   total,
		label:   "scan",
	}
}

func (s *Scan) Name() string { return s.label }

func (s *Scan) Init(ctx context.Context) error {
	if s.total == 0 {
		return fmt.Errorf("scan: empty scan grid")
	}
	return nil
}

// CycleLogic evaluates exactly one grid point (or sample draw) and
// advances the odometer for the next call.
func (s *Scan) CycleLogic(ctx context.Context, iteration uint64) (engine.CycleResult, error) {
	c := s.buildCandidate()
	if err := s.Exec.Execute(ctx, []*candidate.Candidate{c}, s.Fitness, s.RNG, iteration, false); err != nil {
		return engine.CycleResult{}, fmt.Errorf("scan: evaluation: %w", err)
	}
	c.Traits.Kind = candidate.KindScan
	c.Traits.Scan.ScanIndex = int(s.count)

	s.count++
	if s.Spec.Mode == Grid {
		s.advanceOdometer()
	}

	if s.best == nil || c.IsBetterThan(s.best) {
		s.best = c.Clone()
	}
	return engine.CycleResult{BestRaw: s.best.Primary.Raw, BestTransformed: s.best.Primary.Transformed}, nil
}

func (s *Scan) buildCandidate() *candidate.Candidate {
	root := param.NewTree("scan")
	for i, d := range s.dims {
		name := fmt.Sprintf("p%d", d.ID)
		switch d.Kind {
		case KindDouble:
			v := s.valueFor(d, i)
			root.Append(param.NewConstrainedLeaf(name, v, d.Min, d.Max, param.NewGaussAdaptor[float64](0)))
		case KindFloat:
			v := float32(s.valueFor(d, i))
			root.Append(param.NewConstrainedLeaf(name, v, float32(d.Min), float32(d.Max), param.NewGaussAdaptor[float32](0)))
		case KindInt32:
			v := int32(s.valueFor(d, i))
			root.Append(param.NewConstrainedLeaf(name, v, int32(d.Min), int32(d.Max), param.NewGaussAdaptor[int32](0)))
		case KindBool:
			v := s.valueFor(d, i) >= 0.5
			root.Append(param.NewLeaf(name, v, param.NewFlipAdaptor()))
		}
	}
	worstCase := 1.0e300
	if s.Maximize {
		worstCase = -1.0e300
	}
	return candidate.New(root, s.Maximize, worstCase)
}

// valueFor computes the dimension's value at the current odometer
// position (grid mode) or a uniform random draw within its range
// (sample mode).
func (s *Scan) valueFor(d Dim, dimIdx int) float64 {
	if s.Spec.Mode == Sample {
		return d.Min + s.RNG.Float64()*(d.Max-d.Min)
	}
	steps := d.Steps
	if steps < 2 {
		return d.Min
	}
	frac := float64(s.indices[dimIdx]) / float64(steps-1)
	return d.Min + frac*(d.Max-d.Min)
}

// advanceOdometer increments the mixed-radix grid counter, carrying
// between dimensions the way a multi-digit odometer rolls over.
func (s *Scan) advanceOdometer() {
	for i := len(s.indices) - 1; i >= 0; i-- {
		steps := s.dims[i].Steps
		if steps < 1 {
			steps = 1
		}
		s.indices[i]++
		if s.indices[i] < steps {
			return
		}
		s.indices[i] = 0
	}
}

func (s *Scan) PostEvaluationWork(ctx context.Context, iteration uint64, result engine.CycleResult) error {
	return nil
}

// CustomHalt fires once every grid point (or sample draw) has been
// evaluated, per spec §8 scenario 4.
func (s *Scan) CustomHalt() bool { return s.count >= s.total }

func (s *Scan) Finalize(ctx context.Context) error { return nil }

// Best returns the best candidate observed so far.
func (s *Scan) Best() *candidate.Candidate { return s.best }
