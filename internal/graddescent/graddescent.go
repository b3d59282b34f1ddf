// Package graddescent implements a finite-difference gradient-descent
// specialization: the per-dimension forward-difference probes run
// through the executor, so gradient evaluation is itself parallelized
// across the broker, per spec §4.5.
package graddescent

import (
	"context"
	"fmt"

	"github.com/niceyeti/genevo/internal/candidate"
	"github.com/niceyeti/genevo/internal/engine"
	"github.com/niceyeti/genevo/internal/executor"
	"github.com/niceyeti/genevo/internal/param"
)

// GradientDescent drives a single point downhill (or uphill, if
// Maximize) via forward-difference gradient steps.
type GradientDescent struct {
	Current *candidate.Candidate

	StepSize float64
	Eps      float64
	Maximize bool

	Exec    executor.Executor
	RNG     param.RNG
	Fitness candidate.FitnessFunc

	label string
}

// New returns a gradient-descent driver starting from start, which
// must already own its parameter tree (not yet evaluated).
func New(start *candidate.Candidate, stepSize, eps float64, exec executor.Executor, rng param.RNG, fitness candidate.FitnessFunc, maximize bool) *GradientDescent {
	start.Traits.Kind = candidate.KindGradientDescent
	start.Traits.GD.StepSize = stepSize
	return &GradientDescent{
		Current:  start,
		StepSize: stepSize,
		Eps:      eps,
		Maximize: maximize,
		Exec:     exec,
		RNG:      rng,
		Fitness:  fitness,
		label:    "gradient-descent",
	}
}

func (g *GradientDescent) Name() string { return g.label }

func (g *GradientDescent) Init(ctx context.Context) error {
	return g.Exec.Execute(ctx, []*candidate.Candidate{g.Current}, g.Fitness, g.RNG, 0, false)
}

// CycleLogic probes every dimension with a forward difference
// (parallelized through the executor), estimates the gradient, takes
// one step along (or against) it, and accepts the step only if it
// improves on the current point; otherwise it halves StepSize and
// holds position, a standard backtracking safeguard against
// overshoot.
func (g *GradientDescent) CycleLogic(ctx context.Context, iteration uint64) (engine.CycleResult, error) {
	base := param.StreamlineFloat64(g.Current.Params)
	if len(base) == 0 {
		return engine.CycleResult{}, fmt.Errorf("graddescent: candidate has no float64 parameters to descend over")
	}

	probes := make([]*candidate.Candidate, len(base))
	for i := range base {
		probe := g.Current.Clone()
		values := append([]float64{}, base...)
		values[i] += g.Eps
		_ = param.AssignFloat64(probe.Params, values)
		probe.SetDirty()
		probes[i] = probe
	}
	// Execute may reorder the slice it is given, so probes keeps the
	// dimension order.
	if err := g.Exec.Execute(ctx, append([]*candidate.Candidate(nil), probes...), g.Fitness, g.RNG, iteration, false); err != nil {
		return engine.CycleResult{}, fmt.Errorf("graddescent: probe evaluation: %w", err)
	}

	gradient := make([]float64, len(base))
	for i, probe := range probes {
		gradient[i] = (probe.Primary.Transformed - g.Current.Primary.Transformed) / g.Eps
	}

	next := g.Current.Clone()
	values := make([]float64, len(base))
	sign := -1.0
	if g.Maximize {
		sign = 1.0
	}
	for i := range base {
		values[i] = base[i] + sign*g.StepSize*gradient[i]
	}
	_ = param.AssignFloat64(next.Params, values)
	next.SetDirty()
	next.Traits.GD.StepIndex++

	if err := g.Exec.Execute(ctx, []*candidate.Candidate{next}, g.Fitness, g.RNG, iteration, false); err != nil {
		return engine.CycleResult{}, fmt.Errorf("graddescent: step evaluation: %w", err)
	}

	if next.IsBetterThan(g.Current) {
		g.Current = next
	} else {
		g.StepSize /= 2
		g.Current.Traits.GD.StepSize = g.StepSize
	}

	return engine.CycleResult{BestRaw: g.Current.Primary.Raw, BestTransformed: g.Current.Primary.Transformed}, nil
}

func (g *GradientDescent) PostEvaluationWork(ctx context.Context, iteration uint64, result engine.CycleResult) error {
	return nil
}

// CustomHalt fires once the step size has shrunk below a point where
// further steps cannot plausibly change the parameters, a cheap
// convergence signal specific to this algorithm.
func (g *GradientDescent) CustomHalt() bool { return g.StepSize < 1e-12 }

func (g *GradientDescent) Finalize(ctx context.Context) error { return nil }
