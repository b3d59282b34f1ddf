// Package problems supplies the demo fitness functions used in the
// runnable examples and the spec's worked scenarios (spec §8): a
// parabola (single- and multi-criterion) and the Rosenbrock banana
// function.
package problems

import (
	"github.com/niceyeti/genevo/internal/candidate"
	"github.com/niceyeti/genevo/internal/param"
)

// Parabola is the sum-of-squares bowl, minimized at the origin.
func Parabola(p param.Node, reg candidate.ResultRegister) (float64, error) {
	sum := 0.0
	for _, v := range param.StreamlineFloat64(p) {
		sum += v * v
	}
	return sum, nil
}

// MultiCriterionParabola evaluates three parabolas over the same
// parameters, with minima at -offset, 0 and +offset (spec §8 scenario 2
// calls for minima at -1, 0, +1, i.e. offset=1), so Pareto-mode
// selection has a genuine three-way tradeoff to navigate: minimizing
// distance to any one minimum costs distance to the other two, and the
// resulting front is expected to span all three.
func MultiCriterionParabola(offset float64) candidate.FitnessFunc {
	return func(p param.Node, reg candidate.ResultRegister) (float64, error) {
		values := param.StreamlineFloat64(p)

		primary := 0.0
		for _, v := range values {
			d := v + offset
			primary += d * d
		}

		secondary1 := 0.0
		for _, v := range values {
			secondary1 += v * v
		}
		reg.RegisterSecondaryResult(1, secondary1)

		secondary2 := 0.0
		for _, v := range values {
			d := v - offset
			secondary2 += d * d
		}
		reg.RegisterSecondaryResult(2, secondary2)

		return primary, nil
	}
}

// Rosenbrock is the classic banana-shaped valley function, minimized
// at (1,1,...,1). It requires at least 2 active float64 parameters.
func Rosenbrock(p param.Node, reg candidate.ResultRegister) (float64, error) {
	values := param.StreamlineFloat64(p)
	sum := 0.0
	for i := 0; i < len(values)-1; i++ {
		a := values[i+1] - values[i]*values[i]
		b := 1 - values[i]
		sum += 100*a*a + b*b
	}
	return sum, nil
}

// ByName resolves one of the demo problems by the name a config file or
// --clientProblem flag gives it. offset only matters for "multiParabola".
func ByName(name string, offset float64) (candidate.FitnessFunc, bool) {
	switch name {
	case "parabola":
		return Parabola, true
	case "multiParabola":
		return MultiCriterionParabola(offset), true
	case "rosenbrock":
		return Rosenbrock, true
	default:
		return nil, false
	}
}
