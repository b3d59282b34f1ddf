package candidate

import (
	"math"

	"github.com/niceyeti/genevo/internal/param"
)

// Constraint reports a non-negative penalty for a parameter assignment;
// zero means the constraint is satisfied.
type Constraint interface {
	Penalty(params param.Node) float64
	Clone() Constraint
}

// ConstraintSet AND-combines a list of constraints: the candidate's total
// penalty is their sum, per spec §4.3's "check combiner".
type ConstraintSet struct {
	constraints []Constraint
}

// NewConstraintSet returns a combiner over the given constraints.
func NewConstraintSet(constraints ...Constraint) *ConstraintSet {
	return &ConstraintSet{constraints: constraints}
}

// Violation sums every constraint's penalty.
func (cs *ConstraintSet) Violation(params param.Node) float64 {
	total := 0.0
	for _, c := range cs.constraints {
		total += c.Penalty(params)
	}
	return total
}

func (cs *ConstraintSet) Clone() *ConstraintSet {
	cp := &ConstraintSet{constraints: make([]Constraint, len(cs.constraints))}
	for i, c := range cs.constraints {
		cp.constraints[i] = c.Clone()
	}
	return cp
}

// SumConstraint penalizes deviation of the sum of streamlined float64
// parameters from a target value.
type SumConstraint struct {
	Target float64
	Weight float64
}

func (s SumConstraint) Penalty(params param.Node) float64 {
	sum := 0.0
	for _, v := range param.StreamlineFloat64(params) {
		sum += v
	}
	diff := sum - s.Target
	if diff < 0 {
		diff = -diff
	}
	return diff * s.Weight
}

func (s SumConstraint) Clone() Constraint { return s }

// SumInGapConstraint penalizes the sum of float64 parameters landing
// inside a forbidden [lower,upper] gap.
type SumInGapConstraint struct {
	Lower, Upper float64
	Weight       float64
}

func (g SumInGapConstraint) Penalty(params param.Node) float64 {
	sum := 0.0
	for _, v := range param.StreamlineFloat64(params) {
		sum += v
	}
	if sum < g.Lower || sum > g.Upper {
		return 0
	}
	// Penalize proportional to how deep into the gap the sum sits,
	// using distance to the nearer edge so the penalty vanishes at the
	// boundary and is continuous.
	distToLower := sum - g.Lower
	distToUpper := g.Upper - sum
	d := distToLower
	if distToUpper < d {
		d = distToUpper
	}
	return d * g.Weight
}

func (g SumInGapConstraint) Clone() Constraint { return g }

// OnSphereConstraint penalizes deviation of the Euclidean norm of
// float64 parameters from a target radius.
type OnSphereConstraint struct {
	Radius float64
	Weight float64
}

func (o OnSphereConstraint) Penalty(params param.Node) float64 {
	sumSq := 0.0
	for _, v := range param.StreamlineFloat64(params) {
		sumSq += v * v
	}
	diff := math.Sqrt(sumSq) - o.Radius
	if diff < 0 {
		diff = -diff
	}
	return diff * o.Weight
}

func (o OnSphereConstraint) Clone() Constraint { return o }

// FormulaConstraint penalizes violation of an arbitrary user-supplied
// predicate over the streamlined float64 parameters, the escape hatch
// for constraints the built-in kinds don't cover.
type FormulaConstraint struct {
	Formula func(values []float64) (penalty float64)
}

func (f FormulaConstraint) Penalty(params param.Node) float64 {
	if f.Formula == nil {
		return 0
	}
	return f.Formula(param.StreamlineFloat64(params))
}

func (f FormulaConstraint) Clone() Constraint { return f }
