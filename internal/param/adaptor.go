package param

import "math"

// Adaptor is a polymorphic mutation operator, parameterized by a per-type
// distribution. Every leaf owns exactly one.
type Adaptor[T Scalar] interface {
	// Adapt perturbs value and returns the new value plus whether a
	// perturbation actually occurred (the Bernoulli trial on p_ad may
	// decline to change anything). When constrained is true the returned
	// value must lie in [lower, upper].
	Adapt(rng RNG, value, lower, upper T, constrained bool) (T, bool)
	// AdaptionProbability returns the adaptor's current p_ad.
	AdaptionProbability() float64
	// Clone returns a deep copy, so a cloned leaf never shares adaption
	// state (sigma, p_ad, counters) with its original.
	Clone() Adaptor[T]
}

// clampFloat clamps a float-ish value into [lower, upper].
func clampFloat[T ~float64 | ~float32](v, lower, upper T) T {
	if v < lower {
		return lower
	}
	if v > upper {
		return upper
	}
	return v
}

// GaussAdaptor perturbs a numeric leaf with a Gaussian step of width
// sigma1, with an optional bi-Gaussian variant (two lobes centred at
// -delta and +delta, each of width sigma2) for escaping local minima. p_ad and sigma1
// self-adapt every AdaptionThreshold invocations, per spec §3/§4.3.
type GaussAdaptor[T Numeric] struct {
	PAd                          float64
	AdaptAdProb                  float64
	MinAdProb, MaxAdProb         float64
	Sigma1                       float64
	SigmaSigma1                  float64
	MinSigma1, MaxSigma1         float64
	UseBiGaussian                bool
	Sigma2                       float64
	Delta                        float64
	SigmaDelta                   float64
	MinDelta, MaxDelta           float64
	AdaptionThreshold            uint32
	AlwaysAdapt, NeverAdapt      bool

	counter uint32
}

// NewGaussAdaptor returns a Gaussian adaptor of width sigma1 with the
// commonly used defaults (p_ad=0.05, self-adaption rate 0.001, threshold 1).
func NewGaussAdaptor[T Numeric](sigma1 float64) *GaussAdaptor[T] {
	return &GaussAdaptor[T]{
		PAd:               0.05,
		AdaptAdProb:       0.0,
		MinAdProb:         0.0,
		MaxAdProb:         1.0,
		Sigma1:            sigma1,
		SigmaSigma1:       0.001,
		MinSigma1:         0.0001,
		MaxSigma1:         math.MaxFloat64,
		AdaptionThreshold: 1,
	}
}

func (a *GaussAdaptor[T]) AdaptionProbability() float64 { return a.PAd }

func (a *GaussAdaptor[T]) Clone() Adaptor[T] {
	cp := *a
	return &cp
}

func (a *GaussAdaptor[T]) shouldAdapt(rng RNG) bool {
	if a.NeverAdapt {
		return false
	}
	if a.AlwaysAdapt {
		return true
	}
	return rng.Float64() < a.PAd
}

func (a *GaussAdaptor[T]) Adapt(rng RNG, value, lower, upper T, constrained bool) (T, bool) {
	if !a.shouldAdapt(rng) {
		return value, false
	}

	step := rng.NormFloat64() * a.Sigma1
	if a.UseBiGaussian {
		sign := 1.0
		if rng.Float64() < 0.5 {
			sign = -1.0
		}
		step = sign*a.Delta + rng.NormFloat64()*a.Sigma2
	}

	newVal := float64(value) + step
	if constrained {
		newVal = clampFloat(newVal, float64(lower), float64(upper))
	}

	a.counter++
	if a.AdaptionThreshold > 0 && a.counter%a.AdaptionThreshold == 0 {
		a.selfAdapt(rng)
	}

	return T(newVal), true
}

// selfAdapt applies multiplicative-Gaussian self-adaption to sigma1 and
// p_ad, clamped to their declared ranges.
func (a *GaussAdaptor[T]) selfAdapt(rng RNG) {
	if a.SigmaSigma1 > 0 {
		a.Sigma1 *= math.Exp(a.SigmaSigma1 * rng.NormFloat64())
		a.Sigma1 = clampFloat(a.Sigma1, a.MinSigma1, a.MaxSigma1)
	}
	if a.AdaptAdProb > 0 {
		a.PAd *= math.Exp(a.AdaptAdProb * rng.NormFloat64())
		a.PAd = clampFloat(a.PAd, a.MinAdProb, a.MaxAdProb)
	}
	if a.UseBiGaussian && a.SigmaDelta > 0 {
		a.Delta *= math.Exp(a.SigmaDelta * rng.NormFloat64())
		a.Delta = clampFloat(a.Delta, a.MinDelta, a.MaxDelta)
	}
}

// FlipAdaptor is the bool-leaf adaptor: with probability p_ad it flips the
// value. p_ad self-adapts the same way GaussAdaptor's does.
type FlipAdaptor struct {
	PAd                  float64
	AdaptAdProb          float64
	MinAdProb, MaxAdProb float64
	AdaptionThreshold    uint32
	AlwaysAdapt          bool
	NeverAdapt           bool

	counter uint32
}

// NewFlipAdaptor returns a flip adaptor with p_ad=0.05 and threshold 1.
func NewFlipAdaptor() *FlipAdaptor {
	return &FlipAdaptor{
		PAd:               0.05,
		MinAdProb:         0.0,
		MaxAdProb:         1.0,
		AdaptionThreshold: 1,
	}
}

func (a *FlipAdaptor) AdaptionProbability() float64 { return a.PAd }

func (a *FlipAdaptor) Clone() Adaptor[bool] {
	cp := *a
	return &cp
}

func (a *FlipAdaptor) Adapt(rng RNG, value, _, _ bool, _ bool) (bool, bool) {
	adapt := a.AlwaysAdapt
	if !a.NeverAdapt && !adapt {
		adapt = rng.Float64() < a.PAd
	}
	if !adapt {
		return value, false
	}

	a.counter++
	if a.AdaptionThreshold > 0 && a.counter%a.AdaptionThreshold == 0 && a.AdaptAdProb > 0 {
		a.PAd *= math.Exp(a.AdaptAdProb * rng.NormFloat64())
		a.PAd = clampFloat(a.PAd, a.MinAdProb, a.MaxAdProb)
	}

	return !value, true
}
