package param

// Leaf is a single typed scalar parameter: a value in domain T, an
// attached adaptor, an active flag and a random-init-blocked flag, per
// spec §3. A constrained leaf's value lies within [Lower, Upper] after
// construction, after RandomInit, and after every Adapt.
type Leaf[T Scalar] struct {
	name              string
	value             T
	lower, upper      T
	constrained       bool
	active            bool
	randomInitBlocked bool
	adaptor           Adaptor[T]
}

// NewLeaf returns an unconstrained, active leaf with the given initial
// value and adaptor.
func NewLeaf[T Scalar](name string, value T, adaptor Adaptor[T]) *Leaf[T] {
	return &Leaf[T]{
		name:    name,
		value:   value,
		active:  true,
		adaptor: adaptor,
	}
}

// NewConstrainedLeaf returns an active leaf whose value is clamped into
// [lower, upper] at construction time and on every subsequent mutation.
func NewConstrainedLeaf[T Numeric](name string, value, lower, upper T, adaptor Adaptor[T]) *Leaf[T] {
	l := &Leaf[T]{
		name:        name,
		lower:       lower,
		upper:       upper,
		constrained: true,
		active:      true,
		adaptor:     adaptor,
	}
	l.value = clampNumericAny(value, lower, upper)
	return l
}

func clampNumericAny[T Numeric](v, lower, upper T) T {
	if v < lower {
		return lower
	}
	if v > upper {
		return upper
	}
	return v
}

func toFloat64Any(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int32:
		return float64(x)
	default:
		return 0
	}
}

// randomValue draws a fresh random value for a leaf: uniform in
// [lower,upper] for constrained numerics, a unit Gaussian jitter of the
// current value for unconstrained numerics, and a coin flip for bool.
func randomValue[T Scalar](rng RNG, current, lower, upper T, constrained bool) T {
	switch v := any(current).(type) {
	case bool:
		return any(rng.Intn(2) == 1).(T)
	case float64:
		if constrained {
			lo, hi := any(lower).(float64), any(upper).(float64)
			return any(lo + rng.Float64()*(hi-lo)).(T)
		}
		return any(v + rng.NormFloat64()).(T)
	case float32:
		if constrained {
			lo, hi := any(lower).(float32), any(upper).(float32)
			return any(lo + float32(rng.Float64())*(hi-lo)).(T)
		}
		return any(v + float32(rng.NormFloat64())).(T)
	case int32:
		if constrained {
			lo, hi := any(lower).(int32), any(upper).(int32)
			if hi <= lo {
				return any(lo).(T)
			}
			return any(lo + int32(rng.Intn(int(hi-lo+1)))).(T)
		}
		return any(v + int32(rng.NormFloat64())).(T)
	default:
		return current
	}
}

func (l *Leaf[T]) Name() string    { return l.name }
func (l *Leaf[T]) IsActive() bool  { return l.active }
func (l *Leaf[T]) SetActive(a bool) { l.active = a }

// Value returns the leaf's current value.
func (l *Leaf[T]) Value() T { return l.value }

// SetValue assigns a new value, clamping it if the leaf is constrained.
// This is the "assign" half of the streamline/assign invariant.
func (l *Leaf[T]) SetValue(v T) {
	if l.constrained {
		v = clampAny(v, l.lower, l.upper)
	}
	l.value = v
}

// clampAny clamps v into [lower,upper] for any numeric Scalar; bool values
// pass through unchanged (bool leaves are never constrained).
func clampAny[T Scalar](v, lower, upper T) T {
	switch x := any(v).(type) {
	case float64:
		return any(clampFloat(x, any(lower).(float64), any(upper).(float64))).(T)
	case float32:
		return any(clampFloat(x, any(lower).(float32), any(upper).(float32))).(T)
	case int32:
		return any(clampNumericAny(x, any(lower).(int32), any(upper).(int32))).(T)
	default:
		return v
	}
}

// BlockRandomInit prevents RandomInit from touching this leaf, e.g. for
// fixed structural parameters.
func (l *Leaf[T]) BlockRandomInit(blocked bool) { l.randomInitBlocked = blocked }

func (l *Leaf[T]) RandomInit(rng RNG) {
	if !l.active || l.randomInitBlocked {
		return
	}
	l.value = randomValue(rng, l.value, l.lower, l.upper, l.constrained)
}

func (l *Leaf[T]) Adapt(rng RNG) int {
	if !l.active || l.adaptor == nil {
		return 0
	}
	newVal, changed := l.adaptor.Adapt(rng, l.value, l.lower, l.upper, l.constrained)
	if changed {
		l.value = newVal
		return 1
	}
	return 0
}

func (l *Leaf[T]) Boundaries() []Boundary {
	if !l.active || !l.constrained {
		return nil
	}
	return []Boundary{{
		Name:        l.name,
		Constrained: true,
		Lower:       toFloat64Any(l.lower),
		Upper:       toFloat64Any(l.upper),
	}}
}

func (l *Leaf[T]) Clone() Node {
	cp := *l
	if l.adaptor != nil {
		cp.adaptor = l.adaptor.Clone()
	}
	return &cp
}

func (l *Leaf[T]) accept(v visitor) {
	switch any(l.value).(type) {
	case float64:
		v.visitFloat64(any(l).(*Leaf[float64]))
	case float32:
		v.visitFloat32(any(l).(*Leaf[float32]))
	case int32:
		v.visitInt32(any(l).(*Leaf[int32]))
	case bool:
		v.visitBool(any(l).(*Leaf[bool]))
	}
}
