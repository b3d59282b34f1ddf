package candidate

import (
	"errors"
	"math/rand"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/niceyeti/genevo/internal/param"
)

type rng struct{ *rand.Rand }

func newRNG(seed int64) param.RNG { return rng{rand.New(rand.NewSource(seed))} }

func newTestCandidate() *Candidate {
	root := param.NewTree("root")
	root.Append(
		param.NewConstrainedLeaf("x0", 0.0, -10.0, 10.0, param.NewGaussAdaptor[float64](0.5)),
		param.NewConstrainedLeaf("x1", 0.0, -10.0, 10.0, param.NewGaussAdaptor[float64](0.5)),
	)
	c := New(root, false, math_MaxFloat64)
	c.Traits = NewEATraits()
	return c
}

const math_MaxFloat64 = 1.7976931348623157e+308

func parabola(p param.Node, reg ResultRegister) (float64, error) {
	sum := 0.0
	for _, v := range param.StreamlineFloat64(p) {
		sum += v * v
	}
	return sum, nil
}

func TestAdaptThenFitnessInvariant(t *testing.T) {
	Convey("Given a freshly created candidate", t, func() {
		c := newTestCandidate()
		r := newRNG(42)

		Convey("adapt() then fitness() leaves it clean and PROCESSED", func() {
			c.Adapt(r)
			So(c.Evaluate(parabola), ShouldBeNil)
			So(c.IsDirty(), ShouldBeFalse)
			So(c.Status(), ShouldEqual, Processed)

			fv, err := c.Fitness()
			So(err, ShouldBeNil)
			So(fv.Transformed, ShouldBeGreaterThanOrEqualTo, 0)
		})

		Convey("reading fitness while dirty fails without lazy eval", func() {
			c.SetDirty()
			_, err := c.Fitness()
			So(err, ShouldEqual, ErrDirty)
		})

		Convey("a failing fitness function marks the candidate invalid with worst-case fitness", func() {
			boom := errors.New("boom")
			err := c.Evaluate(func(param.Node, ResultRegister) (float64, error) { return 0, boom })
			So(err, ShouldEqual, boom)
			So(c.IsInvalid(), ShouldBeTrue)
			So(c.Status(), ShouldEqual, ErrorStatus)
			So(c.Primary.Transformed, ShouldEqual, c.WorstCase)
		})
	})
}

func TestCloneIsDeepAndEqual(t *testing.T) {
	Convey("Given an evaluated candidate and its clone", t, func() {
		c := newTestCandidate()
		r := newRNG(7)
		c.Adapt(r)
		So(c.Evaluate(parabola), ShouldBeNil)

		clone := c.Clone()

		Convey("clone deep-equals the original", func() {
			So(clone.Equals(c), ShouldBeTrue)
		})

		Convey("mutating the clone's parameters does not affect the original", func() {
			clone.Adapt(r)
			clone.Adapt(r)
			clone.Adapt(r)
			So(param.StreamlineFloat64(clone.Params), ShouldNotResemble, param.StreamlineFloat64(c.Params))
		})
	})
}

func TestIsBetterThanTieBreak(t *testing.T) {
	Convey("Given two minimizing candidates with equal transformed and raw fitness", t, func() {
		a := newTestCandidate()
		b := newTestCandidate()
		a.Primary = FitnessValue{Raw: 1, Transformed: 1}
		b.Primary = FitnessValue{Raw: 1, Transformed: 1}
		a.InsertionSeq = 0
		b.InsertionSeq = 1

		Convey("the earlier-inserted candidate wins the tie", func() {
			So(a.IsBetterThan(b), ShouldBeTrue)
			So(b.IsBetterThan(a), ShouldBeFalse)
		})
	})
}

func TestDominates(t *testing.T) {
	Convey("Given two minimizing, 2-criterion candidates", t, func() {
		a := newTestCandidate()
		b := newTestCandidate()
		a.Primary = FitnessValue{Transformed: 1}
		a.Secondary = []FitnessValue{{Transformed: 1}}
		b.Primary = FitnessValue{Transformed: 2}
		b.Secondary = []FitnessValue{{Transformed: 2}}

		Convey("a dominates b when strictly better or equal in every criterion", func() {
			So(a.Dominates(b), ShouldBeTrue)
			So(b.Dominates(a), ShouldBeFalse)
		})
	})
}
