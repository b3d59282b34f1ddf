package ea

import (
	"context"
	"math/rand"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/niceyeti/genevo/internal/candidate"
	"github.com/niceyeti/genevo/internal/executor"
	"github.com/niceyeti/genevo/internal/param"
	"github.com/niceyeti/genevo/internal/population"
)

type rng struct{ *rand.Rand }

func newRNG(seed int64) param.RNG { return rng{rand.New(rand.NewSource(seed))} }

func sphere(p param.Node, reg candidate.ResultRegister) (float64, error) {
	sum := 0.0
	for _, v := range param.StreamlineFloat64(p) {
		sum += v * v
	}
	return sum, nil
}

func newSeedParent(x float64) *candidate.Candidate {
	root := param.NewTree("root")
	root.Append(
		param.NewConstrainedLeaf("x0", x, -10.0, 10.0, param.NewGaussAdaptor[float64](0.3)),
		param.NewConstrainedLeaf("x1", x, -10.0, 10.0, param.NewGaussAdaptor[float64](0.3)),
	)
	c := candidate.New(root, false, 1e300)
	c.Traits = candidate.NewEATraits()
	return c
}

func newEA(mode SelectionMode, mu, lambda int) *EA {
	pop := population.New(mu + lambda)
	pop.Members = append(pop.Members, newSeedParent(5.0))
	for len(pop.Members) < mu {
		pop.Members = append(pop.Members, newSeedParent(5.0))
	}
	return New(mu, lambda, mode, pop, executor.Serial{}, newRNG(11), sphere)
}

func TestEAPlusSelectionMonotonicallyImproves(t *testing.T) {
	Convey("Given a (mu+lambda) EA minimizing the sphere function", t, func() {
		e := newEA(Plus, 3, 6)
		ctx := context.Background()
		So(e.Init(ctx), ShouldBeNil)

		prevBest := e.Best().Primary.Transformed

		Convey("plus selection never regresses across cycles", func() {
			for i := uint64(0); i < 10; i++ {
				result, err := e.CycleLogic(ctx, i)
				So(err, ShouldBeNil)
				So(result.BestTransformed, ShouldBeLessThanOrEqualTo, prevBest)
				prevBest = result.BestTransformed
			}
		})
	})
}

func TestEACommaSelectionBookkeeping(t *testing.T) {
	Convey("Given a (mu,lambda) EA", t, func() {
		e := newEA(Comma, 2, 8)
		ctx := context.Background()
		So(e.Init(ctx), ShouldBeNil)

		Convey("after one cycle, survivors are drawn only from children", func() {
			_, err := e.CycleLogic(ctx, 0)
			So(err, ShouldBeNil)
			So(e.Pop.Len(), ShouldEqual, e.Mu+e.Lambda)
			for _, c := range e.Pop.Members[:e.Mu] {
				// A former child goes from 0 to 1; a surviving parent would reach 2.
				So(c.Traits.EA.ParentCounter, ShouldEqual, 1)
			}
		})
	})
}

func TestEANu1PRetainKeepsParentWhenBetter(t *testing.T) {
	Convey("Given a nu1pretain EA whose sole parent is already optimal", t, func() {
		e := newEA(Nu1PRetain, 1, 4)
		ctx := context.Background()
		So(e.Init(ctx), ShouldBeNil)
		e.Pop.Members[0] = newSeedParent(0.0)
		e.Pop.Members[0].Traits = candidate.NewEATraits()
		So(e.Exec.Execute(ctx, e.Pop.Members[:1], e.Fitness, e.RNG, 0, false), ShouldBeNil)

		Convey("the retained parent's fitness does not worsen", func() {
			before := e.Pop.Members[0].Primary.Transformed
			_, err := e.CycleLogic(ctx, 1)
			So(err, ShouldBeNil)
			So(e.Pop.Members[0].Primary.Transformed, ShouldBeLessThanOrEqualTo, before)
		})
	})
}

func TestEANu1PRetainKeepsPopulationSizeWithMuGreaterThanOne(t *testing.T) {
	Convey("Given a nu1pretain EA with mu > 1", t, func() {
		e := newEA(Nu1PRetain, 3, 6)
		ctx := context.Background()
		So(e.Init(ctx), ShouldBeNil)

		Convey("survivors always number mu+lambda, even across many cycles", func() {
			for i := uint64(0); i < 5; i++ {
				_, err := e.CycleLogic(ctx, i)
				So(err, ShouldBeNil)
				So(e.Pop.Len(), ShouldEqual, e.Mu+e.Lambda)
			}
		})
	})
}

func TestParetoSelectFlagsFrontAndRespectsMu(t *testing.T) {
	Convey("Given a pool of multi-criterion candidates", t, func() {
		e := &EA{Mu: 2}
		mk := func(p, s float64) *candidate.Candidate {
			c := newSeedParent(0)
			c.Traits = candidate.NewEATraits()
			c.Primary = candidate.FitnessValue{Transformed: p}
			c.Secondary = []candidate.FitnessValue{{Transformed: s}}
			return c
		}
		parents := []*candidate.Candidate{mk(1, 4), mk(3, 2)}
		children := []*candidate.Candidate{mk(2, 3), mk(5, 5), mk(0.5, 4.5)}

		Convey("selection returns exactly Mu survivors with the front flagged", func() {
			survivors := e.paretoSelect(parents, children)
			So(survivors, ShouldHaveLength, 2)
			anyFlagged := false
			for _, c := range append(parents, children...) {
				if c.Traits.EA.IsOnParetoFront {
					anyFlagged = true
				}
			}
			So(anyFlagged, ShouldBeTrue)
		})
	})
}
