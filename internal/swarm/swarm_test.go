package swarm

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

func sphere(p param.Node, reg candidate.ResultRegister) (float64, error) {
	sum := 0.0
	for _, v := range param.StreamlineFloat64(p) {
		sum += v * v
	}
	return sum, nil
}

func newParticle(x, y float64) *candidate.Candidate {
	root := param.NewTree("root")
	root.Append(
		param.NewConstrainedLeaf("x", x, -10.0, 10.0, param.NewGaussAdaptor[float64](0.2)),
		param.NewConstrainedLeaf("y", y, -10.0, 10.0, param.NewGaussAdaptor[float64](0.2)),
	)
	c := candidate.New(root, false, 1e300)
	c.Traits.Kind = candidate.KindSwarm
	c.Traits.Swarm.CLocal = 1.0
	c.Traits.Swarm.CGlobal = 1.0
	c.Traits.Swarm.CDelta = 0.01
	return c
}

func newSwarm(sizes []int) *Swarm {
	pop := population.New(0)
	r := rng{rand.New(rand.NewSource(3))}
	total := 0
	for _, n := range sizes {
		total += n
	}
	for i := 0; i < total; i++ {
		pop.Members = append(pop.Members, newParticle(float64(i+1), float64(-i-1)))
	}
	return New(sizes, pop, executor.Serial{}, r, sphere)
}

func TestSwarmInitSeedsLocalAndGlobalBests(t *testing.T) {
	Convey("Given a 2-neighborhood swarm", t, func() {
		s := newSwarm([]int{3, 3})
		ctx := context.Background()

		Convey("Init evaluates every particle and seeds bests", func() {
			So(s.Init(ctx), ShouldBeNil)
			for _, c := range s.Pop.Members {
				So(c.IsDirty(), ShouldBeFalse)
			}
			So(s.GlobalBest(), ShouldNotBeNil)
		})
	})
}

func TestSwarmCycleImprovesOrHoldsGlobalBest(t *testing.T) {
	Convey("Given an initialized swarm", t, func() {
		s := newSwarm([]int{4})
		ctx := context.Background()
		So(s.Init(ctx), ShouldBeNil)
		before := s.GlobalBest().Primary.Transformed

		Convey("a cycle never worsens the global best", func() {
			result, err := s.CycleLogic(ctx, 0)
			So(err, ShouldBeNil)
			So(result.BestTransformed, ShouldBeLessThanOrEqualTo, before)
		})
	})
}

func TestSwarmNeighborhoodRepairOnMissingMembers(t *testing.T) {
	Convey("Given a swarm missing a member from one neighborhood", t, func() {
		s := newSwarm([]int{3, 3})
		ctx := context.Background()
		So(s.Init(ctx), ShouldBeNil)
		s.Pop.Members = s.Pop.Members[:5] // drop one particle from the second group

		Convey("the next cycle refills it by substitution", func() {
			_, err := s.CycleLogic(ctx, 1)
			So(err, ShouldBeNil)
			So(s.Pop.Len(), ShouldEqual, 6)
		})
	})
}
