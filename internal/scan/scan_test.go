package scan

import (
	"context"
	"math/rand"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/niceyeti/genevo/internal/candidate"
	"github.com/niceyeti/genevo/internal/executor"
	"github.com/niceyeti/genevo/internal/param"
)

type rng struct{ *rand.Rand }

func parabola(p param.Node, reg candidate.ResultRegister) (float64, error) {
	sum := 0.0
	for _, v := range param.StreamlineFloat64(p) {
		sum += v * v
	}
	return sum, nil
}

func TestParseGridSpec(t *testing.T) {
	Convey("Given a two-dimension grid spec string", t, func() {
		spec, err := Parse("d(0,-5,5,11), d(1,-5,5,11)")

		Convey("it parses into two double dims with 11 steps each", func() {
			So(err, ShouldBeNil)
			So(spec.Mode, ShouldEqual, Grid)
			So(spec.Dims, ShouldHaveLength, 2)
			So(spec.Dims[0].Steps, ShouldEqual, 11)
			So(spec.Dims[1].Min, ShouldEqual, -5)
		})
	})
}

func TestParseSampleSpec(t *testing.T) {
	Convey("Given a sample spec string", t, func() {
		spec, err := Parse("s(50)")

		Convey("it parses into sample mode with count 50", func() {
			So(err, ShouldBeNil)
			So(spec.Mode, ShouldEqual, Sample)
			So(spec.SampleCount, ShouldEqual, 50)
		})
	})
}

func TestGridScanExhaustsExactly121Evaluations(t *testing.T) {
	Convey("Given a grid scan over two 11-step dims centered on the optimum", t, func() {
		spec, err := Parse("d(0,-5,5,11), d(1,-5,5,11)")
		So(err, ShouldBeNil)
		r := rng{rand.New(rand.NewSource(1))}
		s := New(*spec, executor.Serial{}, r, parabola, false)
		ctx := context.Background()
		So(s.Init(ctx), ShouldBeNil)

		Convey("it halts after exactly 121 evaluations with best fitness 0 at (0,0)", func() {
			n := 0
			for !s.CustomHalt() {
				_, err := s.CycleLogic(ctx, uint64(n))
				So(err, ShouldBeNil)
				n++
			}
			So(n, ShouldEqual, 121)
			So(s.Best().Primary.Transformed, ShouldEqual, 0)
		})
	})
}
