package executor

import (
	"context"
	"math/rand"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/niceyeti/genevo/internal/broker"
	"github.com/niceyeti/genevo/internal/candidate"
	"github.com/niceyeti/genevo/internal/param"
)

type rng struct{ *rand.Rand }

func newItems(n int) []*candidate.Candidate {
	items := make([]*candidate.Candidate, n)
	for i := range items {
		root := param.NewTree("root")
		root.Append(param.NewLeaf("x", float64(i), param.NewGaussAdaptor[float64](0.1)))
		items[i] = candidate.New(root, false, 1e300)
	}
	return items
}

func sumOfSquares(p param.Node, reg candidate.ResultRegister) (float64, error) {
	sum := 0.0
	for _, v := range param.StreamlineFloat64(p) {
		sum += v * v
	}
	return sum, nil
}

func TestSerialExecute(t *testing.T) {
	Convey("Given a batch of unevaluated candidates", t, func() {
		items := newItems(5)
		r := rng{rand.New(rand.NewSource(1))}

		Convey("Serial evaluates every one in place", func() {
			err := Serial{}.Execute(context.Background(), items, sumOfSquares, r, 0, false)
			So(err, ShouldBeNil)
			for _, c := range items {
				So(c.IsDirty(), ShouldBeFalse)
				_, ferr := c.Fitness()
				So(ferr, ShouldBeNil)
			}
		})
	})
}

func TestMultiThreadedExecute(t *testing.T) {
	Convey("Given a batch of unevaluated candidates and 4 workers", t, func() {
		items := newItems(20)
		r := rng{rand.New(rand.NewSource(2))}

		Convey("MultiThreaded evaluates every one", func() {
			err := MultiThreaded{Workers: 4}.Execute(context.Background(), items, sumOfSquares, r, 0, false)
			So(err, ShouldBeNil)
			for _, c := range items {
				So(c.IsDirty(), ShouldBeFalse)
			}
		})
	})
}

func TestBrokerExecuteRecoversFromPartialTimeout(t *testing.T) {
	Convey("Given a broker whose worker loses one of four submitted items", t, func() {
		pair := broker.NewBufferPair("executor-broker-test", 8)
		b := broker.New(pair)
		b.FirstTimeOut = 200 * time.Millisecond
		b.LoopTime = 10 * time.Millisecond
		b.WaitFactor = 3

		items := newItems(4)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		go func() {
			dropped := false
			for i := 0; i < len(items); i++ {
				select {
				case item, ok := <-pair.Outbound:
					if !ok {
						return
					}
					if !dropped {
						// Simulate one evaluation that never comes back.
						dropped = true
						continue
					}
					_ = item.Candidate.Evaluate(sumOfSquares)
					select {
					case pair.Inbound <- item:
					case <-ctx.Done():
						return
					}
				case <-ctx.Done():
					return
				}
			}
		}()

		exec := Broker{B: b}
		r := rng{rand.New(rand.NewSource(3))}

		Convey("Execute recovers via substitution instead of failing", func() {
			err := exec.Execute(ctx, items, sumOfSquares, r, 0, false)
			So(err, ShouldBeNil)
			So(len(items), ShouldEqual, 4)

			substitutes := 0
			for _, c := range items {
				if c.IsSubstitute {
					substitutes++
				}
				So(c.IsDirty(), ShouldBeFalse)
			}
			So(substitutes, ShouldBeGreaterThan, 0)
		})
	})
}
