package broker

import (
	"context"
	"math/rand"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/niceyeti/genevo/internal/candidate"
	"github.com/niceyeti/genevo/internal/param"
)

func newCandidate() *candidate.Candidate {
	root := param.NewTree("root")
	root.Append(param.NewLeaf("x", 0.0, param.NewGaussAdaptor[float64](0.1)))
	return candidate.New(root, false, 1e300)
}

// worker simulates a worker pool goroutine: it pops from outbound and
// pushes the item straight back to inbound (no evaluation), stamped with the
// iteration it actually processed (which may lag the broker's current
// iteration, simulating a straggler).
func worker(ctx context.Context, pair *BufferPair, iterationOverride *uint64) {
	for {
		select {
		case item, ok := <-pair.Outbound:
			if !ok {
				return
			}
			if iterationOverride != nil {
				item.Iteration = *iterationOverride
			}
			_ = pair.PushInbound(ctx, item)
		case <-ctx.Done():
			return
		}
	}
}

func TestRegistryEnrollAndDrop(t *testing.T) {
	Convey("Given an empty registry", t, func() {
		r := NewRegistry()
		pair := NewBufferPair("alg-1", 4)

		Convey("enrolling makes it retrievable", func() {
			r.Enroll(pair)
			got, ok := r.Get("alg-1")
			So(ok, ShouldBeTrue)
			So(got, ShouldEqual, pair)
			So(r.All(), ShouldHaveLength, 1)
		})

		Convey("dropping removes it", func() {
			r.Enroll(pair)
			r.Drop("alg-1")
			_, ok := r.Get("alg-1")
			So(ok, ShouldBeFalse)
		})
	})
}

func TestReceiveHappyPath(t *testing.T) {
	Convey("Given a broker with a responsive worker", t, func() {
		pair := NewBufferPair("alg-1", 8)
		b := New(pair)
		b.FirstTimeOut = time.Second
		b.LoopTime = time.Millisecond

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go worker(ctx, pair, nil)

		items := []*candidate.Candidate{newCandidate(), newCandidate(), newCandidate()}
		So(b.Submit(ctx, items, 1, CommandAdaptThenEvaluate), ShouldBeNil)

		Convey("Receive collects all of them promptly", func() {
			got, stats, err := b.Receive(ctx, 1, 3, func(*candidate.Candidate) bool { return false })
			So(err, ShouldBeNil)
			So(got, ShouldHaveLength, 3)
			So(stats.Completed, ShouldBeTrue)
			So(stats.Stragglers, ShouldEqual, 0)
		})
	})
}

func TestReceiveDropsLateParents(t *testing.T) {
	Convey("Given a worker that returns everything stamped as iteration 0 (stale)", t, func() {
		pair := NewBufferPair("alg-1", 8)
		b := New(pair)
		b.FirstTimeOut = time.Second
		b.LoopTime = time.Millisecond
		b.MaxWaitFactor = 0

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		stale := uint64(0)
		go worker(ctx, pair, &stale)

		items := []*candidate.Candidate{newCandidate()}
		items[0].Traits.EA.ParentID = 0 // not read: the isParent below treats every item as a parent
		So(b.Submit(ctx, items, 1, CommandAdaptThenEvaluate), ShouldBeNil)

		Convey("a late parent is discarded, not accepted", func() {
			got, _, err := b.Receive(ctx, 1, 1, func(c *candidate.Candidate) bool { return true })
			So(err, ShouldBeNil)
			So(got, ShouldHaveLength, 0)
		})
	})
}

func TestReceiveAcceptsLateChildAsStraggler(t *testing.T) {
	Convey("Given a worker that returns a child stamped stale", t, func() {
		pair := NewBufferPair("alg-1", 8)
		b := New(pair)
		b.FirstTimeOut = time.Second
		b.LoopTime = time.Millisecond

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		stale := uint64(0)
		go worker(ctx, pair, &stale)

		items := []*candidate.Candidate{newCandidate()}
		So(b.Submit(ctx, items, 1, CommandAdaptThenEvaluate), ShouldBeNil)

		Convey("it is accepted and restamped to the current iteration", func() {
			got, stats, err := b.Receive(ctx, 1, 1, func(*candidate.Candidate) bool { return false })
			So(err, ShouldBeNil)
			So(got, ShouldHaveLength, 1)
			So(stats.Stragglers, ShouldEqual, 1)
		})
	})
}

func TestReceiveFirstTimeoutFails(t *testing.T) {
	Convey("Given a broker with no worker draining its outbound queue", t, func() {
		pair := NewBufferPair("alg-1", 8)
		b := New(pair)
		b.FirstTimeOut = 10 * time.Millisecond
		b.LoopTime = time.Millisecond

		ctx := context.Background()

		Convey("Receive fails with a descriptive error", func() {
			_, _, err := b.Receive(ctx, 1, 1, func(*candidate.Candidate) bool { return false })
			So(err, ShouldNotBeNil)
		})
	})
}

func TestAdaptWaitFactor(t *testing.T) {
	Convey("Given a broker with room to adapt", t, func() {
		pair := NewBufferPair("alg-1", 1)
		b := New(pair)
		b.WaitFactor = 5
		b.MaxWaitFactor = 10

		Convey("many stragglers and an incomplete cycle raise WaitFactor", func() {
			b.adaptWaitFactor(false, 3, 10, time.Millisecond, 100*time.Millisecond)
			So(b.WaitFactor, ShouldEqual, 6)
		})

		Convey("finishing well under t_max lowers WaitFactor", func() {
			b.adaptWaitFactor(true, 0, 10, time.Millisecond, 100*time.Millisecond)
			So(b.WaitFactor, ShouldEqual, 4)
		})

		Convey("adaptation is a no-op once MaxWaitFactor caps out", func() {
			b.MaxWaitFactor = 5
			b.adaptWaitFactor(false, 9, 10, time.Millisecond, 100*time.Millisecond)
			So(b.WaitFactor, ShouldEqual, 5)
		})
	})
}

func TestDrainDiscardsOutstandingOutbound(t *testing.T) {
	Convey("Given a broker with submitted but never-drained work", t, func() {
		pair := NewBufferPair("alg-1", 8)
		b := New(pair)
		ctx := context.Background()
		items := []*candidate.Candidate{newCandidate(), newCandidate()}
		So(b.Submit(ctx, items, 1, CommandAdaptThenEvaluate), ShouldBeNil)

		Convey("Drain discards it within the timeout", func() {
			n := b.Drain(50 * time.Millisecond)
			So(n, ShouldEqual, 2)
		})
	})
}

func init() {
	rand.Seed(1)
}
