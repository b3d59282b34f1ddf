package param

import (
	"math/rand"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

type rng struct{ *rand.Rand }

func newRNG(seed int64) RNG { return rng{rand.New(rand.NewSource(seed))} }

func buildTree() *Tree {
	root := NewTree("root")
	root.Append(
		NewConstrainedLeaf("x0", 1.0, -10.0, 10.0, NewGaussAdaptor[float64](0.5)),
		NewConstrainedLeaf("x1", 2.0, -10.0, 10.0, NewGaussAdaptor[float64](0.5)),
	)
	sub := NewTree("sub")
	sub.Append(NewLeaf("flag", true, NewFlipAdaptor()))
	root.Append(sub)
	return root
}

func TestStreamlineAssignRoundTrip(t *testing.T) {
	Convey("Given a tree with nested float64 and bool leaves", t, func() {
		root := buildTree()

		Convey("streamline then assign is the identity on active parameters", func() {
			values := StreamlineFloat64(root)
			So(values, ShouldResemble, []float64{1.0, 2.0})

			err := AssignFloat64(root, []float64{5.0, -5.0})
			So(err, ShouldBeNil)
			So(StreamlineFloat64(root), ShouldResemble, []float64{5.0, -5.0})
		})

		Convey("assign clamps constrained leaves to their declared range", func() {
			err := AssignFloat64(root, []float64{999.0, -999.0})
			So(err, ShouldBeNil)
			So(StreamlineFloat64(root), ShouldResemble, []float64{10.0, -10.0})
		})

		Convey("assign with too few values reports ErrOutOfValues", func() {
			err := AssignFloat64(root, []float64{1.0})
			So(err, ShouldEqual, ErrOutOfValues)
		})

		Convey("bool leaves in sub-trees streamline independently", func() {
			So(StreamlineBool(root), ShouldResemble, []bool{true})
		})

		Convey("deactivating a sub-tree removes its leaves from streamline", func() {
			sub := root.Children()[2].(*Tree)
			sub.SetActive(false)
			So(StreamlineBool(root), ShouldBeEmpty)
		})
	})
}

func TestAdaptKeepsConstrainedLeavesInRange(t *testing.T) {
	Convey("Given a constrained leaf with an always-adapting Gaussian adaptor", t, func() {
		adaptor := NewGaussAdaptor[float64](50.0)
		adaptor.AlwaysAdapt = true
		leaf := NewConstrainedLeaf("x", 0.0, -1.0, 1.0, adaptor)
		r := newRNG(1)

		Convey("repeated large-sigma adaption never leaves [lower,upper]", func() {
			for i := 0; i < 200; i++ {
				leaf.Adapt(r)
				So(leaf.Value(), ShouldBeBetweenOrEqual, -1.0, 1.0)
			}
		})
	})
}

func TestCloneIsDeep(t *testing.T) {
	Convey("Given a tree and its clone", t, func() {
		root := buildTree()
		clone := root.Clone()

		Convey("mutating the clone does not affect the original", func() {
			err := AssignFloat64(clone, []float64{7, 8})
			So(err, ShouldBeNil)
			So(StreamlineFloat64(root), ShouldResemble, []float64{1.0, 2.0})
			So(StreamlineFloat64(clone), ShouldResemble, []float64{7.0, 8.0})
		})
	})
}
