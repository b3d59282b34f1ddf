package checkpoint

import (
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/niceyeti/genevo/internal/candidate"
	"github.com/niceyeti/genevo/internal/param"
	"github.com/niceyeti/genevo/internal/population"
)

func newCandidate(x, y float64) *candidate.Candidate {
	tree := param.NewTree("root")
	tree.Append(param.NewLeaf("x", x, param.NewGaussAdaptor[float64](0.1)))
	tree.Append(param.NewLeaf("y", y, param.NewGaussAdaptor[float64](0.1)))
	c := candidate.New(tree, false, 1e308)
	_ = c.Evaluate(func(p param.Node, reg candidate.ResultRegister) (float64, error) {
		vs := param.StreamlineFloat64(p)
		return vs[0]*vs[0] + vs[1]*vs[1], nil
	})
	return c
}

func newPopulation() *population.Population {
	pop := population.New(2)
	pop.Members = []*candidate.Candidate{newCandidate(1, 2), newCandidate(-3, 4)}
	return pop
}

// freshLike builds a population with the same tree shape as src but
// zero values (evaluated at zero), simulating a process restart where
// the algorithm has been re-initialized.
func freshLike(src *population.Population) *population.Population {
	pop := population.New(src.DefaultSize)
	for range src.Members {
		pop.Members = append(pop.Members, newCandidate(0, 0))
	}
	return pop
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	Convey("Given a candidate with known values and state", t, func() {
		c := newCandidate(3, -4)

		Convey("Snapshot then Restore into a same-shaped candidate reproduces it", func() {
			snap := Snapshot(c)
			dst := newCandidate(0, 0)
			So(Restore(dst, snap), ShouldBeNil)
			So(dst.Equals(c), ShouldBeTrue)
		})
	})
}

func TestGobEncodeDecodeRoundTrip(t *testing.T) {
	Convey("Given a population snapshot", t, func() {
		pop := newPopulation()
		snap := SnapshotPopulation(pop, 42, 5.0)

		Convey("gob encode/decode reproduces it exactly", func() {
			data, err := EncodeGob(snap)
			So(err, ShouldBeNil)

			decoded, err := DecodeGob(data)
			So(err, ShouldBeNil)
			So(decoded.Iteration, ShouldEqual, uint64(42))
			So(decoded.BestTransformed, ShouldEqual, 5.0)
			So(len(decoded.Members), ShouldEqual, 2)

			dst := freshLike(pop)
			So(RestorePopulation(dst, decoded), ShouldBeNil)
			for i := range dst.Members {
				So(dst.Members[i].Equals(pop.Members[i]), ShouldBeTrue)
			}
		})
	})
}

func TestYAMLEncodeDecodeRoundTrip(t *testing.T) {
	Convey("Given a population snapshot", t, func() {
		pop := newPopulation()
		snap := SnapshotPopulation(pop, 7, -1.5)

		Convey("yaml encode/decode reproduces it exactly", func() {
			data, err := EncodeYAML(snap)
			So(err, ShouldBeNil)

			decoded, err := DecodeYAML(data)
			So(err, ShouldBeNil)

			dst := freshLike(pop)
			So(RestorePopulation(dst, decoded), ShouldBeNil)
			for i := range dst.Members {
				So(dst.Members[i].Equals(pop.Members[i]), ShouldBeTrue)
			}
		})
	})
}

func TestStoreSaveWritesExpectedFilename(t *testing.T) {
	Convey("Given a Store writing binary checkpoints", t, func() {
		dir := t.TempDir()
		pop := newPopulation()
		store := NewStore(dir, Binary, pop)

		Convey("Save writes <iteration>_<bestFitness>_<baseName>.gob", func() {
			err := store.Save(10, 3.25, "run1")
			So(err, ShouldBeNil)

			path := filepath.Join(dir, "10_3.25_run1.gob")
			loaded, err := Load(path)
			So(err, ShouldBeNil)
			So(loaded.Iteration, ShouldEqual, uint64(10))
			So(loaded.BestTransformed, ShouldEqual, 3.25)
		})
	})
}

func TestStoreLoadIntoRestoresPopulation(t *testing.T) {
	Convey("Given a saved text checkpoint", t, func() {
		dir := t.TempDir()
		pop := newPopulation()
		store := NewStore(dir, Text, pop)
		So(store.Save(3, 0.5, "run2"), ShouldBeNil)

		Convey("LoadInto restores a fresh same-shaped population", func() {
			dst := freshLike(pop)
			dstStore := NewStore(dir, Text, dst)
			path := filepath.Join(dir, "3_0.5_run2.yaml")
			So(dstStore.LoadInto(path), ShouldBeNil)
			for i := range dst.Members {
				So(dst.Members[i].Equals(pop.Members[i]), ShouldBeTrue)
			}
		})
	})
}

func TestRestorePopulationRejectsShapeMismatch(t *testing.T) {
	Convey("Given a snapshot with a different member count", t, func() {
		pop := newPopulation()
		snap := SnapshotPopulation(pop, 1, 1)
		short := population.New(1)
		short.Members = []*candidate.Candidate{newCandidate(0, 0)}

		Convey("RestorePopulation fails loudly instead of silently truncating", func() {
			err := RestorePopulation(short, snap)
			So(err, ShouldNotBeNil)
		})
	})
}
