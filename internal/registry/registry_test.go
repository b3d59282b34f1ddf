package registry

import (
	"context"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/niceyeti/genevo/internal/engine"
)

type stubAlgorithm struct{}

func (stubAlgorithm) Init(ctx context.Context) error { return nil }
func (stubAlgorithm) CycleLogic(ctx context.Context, iteration uint64) (engine.CycleResult, error) {
	return engine.CycleResult{}, nil
}
func (stubAlgorithm) PostEvaluationWork(ctx context.Context, iteration uint64, result engine.CycleResult) error {
	return nil
}
func (stubAlgorithm) CustomHalt() bool             { return true }
func (stubAlgorithm) Finalize(ctx context.Context) error { return nil }
func (stubAlgorithm) Name() string                 { return "stub" }

func TestRegistryBuildUnknownMnemonic(t *testing.T) {
	Convey("Given an empty registry", t, func() {
		r := New()

		Convey("Build fails for an unregistered mnemonic", func() {
			_, err := r.Build("ea", nil)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestRegistryRegisterAndBuild(t *testing.T) {
	Convey("Given a registry with one mnemonic registered", t, func() {
		r := New()
		r.Register("stub", func(cfg interface{}) (engine.Algorithm, error) {
			return stubAlgorithm{}, nil
		})

		Convey("Build returns the constructed algorithm", func() {
			alg, err := r.Build("stub", nil)
			So(err, ShouldBeNil)
			So(alg.Name(), ShouldEqual, "stub")
			So(r.Mnemonics(), ShouldContain, "stub")
		})
	})
}
