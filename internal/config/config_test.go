package config

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

type eaConfig struct {
	EngineConfig `yaml:",inline"`
	Mu           int     `yaml:"mu"`
	Lambda       int     `yaml:"lambda"`
	Mode         string  `yaml:"mode"`
	Sigma        float64 `yaml:"sigma"`
}

func writeTempConfig(t *testing.T, contents string) string {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing temp config: %v", err)
	}
	return path
}

const sampleEAYaml = `
kind: ea
def:
  maxIteration: 500
  maxStallIteration: 50
  checkpointInterval: 20
  checkpointDirectory: /tmp/checkpoints
  checkpointBaseName: run1
  mu: 5
  lambda: 20
  mode: plus
  sigma: 0.3
`

func TestLoadIntoEAConfig(t *testing.T) {
	Convey("Given a YAML file with an ea envelope", t, func() {
		path := writeTempConfig(t, sampleEAYaml)

		Convey("LoadInto populates the algorithm-specific struct and returns the kind", func() {
			var cfg eaConfig
			kind, err := LoadInto(path, &cfg)
			So(err, ShouldBeNil)
			So(kind, ShouldEqual, "ea")
			So(cfg.Mu, ShouldEqual, 5)
			So(cfg.Lambda, ShouldEqual, 20)
			So(cfg.Mode, ShouldEqual, "plus")
			So(cfg.MaxIteration, ShouldEqual, 500)
			So(cfg.CheckpointBaseName, ShouldEqual, "run1")
		})
	})
}

func TestDeadlineZeroWhenUnset(t *testing.T) {
	Convey("Given an EngineConfig with no MaxSeconds", t, func() {
		e := EngineConfig{}

		Convey("Deadline reports zero", func() {
			So(e.Deadline(), ShouldEqual, 0)
		})
	})
}
