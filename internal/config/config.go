// Package config loads algorithm configuration from a YAML file using
// the same two-stage viper-then-yaml.v3 pattern the teacher's
// reinforcement.FromYaml uses: an outer `kind`/`def` envelope is read
// with viper, then `def` is decoded into the caller's algorithm-specific
// struct with yaml.v3, read straight from the file so its camelCase keys
// survive (viper lower-cases every key it loads).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// OuterConfig is the envelope every config file shares: `kind` selects
// the algorithm mnemonic (matched against internal/registry), `def`
// holds the algorithm-specific body.
type OuterConfig struct {
	Kind string      `mapstructure:"kind"`
	Def  interface{} `mapstructure:"def"`
}

// EngineConfig is the algorithm-agnostic portion of `def` every
// algorithm config embeds: halt budgets and checkpoint scheduling
// (spec §6's configuration-file concretization).
type EngineConfig struct {
	MaxIteration      uint64  `yaml:"maxIteration"`
	MaxStallIteration uint64  `yaml:"maxStallIteration"`
	MaxSeconds        float64 `yaml:"maxSeconds"`

	CheckpointInterval  uint64 `yaml:"checkpointInterval"`
	CheckpointDirectory string `yaml:"checkpointDirectory"`
	CheckpointBaseName  string `yaml:"checkpointBaseName"`
}

// Deadline turns MaxSeconds into a time.Duration, 0 meaning no
// deadline, matching the teacher's WithTrainingDeadline.
func (e EngineConfig) Deadline() time.Duration {
	if e.MaxSeconds <= 0 {
		return 0
	}
	return time.Duration(e.MaxSeconds * float64(time.Second))
}

// LoadOuter reads the outer kind/def envelope from a YAML file.
func LoadOuter(path string) (*OuterConfig, error) {
	vp := viper.New()
	vp.SetConfigFile(path)
	vp.SetConfigType("yaml")
	vp.AddConfigPath(filepath.Dir(path))

	if err := vp.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	outer := &OuterConfig{}
	if err := vp.Unmarshal(outer); err != nil {
		return nil, fmt.Errorf("config: unmarshal envelope: %w", err)
	}
	return outer, nil
}

// LoadInto loads path's envelope for its `kind` and decodes the file's
// `def` body into dst, which must be a pointer to the caller's algorithm-specific
// config struct (embedding EngineConfig where halt/checkpoint fields
// are needed).
func LoadInto(path string, dst interface{}) (kind string, err error) {
	outer, err := LoadOuter(path)
	if err != nil {
		return "", err
	}

	// viper lower-cases every key it reads, which would hide def's
	// camelCase keys from dst's yaml tags, so def is decoded from the file.
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("config: read %s: %w", path, err)
	}
	var raw struct {
		Def yaml.Node `yaml:"def"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return "", fmt.Errorf("config: read def: %w", err)
	}
	if err := raw.Def.Decode(dst); err != nil {
		return "", fmt.Errorf("config: unmarshal def into %T: %w", dst, err)
	}
	return outer.Kind, nil
}
