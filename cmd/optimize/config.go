package main

import "github.com/niceyeti/genevo/internal/config"

// AdaptorConfig is the Gaussian/bi-Gaussian adaption tuning block every
// numeric-leaf algorithm config embeds. Zero-valued fields fall back to
// param.NewGaussAdaptor's own defaults; only the fields a config file
// actually sets override them.
type AdaptorConfig struct {
	AdProb      float64 `yaml:"adProb"`
	AdaptAdProb float64 `yaml:"adaptAdProb"`
	MinAdProb   float64 `yaml:"minAdProb"`
	MaxAdProb   float64 `yaml:"maxAdProb"`

	Sigma1      float64 `yaml:"sigma1"`
	SigmaSigma1 float64 `yaml:"sigmaSigma1"`
	MinSigma1   float64 `yaml:"minSigma1"`
	MaxSigma1   float64 `yaml:"maxSigma1"`

	UseBiGaussian bool    `yaml:"useBiGaussian"`
	Sigma2        float64 `yaml:"sigma2"`
	Delta         float64 `yaml:"delta"`
	SigmaDelta    float64 `yaml:"sigmaDelta"`
	MinDelta      float64 `yaml:"minDelta"`
	MaxDelta      float64 `yaml:"maxDelta"`
}

// ProblemConfig names the demo fitness function a run evaluates against
// and the shape of its parameter tree.
type ProblemConfig struct {
	Problem  string  `yaml:"problem"`
	ParDim   int     `yaml:"parDim"`
	MinVar   float64 `yaml:"minVar"`
	MaxVar   float64 `yaml:"maxVar"`
	Offset   float64 `yaml:"offset"`
	Maximize bool    `yaml:"maximize"`
	Seed     int64   `yaml:"seed"`
}

// BrokerConfig selects and tunes one of the three execution strategies
// internal/executor implements.
type BrokerConfig struct {
	Executor       string  `yaml:"executor"` // "serial" (default), "multithreaded", "broker"
	Workers        int     `yaml:"workers"`
	BufferCapacity int     `yaml:"bufferCapacity"`
	WaitFactor     uint32  `yaml:"waitFactor"`
	MaxWaitFactor  uint32  `yaml:"maxWaitFactor"`
	FirstTimeOut   float64 `yaml:"firstTimeOut"` // seconds
	LoopTime       float64 `yaml:"loopTime"`     // milliseconds
}

// MonitorConfig exposes a running instance's progress over internal/monitor.
type MonitorConfig struct {
	MonitorAddr string `yaml:"monitorAddr"`
}

// EAConfig is the `def` body of a `kind: ea` configuration file.
type EAConfig struct {
	config.EngineConfig `yaml:",inline"`
	ProblemConfig        `yaml:",inline"`
	AdaptorConfig        `yaml:",inline"`
	BrokerConfig         `yaml:",inline"`
	MonitorConfig        `yaml:",inline"`

	Size          int    `yaml:"size"`
	NParents      int    `yaml:"nParents"`
	SortingScheme string `yaml:"sortingScheme"` // "plus", "comma", "nu1pretain"
	ParetoMode    bool   `yaml:"paretoMode"`
}

// SwarmConfig is the `def` body of a `kind: swarm` configuration file.
type SwarmConfig struct {
	config.EngineConfig `yaml:",inline"`
	ProblemConfig        `yaml:",inline"`
	AdaptorConfig        `yaml:",inline"`
	BrokerConfig         `yaml:",inline"`
	MonitorConfig        `yaml:",inline"`

	NeighborhoodSizes []int `yaml:"neighborhoodSizes"`

	CLocal               [2]float64 `yaml:"cLocal"`
	CGlobal              [2]float64 `yaml:"cGlobal"`
	CDelta               [2]float64 `yaml:"cDelta"`
	ResamplePerIteration bool       `yaml:"resamplePerIteration"`
}

// ScanConfig is the `def` body of a `kind: scan` configuration file.
type ScanConfig struct {
	config.EngineConfig `yaml:",inline"`
	ProblemConfig        `yaml:",inline"`
	BrokerConfig         `yaml:",inline"`
	MonitorConfig        `yaml:",inline"`

	ParameterSpec string `yaml:"parameterSpec"`
}

// GDConfig is the `def` body of a `kind: gd` configuration file.
type GDConfig struct {
	config.EngineConfig `yaml:",inline"`
	ProblemConfig        `yaml:",inline"`
	BrokerConfig         `yaml:",inline"`
	MonitorConfig        `yaml:",inline"`

	StepSize float64 `yaml:"stepSize"`
	Eps      float64 `yaml:"eps"`
}
