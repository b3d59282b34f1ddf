package main

import (
	"fmt"
	"sync"

	"github.com/niceyeti/genevo/internal/candidate"
	"github.com/niceyeti/genevo/internal/checkpoint"
	"github.com/niceyeti/genevo/internal/ea"
	"github.com/niceyeti/genevo/internal/engine"
	"github.com/niceyeti/genevo/internal/graddescent"
	"github.com/niceyeti/genevo/internal/population"
	"github.com/niceyeti/genevo/internal/registry"
	"github.com/niceyeti/genevo/internal/scan"
	"github.com/niceyeti/genevo/internal/swarm"
)

// checkpointStores holds the *checkpoint.Store each constructor builds
// for its own population, keyed by instance name, since
// registry.Constructor only returns an engine.Algorithm and runApp
// still needs the store to wire into engine.Engine.Checkpointer.
var (
	checkpointStoresMu sync.Mutex
	checkpointStores    = map[string]*checkpoint.Store{}
)

func registerAlgorithms() {
	reg := registry.Default()
	reg.Register("ea", newEAAlgorithm)
	reg.Register("swarm", newSwarmAlgorithm)
	reg.Register("scan", newScanAlgorithm)
	reg.Register("gd", newGDAlgorithm)
}

func parseSelectionMode(s string) ea.SelectionMode {
	switch s {
	case "comma":
		return ea.Comma
	case "nu1pretain":
		return ea.Nu1PRetain
	default:
		return ea.Plus
	}
}

func newEAAlgorithm(raw interface{}) (engine.Algorithm, error) {
	cfg, ok := raw.(*EAConfig)
	if !ok {
		return nil, fmt.Errorf("optimize: ea constructor: unexpected config type %T", raw)
	}
	fitness, err := resolveFitness(cfg.ProblemConfig)
	if err != nil {
		return nil, err
	}
	rng := newRNG(cfg.Seed)

	mu := cfg.NParents
	if mu < 1 {
		mu = 1
	}
	lambda := cfg.Size - mu
	if lambda < 0 {
		lambda = 0
	}

	pop := population.New(mu + lambda)
	root := buildParamRoot(cfg.ProblemConfig, cfg.AdaptorConfig)
	seed := candidate.New(root, cfg.Maximize, worstCaseFor(cfg.Maximize))
	seed.Traits = candidate.NewEATraits()
	seed.RandomInit(rng)
	pop.Members = append(pop.Members, seed)

	isParent := func(c *candidate.Candidate) bool { return c.Traits.EA.ParentCounter > 0 }
	exec, err := buildExecutor(appCtx, cfg.BrokerConfig, "ea", rng, fitness, isParent)
	if err != nil {
		return nil, err
	}

	alg := ea.New(mu, lambda, parseSelectionMode(cfg.SortingScheme), pop, exec, rng, fitness)
	alg.ParetoMode = cfg.ParetoMode

	recordCheckpointStore("ea", cfg.CheckpointDirectory, pop)
	return alg, nil
}

func newSwarmAlgorithm(raw interface{}) (engine.Algorithm, error) {
	cfg, ok := raw.(*SwarmConfig)
	if !ok {
		return nil, fmt.Errorf("optimize: swarm constructor: unexpected config type %T", raw)
	}
	fitness, err := resolveFitness(cfg.ProblemConfig)
	if err != nil {
		return nil, err
	}
	rng := newRNG(cfg.Seed)

	sizes := cfg.NeighborhoodSizes
	if len(sizes) == 0 {
		sizes = []int{8}
	}
	total := 0
	for _, n := range sizes {
		total += n
	}

	pop := population.New(total)
	for i := 0; i < total; i++ {
		root := buildParamRoot(cfg.ProblemConfig, cfg.AdaptorConfig)
		c := candidate.New(root, cfg.Maximize, worstCaseFor(cfg.Maximize))
		c.Traits.Kind = candidate.KindSwarm
		c.Traits.Swarm.CLocal = midpoint(cfg.CLocal)
		c.Traits.Swarm.CGlobal = midpoint(cfg.CGlobal)
		c.Traits.Swarm.CDelta = midpoint(cfg.CDelta)
		c.Traits.Swarm.CLocalRange = cfg.CLocal
		c.Traits.Swarm.CGlobalRange = cfg.CGlobal
		c.Traits.Swarm.CDeltaRange = cfg.CDelta
		c.Traits.Swarm.ResamplePerIteration = cfg.ResamplePerIteration
		c.RandomInit(rng)
		pop.Members = append(pop.Members, c)
	}

	isParent := func(*candidate.Candidate) bool { return false }
	exec, err := buildExecutor(appCtx, cfg.BrokerConfig, "swarm", rng, fitness, isParent)
	if err != nil {
		return nil, err
	}

	alg := swarm.New(sizes, pop, exec, rng, fitness)
	recordCheckpointStore("swarm", cfg.CheckpointDirectory, pop)
	return alg, nil
}

func midpoint(r [2]float64) float64 { return (r[0] + r[1]) / 2 }

func newScanAlgorithm(raw interface{}) (engine.Algorithm, error) {
	cfg, ok := raw.(*ScanConfig)
	if !ok {
		return nil, fmt.Errorf("optimize: scan constructor: unexpected config type %T", raw)
	}
	fitness, err := resolveFitness(cfg.ProblemConfig)
	if err != nil {
		return nil, err
	}
	specSource := cfg.ParameterSpec
	if *parameterSpecFlag != "" {
		specSource = *parameterSpecFlag
	}
	spec, err := scan.Parse(specSource)
	if err != nil {
		return nil, err
	}
	rng := newRNG(cfg.Seed)

	exec, err := buildExecutor(appCtx, cfg.BrokerConfig, "scan", rng, fitness, func(*candidate.Candidate) bool { return false })
	if err != nil {
		return nil, err
	}

	return scan.New(*spec, exec, rng, fitness, cfg.Maximize), nil
}

func newGDAlgorithm(raw interface{}) (engine.Algorithm, error) {
	cfg, ok := raw.(*GDConfig)
	if !ok {
		return nil, fmt.Errorf("optimize: gd constructor: unexpected config type %T", raw)
	}
	fitness, err := resolveFitness(cfg.ProblemConfig)
	if err != nil {
		return nil, err
	}
	rng := newRNG(cfg.Seed)

	root := buildParamRoot(cfg.ProblemConfig, AdaptorConfig{})
	start := candidate.New(root, cfg.Maximize, worstCaseFor(cfg.Maximize))
	start.RandomInit(rng)

	exec, err := buildExecutor(appCtx, cfg.BrokerConfig, "gd", rng, fitness, func(*candidate.Candidate) bool { return false })
	if err != nil {
		return nil, err
	}

	stepSize := cfg.StepSize
	if stepSize <= 0 {
		stepSize = 0.1
	}
	eps := cfg.Eps
	if eps <= 0 {
		eps = 1e-4
	}

	return graddescent.New(start, stepSize, eps, exec, rng, fitness, cfg.Maximize), nil
}

func recordCheckpointStore(name, dir string, pop *population.Population) {
	if dir == "" {
		return
	}
	checkpointStoresMu.Lock()
	defer checkpointStoresMu.Unlock()
	checkpointStores[name] = checkpoint.NewStore(dir, checkpoint.Binary, pop)
}

func checkpointStoreFor(name string) *checkpoint.Store {
	checkpointStoresMu.Lock()
	defer checkpointStoresMu.Unlock()
	return checkpointStores[name]
}
