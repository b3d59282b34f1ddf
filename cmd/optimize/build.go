package main

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"time"

	"github.com/niceyeti/genevo/internal/broker"
	"github.com/niceyeti/genevo/internal/candidate"
	"github.com/niceyeti/genevo/internal/checkpoint"
	cfgmod "github.com/niceyeti/genevo/internal/config"
	"github.com/niceyeti/genevo/internal/engine"
	"github.com/niceyeti/genevo/internal/executor"
	"github.com/niceyeti/genevo/internal/monitor"
	"github.com/niceyeti/genevo/internal/param"
	"github.com/niceyeti/genevo/internal/population"
	"github.com/niceyeti/genevo/internal/problems"
	"github.com/niceyeti/genevo/internal/remote"
)

// newGaussAdaptor builds a GaussAdaptor from a config block, falling
// back to sigma1=1 when the config leaves it unset (0 would otherwise
// produce an adaptor that never perturbs anything).
func newGaussAdaptor[T param.Numeric](cfg AdaptorConfig) *param.GaussAdaptor[T] {
	sigma1 := cfg.Sigma1
	if sigma1 <= 0 {
		sigma1 = 1
	}
	a := param.NewGaussAdaptor[T](sigma1)
	if cfg.AdProb > 0 {
		a.PAd = cfg.AdProb
	}
	a.AdaptAdProb = cfg.AdaptAdProb
	if cfg.MinAdProb > 0 {
		a.MinAdProb = cfg.MinAdProb
	}
	if cfg.MaxAdProb > 0 {
		a.MaxAdProb = cfg.MaxAdProb
	}
	if cfg.SigmaSigma1 > 0 {
		a.SigmaSigma1 = cfg.SigmaSigma1
	}
	if cfg.MinSigma1 > 0 {
		a.MinSigma1 = cfg.MinSigma1
	}
	if cfg.MaxSigma1 > 0 {
		a.MaxSigma1 = cfg.MaxSigma1
	}
	a.UseBiGaussian = cfg.UseBiGaussian
	a.Sigma2 = cfg.Sigma2
	a.Delta = cfg.Delta
	a.SigmaDelta = cfg.SigmaDelta
	if cfg.MinDelta > 0 {
		a.MinDelta = cfg.MinDelta
	}
	if cfg.MaxDelta > 0 {
		a.MaxDelta = cfg.MaxDelta
	}
	return a
}

// buildParamRoot constructs a fresh parameter tree of pc.ParDim
// float64 leaves, each constrained to [MinVar, MaxVar] and mutated by
// a Gaussian adaptor built from ac.
func buildParamRoot(pc ProblemConfig, ac AdaptorConfig) param.Node {
	root := param.NewTree("x")
	for i := 0; i < pc.ParDim; i++ {
		name := fmt.Sprintf("x%d", i)
		leaf := param.NewConstrainedLeaf(name, 0.0, pc.MinVar, pc.MaxVar, newGaussAdaptor[float64](ac))
		root.Append(leaf)
	}
	return root
}

func worstCaseFor(maximize bool) float64 {
	if maximize {
		return -1.0e300
	}
	return 1.0e300
}

func resolveFitness(pc ProblemConfig) (candidate.FitnessFunc, error) {
	fn, ok := problems.ByName(pc.Problem, pc.Offset)
	if !ok {
		return nil, fmt.Errorf("optimize: unknown problem %q", pc.Problem)
	}
	return fn, nil
}

func newRNG(seed int64) *rand.Rand {
	if seed == 0 {
		seed = 1
	}
	return rand.New(rand.NewSource(seed))
}

// buildExecutor translates a BrokerConfig into one of the three
// executor.Executor strategies. The "broker" strategy enrolls a fresh
// buffer pair in the process-wide broker registry, drains it with an
// in-process internal/remote.LocalPool, and optionally exposes the same
// buffer pair to networked --client workers over *remoteAddr.
func buildExecutor(ctx context.Context, bc BrokerConfig, instanceID string, rng *rand.Rand, fitness candidate.FitnessFunc, isParent func(*candidate.Candidate) bool) (executor.Executor, error) {
	switch bc.Executor {
	case "", "serial":
		return executor.Serial{}, nil
	case "multithreaded":
		n := bc.Workers
		if n < 1 {
			n = runtime.NumCPU()
		}
		return executor.MultiThreaded{Workers: n}, nil
	case "broker":
		capacity := bc.BufferCapacity
		if capacity < 1 {
			capacity = 32
		}
		pair := broker.NewBufferPair(instanceID, capacity)
		broker.DefaultRegistry().Enroll(pair)

		b := broker.New(pair)
		if bc.WaitFactor > 0 {
			b.WaitFactor = bc.WaitFactor
		}
		if bc.MaxWaitFactor > 0 {
			b.MaxWaitFactor = bc.MaxWaitFactor
		}
		if bc.FirstTimeOut > 0 {
			b.FirstTimeOut = time.Duration(bc.FirstTimeOut * float64(time.Second))
		}
		if bc.LoopTime > 0 {
			b.LoopTime = time.Duration(bc.LoopTime * float64(time.Millisecond))
		}

		workers := bc.Workers
		if workers < 1 {
			workers = runtime.NumCPU()
		}
		lookup := func(id string) (candidate.FitnessFunc, bool) {
			if id != instanceID {
				return nil, false
			}
			return fitness, true
		}
		pool := remote.NewLocalPool(broker.DefaultRegistry(), lookup, rng, workers)
		go func() {
			if err := pool.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Printf("optimize: local worker pool for %s stopped: %v", instanceID, err)
			}
		}()

		if *remoteAddr != "" {
			srv := remote.NewServer(broker.DefaultRegistry())
			go func() {
				if err := srv.ListenAndServe(ctx, *remoteAddr); err != nil && ctx.Err() == nil {
					logger.Printf("optimize: remote worker server stopped: %v", err)
				}
			}()
		}

		return executor.Broker{B: b, IsParent: isParent}, nil
	default:
		return nil, fmt.Errorf("optimize: unknown executor kind %q", bc.Executor)
	}
}

// buildEngine wraps alg in an engine.Engine configured from ec, wiring
// checkpointing (when a directory is set) and the live monitor (when an
// address is set).
func buildEngine(ctx context.Context, name string, alg engine.Algorithm, ec cfgmod.EngineConfig, mc MonitorConfig, maximize bool, store *checkpoint.Store) *engine.Engine {
	eng := engine.New(alg, engine.HaltBudgets{
		MaxIteration:      ec.MaxIteration,
		MaxStallIteration: ec.MaxStallIteration,
		MaxSeconds:        ec.MaxSeconds,
		Maximize:          maximize,
	})
	eng.Logger = logger
	if ec.CheckpointInterval > 0 && store != nil {
		eng.CheckpointInterval = ec.CheckpointInterval
		eng.Checkpointer = store
	}
	if mc.MonitorAddr != "" {
		eng.Hooks = append(eng.Hooks, mon.Hook(name))
		go func() {
			if err := monitorServer.ListenAndServe(ctx, mc.MonitorAddr); err != nil && ctx.Err() == nil {
				logger.Printf("optimize: monitor server stopped: %v", err)
			}
		}()
	}
	return eng
}

var (
	mon           = monitor.New()
	monitorServer = monitor.NewServer(mon)
)
