// Package engine implements the generic optimization loop every
// algorithm specialization (EA, swarm, scan, gradient descent) plugs
// into: population init, per-cycle variation/evaluation/selection,
// halt criteria, checkpointing, and information hooks (spec §4.1).
package engine

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"
)

// InfoEvent names the three moments information hooks may fire at.
type InfoEvent int

const (
	InfoInit InfoEvent = iota
	InfoProcessing
	InfoEnd
)

func (e InfoEvent) String() string {
	switch e {
	case InfoInit:
		return "init"
	case InfoProcessing:
		return "processing"
	case InfoEnd:
		return "end"
	default:
		return "unknown"
	}
}

// CycleResult is what an Algorithm reports back after running one
// cycle: the best raw/transformed fitness observed this cycle, used by
// the engine's stall tracking.
type CycleResult struct {
	BestRaw         float64
	BestTransformed float64
}

// Algorithm is implemented by each specialization (EA, swarm, scan,
// gradient descent). The engine drives it through Init/CycleLogic/
// PostEvaluationWork/CustomHalt/Finalize; the algorithm owns its own
// population and best-tracking structures, and knows nothing about
// halt budgets or checkpoint scheduling.
type Algorithm interface {
	// Init prepares the population for the first cycle (e.g. random
	// init). Called once before the loop starts.
	Init(ctx context.Context) error
	// CycleLogic runs exactly one cycle: variation, submission,
	// reception, selection. Returns the cycle's best fitness.
	CycleLogic(ctx context.Context, iteration uint64) (CycleResult, error)
	// PostEvaluationWork updates algorithm-owned bests and runs any
	// post-processor recursion; called after CycleLogic, before info
	// hooks and the halt check.
	PostEvaluationWork(ctx context.Context, iteration uint64, result CycleResult) error
	// CustomHalt reports an algorithm-specific halt condition (e.g.
	// parameter-scan grid exhaustion). Most algorithms return false.
	CustomHalt() bool
	// Finalize runs once, whether the loop completed normally or a
	// cycle returned an error.
	Finalize(ctx context.Context) error
	// Name is a short mnemonic used in log lines and checkpoint file
	// names.
	Name() string
}

// InfoHook is a user-pluggable callback invoked at each InfoEvent. A
// panic or error inside a hook is logged and swallowed, never fatal to
// the run, per spec §4.1's failure semantics.
type InfoHook func(event InfoEvent, iteration uint64, best CycleResult) error

// Checkpointer persists algorithm state. internal/checkpoint
// provides the concrete gob/yaml implementation; the engine only needs
// this narrow interface so it can remain checkpoint-format-agnostic.
type Checkpointer interface {
	Save(iteration uint64, bestTransformed float64, baseName string) error
}

// HaltBudgets configures the halt criteria of spec §4.1. A zero value
// disables the corresponding criterion.
type HaltBudgets struct {
	MaxIteration      uint64
	MaxStallIteration uint64
	MaxSeconds        float64
	TargetFitness     *float64
	Maximize          bool
}

func (h HaltBudgets) reached(iteration uint64, stall uint64, elapsed time.Duration, bestTransformed float64) bool {
	if h.MaxIteration > 0 && iteration >= h.MaxIteration {
		return true
	}
	if h.MaxStallIteration > 0 && stall >= h.MaxStallIteration {
		return true
	}
	if h.MaxSeconds > 0 && elapsed.Seconds() >= h.MaxSeconds {
		return true
	}
	if h.TargetFitness != nil {
		if h.Maximize && bestTransformed >= *h.TargetFitness {
			return true
		}
		if !h.Maximize && bestTransformed <= *h.TargetFitness {
			return true
		}
	}
	return false
}

// Engine drives one Algorithm through the lifecycle of spec §4.1.
type Engine struct {
	Algorithm Algorithm
	Halt      HaltBudgets
	Hooks     []InfoHook

	CheckpointInterval uint64
	Checkpointer       Checkpointer

	// StartIteration resumes the loop's counter from a prior checkpoint's
	// recorded iteration instead of 0, so a resumed run's checkpoint
	// filenames and halt-budget accounting continue where the original
	// run left off.
	StartIteration uint64

	Logger *log.Logger
}

// New returns an engine with sane logging defaults, matching the
// teacher's use of the standard library logger rather than a
// structured logging framework.
func New(alg Algorithm, halt HaltBudgets) *Engine {
	return &Engine{
		Algorithm: alg,
		Halt:      halt,
		Logger:    log.Default(),
	}
}

// Optimize runs the engine's loop to completion and returns the
// best-ever cycle result along with the iteration it halted at.
func (e *Engine) Optimize(ctx context.Context) (CycleResult, uint64, error) {
	start := time.Now()

	if err := e.Algorithm.Init(ctx); err != nil {
		return CycleResult{}, 0, fmt.Errorf("engine: init: %w", err)
	}
	e.fireHook(InfoInit, 0, CycleResult{})

	var (
		iteration   = e.StartIteration
		stall       uint64
		bestEver    CycleResult
		haveBest    bool
		finalizeErr error
	)

	bestEver.BestTransformed = worstCaseFor(e.Halt.Maximize)

	for {
		select {
		case <-ctx.Done():
			finalizeErr = e.Algorithm.Finalize(ctx)
			return bestEver, iteration, joinErr(ctx.Err(), finalizeErr)
		default:
		}

		result, err := e.Algorithm.CycleLogic(ctx, iteration)
		if err != nil {
			// Fatal: propagate after finalize, per spec §4.1.
			finalizeErr = e.Algorithm.Finalize(ctx)
			return bestEver, iteration, joinErr(fmt.Errorf("engine: cycle %d: %w", iteration, err), finalizeErr)
		}

		if err := e.Algorithm.PostEvaluationWork(ctx, iteration, result); err != nil {
			finalizeErr = e.Algorithm.Finalize(ctx)
			return bestEver, iteration, joinErr(fmt.Errorf("engine: post-evaluation %d: %w", iteration, err), finalizeErr)
		}

		if !haveBest || isBetter(result.BestTransformed, bestEver.BestTransformed, e.Halt.Maximize) {
			bestEver = result
			haveBest = true
			stall = 0
		} else {
			stall++
		}

		e.fireHook(InfoProcessing, iteration, bestEver)

		if e.CheckpointInterval > 0 && e.Checkpointer != nil && iteration%e.CheckpointInterval == 0 {
			if err := e.Checkpointer.Save(iteration, bestEver.BestTransformed, e.Algorithm.Name()); err != nil {
				e.Logger.Printf("engine: checkpoint save failed at iteration %d: %v", iteration, err)
			}
		}

		if e.Halt.reached(iteration, stall, time.Since(start), bestEver.BestTransformed) || e.Algorithm.CustomHalt() {
			break
		}
		iteration++
	}

	e.fireHook(InfoEnd, iteration, bestEver)
	if err := e.Algorithm.Finalize(ctx); err != nil {
		return bestEver, iteration, fmt.Errorf("engine: finalize: %w", err)
	}
	return bestEver, iteration, nil
}

func (e *Engine) fireHook(event InfoEvent, iteration uint64, best CycleResult) {
	for _, hook := range e.Hooks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					e.Logger.Printf("engine: info hook panicked at %s/%d: %v", event, iteration, r)
				}
			}()
			if err := hook(event, iteration, best); err != nil {
				e.Logger.Printf("engine: info hook error at %s/%d: %v", event, iteration, err)
			}
		}()
	}
}

func worstCaseFor(maximize bool) float64 {
	if maximize {
		return -math.MaxFloat64
	}
	return math.MaxFloat64
}

func isBetter(candidate, incumbent float64, maximize bool) bool {
	if maximize {
		return candidate > incumbent
	}
	return candidate < incumbent
}

func joinErr(primary, secondary error) error {
	if secondary == nil {
		return primary
	}
	if primary == nil {
		return secondary
	}
	return fmt.Errorf("%w (finalize also failed: %v)", primary, secondary)
}
