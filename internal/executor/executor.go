// Package executor implements the three ways a candidate's fitness
// function can actually run: inline in the calling goroutine, fanned
// out across a fixed worker pool, or handed to a broker-backed worker
// population (in-process or remote), per spec §4.1's pluggable
// execution strategy.
package executor

import (
	"context"
	"fmt"

	channerics "github.com/niceyeti/channerics/channels"
	"golang.org/x/sync/errgroup"

	"github.com/niceyeti/genevo/internal/broker"
	"github.com/niceyeti/genevo/internal/candidate"
	"github.com/niceyeti/genevo/internal/population"
)

// Executor evaluates every candidate in items, adapting first when
// adaptFirst is true, and returns once every candidate's fitness is
// current (or an unrecoverable error occurs). iteration is the current
// engine cycle, stamped on each item so broker-backed implementations
// can apply the generation discipline of spec §4.2 (straggler accept/
// restamp, late-parent discard, adaptive wait-factor); strategies that
// don't need it (Serial, MultiThreaded) simply ignore it. Serial and
// MultiThreaded evaluate in place and leave items in order. Broker
// writes the returned candidates back into items in arrival order, and
// after a reception timeout some slots hold substitute clones of
// candidates that did return (spec §4.2 step 5) instead of the
// original, never-evaluated pointers.
type Executor interface {
	Execute(ctx context.Context, items []*candidate.Candidate, fn candidate.FitnessFunc, rng param_RNG, iteration uint64, adaptFirst bool) error
}

// param_RNG mirrors param.RNG without importing the param package
// directly, since only Candidate.Adapt needs it here.
type param_RNG interface {
	Float64() float64
	NormFloat64() float64
	Intn(int) int
}

// Serial evaluates every candidate on the calling goroutine, in order.
// It is the default for small problems and for debugging: no
// concurrency, so failures are trivially reproducible.
type Serial struct{}

func (Serial) Execute(ctx context.Context, items []*candidate.Candidate, fn candidate.FitnessFunc, rng param_RNG, iteration uint64, adaptFirst bool) error {
	for _, c := range items {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if adaptFirst {
			c.Adapt(rng)
		}
		// Evaluate already records invalidity on the candidate; a
		// fitness-function error is not fatal to the rest of the batch.
		_ = c.Evaluate(fn)
	}
	return nil
}

// MultiThreaded evaluates candidates across a fixed pool of worker
// goroutines, each pulling from a shared input channel. Workers are
// fanned in with channerics.Merge, the same pattern the teacher uses
// to fan in its agent_worker goroutines. Only the goroutine feeding the
// workers runs under errgroup, so a cancelled context is what Execute
// returns as an error; fitness errors are recorded on each candidate.
type MultiThreaded struct {
	Workers int
}

func (m MultiThreaded) Execute(ctx context.Context, items []*candidate.Candidate, fn candidate.FitnessFunc, rng param_RNG, iteration uint64, adaptFirst bool) error {
	n := m.Workers
	if n < 1 {
		n = 1
	}

	input := make(chan *candidate.Candidate)
	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		defer close(input)
		for _, c := range items {
			select {
			case input <- c:
			case <-groupCtx.Done():
				return groupCtx.Err()
			}
		}
		return nil
	})

	done := make([]<-chan struct{}, n)
	for w := 0; w < n; w++ {
		finished := make(chan struct{})
		done[w] = finished
		go func() {
			defer close(finished)
			for {
				select {
				case c, ok := <-input:
					if !ok {
						return
					}
					if adaptFirst {
						c.Adapt(rng)
					}
					_ = c.Evaluate(fn)
				case <-groupCtx.Done():
					return
				}
			}
		}()
	}

	merged := channerics.Merge(groupCtx.Done(), done...)
	for range merged {
		// drain completion signals; workers close `finished` with no value
	}

	return group.Wait()
}

// Broker hands every item to a broker.Broker, submitting them for
// evaluation (optionally adapt-then-evaluate) and blocking on the
// reception loop for the whole batch to return, per spec §4.2. It is
// the strategy used whenever a worker population is a separate process
// (in-process worker pool or remote clients over internal/remote).
type Broker struct {
	B        *broker.Broker
	IsParent func(*candidate.Candidate) bool
}

// Execute submits items at the given iteration and blocks on the
// reception loop. A reception that falls short of len(items) (spec
// §7's "partial-cycle timeout") is not fatal: the shortfall is filled
// with IsSubstitute clones of the candidates that did return (spec
// §4.2 step 5), and the caller's items slice is overwritten in place
// with whatever the broker ultimately produced, so the evaluated
// (or substituted) state is visible through the same slice the caller
// is holding. Execute fails when B is nil, when submission fails, or when
// nothing at all came back (broker.Broker.Receive's own first-timeout
// error); an empty items slice returns nil without submitting anything.
func (b Broker) Execute(ctx context.Context, items []*candidate.Candidate, fn candidate.FitnessFunc, rng param_RNG, iteration uint64, adaptFirst bool) error {
	if b.B == nil {
		return fmt.Errorf("executor: broker strategy requires a non-nil broker")
	}
	if len(items) == 0 {
		return nil
	}
	cmd := broker.CommandEvaluateOnly
	if adaptFirst {
		cmd = broker.CommandAdaptThenEvaluate
	}

	if err := b.B.Submit(ctx, items, iteration, cmd); err != nil {
		return err
	}

	isParent := b.IsParent
	if isParent == nil {
		isParent = func(*candidate.Candidate) bool { return false }
	}

	returned, _, err := b.B.Receive(ctx, iteration, len(items), isParent)
	if err != nil {
		return err
	}

	if len(returned) < len(items) {
		temp := &population.Population{DefaultSize: len(items), Members: returned}
		temp.FillBySubstitution(rng)
		returned = temp.Members
	}

	copy(items, returned)
	return nil
}
