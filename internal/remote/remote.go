// Package remote implements the worker side of spec §4.2's broker
// contract: something that consumes a buffer pair's outbound queue,
// evaluates, and returns to the matching inbound queue, "in-process or
// remote" per broker.BufferPair's doc comment. LocalPool is the
// in-process flavor (a fixed goroutine pool draining the process-wide
// registry, grounded on internal/executor's MultiThreaded fan-out);
// network.go is the networked flavor started by `--client`.
package remote

import (
	"context"

	channerics "github.com/niceyeti/channerics/channels"
	"golang.org/x/sync/errgroup"

	"github.com/niceyeti/genevo/internal/broker"
	"github.com/niceyeti/genevo/internal/candidate"
)

// param_RNG mirrors param.RNG locally so this package only needs the
// three methods an adapt-then-evaluate worker actually calls.
type param_RNG interface {
	Float64() float64
	NormFloat64() float64
	Intn(int) int
}

// FitnessLookup resolves the problem a buffer pair's candidates should
// be evaluated against. Buffer pair IDs are algorithm-instance scoped
// (internal/broker.BufferPair.ID), so a single process hosting several
// algorithm instances can still serve them from one pool.
type FitnessLookup func(bufferID string) (candidate.FitnessFunc, bool)

// LocalPool drains every buffer pair in a registry with a fixed set of
// worker goroutines, evaluating in-process exactly as if the candidate
// had never left the driver's memory: it shares the live *candidate.Candidate
// pointer, so CommandAdaptThenEvaluate can call Adapt directly, unlike
// the networked worker which only ever sees a serialized snapshot.
type LocalPool struct {
	Registry *broker.Registry
	Lookup   FitnessLookup
	Workers  int
	RNG      param_RNG
}

// NewLocalPool returns a pool of n worker goroutines (minimum 1) over
// registry, resolving each buffer pair's fitness function via lookup.
func NewLocalPool(registry *broker.Registry, lookup FitnessLookup, rng param_RNG, n int) *LocalPool {
	if n < 1 {
		n = 1
	}
	return &LocalPool{Registry: registry, Lookup: lookup, Workers: n, RNG: rng}
}

// Run drains every currently-enrolled buffer pair until ctx is
// cancelled. Newly-enrolled pairs after Run starts are not picked up;
// callers that add algorithm instances dynamically should restart the
// pool, matching the registry's "write-rare" design (spec §5).
func (p *LocalPool) Run(ctx context.Context) error {
	pairs := p.Registry.All()
	if len(pairs) == 0 {
		return nil
	}

	group, groupCtx := errgroup.WithContext(ctx)
	for w := 0; w < p.Workers; w++ {
		group.Go(func() error {
			return p.runWorker(groupCtx, pairs)
		})
	}
	return group.Wait()
}

// runWorker fans in every pair's outbound queue once (via channerics.Merge,
// the same fan-in the teacher uses throughout server/fastview) and
// evaluates whatever arrives until ctx is cancelled.
func (p *LocalPool) runWorker(ctx context.Context, pairs []*broker.BufferPair) error {
	merged := mergedOutbound(ctx.Done(), pairs)
	for {
		select {
		case pi, ok := <-merged:
			if !ok {
				return ctx.Err()
			}
			p.evaluate(pi.pair.ID, pi.item)
			if err := pi.pair.PushInbound(ctx, pi.item); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

type pairedItem struct {
	item *broker.Item
	pair *broker.BufferPair
}

func mergedOutbound(done <-chan struct{}, pairs []*broker.BufferPair) <-chan pairedItem {
	chans := make([]<-chan pairedItem, len(pairs))
	for i, pair := range pairs {
		pair := pair
		tagged := make(chan pairedItem)
		go func() {
			defer close(tagged)
			for {
				select {
				case item, ok := <-pair.Outbound:
					if !ok {
						return
					}
					select {
					case tagged <- pairedItem{item, pair}:
					case <-done:
						return
					}
				case <-done:
					return
				}
			}
		}()
		chans[i] = tagged
	}
	return channerics.Merge(done, chans...)
}

func (p *LocalPool) evaluate(bufferID string, item *broker.Item) {
	fn, ok := p.Lookup(bufferID)
	if !ok {
		fn, ok = p.Lookup("")
	}
	if !ok {
		item.Candidate.MarkInvalid()
		return
	}
	if item.Command == broker.CommandAdaptThenEvaluate {
		item.Candidate.Adapt(p.RNG)
	}
	_ = item.Candidate.Evaluate(fn)
}
