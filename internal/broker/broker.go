package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/niceyeti/genevo/internal/candidate"
)

// Default tuning constants, named and valued after the original
// implementation's broker defaults (spec §4.2).
const (
	DefaultWaitFactor    = 20
	DefaultMaxWaitFactor = 0
	DefaultLoopTime      = 20 * time.Millisecond
	DefaultFirstTimeOut  = 120 * time.Second
)

// ReceiveStats reports what happened during one Receive call to
// Receive's caller.
type ReceiveStats struct {
	TFirst       time.Duration
	TMax         time.Duration
	Received     int
	Expected     int
	Stragglers   int
	Completed    bool
	WaitFactor   uint32
}

// Broker drives one algorithm instance's buffer pair: it submits
// candidates for evaluation and collects results back within an
// adaptive deadline, preserving the generation discipline of spec §4.2
// (stragglers from a prior iteration are dropped if they were parents,
// or accepted and restamped if they were children).
type Broker struct {
	Pair *BufferPair

	// WaitFactor scales t_first (the first return's latency) into t_max,
	// the deadline for the rest of the cycle's returns. MaxWaitFactor
	// bounds how high the adaptive logic may raise it; 0 disables
	// adaptation entirely (WaitFactor never changes).
	WaitFactor    uint32
	MaxWaitFactor uint32
	FirstTimeOut  time.Duration
	LoopTime      time.Duration

	mu sync.Mutex
}

// New returns a broker over the given buffer pair with the library's
// default tuning.
func New(pair *BufferPair) *Broker {
	return &Broker{
		Pair:          pair,
		WaitFactor:    DefaultWaitFactor,
		MaxWaitFactor: DefaultMaxWaitFactor,
		FirstTimeOut:  DefaultFirstTimeOut,
		LoopTime:      DefaultLoopTime,
	}
}

// Submit stamps each candidate with the current iteration and command
// and pushes it to the outbound queue, blocking on a full queue until
// ctx is done.
func (b *Broker) Submit(ctx context.Context, items []*candidate.Candidate, iteration uint64, cmd Command) error {
	for _, c := range items {
		item := &Item{Candidate: c, Command: cmd, Iteration: iteration}
		if err := b.Pair.PushOutbound(ctx, item); err != nil {
			return fmt.Errorf("broker: submit: %w", err)
		}
	}
	return nil
}

// Receive waits for up to `expected` evaluated candidates belonging to
// `iteration`, under the reception discipline of spec §4.2: the first
// return must arrive within FirstTimeOut or Receive fails fatally;
// every return after that has until t_max = WaitFactor * t_first.
// isParent classifies a late arrival so the broker can decide whether
// to discard it (a stale parent) or accept-and-restamp it (a stale
// child, i.e. a straggler).
func (b *Broker) Receive(ctx context.Context, iteration uint64, expected int, isParent func(*candidate.Candidate) bool) ([]*candidate.Candidate, ReceiveStats, error) {
	start := time.Now()

	first, ok := b.popWithDeadline(ctx, b.FirstTimeOut)
	if !ok {
		return nil, ReceiveStats{}, fmt.Errorf("broker: no candidate returned within first-timeout %s; worker pool may be misconfigured", b.FirstTimeOut)
	}
	tFirst := time.Since(start)
	tMax := time.Duration(b.currentWaitFactor()) * tFirst
	if tMax <= 0 {
		tMax = tFirst
	}

	var received []*Item
	stragglers := 0
	if accept, straggler := acceptItem(first, iteration, isParent); accept {
		received = append(received, first)
		if straggler {
			stragglers++
		}
	}

	for len(received) < expected && time.Since(start) < tMax {
		select {
		case <-ctx.Done():
			goto done
		default:
		}
		item, ok := b.popWithDeadline(ctx, b.LoopTime)
		if !ok {
			continue
		}
		if accept, straggler := acceptItem(item, iteration, isParent); accept {
			received = append(received, item)
			if straggler {
				stragglers++
			}
		}
	}
done:

	completed := len(received) >= expected
	b.adaptWaitFactor(completed, stragglers, len(received), tFirst, tMax)

	candidates := make([]*candidate.Candidate, len(received))
	for i, it := range received {
		candidates[i] = it.Candidate
	}

	stats := ReceiveStats{
		TFirst:     tFirst,
		TMax:       tMax,
		Received:   len(received),
		Expected:   expected,
		Stragglers: stragglers,
		Completed:  completed,
		WaitFactor: b.currentWaitFactor(),
	}
	return candidates, stats, nil
}

// acceptItem applies the generation-discipline rule: an on-time item is
// always accepted; a late item is discarded if it was a parent (its
// lineage no longer matters) or accepted-and-restamped if it was a
// child, counting as a straggler.
func acceptItem(item *Item, iteration uint64, isParent func(*candidate.Candidate) bool) (accept bool, straggler bool) {
	switch {
	case item.Iteration == iteration:
		return true, false
	case item.Iteration < iteration:
		if isParent != nil && isParent(item.Candidate) {
			return false, false
		}
		item.Iteration = iteration
		return true, true
	default:
		// An item from a future iteration cannot legitimately occur;
		// drop it defensively rather than corrupt the current cycle.
		return false, false
	}
}

// adaptWaitFactor implements spec §4.2's adaptive tuning: raise
// WaitFactor when at least 10% of the received items were stragglers
// and the cycle still didn't complete by count; lower it when the
// cycle finished with more than 10% of t_max to spare. Adaptation is a
// no-op unless MaxWaitFactor exceeds the current WaitFactor.
func (b *Broker) adaptWaitFactor(completed bool, stragglers, total int, tFirst, tMax time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.MaxWaitFactor <= b.WaitFactor {
		return
	}
	if !completed && total > 0 && float64(stragglers)/float64(total) >= 0.10 {
		b.WaitFactor++
		return
	}
	if tMax > 0 && float64(tMax-tFirst) > 0.10*float64(tMax) && b.WaitFactor > 1 {
		b.WaitFactor--
	}
}

func (b *Broker) currentWaitFactor() uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.WaitFactor
}

func (b *Broker) popWithDeadline(ctx context.Context, d time.Duration) (*Item, bool) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case item := <-b.Pair.Inbound:
		return item, true
	case <-ctx.Done():
		return nil, false
	case <-timer.C:
		return nil, false
	}
}

// Drain discards whatever remains in the outbound queue, for cancellation
// handling, so a cancelled run doesn't leave in-flight work for a worker
// pool that's no longer being watched. It returns once the queue has
// stayed empty for a millisecond or timeout has elapsed.
func (b *Broker) Drain(timeout time.Duration) (discarded int) {
	deadline := time.After(timeout)
	for {
		select {
		case <-b.Pair.Outbound:
			discarded++
		case <-deadline:
			return discarded
		default:
			select {
			case <-b.Pair.Outbound:
				discarded++
			case <-time.After(time.Millisecond):
				return discarded
			}
		}
	}
}
