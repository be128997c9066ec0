package core

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// =============================================================================
// Barrier: cyclic rendezvous with per-round leader election
// =============================================================================

// BarrierResult reports the outcome of one Wait call. Leader is true for
// exactly one participant per round; flags are fixed before release and never
// change afterwards.
type BarrierResult struct {
	Leader bool
	Round  uint64
}

type barrierOutcome struct {
	res BarrierResult
	err error
}

// Barrier is a reusable rendezvous point for a fixed set of participants.
// A round completes when the participant count is reached; the arrival that
// completes the round is the leader. After completion the barrier atomically
// resets for the next round.
//
// If fewer than participants callers ever arrive the round would hang
// forever, so a timeout (see NewBarrierWithTimeout) fails every pending
// waiter of the stalled round with *BarrierTimeoutError instead.
type Barrier struct {
	mu           sync.Mutex
	participants int
	timeout      time.Duration

	round    uint64
	arrived  int
	waiters  []chan barrierOutcome
	timer    *time.Timer
	timerGen uint64 // bumped on every arm and disarm, stales in-flight callbacks
}

// NewBarrier creates a barrier for a fixed number of participants, with no
// round timeout. Panics if participants < 1.
func NewBarrier(participants int) *Barrier {
	return NewBarrierWithTimeout(participants, 0)
}

// NewBarrierWithTimeout creates a barrier whose rounds fail with
// *BarrierTimeoutError when not completed within timeout of the first
// arrival. timeout <= 0 disables the deadline.
func NewBarrierWithTimeout(participants int, timeout time.Duration) *Barrier {
	if participants < 1 {
		panic(fmt.Sprintf("Barrier: participants must be at least 1, got %d", participants))
	}
	return &Barrier{
		participants: participants,
		timeout:      timeout,
	}
}

// Participants returns the fixed participant count.
func (b *Barrier) Participants() int {
	return b.participants
}

// Round returns the current round identifier.
func (b *Barrier) Round() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.round
}

// Wait suspends the calling task until the current round accumulates all
// participants, then reports whether this caller is the round's leader.
// Cancelling ctx withdraws only this waiter; the round stays open for the
// remaining participants.
func (b *Barrier) Wait(ctx context.Context) (BarrierResult, error) {
	b.mu.Lock()
	round := b.round
	b.arrived++

	if b.arrived == b.participants {
		// This arrival completes the round: release everyone, leader is us.
		for _, ch := range b.waiters {
			ch <- barrierOutcome{res: BarrierResult{Leader: false, Round: round}}
		}
		b.resetLocked()
		b.mu.Unlock()
		return BarrierResult{Leader: true, Round: round}, nil
	}

	ch := make(chan barrierOutcome, 1)
	b.waiters = append(b.waiters, ch)
	// One deadline per round, armed by whichever arrival finds it unarmed.
	if b.timer == nil && b.timeout > 0 {
		b.timerGen++
		gen := b.timerGen
		b.timer = time.AfterFunc(b.timeout, func() { b.expireRound(round, gen) })
	}
	b.mu.Unlock()

	select {
	case out := <-ch:
		return out.res, out.err
	case <-ctx.Done():
		b.mu.Lock()
		select {
		case out := <-ch:
			// The round resolved while we were cancelling; honor its outcome.
			b.mu.Unlock()
			return out.res, out.err
		default:
		}
		if b.round == round {
			b.arrived--
			b.removeWaiterLocked(ch)
			// The last withdrawal disarms the deadline so a later cohort of
			// the same round starts with a fresh one.
			if b.arrived == 0 && b.timer != nil {
				b.timer.Stop()
				b.timer = nil
				b.timerGen++
			}
		}
		b.mu.Unlock()
		return BarrierResult{}, ctx.Err()
	}
}

// expireRound fails every pending waiter of a stalled round.
func (b *Barrier) expireRound(round uint64, gen uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.round != round || gen != b.timerGen {
		return // round completed, or the deadline was disarmed and re-armed
	}

	err := &BarrierTimeoutError{
		Round:        round,
		Arrived:      b.arrived,
		Participants: b.participants,
		Timeout:      b.timeout,
	}
	for _, ch := range b.waiters {
		ch <- barrierOutcome{err: err}
	}
	b.resetLocked()
}

// resetLocked starts the next round. Callers hold b.mu.
func (b *Barrier) resetLocked() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
		b.timerGen++
	}
	b.waiters = nil
	b.arrived = 0
	b.round++
}

func (b *Barrier) removeWaiterLocked(ch chan barrierOutcome) {
	for i, w := range b.waiters {
		if w == ch {
			b.waiters = append(b.waiters[:i], b.waiters[i+1:]...)
			return
		}
	}
}
