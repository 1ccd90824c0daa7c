// SPDX-FileCopyrightText: 2023 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package ship

import (
	"sync"
	"time"
)

// timerState is one of {idle, running, expired} (C4).
type timerState int

const (
	timerIdle timerState = iota
	timerRunning
	timerExpired
)

// namedTimer is one of the three one-shot timers in the Timer Set.
// Expiry enqueues a Timeout event; it never mutates connection state
// directly (spec.md §9: callbacks only enqueue events).
type namedTimer struct {
	name  string
	queue *eventQueue

	mu       sync.Mutex
	state    timerState
	timer    *time.Timer
	deadline time.Time
}

func newNamedTimer(name string, queue *eventQueue) *namedTimer {
	return &namedTimer{name: name, queue: queue, state: timerIdle}
}

// start begins (or restarts) the timer for the given duration. A timer that
// is currently running is stopped first.
func (t *namedTimer) start(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()

	t.deadline = time.Now().Add(d)
	t.state = timerRunning
	var self *time.Timer
	self = time.AfterFunc(d, func() {
		t.mu.Lock()
		// Only the timer that actually fired marks itself expired; a
		// start() that raced ahead of this callback already replaced
		// t.timer, and the stale callback must not clobber the new state.
		fired := t.timer == self
		if fired {
			t.state = timerExpired
		}
		q := t.queue
		t.mu.Unlock()

		if fired && q != nil {
			q.trySend(queueEvent{kind: eventTimeout})
		}
	})
	t.timer = self
}

// stop halts the timer if running. A running timer that is stopped becomes
// idle; stopping an expired or idle timer is a no-op. Stopping races
// benignly against a concurrent expiry per spec.md §5.
func (t *namedTimer) stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

func (t *namedTimer) stopLocked() {
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = nil
	if t.state == timerRunning {
		t.state = timerIdle
	}
}

// query returns the current state.
func (t *namedTimer) query() timerState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// remaining returns the time left before expiry, or 0 if the timer is not
// running.
func (t *namedTimer) remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != timerRunning {
		return 0
	}
	if d := time.Until(t.deadline); d > 0 {
		return d
	}
	return 0
}

// timerSet bundles the three named timers C4 requires.
type timerSet struct {
	waitForReady             *namedTimer
	sendProlongationRequest  *namedTimer
	prolongationRequestReply *namedTimer
}

func newTimerSet(queue *eventQueue) *timerSet {
	return &timerSet{
		waitForReady:             newNamedTimer("wait-for-ready", queue),
		sendProlongationRequest:  newNamedTimer("send-prolongation-request", queue),
		prolongationRequestReply: newNamedTimer("prolongation-request-reply", queue),
	}
}

// stopProlongationTimers stops both prolongation-related timers, used
// whenever a Hello state (re)enters Ready or Pending init (spec.md §4.7).
func (ts *timerSet) stopProlongationTimers() {
	ts.sendProlongationRequest.stop()
	ts.prolongationRequestReply.stop()
}

// stopAll stops every timer in the set; used by close-connection (C9).
func (ts *timerSet) stopAll() {
	ts.waitForReady.stop()
	ts.sendProlongationRequest.stop()
	ts.prolongationRequestReply.stop()
}
