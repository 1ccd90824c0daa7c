// SPDX-FileCopyrightText: 2023 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package ship

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNamedTimerFires(t *testing.T) {
	assert := assert.New(t)

	q := newEventQueue(1)
	timer := newNamedTimer("test", q)

	assert.Equal(timerIdle, timer.query())
	timer.start(10 * time.Millisecond)
	assert.Equal(timerRunning, timer.query())

	ev := q.receive()
	assert.Equal(eventTimeout, ev.kind)
	assert.Equal(timerExpired, timer.query())
}

func TestNamedTimerStopBeforeFire(t *testing.T) {
	assert := assert.New(t)

	q := newEventQueue(1)
	timer := newNamedTimer("test", q)

	timer.start(50 * time.Millisecond)
	timer.stop()
	assert.Equal(timerIdle, timer.query())

	select {
	case <-q.ch:
		t.Fatal("expected no event after stop")
	case <-time.After(75 * time.Millisecond):
	}
}

func TestNamedTimerRestartCancelsStaleFire(t *testing.T) {
	assert := assert.New(t)

	q := newEventQueue(2)
	timer := newNamedTimer("test", q)

	timer.start(5 * time.Millisecond)
	time.Sleep(20 * time.Millisecond) // let the first timer fire and enqueue
	timer.start(time.Second)          // replace before the queue is drained

	ev := q.receive()
	assert.Equal(eventTimeout, ev.kind)

	select {
	case <-q.ch:
		t.Fatal("expected exactly one timeout event")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestNamedTimerRemaining(t *testing.T) {
	assert := assert.New(t)

	q := newEventQueue(1)
	timer := newNamedTimer("test", q)

	assert.Equal(time.Duration(0), timer.remaining())
	timer.start(100 * time.Millisecond)
	assert.Greater(timer.remaining(), time.Duration(0))
}

func TestTimerSetStopProlongationTimers(t *testing.T) {
	assert := assert.New(t)

	q := newEventQueue(3)
	ts := newTimerSet(q)

	ts.sendProlongationRequest.start(time.Second)
	ts.prolongationRequestReply.start(time.Second)
	ts.waitForReady.start(time.Second)

	ts.stopProlongationTimers()
	assert.Equal(timerIdle, ts.sendProlongationRequest.query())
	assert.Equal(timerIdle, ts.prolongationRequestReply.query())
	assert.Equal(timerRunning, ts.waitForReady.query())

	ts.stopAll()
	assert.Equal(timerIdle, ts.waitForReady.query())
}
