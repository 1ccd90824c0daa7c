// SPDX-FileCopyrightText: 2023 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

// Package event defines the listener interfaces a host process can register
// against a ship.Connection, grounded on
// internal/websocket/event/events.go's typed-event + XListener/XListenerFunc
// + eventor.Eventor shape.
package event

import (
	"fmt"
	"strings"
	"time"
)

// CancelFunc removes the associated listener and cancels any future events
// sent to it. A CancelFunc is idempotent.
type CancelFunc func()

// StateChange is the event sent whenever a Connection's handshake state
// changes (spec.md §4.7: "exactly once per real transition").
type StateChange struct {
	// At holds the time the state changed.
	At time.Time

	// SKI is the peer's subject key identifier.
	SKI string

	// State is the new state, rendered via ship.State.String() so this
	// package does not need to import ship.
	State string

	// Err is the terminal error, if the new state is an error state.
	Err error
}

func (s StateChange) String() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "StateChange{SKI: %s, State: %s", s.SKI, s.State)
	if s.Err != nil {
		fmt.Fprintf(&buf, ", Err: %s", s.Err)
	}
	buf.WriteString("}")
	return buf.String()
}

// StateListener is implemented by types that want to observe StateChange
// events.
type StateListener interface {
	OnStateChange(StateChange)
}

// StateListenerFunc adapts a function to a StateListener.
type StateListenerFunc func(StateChange)

func (f StateListenerFunc) OnStateChange(s StateChange) { f(s) }

// Closed is the event sent exactly once, when a Connection's
// close-connection procedure completes (spec.md §4.9).
type Closed struct {
	At             time.Time
	SKI            string
	HandshakeEnded bool
}

// ClosedListener is implemented by types that want to observe Closed
// events.
type ClosedListener interface {
	OnClosed(Closed)
}

// ClosedListenerFunc adapts a function to a ClosedListener.
type ClosedListenerFunc func(Closed)

func (f ClosedListenerFunc) OnClosed(c Closed) { f(c) }
