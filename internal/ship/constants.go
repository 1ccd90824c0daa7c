// SPDX-FileCopyrightText: 2023 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package ship

import "time"

// Protocol-fixed timing constants (spec.md §4.7, §4.4), grounded on the
// values original_source/src/ship/ship_connection/ship_connection.c derives
// from the SHIP specification's handshake timing table (SHIP 13.4.3/13.4.4).
const (
	// cmiTimeout bounds CMI Init exchange and the protocol-version/PIN
	// handshakes.
	cmiTimeout = 10 * time.Second

	// tHelloInit is both the waiting value announced with every Hello and
	// the upper bound on how long a Hello state waits for the peer's next
	// Hello.
	tHelloInit = 60 * time.Second

	// tHelloInc extends wait-for-ready by this much whenever the peer's
	// Hello carries a prolongation request (spec.md §4.7,
	// common-prolongation-and-update).
	tHelloInc = 1 * time.Second

	// tHelloProlongThrInc is the minimum peer-announced waiting value that
	// makes us schedule our own prolongation request at all.
	tHelloProlongThrInc = 60 * time.Second

	// tHelloProlongWaitingGap is subtracted from the peer's announced
	// waiting value to compute when we send our prolongation request.
	tHelloProlongWaitingGap = 15 * time.Second

	// tHelloProlongMin is the minimum resulting delay a prolongation
	// request schedule must clear; below this, no prolongation request is
	// scheduled.
	tHelloProlongMin = 2 * time.Second

	// closeGraceDelay is the pause after sending SmeClose{Announce} or
	// {Confirm} before the transport is actually closed, so the frame has
	// time to reach the peer (spec.md §4.8, §4.9).
	closeGraceDelay = 500 * time.Millisecond

	// softIdleInterval is the sleep the Role Dispatcher uses for states not
	// in the current role's table (spec.md §4.6).
	softIdleInterval = 10 * time.Millisecond
)

// WebSocket close status codes the core issues.
const (
	closeStatusNormal   = 4001 // "close" - orderly SHIP close
	closeStatusRejected = 4452 // "Node rejected by application"
)

// Protocol version this core announces and is willing to agree to. Per
// spec.md §9 (preserve-as-is), a server agrees to the peer's own numbers
// verbatim whenever they are both <= these maxima - it does not compute a
// true min-of-both.
const (
	protocolMaxMajor uint8 = 1
	protocolMaxMinor uint8 = 0
)

// durationFromMS converts a wire-carried millisecond count to a
// time.Duration.
func durationFromMS(ms uint32) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
