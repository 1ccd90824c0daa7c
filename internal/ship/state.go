// SPDX-FileCopyrightText: 2023 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package ship

// Role distinguishes the two handshake branches a Connection can drive.
// Grounded on the original implementation's client.c/server.c thin wrappers
// around one shared state machine - collapsed here into a single field
// rather than two near-duplicate types (spec.md §9).
type Role int

const (
	RoleClient Role = iota
	RoleServer
)

func (r Role) String() string {
	if r == RoleServer {
		return "server"
	}
	return "client"
}

// State is the SHIP connection/handshake state (C7). The full state space is
// exhaustive per spec.md §4.7; unreachable states from the original C
// enumeration (the PIN-entry "ask" sub-states, the busy-init sub-state) are
// omitted here because the core never enters them - spec.md §4.7 documents
// them as no-ops, not branches this core implements.
type State int

const (
	StateUnstarted State = iota

	// Connection-Mode Initiation.
	StateCmiClientSend
	StateCmiClientWait
	StateCmiClientEvaluate
	StateCmiServerWait
	StateCmiServerEvaluate

	// SME Hello / Connection Data Preparation.
	StateSmeHello
	StateSmeHelloReadyInit
	StateSmeHelloReadyListen
	StateSmeHelloReadyTimeout
	StateSmeHelloPendingInit
	StateSmeHelloPendingListen
	StateSmeHelloPendingTimeout
	StateSmeHelloOk
	StateSmeHelloAbort
	StateSmeHelloAbortDone
	StateSmeHelloRemoteAbortDone
	StateSmeHelloRejected

	// Protocol-version handshake.
	StateProtHClientInit
	StateProtHServerInit
	StateProtHClientListenChoice
	StateProtHServerListenProposal
	StateProtHServerListenConfirm
	StateProtHClientOk
	StateProtHServerOk

	// PIN state.
	StatePinCheckInit
	StatePinCheckListen
	StatePinCheckBusyWait
	StatePinCheckOk

	// Approved, steady state, terminal.
	StateApproved
	StateDataExchange
	StateError
)

// handshakeEnded reports whether state is one of the states close-connection
// (C9) treats as "the handshake concluded" for the purposes of
// handle_connection_closed's handshake_ended argument (spec.md §4.9).
func (s State) handshakeEnded() bool {
	switch s {
	case StateDataExchange, StateSmeHelloAbortDone, StateSmeHelloRemoteAbortDone, StateSmeHelloRejected:
		return true
	default:
		return false
	}
}
