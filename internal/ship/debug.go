// SPDX-FileCopyrightText: 2023 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package ship

import "fmt"

// stateNames mirrors ship_connection_debug.c's SmeStateToString lookup
// table: one name per state, used for logging and the State-change event.
var stateNames = map[State]string{
	StateUnstarted: "Unstarted",

	StateCmiClientSend:     "CmiClientSend",
	StateCmiClientWait:     "CmiClientWait",
	StateCmiClientEvaluate: "CmiClientEvaluate",
	StateCmiServerWait:     "CmiServerWait",
	StateCmiServerEvaluate: "CmiServerEvaluate",

	StateSmeHello:               "SmeHello",
	StateSmeHelloReadyInit:      "SmeHelloReadyInit",
	StateSmeHelloReadyListen:    "SmeHelloReadyListen",
	StateSmeHelloReadyTimeout:   "SmeHelloReadyTimeout",
	StateSmeHelloPendingInit:    "SmeHelloPendingInit",
	StateSmeHelloPendingListen:  "SmeHelloPendingListen",
	StateSmeHelloPendingTimeout: "SmeHelloPendingTimeout",
	StateSmeHelloOk:              "SmeHelloOk",
	StateSmeHelloAbort:           "SmeHelloAbort",
	StateSmeHelloAbortDone:       "SmeHelloAbortDone",
	StateSmeHelloRemoteAbortDone: "SmeHelloRemoteAbortDone",
	StateSmeHelloRejected:        "SmeHelloRejected",

	StateProtHClientInit:           "SmeProtHClientInit",
	StateProtHServerInit:           "SmeProtHServerInit",
	StateProtHClientListenChoice:   "SmeProtHClientListenChoice",
	StateProtHServerListenProposal: "SmeProtHServerListenProposal",
	StateProtHServerListenConfirm:  "SmeProtHServerListenConfirm",
	StateProtHClientOk:             "SmeProtHClientOk",
	StateProtHServerOk:             "SmeProtHServerOk",

	StatePinCheckInit:     "SmePinStateCheckInit",
	StatePinCheckListen:   "SmePinStateCheckListen",
	StatePinCheckBusyWait: "SmePinStateCheckBusyWait",
	StatePinCheckOk:       "SmePinStateCheckOk",

	StateApproved:     "SmeStateApproved",
	StateDataExchange: "DataExchange",
	StateError:        "SmeStateError",
}

// String renders state the way the source's debug logging does - bare
// names, empty string for anything outside the table.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return ""
}

// DebugString renders a compact snapshot of the connection for logging,
// grounded on ship_connection_debug.c's role in the original source (which
// only exposed state-to-string, leaving connection-level summaries to the
// caller's own log statements - this adds that summary in the teacher's
// logging idiom).
func (c *Connection) DebugString() string {
	state, err := c.State()
	if err != nil {
		return fmt.Sprintf("Connection{role=%s, ski=%s, state=%s, err=%s}", c.role, c.remoteSKI, state, err)
	}
	return fmt.Sprintf("Connection{role=%s, ski=%s, state=%s}", c.role, c.remoteSKI, state)
}
