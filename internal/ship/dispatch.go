// SPDX-FileCopyrightText: 2023 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package ship

// handlerFunc advances the state machine by one step, returning the next
// state (spec.md §4.6, Role Dispatcher).
type handlerFunc func(c *Connection) State

// sharedHandlers holds the states both roles drive identically: SME Hello,
// PIN, Approved, and Data Exchange are role-agnostic once CMI has decided
// who speaks first.
var sharedHandlers = map[State]handlerFunc{
	StateSmeHello:               (*Connection).smeHello,
	StateSmeHelloReadyInit:      (*Connection).smeHelloReadyInit,
	StateSmeHelloReadyListen:    (*Connection).smeHelloReadyListen,
	StateSmeHelloReadyTimeout:   (*Connection).smeHelloReadyTimeout,
	StateSmeHelloPendingInit:    (*Connection).smeHelloPendingInit,
	StateSmeHelloPendingListen:  (*Connection).smeHelloPendingListen,
	StateSmeHelloPendingTimeout: (*Connection).smeHelloPendingTimeout,
	StateSmeHelloAbort:          (*Connection).smeHelloAbort,
	StateSmeHelloOk:             (*Connection).smeHelloOk,
	StatePinCheckInit:           (*Connection).pinCheckInit,
	StatePinCheckListen:         (*Connection).pinCheckListen,
	StatePinCheckBusyWait:       (*Connection).pinCheckBusyWait,
	StatePinCheckOk:             (*Connection).pinCheckOk,
	StateApproved:               (*Connection).approved,
	StateDataExchange:           (*Connection).dataExchange,
}

// StateCmiClientEvaluate/StateCmiServerEvaluate never appear here: CMI wait
// calls its evaluate step inline and returns the evaluated result directly
// (spec.md §4.7), so those two states are reachable in name only.
var clientHandlers = mergedHandlers(map[State]handlerFunc{
	StateCmiClientSend:           (*Connection).cmiClientSend,
	StateCmiClientWait:           (*Connection).cmiClientWait,
	StateProtHClientInit:         (*Connection).protHClientInit,
	StateProtHClientListenChoice: (*Connection).protHClientListenChoice,
	StateProtHClientOk:           (*Connection).protHClientOk,
})

var serverHandlers = mergedHandlers(map[State]handlerFunc{
	StateCmiServerWait:             (*Connection).cmiServerWait,
	StateProtHServerInit:           (*Connection).protHServerInit,
	StateProtHServerListenProposal: (*Connection).protHServerListenProposal,
	StateProtHServerListenConfirm:  (*Connection).protHServerListenConfirm,
	StateProtHServerOk:             (*Connection).protHServerOk,
})

func mergedHandlers(roleSpecific map[State]handlerFunc) map[State]handlerFunc {
	merged := make(map[State]handlerFunc, len(sharedHandlers)+len(roleSpecific))
	for k, v := range sharedHandlers {
		merged[k] = v
	}
	for k, v := range roleSpecific {
		merged[k] = v
	}
	return merged
}

// dispatch looks up state in the current role's table and invokes its
// handler. A state absent from the role's table (i.e. belonging to the
// other role, or StateUnstarted/StateError) is reported as not handled so
// the worker can soft-idle and re-check (spec.md §4.6).
func (c *Connection) dispatch(state State) (State, bool) {
	table := clientHandlers
	if c.role == RoleServer {
		table = serverHandlers
	}

	handler, ok := table[state]
	if !ok {
		return state, false
	}
	return handler(c), true
}
