// SPDX-FileCopyrightText: 2023 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package ship

// smeHello is the entry point of the SME Hello phase; it always proceeds to
// SmeHelloReadyInit (spec.md §4.7).
func (c *Connection) smeHello() State {
	return StateSmeHelloReadyInit
}

func (c *Connection) helloWaitingMS() *uint32 {
	ms := uint32(tHelloInit.Milliseconds())
	return &ms
}

// smeHelloReadyInit announces Ready and starts listening for the peer's own
// Hello.
func (c *Connection) smeHelloReadyInit() State {
	c.timers.stopProlongationTimers()
	if err := c.serializeAndSend(FrameControl, ValueTypeHello, Hello{Phase: HelloPhaseReady, WaitingMs: c.helloWaitingMS()}); err != nil {
		c.setLastError(err)
		return StateSmeHelloAbort
	}
	return StateSmeHelloReadyListen
}

// smeHelloReadyListen waits for the peer's Hello while we are Ready. A host
// Abort request here (the handshake is already past the pending decision
// point) follows the generic Hello-abort path rather than Rejected.
func (c *Connection) smeHelloReadyListen() State {
	res := c.receive(tHelloInit, acceptSet{abort: true})
	if res.kind == outcomeTimedOut {
		return StateSmeHelloReadyTimeout
	}
	if res.kind == outcomeAbort {
		return StateSmeHelloAbort
	}
	if res.kind != outcomeOk {
		return c.helloNonDataOutcome(res)
	}
	defer res.buf.Release()

	env, err := Decode(res.buf.Bytes())
	if err != nil || env.Type != ValueTypeHello || env.Hello == nil {
		return StateSmeHelloAbort
	}

	switch env.Hello.Phase {
	case HelloPhaseReady:
		return StateSmeHelloOk
	case HelloPhasePending:
		return c.commonProlongationAndUpdate(*env.Hello, HelloPhaseReady, StateSmeHelloReadyListen)
	default:
		return StateSmeHelloAbort
	}
}

// smeHelloReadyTimeout is reached when the peer never answered a Ready
// Hello; it aborts like any other Hello failure.
func (c *Connection) smeHelloReadyTimeout() State {
	return StateSmeHelloAbort
}

// smeHelloPendingInit announces Pending - used when a host application has
// not yet decided whether to accept this peer.
func (c *Connection) smeHelloPendingInit() State {
	c.timers.stopProlongationTimers()
	if err := c.serializeAndSend(FrameControl, ValueTypeHello, Hello{Phase: HelloPhasePending, WaitingMs: c.helloWaitingMS()}); err != nil {
		c.setLastError(err)
		return StateSmeHelloAbort
	}
	return StateSmeHelloPendingListen
}

// smeHelloPendingListen waits for the peer's Hello, the host's Approve/
// Abort decision, or a prolongation deadline while Pending.
func (c *Connection) smeHelloPendingListen() State {
	res := c.receive(tHelloInit, acceptSet{approve: true, abort: true})
	switch res.kind {
	case outcomeApprove:
		// Approval sends our Ready Hello and moves straight on to
		// SmeHelloOk; the peer has already announced its own phase.
		if next := c.smeHelloReadyInit(); next != StateSmeHelloReadyListen {
			return next
		}
		return StateSmeHelloOk
	case outcomeAbort:
		_ = c.serializeAndSend(FrameControl, ValueTypeHello, Hello{Phase: HelloPhaseAborted})
		c.closeConnection(false, closeStatusRejected, "Node rejected by application")
		return StateSmeHelloRejected
	case outcomeTimedOut:
		return StateSmeHelloPendingTimeout
	case outcomeOk:
	default:
		return c.helloNonDataOutcome(res)
	}
	defer res.buf.Release()

	env, err := Decode(res.buf.Bytes())
	if err != nil || env.Type != ValueTypeHello || env.Hello == nil {
		return StateSmeHelloAbort
	}

	switch env.Hello.Phase {
	case HelloPhaseReady:
		return c.waitingSubelementCheck(*env.Hello)
	case HelloPhasePending:
		return c.commonProlongationAndUpdate(*env.Hello, HelloPhasePending, StateSmeHelloPendingListen)
	default:
		return StateSmeHelloAbort
	}
}

// smeHelloPendingTimeout dispatches on which timer actually fired while
// Pending: the wait-for-ready/prolongation-reply deadlines abort the Hello;
// a send-prolongation deadline asks the peer to keep waiting.
func (c *Connection) smeHelloPendingTimeout() State {
	if c.timers.waitForReady.query() == timerExpired || c.timers.prolongationRequestReply.query() == timerExpired {
		return StateSmeHelloAbort
	}
	if c.timers.sendProlongationRequest.query() == timerExpired {
		req := true
		if err := c.serializeAndSend(FrameControl, ValueTypeHello, Hello{Phase: HelloPhasePending, ProlongationReq: &req}); err != nil {
			c.setLastError(err)
			return StateSmeHelloAbort
		}

		c.mu.Lock()
		lastWaiting := c.lastReceivedWaitingMS
		c.mu.Unlock()

		candidate := durationFromMS(lastWaiting)
		candidate += candidate / 10 // checked-integer stand-in for × 1.1
		remaining := c.timers.prolongationRequestReply.remaining()
		if remaining > candidate {
			candidate = remaining
		}
		c.timers.prolongationRequestReply.start(candidate)
		return StateSmeHelloPendingListen
	}
	return StateSmeHelloAbort
}

// smeHelloAbort sends a best-effort Hello{Aborted} and closes the
// connection. It returns RemoteAbortDone when helloAbortRemote is set and
// AbortDone otherwise. No handler sets helloAbortRemote, so an abort
// triggered by the peer's Hello{Aborted} also ends in AbortDone.
func (c *Connection) smeHelloAbort() State {
	_ = c.serializeAndSend(FrameControl, ValueTypeHello, Hello{Phase: HelloPhaseAborted})

	c.mu.Lock()
	remote := c.helloAbortRemote
	c.mu.Unlock()

	c.closeWithError("hello aborted", ErrCommunicationEnd)
	if remote {
		return StateSmeHelloRemoteAbortDone
	}
	return StateSmeHelloAbortDone
}

// smeHelloOk moves into the protocol-version handshake, branching by role.
func (c *Connection) smeHelloOk() State {
	if c.role == RoleServer {
		return StateProtHServerInit
	}
	return StateProtHClientInit
}

// helloNonDataOutcome maps a receive() outcome that isn't Ok/TimedOut/
// Approve/Abort onto the shared Hello abort path.
func (c *Connection) helloNonDataOutcome(res outcome) State {
	switch res.kind {
	case outcomeCancelled:
		c.setLastError(ErrDeactivate)
	case outcomeCommunicationError, outcomeCommunicationEnded:
		c.setLastError(ErrCommunicationEnd)
	}
	return StateSmeHelloAbort
}

// commonProlongationAndUpdate implements spec.md §4.7's
// common-prolongation-and-update sub-procedure: a prolongation request
// extends wait-for-ready and resends the current phase's Hello; otherwise
// the event is ignored and listening continues.
func (c *Connection) commonProlongationAndUpdate(h Hello, phase HelloPhase, resumeState State) State {
	if h.ProlongationReq == nil || !*h.ProlongationReq {
		return resumeState
	}

	extended := c.timers.waitForReady.remaining() + tHelloInc
	c.timers.waitForReady.start(extended)

	ms := uint32(extended.Milliseconds())
	if err := c.serializeAndSend(FrameControl, ValueTypeHello, Hello{Phase: phase, WaitingMs: &ms}); err != nil {
		c.setLastError(err)
		return StateSmeHelloAbort
	}
	return resumeState
}

// waitingSubelementCheck implements spec.md §4.7's waiting-subelement check:
// a Ready Hello received while Pending stops the wait timers and arms the
// send-prolongation schedule from the peer's announced waiting value.
func (c *Connection) waitingSubelementCheck(h Hello) State {
	c.timers.waitForReady.stop()
	c.timers.prolongationRequestReply.stop()

	if h.WaitingMs != nil {
		c.mu.Lock()
		c.lastReceivedWaitingMS = *h.WaitingMs
		c.mu.Unlock()
		c.armSendProlongation(*h.WaitingMs)
	}
	return StateSmeHelloReadyInit
}

// armSendProlongation implements spec.md §4.7's new-wait-value rule.
func (c *Connection) armSendProlongation(waitingMS uint32) {
	waiting := durationFromMS(waitingMS)
	if waiting < tHelloProlongThrInc {
		c.timers.sendProlongationRequest.stop()
		return
	}
	candidate := waiting - tHelloProlongWaitingGap
	if candidate < tHelloProlongMin {
		c.timers.sendProlongationRequest.stop()
		return
	}
	c.timers.sendProlongationRequest.start(candidate)
}

func (c *Connection) setLastError(err error) {
	c.mu.Lock()
	c.lastError = err
	c.mu.Unlock()
}
