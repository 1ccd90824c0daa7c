// SPDX-FileCopyrightText: 2023 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package ship

// pinCheckInit declares "no PIN" - this core never implements PIN entry -
// and waits for the peer's own pin-state frame (spec.md §4.7).
func (c *Connection) pinCheckInit() State {
	ok := InputPermissionOk
	announce := ConnectionPinState{PinState: PinStateNone, InputPermission: &ok}
	if err := c.serializeAndSend(FrameControl, ValueTypeConnectionPinState, announce); err != nil {
		c.closeWithError("pin state send failed", err)
		return StateError
	}

	res := c.receive(cmiTimeout, acceptSet{})
	if res.kind != outcomeOk {
		return c.pinNonDataOutcome(res)
	}
	defer res.buf.Release()
	return c.pinEvaluate(res.buf, StatePinCheckInit)
}

// pinCheckListen waits for the peer to report None, ending the PIN phase;
// any other pin-state here is unsupported.
func (c *Connection) pinCheckListen() State {
	res := c.receive(tHelloInit, acceptSet{})
	if res.kind != outcomeOk {
		return c.pinNonDataOutcome(res)
	}
	defer res.buf.Release()

	env, err := Decode(res.buf.Bytes())
	if err != nil || env.Type != ValueTypeConnectionPinState || env.PinState == nil {
		c.closeWithError("Invalid PIN state", ErrParse)
		return StateError
	}
	if env.PinState.PinState == PinStateNone {
		return StatePinCheckOk
	}
	c.closeWithError("unsupported PIN state", ErrMisconfigured)
	return StateError
}

// pinCheckBusyWait simply loops back into pinCheckListen (spec.md §4.7).
func (c *Connection) pinCheckBusyWait() State {
	return StatePinCheckListen
}

// pinCheckOk hands off to Approved.
func (c *Connection) pinCheckOk() State {
	return StateApproved
}

// pinEvaluate classifies a decoded ConnectionPinState frame received from
// pinCheckInit's initial wait.
func (c *Connection) pinEvaluate(buf Buffer, onFailure State) State {
	env, err := Decode(buf.Bytes())
	if err != nil || env.Type != ValueTypeConnectionPinState || env.PinState == nil {
		c.closeWithError("Invalid PIN state", ErrParse)
		return StateError
	}

	switch env.PinState.PinState {
	case PinStateNone, PinStateOk:
		return StatePinCheckOk
	case PinStateRequired, PinStateOptional:
		if env.PinState.InputPermission != nil && *env.PinState.InputPermission == InputPermissionBusy {
			return StatePinCheckBusyWait
		}
		if env.PinState.InputPermission != nil && *env.PinState.InputPermission == InputPermissionOk {
			return StatePinCheckListen
		}
		return onFailure
	default:
		c.closeWithError("Invalid PIN state", ErrParse)
		return StateError
	}
}

func (c *Connection) pinNonDataOutcome(res outcome) State {
	switch res.kind {
	case outcomeTimedOut:
		c.closeWithError("pin state wait timed out", ErrTime)
	case outcomeCancelled:
		c.closeWithError("cancelled", ErrDeactivate)
	case outcomeCommunicationError, outcomeCommunicationEnded:
		c.closeWithError("transport closed during pin state", ErrCommunicationEnd)
	}
	return StateError
}
