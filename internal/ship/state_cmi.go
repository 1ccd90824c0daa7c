// SPDX-FileCopyrightText: 2023 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package ship

import "fmt"

// cmiClientSend sends the fixed CMI Init frame and moves straight to
// waiting for the peer's own Init (spec.md §4.7, CMI).
func (c *Connection) cmiClientSend() State {
	if err := c.serializeAndSend(FrameInit, ValueTypeInit, nil); err != nil {
		c.closeWithError("cmi send failed", err)
		return StateError
	}
	return StateCmiClientWait
}

// cmiClientWait blocks for the peer's Init frame, bounded by cmiTimeout.
func (c *Connection) cmiClientWait() State {
	res := c.receive(cmiTimeout, acceptSet{})
	switch res.kind {
	case outcomeOk:
		defer res.buf.Release()
		return c.cmiClientEvaluate(res.buf)
	case outcomeTimedOut:
		c.closeWithError("cmi wait timed out", ErrTime)
	case outcomeCancelled:
		c.closeWithError("cancelled", ErrDeactivate)
	case outcomeCommunicationError, outcomeCommunicationEnded:
		c.closeWithError("transport closed during cmi", ErrCommunicationEnd)
	}
	return StateError
}

// cmiClientEvaluate decodes and validates the frame cmiClientWait received.
func (c *Connection) cmiClientEvaluate(buf Buffer) State {
	env, err := Decode(buf.Bytes())
	if err != nil || env.Type != ValueTypeInit {
		c.closeWithError("cmi evaluate: unexpected frame", fmt.Errorf("%w: expected init", ErrParse))
		return StateError
	}
	return StateSmeHello
}

// cmiServerWait blocks for the client's Init frame.
func (c *Connection) cmiServerWait() State {
	res := c.receive(cmiTimeout, acceptSet{})
	switch res.kind {
	case outcomeOk:
		defer res.buf.Release()
		return c.cmiServerEvaluate(res.buf)
	case outcomeTimedOut:
		c.closeWithError("cmi wait timed out", ErrTime)
	case outcomeCancelled:
		c.closeWithError("cancelled", ErrDeactivate)
	case outcomeCommunicationError, outcomeCommunicationEnded:
		c.closeWithError("transport closed during cmi", ErrCommunicationEnd)
	}
	return StateError
}

// cmiServerEvaluate validates the client's Init and replies with our own.
func (c *Connection) cmiServerEvaluate(buf Buffer) State {
	env, err := Decode(buf.Bytes())
	if err != nil || env.Type != ValueTypeInit {
		c.closeWithError("cmi evaluate: unexpected frame", fmt.Errorf("%w: expected init", ErrParse))
		return StateError
	}
	if err := c.serializeAndSend(FrameInit, ValueTypeInit, nil); err != nil {
		c.closeWithError("cmi reply failed", err)
		return StateError
	}
	return StateSmeHello
}
