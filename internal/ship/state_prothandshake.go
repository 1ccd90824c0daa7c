// SPDX-FileCopyrightText: 2023 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package ship

// protHandshakeAbort implements the shared protocol-handshake failure path
// (spec.md §4.7): stop wait-for-ready, send a best-effort
// SmeProtocolHandshakeError, and close with error.
func (c *Connection) protHandshakeAbort(errType ProtocolHandshakeErrorType) State {
	c.timers.waitForReady.stop()
	_ = c.serializeAndSend(FrameControl, ValueTypeProtocolHandshakeError, ProtocolHandshakeError{Error: errType})
	c.closeWithError("Abort protocol handshake", ErrParse)
	return StateError
}

// protHClientInit announces our max supported version.
func (c *Connection) protHClientInit() State {
	c.timers.waitForReady.stop()
	proposal := ProtocolHandshake{
		HandshakeType: HandshakeTypeAnnounceMax,
		Version:       ProtocolVersion{Major: protocolMaxMajor, Minor: protocolMaxMinor},
		Formats:       []HandshakeFormat{FormatUTF8},
	}
	if err := c.serializeAndSend(FrameControl, ValueTypeProtocolHandshake, proposal); err != nil {
		c.closeWithError("protocol handshake send failed", err)
		return StateError
	}
	return StateProtHClientListenChoice
}

// protHClientListenChoice waits for the server's Select and validates it
// agrees to exactly our announced version and format.
func (c *Connection) protHClientListenChoice() State {
	res := c.receive(cmiTimeout, acceptSet{})
	if res.kind != outcomeOk {
		return c.protHNonDataOutcome(res)
	}
	defer res.buf.Release()

	env, err := Decode(res.buf.Bytes())
	if err != nil || env.Type != ValueTypeProtocolHandshake || env.ProtocolHandshake == nil {
		return c.protHandshakeAbort(HandshakeErrorUnexpectedMessage)
	}
	sel := env.ProtocolHandshake
	if sel.HandshakeType != HandshakeTypeSelect {
		return c.protHandshakeAbort(HandshakeErrorUnexpectedMessage)
	}
	if sel.Version.Major != protocolMaxMajor || sel.Version.Minor != protocolMaxMinor || !hasFormat(sel.Formats, FormatUTF8) {
		return c.protHandshakeAbort(HandshakeErrorSelectionMismatch)
	}

	confirm := ProtocolHandshake{
		HandshakeType: HandshakeTypeSelect,
		Version:       ProtocolVersion{Major: protocolMaxMajor, Minor: protocolMaxMinor},
		Formats:       []HandshakeFormat{FormatUTF8},
	}
	if err := c.serializeAndSend(FrameControl, ValueTypeProtocolHandshake, confirm); err != nil {
		c.closeWithError("protocol handshake confirm failed", err)
		return StateError
	}
	return StateProtHClientOk
}

// protHServerInit stops wait-for-ready and starts listening for the
// client's AnnounceMax proposal.
func (c *Connection) protHServerInit() State {
	c.timers.waitForReady.stop()
	return StateProtHServerListenProposal
}

// protHServerListenProposal agrees to the client's own version numbers
// verbatim, per spec.md §9's preserve-as-is resolution, as long as they do
// not exceed what we support.
func (c *Connection) protHServerListenProposal() State {
	res := c.receive(cmiTimeout, acceptSet{})
	if res.kind != outcomeOk {
		return c.protHNonDataOutcome(res)
	}
	defer res.buf.Release()

	env, err := Decode(res.buf.Bytes())
	if err != nil || env.Type != ValueTypeProtocolHandshake || env.ProtocolHandshake == nil {
		return c.protHandshakeAbort(HandshakeErrorUnexpectedMessage)
	}
	proposal := env.ProtocolHandshake
	if proposal.HandshakeType != HandshakeTypeAnnounceMax {
		return c.protHandshakeAbort(HandshakeErrorUnexpectedMessage)
	}
	if proposal.Version.Major > protocolMaxMajor || proposal.Version.Minor > protocolMaxMinor || !hasFormat(proposal.Formats, FormatUTF8) {
		return c.protHandshakeAbort(HandshakeErrorSelectionMismatch)
	}

	agreed := ProtocolHandshake{
		HandshakeType: HandshakeTypeSelect,
		Version:       proposal.Version,
		Formats:       []HandshakeFormat{FormatUTF8},
	}
	if err := c.serializeAndSend(FrameControl, ValueTypeProtocolHandshake, agreed); err != nil {
		c.closeWithError("protocol handshake select failed", err)
		return StateError
	}
	return StateProtHServerListenConfirm
}

// protHServerListenConfirm waits for the client's echoed Select; only the
// frame type is re-validated.
func (c *Connection) protHServerListenConfirm() State {
	res := c.receive(cmiTimeout, acceptSet{})
	if res.kind != outcomeOk {
		return c.protHNonDataOutcome(res)
	}
	defer res.buf.Release()

	env, err := Decode(res.buf.Bytes())
	if err != nil || env.Type != ValueTypeProtocolHandshake || env.ProtocolHandshake == nil || env.ProtocolHandshake.HandshakeType != HandshakeTypeSelect {
		return c.protHandshakeAbort(HandshakeErrorUnexpectedMessage)
	}
	c.timers.waitForReady.stop()
	return StateProtHServerOk
}

// protHClientOk / protHServerOk both fall through to the PIN state.
func (c *Connection) protHClientOk() State { return StatePinCheckInit }
func (c *Connection) protHServerOk() State { return StatePinCheckInit }

func (c *Connection) protHNonDataOutcome(res outcome) State {
	switch res.kind {
	case outcomeTimedOut:
		return c.protHandshakeAbort(HandshakeErrorUnexpectedMessage)
	case outcomeCancelled:
		c.closeWithError("cancelled", ErrDeactivate)
	case outcomeCommunicationError, outcomeCommunicationEnded:
		c.closeWithError("transport closed during protocol handshake", ErrCommunicationEnd)
	}
	return StateError
}

func hasFormat(formats []HandshakeFormat, want HandshakeFormat) bool {
	for _, f := range formats {
		if f == want {
			return true
		}
	}
	return false
}
