// SPDX-FileCopyrightText: 2023 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package ship

import (
	"bytes"
	"fmt"
	"time"
)

// dataExchange is the steady-state handler for StateDataExchange (C8). The
// entry-side effect (sending SmeConnectionAccessMethodsRequest) fires once
// per connection, guarded by accessMethodsSent; every call thereafter
// blocks on the Event Queue with no timer armed, since SPINE message
// arrival is demand-driven (spec.md §4.8).
func (c *Connection) dataExchange() State {
	c.mu.Lock()
	alreadySent := c.accessMethodsSent
	c.accessMethodsSent = true
	c.mu.Unlock()

	if !alreadySent {
		if err := c.serializeAndSend(FrameControl, ValueTypeConnectionAccessMethodsReq, ConnectionAccessMethodsRequest{}); err != nil {
			c.closeWithError("access methods request failed", err)
			return StateError
		}
		c.timers.waitForReady.start(cmiTimeout)
	}

	ev := c.queue.receive()
	switch ev.kind {
	case eventDataReceived:
		defer ev.buf.Release()
		return c.handleDataExchangeFrame(ev.buf)

	case eventSpineDataToSend:
		defer ev.buf.Release()
		payload := append([]byte(nil), ev.buf.Bytes()...)
		data := Data{Header: DataHeader{ProtocolID: ShipDataProtocolIDSpine}, Payload: payload}
		if err := c.serializeAndSend(FrameData, ValueTypeData, data); err != nil {
			c.closeWithError("data send failed", err)
			return StateError
		}
		return StateDataExchange

	case eventCancel:
		c.closeConnection(false, 0, "")
		return StateError

	case eventTimeout:
		c.closeWithError("data exchange access methods timed out", ErrTime)
		return StateError

	case eventWebsocketClose:
		c.closeConnection(false, 0, "")
		return StateError

	case eventWebsocketError:
		c.closeWithError("transport error during data exchange", ErrCommunicationEnd)
		return StateError

	default:
		return StateDataExchange
	}
}

// handleDataExchangeFrame decodes one inbound frame and dispatches it per
// spec.md §4.8's event table.
func (c *Connection) handleDataExchangeFrame(buf Buffer) State {
	env, err := Decode(buf.Bytes())
	if err != nil {
		c.closeWithError("unrecognized data exchange frame", fmt.Errorf("%w: %s", ErrCommunication, err))
		return StateError
	}

	switch env.Type {
	case ValueTypeData:
		return c.handleInboundData(env.Data)

	case ValueTypeConnectionAccessMethodsReq:
		reply := ConnectionAccessMethods{ShipID: c.localShipID}
		if err := c.serializeAndSend(FrameControl, ValueTypeConnectionAccessMethods, reply); err != nil {
			c.closeWithError("access methods reply failed", err)
			return StateError
		}
		return StateDataExchange

	case ValueTypeConnectionAccessMethods:
		return c.handleInboundAccessMethods(env.AccessMethods)

	case ValueTypeClose:
		return c.handleInboundClose(env.Close)

	default:
		c.closeWithError("unexpected data exchange frame type", fmt.Errorf("%w: %s", ErrCommunication, env.Type))
		return StateError
	}
}

func (c *Connection) handleInboundData(d *Data) State {
	if d == nil {
		c.closeWithError("empty data frame", ErrParse)
		return StateError
	}

	c.mu.Lock()
	reader := c.dataReader
	c.mu.Unlock()

	if reader != nil {
		reader.HandleMessage(OwnedBuffer(append([]byte(nil), d.Payload...), nil))
	}
	return StateDataExchange
}

func (c *Connection) handleInboundAccessMethods(am *ConnectionAccessMethods) State {
	if am == nil {
		c.closeWithError("empty access methods frame", ErrParse)
		return StateError
	}

	c.mu.Lock()
	stored := c.remoteShipID
	c.mu.Unlock()

	if stored != "" {
		if !hasPrefixMatch(stored, am.ShipID) {
			c.closeWithError("remote ship id mismatch", ErrParse)
			return StateError
		}
	} else {
		c.mu.Lock()
		c.remoteShipID = am.ShipID
		c.mu.Unlock()
		c.infoProvider.ReportServiceShipID(c.remoteSKI, am.ShipID)
	}

	c.timers.waitForReady.stop()
	return StateDataExchange
}

func (c *Connection) handleInboundClose(cl *Close) State {
	if cl == nil {
		c.closeWithError("empty close frame", ErrParse)
		return StateError
	}

	switch cl.Phase {
	case ClosePhaseAnnounce:
		_ = c.serializeAndSend(FrameControl, ValueTypeClose, Close{Phase: ClosePhaseConfirm})
		time.Sleep(closeGraceDelay)
		c.closeConnection(false, closeStatusNormal, cl.Reason)
		return StateError

	case ClosePhaseConfirm:
		c.closeConnection(false, closeStatusNormal, cl.Reason)
		return StateError

	default:
		c.closeWithError("invalid close phase", ErrParse)
		return StateError
	}
}

// hasPrefixMatch implements spec.md §4.8's "equal-prefix match" comparison
// between a previously stored remote ship id and a newly reported one.
func hasPrefixMatch(stored, reported string) bool {
	if len(stored) <= len(reported) {
		return bytes.HasPrefix([]byte(reported), []byte(stored))
	}
	return bytes.HasPrefix([]byte(stored), []byte(reported))
}
