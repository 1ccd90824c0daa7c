// SPDX-FileCopyrightText: 2023 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package ship

import (
	"fmt"
	"time"
)

// outcomeKind is the result of a receive() call (C5).
type outcomeKind int

const (
	outcomeOk outcomeKind = iota
	outcomeTimedOut
	outcomeCancelled
	outcomeCommunicationError
	outcomeCommunicationEnded
	outcomeApprove
	outcomeAbort
)

// outcome is the classified result of one Event Queue dequeue.
type outcome struct {
	kind outcomeKind
	buf  Buffer
}

// acceptSet controls which of the rarely-used control outcomes (Approve,
// Abort) a given receive() call treats as terminal rather than ignoring.
// Approve/Abort are only meaningful from SmeHelloPendingListen/
// SmeHelloReadyListen (spec.md §4.9); everywhere else they are a no-op, so
// receive() swallows them and keeps waiting rather than surfacing a
// surprising outcome kind the caller's switch has no case for.
type acceptSet struct {
	approve bool
	abort   bool
}

// receive implements C5's blocking receive primitive: it starts the
// wait-for-ready timer for timeout, blocks on the Event Queue with infinite
// queue-wait, and always stops the timer before returning. Stray
// SpineDataToSend events arriving while a handshake state is waiting for a
// specific peer frame are released and ignored - the core does not accept
// application writes before Data Exchange.
func (c *Connection) receive(timeout time.Duration, accept acceptSet) outcome {
	c.timers.waitForReady.start(timeout)
	defer c.timers.waitForReady.stop()

	for {
		ev := c.queue.receive()
		switch ev.kind {
		case eventDataReceived:
			return outcome{kind: outcomeOk, buf: ev.buf}
		case eventTimeout:
			return outcome{kind: outcomeTimedOut}
		case eventCancel:
			return outcome{kind: outcomeCancelled}
		case eventWebsocketError:
			return outcome{kind: outcomeCommunicationError}
		case eventWebsocketClose:
			return outcome{kind: outcomeCommunicationEnded}
		case eventApprove:
			if accept.approve {
				return outcome{kind: outcomeApprove}
			}
		case eventAbort:
			if accept.abort {
				return outcome{kind: outcomeAbort}
			}
		case eventSpineDataToSend:
			ev.buf.Release()
		}
	}
}

// send writes already-encoded bytes to the transport. A short write is
// reported as ErrCommunication.
func (c *Connection) send(buf Buffer) error {
	n, err := c.transport.Write(buf.Bytes())
	if err != nil {
		return fmt.Errorf("%w: %s", ErrCommunication, err)
	}
	if n != buf.Len() {
		return fmt.Errorf("%w: short write (%d of %d bytes)", ErrCommunication, n, buf.Len())
	}
	return nil
}

// serializeAndSend encodes value, sends it, releases the encoded buffer, and
// returns the send outcome (spec.md §4.5).
func (c *Connection) serializeAndSend(frameType FrameType, valueType MsgValueType, value any) error {
	encoded, err := Encode(frameType, valueType, value)
	if err != nil {
		return err
	}

	buf := OwnedBuffer(encoded, nil)
	defer buf.Release()

	return c.send(buf)
}
