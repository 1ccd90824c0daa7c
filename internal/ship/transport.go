// SPDX-FileCopyrightText: 2023 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package ship

import "context"

// Transport is the capability interface the core consumes for WebSocket
// frame I/O (spec.md §6, "WebsocketObject"). Implementations live outside
// this package - see internal/transport/wsconn for the reference one. The
// C vtable-of-function-pointers this collapses from becomes, in Go, an
// ordinary interface (spec.md §9).
type Transport interface {
	// Write sends data as a single WebSocket binary frame and returns the
	// number of bytes written. The core treats any count short of
	// len(data) as ErrCommunication.
	Write(data []byte) (int, error)

	// Close closes the underlying WebSocket connection with the given
	// status code and reason.
	Close(code int, reason string) error

	// IsClosed reports whether the transport has already closed, locally
	// or remotely.
	IsClosed() bool

	// CloseError returns the error that caused the transport to close, if
	// any such reason is known.
	CloseError() error

	// ScheduleWrite is an advisory hint that the caller intends to write
	// soon, letting the transport warm up any write-side buffering. It is
	// never required for correctness.
	ScheduleWrite()
}

// TransportCallback is the single callback surface a Transport emits read,
// error, and close notifications to. Implementations (i.e. the Connection)
// must not block in these methods and must never touch connection state
// directly - only enqueue events (spec.md §5, §9).
type TransportCallback interface {
	OnRead(data []byte)
	OnError(err error)
	OnClose()
}

// TransportFactory constructs a Transport bound to a single callback
// (spec.md §6, "WebsocketCreator"). Invoked once per Connection.Start.
type TransportFactory interface {
	CreateTransport(ctx context.Context, cb TransportCallback) (Transport, error)
}

// DataReader is the SPINE-inbound sink returned by
// InfoProvider.SetupRemoteDevice; Data Exchange (C8) calls HandleMessage for
// every inbound Data payload.
type DataReader interface {
	HandleMessage(buf Buffer)
}

// DataWriter is the SPINE-outbound entry point. Connection implements this
// interface directly (spec.md §9: one type, two capabilities, in place of
// the source's ShipConnectionInterface-extends-DataWriterInterface
// inheritance).
type DataWriter interface {
	WriteMessage(data []byte) error
}

// InfoProvider is the core's upward interface to the enclosing node
// (spec.md §6). The enclosing node's own lifecycle - attempt scheduling,
// connection registry, trust/pairing decisions, HTTP pairing server - is out
// of scope for this module; InfoProvider is only the narrow seam the core
// calls through. See internal/demo for a minimal stand-in implementation.
type InfoProvider interface {
	// IsRemoteServiceForSKIPaired reports whether ski is already a paired,
	// trusted peer.
	IsRemoteServiceForSKIPaired(ski string) bool

	// IsWaitingForTrustAllowed reports whether the enclosing node is
	// currently willing to accept a new trust relationship with ski.
	IsWaitingForTrustAllowed(ski string) bool

	// HandleConnectionClosed is invoked exactly once per Connection
	// lifetime by close-connection (C9).
	HandleConnectionClosed(conn *Connection, handshakeEnded bool)

	// ReportServiceShipID records the peer-reported SHIP id for a given
	// service/connection identifier.
	ReportServiceShipID(serviceID, shipID string)

	// HandleShipStateUpdate is invoked once per real (non-idempotent)
	// state transition (spec.md §4.7).
	HandleShipStateUpdate(ski string, state State, err error)

	// SetupRemoteDevice is called once, on reaching StateApproved, to wire
	// the Connection (as a DataWriter) to the node's SPINE inbound sink.
	SetupRemoteDevice(ski string, writer DataWriter) (DataReader, error)
}
