// SPDX-FileCopyrightText: 2023 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

// Package ship implements the per-connection SHIP (Smart Home IP) state
// machine: the client/server handshake, the hello/prolongation
// sub-protocol, protocol-version negotiation, the PIN/access-methods
// exchange, and the steady-state Data Exchange. It is grounded on
// internal/websocket/ws.go's New/Start/Stop lifecycle, generalized from a
// reconnect-and-forward WRP client into the exhaustive SHIP handshake state
// machine described by the original openeebus C implementation
// (original_source/src/ship/ship_connection/ship_connection.c).
package ship

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xmidt-org/eventor"
	"go.uber.org/zap"

	"github.com/philipptrenz/ship-go/internal/ship/event"
)

// Connection is a stateful SHIP connection bound to exactly one transport
// (spec.md §3). The zero value is not usable; construct with New.
type Connection struct {
	role         Role
	localShipID  string
	remoteSKI    string
	remoteShipID string

	infoProvider     InfoProvider
	transportFactory TransportFactory
	logger           *zap.Logger

	queue  *eventQueue
	timers *timerSet

	stateListeners  eventor.Eventor[event.StateListener]
	closedListeners eventor.Eventor[event.ClosedListener]

	// mu guards the fields below, all of which are only ever mutated by
	// the worker goroutine except where noted (spec.md §3 invariant 2).
	mu                    sync.Mutex
	state                 State
	lastError             error
	accessMethodsSent     bool
	lastReceivedWaitingMS uint32
	helloAbortRemote      bool // scratch: did the peer initiate this Hello abort?
	transport             Transport
	dataReader            DataReader

	cancel       atomic.Bool
	shutdownOnce atomic.Bool

	workerWG sync.WaitGroup
	doneOnce sync.Once
}

// New constructs a Connection. It does not attach a transport or start the
// worker - call Start for that.
func New(role Role, localShipID, remoteSKI, remoteShipID string, infoProvider InfoProvider, logger *zap.Logger) (*Connection, error) {
	if localShipID == "" || remoteSKI == "" {
		return nil, fmt.Errorf("%w: localShipID and remoteSKI are required", ErrInputArgument)
	}
	if infoProvider == nil {
		return nil, fmt.Errorf("%w: nil InfoProvider", ErrInputArgument)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Connection{
		role:         role,
		localShipID:  localShipID,
		remoteSKI:    remoteSKI,
		remoteShipID: remoteShipID,
		infoProvider: infoProvider,
		logger:       logger.Named("ship").With(zap.String("remoteSKI", remoteSKI), zap.String("role", role.String())),
		state:        StateUnstarted,
	}

	return c, nil
}

// Start attaches a transport produced by factory and spawns the single
// worker that drives the state machine (spec.md §4.9). Start never panics;
// any sub-step failure leaves the connection in a clean, already-closed
// state.
func (c *Connection) Start(ctx context.Context, factory TransportFactory) {
	c.mu.Lock()
	if c.transport != nil {
		c.mu.Unlock()
		return
	}
	c.transportFactory = factory
	c.mu.Unlock()

	c.queue = newEventQueue(DefaultQueueCapacity)
	c.timers = newTimerSet(c.queue)

	transport, err := factory.CreateTransport(ctx, c)
	if err != nil {
		c.logger.Warn("failed to create transport", zap.Error(err))
		c.setState(StateError, fmt.Errorf("%w: %s", ErrCommunication, err))
		c.closeConnection(false, 0, "")
		return
	}

	c.mu.Lock()
	c.transport = transport
	initial := StateCmiClientSend
	if c.role == RoleServer {
		initial = StateCmiServerWait
	}
	c.mu.Unlock()

	c.setState(initial, nil)

	c.workerWG.Add(1)
	go c.runWorker()
}

// Stop requests cancellation, waits for the worker to exit, and performs an
// abrupt close-connection. Stop is idempotent - calling it any number of
// times has the same observable effect as calling it once (spec.md §8).
func (c *Connection) Stop() {
	c.cancel.Store(true)
	if c.queue != nil {
		// Once the worker has exited nothing drains the queue, so a repeated
		// Stop must not block on a full queue.
		exited := make(chan struct{})
		go func() {
			c.workerWG.Wait()
			close(exited)
		}()
		select {
		case c.queue.ch <- queueEvent{kind: eventCancel}:
		case <-exited:
		}
	}
	c.workerWG.Wait()
	c.closeConnection(false, 0, "")
}

// State returns the current state and terminal error, if any (C9,
// get_state).
func (c *Connection) State() (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.lastError
}

// WriteMessage is the SPINE-outbound entry point from the application layer
// (C9, write_message / DataWriter). The bytes are copied and enqueued; the
// call never blocks on network I/O.
func (c *Connection) WriteMessage(data []byte) error {
	if c.shutdownOnce.Load() {
		return ErrClosed
	}
	cp := append([]byte(nil), data...)
	c.queue.send(queueEvent{kind: eventSpineDataToSend, buf: OwnedBuffer(cp, nil)})
	return nil
}

// ApprovePendingHandshake is only meaningful while the worker is blocked in
// SmeHelloPendingListen; it drives the pending Hello to Ready and on into
// the protocol-version handshake. Any other state makes this call a no-op.
func (c *Connection) ApprovePendingHandshake() {
	if c.currentState() != StateSmeHelloPendingListen {
		return
	}
	c.queue.send(queueEvent{kind: eventApprove})
}

// AbortPendingHandshake is only meaningful from SmeHelloPendingListen or
// SmeHelloReadyListen; any other state makes this call a no-op.
func (c *Connection) AbortPendingHandshake() {
	switch c.currentState() {
	case StateSmeHelloPendingListen, StateSmeHelloReadyListen:
		c.queue.send(queueEvent{kind: eventAbort})
	}
}

// CloseConnection requests a close. safe requests the Data-Exchange
// announce/confirm grace sequence when the connection is currently in
// DataExchange; otherwise the transport is closed immediately with the
// given code/reason (spec.md §4.9).
func (c *Connection) CloseConnection(safe bool, code int, reason string) {
	c.closeConnection(safe, code, reason)
}

// AddStateListener registers l for every StateChange event. [ADDED] host
// observability convenience beyond the InfoProvider contract, grounded on
// internal/websocket's AddConnectListener option pattern.
func (c *Connection) AddStateListener(l event.StateListener) event.CancelFunc {
	return event.CancelFunc(c.stateListeners.Add(l))
}

// AddClosedListener registers l for the single Closed event this
// Connection ever emits.
func (c *Connection) AddClosedListener(l event.ClosedListener) event.CancelFunc {
	return event.CancelFunc(c.closedListeners.Add(l))
}

var _ DataWriter = (*Connection)(nil)
var _ TransportCallback = (*Connection)(nil)

// OnRead implements TransportCallback: copy inbound bytes and enqueue them.
// Callbacks never touch state directly (spec.md §5, §9).
func (c *Connection) OnRead(data []byte) {
	if c.cancel.Load() || c.shutdownOnce.Load() {
		return
	}
	cp := append([]byte(nil), data...)
	c.queue.trySend(queueEvent{kind: eventDataReceived, buf: OwnedBuffer(cp, nil)})
}

// OnError implements TransportCallback.
func (c *Connection) OnError(err error) {
	if c.cancel.Load() || c.shutdownOnce.Load() {
		return
	}
	c.queue.trySend(queueEvent{kind: eventWebsocketError})
}

// OnClose implements TransportCallback.
func (c *Connection) OnClose() {
	if c.cancel.Load() || c.shutdownOnce.Load() {
		return
	}
	c.queue.trySend(queueEvent{kind: eventWebsocketClose})
}

func (c *Connection) currentState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// setState mutates state and notifies the InfoProvider exactly once per
// real transition (spec.md §4.7 invariant: idempotent sets are suppressed).
func (c *Connection) setState(s State, err error) {
	c.mu.Lock()
	if c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	c.lastError = err
	ski := c.remoteSKI
	c.mu.Unlock()

	c.logger.Debug("state transition", zap.Int("state", int(s)), zap.Error(err))
	c.infoProvider.HandleShipStateUpdate(ski, s, err)
	c.stateListeners.Visit(func(l event.StateListener) {
		l.OnStateChange(event.StateChange{At: time.Now(), SKI: ski, State: s.String(), Err: err})
	})
}

// runWorker is the single worker loop: the sole reader of the Event Queue
// and the sole mutator of state (spec.md §3, §5).
func (c *Connection) runWorker() {
	defer c.workerWG.Done()

	state := c.currentState()
	for !c.cancel.Load() && !c.shutdownOnce.Load() {
		next, handled := c.dispatch(state)
		if !handled {
			time.Sleep(softIdleInterval)
			state = c.currentState()
			continue
		}

		if next != state {
			c.setState(next, c.currentError())
		}
		state = next

		if state == StateError {
			return
		}
	}
}

func (c *Connection) currentError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastError
}

// closeWithError is the shared "abort this handshake" helper every
// handshake state calls on a protocol or communication failure (spec.md
// §4.7, §7). It records the error and performs the close-connection
// procedure; the caller still returns its handler's next state itself
// (StateError, or a terminal Hello state from smeHelloAbort).
func (c *Connection) closeWithError(reason string, cause error) {
	c.mu.Lock()
	c.lastError = cause
	c.mu.Unlock()
	c.logger.Warn("closing connection with error", zap.String("reason", reason), zap.Error(cause))
	c.closeConnection(false, 0, reason)
}

// closeConnection is C9's close-connection(safe, code, reason). It is
// idempotent via shutdownOnce: the Nth call after the first observes the
// guard and returns immediately, guaranteeing exactly one transport Close
// and one HandleConnectionClosed per Connection lifetime (spec.md §8).
func (c *Connection) closeConnection(safe bool, code int, reason string) {
	if !c.shutdownOnce.CompareAndSwap(false, true) {
		return
	}

	if c.timers != nil {
		c.timers.stopAll()
	}

	state := c.currentState()

	c.mu.Lock()
	transport := c.transport
	c.mu.Unlock()

	if transport != nil {
		if safe && state == StateDataExchange {
			_ = c.serializeAndSend(FrameControl, ValueTypeClose, Close{Phase: ClosePhaseAnnounce, Reason: reason})
			time.Sleep(closeGraceDelay)
			_ = transport.Close(closeStatusNormal, "close")
		} else {
			if code == 0 {
				code = closeStatusNormal
			}
			_ = transport.Close(code, reason)
		}
	}

	c.cancel.Store(true)

	handshakeEnded := state.handshakeEnded()
	c.infoProvider.HandleConnectionClosed(c, handshakeEnded)
	c.closedListeners.Visit(func(l event.ClosedListener) {
		l.OnClosed(event.Closed{At: time.Now(), SKI: c.remoteSKI, HandshakeEnded: handshakeEnded})
	})
}
