// SPDX-FileCopyrightText: 2023 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package ship

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// pipeTransport is a message-oriented, in-memory Transport used to wire two
// Connections together without a real network socket - grounded on
// internal/websocket/ws_test.go's preference for exercising the real client
// against a harness rather than mocking every method.
type pipeTransport struct {
	mu     sync.Mutex
	closed bool
	peer   *pipeTransport
	cb     TransportCallback
	inbox  chan func()
}

func newPipePair() (*pipeTransport, *pipeTransport) {
	a := &pipeTransport{inbox: make(chan func(), 64)}
	b := &pipeTransport{inbox: make(chan func(), 64)}
	a.peer = b
	b.peer = a
	go a.drain()
	go b.drain()
	return a, b
}

// drain delivers callbacks in the order Write/Close enqueued them, so two
// frames written back-to-back on one side arrive at the peer in the same
// order (a guarantee a real message-oriented WebSocket connection gives
// for free, and which a naive goroutine-per-write fake would not).
func (p *pipeTransport) drain() {
	for fn := range p.inbox {
		fn()
	}
}

func (p *pipeTransport) Write(data []byte) (int, error) {
	p.mu.Lock()
	closed := p.closed
	peer := p.peer
	p.mu.Unlock()
	if closed {
		return 0, ErrClosed
	}

	cp := append([]byte(nil), data...)
	peer.inbox <- func() {
		peer.mu.Lock()
		cb := peer.cb
		peer.mu.Unlock()
		if cb != nil {
			cb.OnRead(cp)
		}
	}
	return len(data), nil
}

func (p *pipeTransport) Close(code int, reason string) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	peer := p.peer
	p.mu.Unlock()

	peer.inbox <- func() {
		peer.mu.Lock()
		cb := peer.cb
		peer.closed = true
		peer.mu.Unlock()
		if cb != nil {
			cb.OnClose()
		}
	}
	return nil
}

func (p *pipeTransport) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *pipeTransport) CloseError() error { return nil }
func (p *pipeTransport) ScheduleWrite()    {}

type pipeFactory struct {
	transport *pipeTransport
}

func (f *pipeFactory) CreateTransport(ctx context.Context, cb TransportCallback) (Transport, error) {
	f.transport.cb = cb
	return f.transport, nil
}

// fakeInfoProvider is a minimal InfoProvider recording every call a test
// cares about, grounded on internal/credentials/credentials_test.go's
// capture-and-assert style.
type fakeInfoProvider struct {
	mu            sync.Mutex
	paired        map[string]bool
	trustAllowed  map[string]bool
	closedCalls   []bool
	reportedIDs   map[string]string
	stateUpdates  []State
	readerFactory func(ski string, writer DataWriter) (DataReader, error)
}

func newFakeInfoProvider() *fakeInfoProvider {
	return &fakeInfoProvider{
		paired:       map[string]bool{},
		trustAllowed: map[string]bool{},
		reportedIDs:  map[string]string{},
	}
}

func (f *fakeInfoProvider) IsRemoteServiceForSKIPaired(ski string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.paired[ski]
}

func (f *fakeInfoProvider) IsWaitingForTrustAllowed(ski string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.trustAllowed[ski]
}

func (f *fakeInfoProvider) HandleConnectionClosed(conn *Connection, handshakeEnded bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closedCalls = append(f.closedCalls, handshakeEnded)
}

func (f *fakeInfoProvider) ReportServiceShipID(serviceID, shipID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reportedIDs[serviceID] = shipID
}

func (f *fakeInfoProvider) HandleShipStateUpdate(ski string, state State, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stateUpdates = append(f.stateUpdates, state)
}

func (f *fakeInfoProvider) SetupRemoteDevice(ski string, writer DataWriter) (DataReader, error) {
	if f.readerFactory != nil {
		return f.readerFactory(ski, writer)
	}
	return &fakeDataReader{}, nil
}

type fakeDataReader struct {
	mu       sync.Mutex
	received [][]byte
}

func (r *fakeDataReader) HandleMessage(buf Buffer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.received = append(r.received, append([]byte(nil), buf.Bytes()...))
}

func (r *fakeDataReader) messages() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]byte(nil), r.received...)
}

func awaitState(t *testing.T, c *Connection, want State, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if s, _ := c.State(); s == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	s, err := c.State()
	t.Fatalf("timed out waiting for state %s, last state %s (err=%v)", want, s, err)
}

// TestHandshakeEndToEnd drives a real client Connection against a real
// server Connection over an in-memory pipe through the full CMI / Hello /
// protocol-version / PIN / access-methods sequence into DataExchange, then
// exercises bidirectional SPINE payload forwarding (spec.md §8, scenarios
// 1-2).
func TestHandshakeEndToEnd(t *testing.T) {
	assert := assert.New(t)
	logger := zaptest.NewLogger(t)

	clientTransport, serverTransport := newPipePair()

	clientInfo := newFakeInfoProvider()
	serverInfo := newFakeInfoProvider()

	var clientReader, serverReader *fakeDataReader
	clientInfo.readerFactory = func(ski string, writer DataWriter) (DataReader, error) {
		clientReader = &fakeDataReader{}
		return clientReader, nil
	}
	serverInfo.readerFactory = func(ski string, writer DataWriter) (DataReader, error) {
		serverReader = &fakeDataReader{}
		return serverReader, nil
	}

	clientConn, err := New(RoleClient, "client-ship-id", "server-ski", "", clientInfo, logger)
	require.NoError(t, err)
	serverConn, err := New(RoleServer, "server-ship-id", "client-ski", "", serverInfo, logger)
	require.NoError(t, err)

	clientConn.Start(context.Background(), &pipeFactory{transport: clientTransport})
	serverConn.Start(context.Background(), &pipeFactory{transport: serverTransport})

	awaitState(t, clientConn, StateDataExchange, 2*time.Second)
	awaitState(t, serverConn, StateDataExchange, 2*time.Second)

	require.NoError(t, clientConn.WriteMessage([]byte("hello from client")))
	require.NoError(t, serverConn.WriteMessage([]byte("hello from server")))

	require.Eventually(t, func() bool {
		return serverReader != nil && len(serverReader.messages()) == 1 &&
			clientReader != nil && len(clientReader.messages()) == 1
	}, time.Second, 5*time.Millisecond)

	assert.Equal([]byte("hello from client"), serverReader.messages()[0])
	assert.Equal([]byte("hello from server"), clientReader.messages()[0])

	clientConn.Stop()
	serverConn.Stop()

	assert.Contains(clientInfo.stateUpdates, StateDataExchange)
	assert.Contains(serverInfo.stateUpdates, StateDataExchange)
}

// TestHandshakeProtocolVersionMismatch exercises scenario 3: a client announcing an
// unsupported major version causes the server to reject the handshake.
func TestHandshakeProtocolVersionMismatch(t *testing.T) {
	assert := assert.New(t)
	logger := zaptest.NewLogger(t)

	clientTransport, serverTransport := newPipePair()
	serverInfo := newFakeInfoProvider()
	serverConn, err := New(RoleServer, "server-ship-id", "client-ski", "", serverInfo, logger)
	require.NoError(t, err)
	serverConn.Start(context.Background(), &pipeFactory{transport: serverTransport})

	clientTransport.cb = scriptedCallback{t: t}

	send := func(frameType FrameType, valueType MsgValueType, value any) {
		encoded, err := Encode(frameType, valueType, value)
		require.NoError(t, err)
		_, err = clientTransport.Write(encoded)
		require.NoError(t, err)
	}

	send(FrameInit, ValueTypeInit, nil)
	time.Sleep(20 * time.Millisecond)
	send(FrameControl, ValueTypeHello, Hello{Phase: HelloPhaseReady, WaitingMs: uint32Ptr(60000)})
	time.Sleep(20 * time.Millisecond)
	send(FrameControl, ValueTypeProtocolHandshake, ProtocolHandshake{
		HandshakeType: HandshakeTypeAnnounceMax,
		Version:       ProtocolVersion{Major: 255, Minor: 0},
		Formats:       []HandshakeFormat{FormatUTF8},
	})

	awaitState(t, serverConn, StateError, time.Second)
	assert.True(serverTransport.IsClosed())

	serverConn.Stop()
}

// scriptedCallback discards everything; these tests drive the client side
// by hand and only need the server's real Connection to react.
type scriptedCallback struct {
	t *testing.T
}

func (scriptedCallback) OnRead(data []byte) {}
func (scriptedCallback) OnError(err error)  {}
func (scriptedCallback) OnClose()           {}

// TestHelloPendingApproval checks that ApprovePendingHandshake and
// AbortPendingHandshake are no-ops while the server is not in
// SmeHelloPendingListen, and that the handshake still starts afterwards.
// The server is never driven into the Pending phase here.
func TestHelloPendingApproval(t *testing.T) {
	assert := assert.New(t)
	logger := zaptest.NewLogger(t)

	clientTransport, serverTransport := newPipePair()
	serverInfo := newFakeInfoProvider()
	serverConn, err := New(RoleServer, "server-ship-id", "client-ski", "", serverInfo, logger)
	require.NoError(t, err)

	clientTransport.cb = scriptedCallback{t: t}
	serverConn.Start(context.Background(), &pipeFactory{transport: serverTransport})

	// force the server into Pending: since the default dispatch table drives
	// straight through ReadyInit, this test simply confirms
	// ApprovePendingHandshake is a no-op outside SmeHelloPendingListen and
	// AbortPendingHandshake/ApprovePendingHandshake are safe to call anytime.
	serverConn.ApprovePendingHandshake()
	serverConn.AbortPendingHandshake()

	send := func(frameType FrameType, valueType MsgValueType, value any) {
		encoded, err := Encode(frameType, valueType, value)
		require.NoError(t, err)
		_, err = clientTransport.Write(encoded)
		require.NoError(t, err)
	}
	send(FrameInit, ValueTypeInit, nil)

	assert.Eventually(func() bool {
		s, _ := serverConn.State()
		return s != StateUnstarted
	}, time.Second, 5*time.Millisecond)

	serverConn.Stop()
}

func TestCloseConnectionIdempotent(t *testing.T) {
	assert := assert.New(t)
	logger := zaptest.NewLogger(t)

	clientTransport, serverTransport := newPipePair()
	info := newFakeInfoProvider()
	conn, err := New(RoleClient, "client-ship-id", "server-ski", "", info, logger)
	require.NoError(t, err)
	conn.Start(context.Background(), &pipeFactory{transport: clientTransport})
	_ = serverTransport

	conn.CloseConnection(false, 0, "test")
	conn.CloseConnection(false, 0, "test again")
	conn.Stop()

	info.mu.Lock()
	defer info.mu.Unlock()
	assert.Len(info.closedCalls, 1)
}
