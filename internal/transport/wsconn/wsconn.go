// SPDX-FileCopyrightText: 2023 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

// Package wsconn is the reference ship.Transport/ship.TransportFactory
// implementation over a real WebSocket, grounded on
// internal/websocket/ws.go's dial/read/write shape - generalized from a
// reconnect-and-forward WRP client down to a single-dial, single-connection
// transport, since reconnection policy lives at the host-process level
// (cmd/shipd), not in this transport or in the SHIP state machine.
package wsconn

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/xmidt-org/arrange/arrangehttp"
	"github.com/xmidt-org/arrange/arrangetls"
	nhws "nhooyr.io/websocket"

	"github.com/philipptrenz/ship-go/internal/ship"
)

var (
	ErrMisconfigured = errors.New("wsconn: misconfigured")
	ErrClosed        = errors.New("wsconn: closed")
)

// Factory dials a single WebSocket connection per CreateTransport call and
// wraps it as a ship.Transport. One Factory can be reused across many
// ship.Connection.Start calls; each call dials URL anew. It only dials and
// never accepts inbound connections.
type Factory struct {
	// URL is the ws:// or wss:// endpoint to dial.
	URL string

	// DialTimeout bounds the initial handshake.
	DialTimeout time.Duration

	// PingInterval, when non-zero, starts a background keepalive pinger.
	PingInterval time.Duration

	// HTTPClient supplies the dial's TLS configuration and client timeout,
	// grounded on cmd/xmidt-agent/config.go's XmidtCredentials.HTTPClient
	// shape. Its Transport settings are not applied: buildHTTPClient builds
	// its own http.Transport.
	HTTPClient arrangehttp.ClientConfig

	// AdditionalHeaders are sent with the dial request (e.g. a pre-shared
	// SKI hint), mirroring Websocket.additionalHeaders.
	AdditionalHeaders http.Header
}

var _ ship.TransportFactory = (*Factory)(nil)

func (f *Factory) CreateTransport(ctx context.Context, cb ship.TransportCallback) (ship.Transport, error) {
	if f.URL == "" {
		return nil, fmt.Errorf("%w: empty URL", ErrMisconfigured)
	}

	dialCtx := ctx
	if f.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, f.DialTimeout)
		defer cancel()
	}

	httpClient, err := f.buildHTTPClient()
	if err != nil {
		return nil, err
	}

	conn, _, err := nhws.Dial(dialCtx, f.URL, &nhws.DialOptions{
		HTTPClient: httpClient,
		HTTPHeader: f.AdditionalHeaders,
	})
	if err != nil {
		return nil, fmt.Errorf("wsconn: dial failed: %w", err)
	}

	t := &transport{conn: conn, cb: cb}

	readCtx, cancel := context.WithCancel(context.Background())
	t.cancelRead = cancel
	t.wg.Add(1)
	go t.readLoop(readCtx)

	if f.PingInterval > 0 {
		t.wg.Add(1)
		go t.pingLoop(readCtx, f.PingInterval)
	}

	return t, nil
}

func (f *Factory) buildHTTPClient() (*http.Client, error) {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        1,
		MaxIdleConnsPerHost: 1,
	}

	if f.HTTPClient.TLS != nil {
		tlsCfg, err := f.tlsConfig()
		if err != nil {
			return nil, err
		}
		transport.TLSClientConfig = tlsCfg
	}

	timeout := f.HTTPClient.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &http.Client{Transport: transport, Timeout: timeout}, nil
}

func (f *Factory) tlsConfig() (*tls.Config, error) {
	cfg, err := f.HTTPClient.TLS.New()
	if err != nil {
		return nil, fmt.Errorf("wsconn: tls config: %w", err)
	}
	return cfg, nil
}

// transport is the ship.Transport implementation bound to one dialed
// WebSocket connection.
type transport struct {
	conn       *nhws.Conn
	cb         ship.TransportCallback
	cancelRead context.CancelFunc
	wg         sync.WaitGroup

	mu       sync.Mutex
	closed   bool
	closeErr error
}

var _ ship.Transport = (*transport)(nil)

func (t *transport) Write(data []byte) (int, error) {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return 0, ErrClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := t.conn.Write(ctx, nhws.MessageBinary, data); err != nil {
		return 0, fmt.Errorf("wsconn: write failed: %w", err)
	}
	return len(data), nil
}

func (t *transport) Close(code int, reason string) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	t.cancelRead()
	err := t.conn.Close(nhws.StatusCode(code), limit(reason))
	t.wg.Wait()
	return err
}

func (t *transport) IsClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *transport) CloseError() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closeErr
}

// ScheduleWrite is a no-op: nhooyr.io/websocket has no separate write-side
// warmup step worth triggering early.
func (t *transport) ScheduleWrite() {}

func (t *transport) readLoop(ctx context.Context) {
	defer t.wg.Done()

	for {
		typ, data, err := t.conn.Read(ctx)
		if err != nil {
			t.mu.Lock()
			alreadyClosed := t.closed
			t.closed = true
			t.closeErr = err
			t.mu.Unlock()

			if !alreadyClosed {
				t.cb.OnClose()
			}
			return
		}
		if typ != nhws.MessageBinary {
			t.cb.OnError(fmt.Errorf("wsconn: unexpected message type %v", typ))
			continue
		}
		t.cb.OnRead(data)
	}
}

func (t *transport) pingLoop(ctx context.Context, interval time.Duration) {
	defer t.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, interval/2)
			err := t.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				t.cb.OnError(fmt.Errorf("wsconn: ping failed: %w", err))
				return
			}
		}
	}
}

func limit(s string) string {
	if len(s) > 123 {
		return s[:123]
	}
	return s
}
