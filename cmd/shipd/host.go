// SPDX-FileCopyrightText: 2023 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"sync"
	"time"

	"github.com/xmidt-org/retry"
	"go.uber.org/zap"

	"github.com/philipptrenz/ship-go/internal/demo"
	"github.com/philipptrenz/ship-go/internal/ship"
	"github.com/philipptrenz/ship-go/internal/ship/event"
	"github.com/philipptrenz/ship-go/internal/transport/wsconn"
)

// Host owns the single SHIP connection shipd maintains, reconnecting it
// according to Websocket.RetryPolicy, grounded on
// internal/websocket/ws.go's Start/Stop/read reconnect loop - generalized
// from a WRP-framed reconnect loop to one redialing a single named SHIP
// peer.
type Host struct {
	node    Node
	wsCfg   Websocket
	demoCfg Demo
	info    *demo.Provider
	factory *wsconn.Factory
	logger  *zap.Logger

	mu       sync.Mutex
	shutdown context.CancelFunc
	conn     *ship.Connection

	wg sync.WaitGroup
}

func provideHost(node Node, ws Websocket, d Demo, info *demo.Provider, factory *wsconn.Factory, logger *zap.Logger) *Host {
	return &Host{
		node:    node,
		wsCfg:   ws,
		demoCfg: d,
		info:    info,
		factory: factory,
		logger:  logger.Named("host"),
	}
}

// Start spawns the long-running goroutine that dials (or, once listening
// support lands, accepts) the configured peer and maintains the SHIP
// handshake, reconnecting per Websocket.RetryPolicy until Stop is called.
func (h *Host) Start() {
	h.mu.Lock()
	if h.shutdown != nil {
		h.mu.Unlock()
		return
	}
	var ctx context.Context
	ctx, h.shutdown = context.WithCancel(context.Background())
	h.mu.Unlock()

	h.wg.Add(1)
	go h.run(ctx)
}

// Stop tears down the current connection, if any, and stops further
// reconnect attempts.
func (h *Host) Stop() {
	h.mu.Lock()
	shutdown := h.shutdown
	conn := h.conn
	h.mu.Unlock()

	if shutdown != nil {
		shutdown()
	}
	if conn != nil {
		conn.Stop()
	}
	h.wg.Wait()
}

func (h *Host) run(ctx context.Context) {
	defer h.wg.Done()

	policy := h.wsCfg.RetryPolicy.NewPolicy(ctx)

	for {
		closed := make(chan struct{})

		conn, err := ship.New(roleFor(h.node.Role), h.node.LocalShipID, h.node.RemoteSKI, h.node.RemoteShipID, h.info, h.logger)
		if err != nil {
			h.logger.Error("failed to construct connection", zap.Error(err))
		} else {
			h.mu.Lock()
			h.conn = conn
			h.mu.Unlock()

			conn.AddStateListener(event.StateListenerFunc(func(sc event.StateChange) {
				if sc.State != "DataExchange" || !h.demoCfg.EchoPayloads {
					return
				}
				if ok := h.info.SetHandler(h.node.RemoteSKI, h.echoHandler(conn)); !ok {
					h.logger.Warn("failed to install payload handler", zap.String("ski", h.node.RemoteSKI))
				}
			}))
			conn.AddClosedListener(event.ClosedListenerFunc(func(event.Closed) {
				close(closed)
			}))

			conn.Start(ctx, h.factory)

			select {
			case <-closed:
			case <-ctx.Done():
				conn.Stop()
			}
		}

		if h.wsCfg.Once {
			return
		}

		next, _ := policy.Next()
		select {
		case <-time.After(next):
		case <-ctx.Done():
			return
		}
	}
}

// echoHandler logs and, when configured, writes every inbound SPINE
// payload straight back to the peer - a minimal smoke test that a full
// handshake round trip works without a real SPINE node behind it.
func (h *Host) echoHandler(conn *ship.Connection) func(ski string, payload []byte) {
	return func(ski string, payload []byte) {
		h.logger.Debug("received payload", zap.String("ski", ski), zap.Int("bytes", len(payload)))
		if err := conn.WriteMessage(payload); err != nil {
			h.logger.Warn("failed to echo payload", zap.Error(err))
		}
	}
}

func roleFor(role string) ship.Role {
	if role == "server" {
		return ship.RoleServer
	}
	return ship.RoleClient
}

var _ retry.PolicyFactory = retry.Config{}
