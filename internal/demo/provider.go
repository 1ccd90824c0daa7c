// SPDX-FileCopyrightText: 2023 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

// Package demo is a minimal, in-memory InfoProvider and SKI-keyed router
// suitable for exercising a ship.Connection without a real SPINE node
// behind it. It is grounded on internal/credentials/credentials.go's
// background-service-with-listeners shape (repurposed here to track
// paired/trusted SKIs instead of a credential's lifetime) and
// internal/pubsub/pubsub.go's route-map-of-listeners shape (repurposed to
// route by SKI instead of by WRP service name).
package demo

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/xmidt-org/eventor"
	"go.uber.org/zap"

	"github.com/philipptrenz/ship-go/internal/ship"
)

var ErrUnknownSKI = fmt.Errorf("demo: unknown SKI")

// CancelFunc removes the associated listener. Idempotent.
type CancelFunc func()

// ClosedListener observes a Connection closing.
type ClosedListener interface {
	OnConnectionClosed(ski string, handshakeEnded bool)
}

// ClosedListenerFunc adapts a function to a ClosedListener.
type ClosedListenerFunc func(ski string, handshakeEnded bool)

func (f ClosedListenerFunc) OnConnectionClosed(ski string, handshakeEnded bool) { f(ski, handshakeEnded) }

// Provider is a minimal ship.InfoProvider: every SKI presented to
// IsWaitingForTrustAllowed is accepted when WithAutoTrust is set; otherwise
// only SKIs added via Trust or WithTrustedSKI are accepted. Remote ship ids and
// live DataReader/DataWriter pairs are tracked per-SKI so a host process can
// look a peer's writer up by SKI and forward payloads to it.
type Provider struct {
	logger    *zap.Logger
	autoTrust bool

	mu            sync.RWMutex
	trusted       map[string]bool
	remoteShipIDs map[string]string
	writers       map[string]ship.DataWriter
	readers       map[string]*routerReader

	closedListeners eventor.Eventor[ClosedListener]
}

// Option configures a Provider.
type Option interface {
	apply(*Provider)
}

type optionFunc func(*Provider)

func (f optionFunc) apply(p *Provider) { f(p) }

// WithLogger sets the logger used for state/close notifications.
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(p *Provider) { p.logger = l })
}

// WithAutoTrust makes IsWaitingForTrustAllowed report true for any SKI,
// useful for local demos and tests where no out-of-band pairing UI exists.
func WithAutoTrust() Option {
	return optionFunc(func(p *Provider) { p.autoTrust = true })
}

// WithTrustedSKI pre-trusts ski, as if it had already been paired out of
// band.
func WithTrustedSKI(ski string) Option {
	return optionFunc(func(p *Provider) { p.trusted[ski] = true })
}

// New constructs a Provider.
func New(opts ...Option) *Provider {
	p := &Provider{
		logger:        zap.NewNop(),
		trusted:       map[string]bool{},
		remoteShipIDs: map[string]string{},
		writers:       map[string]ship.DataWriter{},
		readers:       map[string]*routerReader{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt.apply(p)
		}
	}
	return p
}

var _ ship.InfoProvider = (*Provider)(nil)

// Trust marks ski as a paired, trusted peer.
func (p *Provider) Trust(ski string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.trusted[ski] = true
}

// Untrust removes ski from the trusted set.
func (p *Provider) Untrust(ski string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.trusted, ski)
}

func (p *Provider) IsRemoteServiceForSKIPaired(ski string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.trusted[ski]
}

func (p *Provider) IsWaitingForTrustAllowed(ski string) bool {
	if p.autoTrust {
		return true
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.trusted[ski]
}

func (p *Provider) HandleConnectionClosed(conn *ship.Connection, handshakeEnded bool) {
	p.logger.Info("connection closed", zap.Bool("handshakeEnded", handshakeEnded))
	p.closedListeners.Visit(func(l ClosedListener) {
		l.OnConnectionClosed("", handshakeEnded)
	})
}

func (p *Provider) ReportServiceShipID(serviceID, shipID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.remoteShipIDs[serviceID] = shipID
}

func (p *Provider) HandleShipStateUpdate(ski string, state ship.State, err error) {
	if err != nil {
		p.logger.Warn("ship state update", zap.String("ski", ski), zap.Stringer("state", state), zap.Error(err))
		return
	}
	p.logger.Debug("ship state update", zap.String("ski", ski), zap.Stringer("state", state))
}

// SetupRemoteDevice wires the peer's writer into this Provider's router and
// returns a DataReader that republishes every inbound payload to whatever
// local handler is registered for ski via SetHandler.
func (p *Provider) SetupRemoteDevice(ski string, writer ship.DataWriter) (ship.DataReader, error) {
	r := &routerReader{ski: ski, router: p}

	p.mu.Lock()
	p.writers[ski] = writer
	p.readers[ski] = r
	p.mu.Unlock()

	return r, nil
}

// SetHandler installs h as the payload handler for ski, replacing whatever
// handler (if any) was previously registered. It is a no-op if ski has not
// yet reached DataExchange.
func (p *Provider) SetHandler(ski string, h func(ski string, payload []byte)) bool {
	p.mu.RLock()
	r, ok := p.readers[ski]
	p.mu.RUnlock()
	if !ok {
		return false
	}
	r.SetHandler(h)
	return true
}

// WriterFor returns the DataWriter registered for ski, if the peer has
// completed its handshake.
func (p *Provider) WriterFor(ski string) (ship.DataWriter, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	w, ok := p.writers[ski]
	return w, ok
}

// RemoteShipID returns the ship id last reported for serviceID, if any.
func (p *Provider) RemoteShipID(serviceID string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	id, ok := p.remoteShipIDs[serviceID]
	return id, ok
}

// AddClosedListener registers l for every connection-closed notification.
func (p *Provider) AddClosedListener(l ClosedListener) CancelFunc {
	return CancelFunc(p.closedListeners.Add(l))
}

// NewLocalShipID generates a fresh random local SHIP id suitable for
// identifying this node to a peer during Access-Methods exchange.
func NewLocalShipID() string {
	return "ship-go-" + uuid.NewString()
}

// routerReader implements ship.DataReader by forwarding every payload to
// whatever handler is currently registered for its SKI.
type routerReader struct {
	ski    string
	router *Provider

	mu      sync.Mutex
	handler func(ski string, payload []byte)
}

// SetHandler installs the function invoked for every inbound payload from
// this peer. A nil handler silently drops messages.
func (r *routerReader) SetHandler(h func(ski string, payload []byte)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handler = h
}

func (r *routerReader) HandleMessage(buf ship.Buffer) {
	r.mu.Lock()
	h := r.handler
	r.mu.Unlock()
	if h != nil {
		h(r.ski, append([]byte(nil), buf.Bytes()...))
	}
}

var _ ship.DataReader = (*routerReader)(nil)
