// SPDX-FileCopyrightText: 2023 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package demo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/philipptrenz/ship-go/internal/ship"
)

type fakeWriter struct{}

func (fakeWriter) WriteMessage(data []byte) error { return nil }

func TestProviderTrust(t *testing.T) {
	assert := assert.New(t)

	p := New()
	assert.False(p.IsWaitingForTrustAllowed("ski-1"))

	p.Trust("ski-1")
	assert.True(p.IsWaitingForTrustAllowed("ski-1"))
	assert.True(p.IsRemoteServiceForSKIPaired("ski-1"))

	p.Untrust("ski-1")
	assert.False(p.IsWaitingForTrustAllowed("ski-1"))
}

func TestProviderAutoTrust(t *testing.T) {
	assert := assert.New(t)

	p := New(WithAutoTrust())
	assert.True(p.IsWaitingForTrustAllowed("any-ski-at-all"))
}

func TestProviderWithTrustedSKI(t *testing.T) {
	assert := assert.New(t)

	p := New(WithTrustedSKI("pre-trusted"))
	assert.True(p.IsWaitingForTrustAllowed("pre-trusted"))
	assert.False(p.IsWaitingForTrustAllowed("someone-else"))
}

func TestProviderSetupRemoteDeviceRouting(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	p := New()
	writer := fakeWriter{}

	reader, err := p.SetupRemoteDevice("ski-1", writer)
	require.NoError(err)

	got, ok := p.WriterFor("ski-1")
	require.True(ok)
	assert.Equal(writer, got)

	rr, ok := reader.(*routerReader)
	require.True(ok)

	var received []byte
	rr.SetHandler(func(ski string, payload []byte) {
		assert.Equal("ski-1", ski)
		received = payload
	})

	rr.HandleMessage(ship.BorrowBuffer([]byte("payload")))
	assert.Equal([]byte("payload"), received)
}

func TestProviderSetupRemoteDeviceNoHandler(t *testing.T) {
	p := New()
	reader, err := p.SetupRemoteDevice("ski-1", fakeWriter{})
	require.NoError(t, err)

	rr := reader.(*routerReader)
	rr.HandleMessage(ship.BorrowBuffer([]byte("dropped")))
}

func TestProviderReportServiceShipID(t *testing.T) {
	assert := assert.New(t)

	p := New()
	_, ok := p.RemoteShipID("service-1")
	assert.False(ok)

	p.ReportServiceShipID("service-1", "ship-42")
	id, ok := p.RemoteShipID("service-1")
	assert.True(ok)
	assert.Equal("ship-42", id)
}

func TestProviderAddClosedListener(t *testing.T) {
	assert := assert.New(t)

	p := New()
	var ended bool
	cancel := p.AddClosedListener(ClosedListenerFunc(func(ski string, handshakeEnded bool) {
		ended = handshakeEnded
	}))

	p.HandleConnectionClosed(nil, true)
	assert.True(ended)

	cancel()
	ended = false
	p.HandleConnectionClosed(nil, true)
	assert.False(ended)
}

func TestNewLocalShipIDUnique(t *testing.T) {
	assert := assert.New(t)
	assert.NotEqual(NewLocalShipID(), NewLocalShipID())
}
