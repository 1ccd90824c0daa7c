// SPDX-FileCopyrightText: 2023 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package ship

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeInitFrame(t *testing.T) {
	assert := assert.New(t)

	raw, err := Encode(FrameInit, ValueTypeInit, nil)
	require.NoError(t, err)
	assert.Equal([]byte{byte(FrameInit), 0x00}, raw)
}

func TestDecodeInitFrame(t *testing.T) {
	assert := assert.New(t)

	env, err := Decode([]byte{byte(FrameInit), 0x00})
	require.NoError(t, err)
	assert.Equal(ValueTypeInit, env.Type)
}

func TestDecodeInitFrameMalformed(t *testing.T) {
	_, err := Decode([]byte{byte(FrameInit), 0x01})
	assert.ErrorIs(t, err, ErrParse)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		description string
		valueType   MsgValueType
		value       any
		check       func(*assert.Assertions, Envelope)
	}{
		{
			description: "hello",
			valueType:   ValueTypeHello,
			value:       Hello{Phase: HelloPhaseReady, WaitingMs: uint32Ptr(60000)},
			check: func(a *assert.Assertions, env Envelope) {
				a.Equal(ValueTypeHello, env.Type)
				a.NotNil(env.Hello)
				a.Equal(HelloPhaseReady, env.Hello.Phase)
				a.Equal(uint32(60000), *env.Hello.WaitingMs)
			},
		},
		{
			description: "protocol handshake",
			valueType:   ValueTypeProtocolHandshake,
			value: ProtocolHandshake{
				HandshakeType: HandshakeTypeAnnounceMax,
				Version:       ProtocolVersion{Major: 1, Minor: 0},
				Formats:       []HandshakeFormat{FormatUTF8},
			},
			check: func(a *assert.Assertions, env Envelope) {
				a.NotNil(env.ProtocolHandshake)
				a.Equal(HandshakeTypeAnnounceMax, env.ProtocolHandshake.HandshakeType)
				a.Equal(uint8(1), env.ProtocolHandshake.Version.Major)
			},
		},
		{
			description: "pin state",
			valueType:   ValueTypeConnectionPinState,
			value:       ConnectionPinState{PinState: PinStateNone},
			check: func(a *assert.Assertions, env Envelope) {
				a.NotNil(env.PinState)
				a.Equal(PinStateNone, env.PinState.PinState)
			},
		},
		{
			description: "access methods request",
			valueType:   ValueTypeConnectionAccessMethodsReq,
			value:       ConnectionAccessMethodsRequest{},
			check: func(a *assert.Assertions, env Envelope) {
				a.NotNil(env.AccessMethodsRequest)
			},
		},
		{
			description: "access methods",
			valueType:   ValueTypeConnectionAccessMethods,
			value:       ConnectionAccessMethods{ShipID: "peer-1"},
			check: func(a *assert.Assertions, env Envelope) {
				a.NotNil(env.AccessMethods)
				a.Equal("peer-1", env.AccessMethods.ShipID)
			},
		},
		{
			description: "close",
			valueType:   ValueTypeClose,
			value:       Close{Phase: ClosePhaseAnnounce, Reason: "bye"},
			check: func(a *assert.Assertions, env Envelope) {
				a.NotNil(env.Close)
				a.Equal(ClosePhaseAnnounce, env.Close.Phase)
				a.Equal("bye", env.Close.Reason)
			},
		},
		{
			description: "data",
			valueType:   ValueTypeData,
			value:       Data{Header: DataHeader{ProtocolID: ShipDataProtocolIDSpine}, Payload: []byte("spine-bytes")},
			check: func(a *assert.Assertions, env Envelope) {
				a.NotNil(env.Data)
				a.Equal(ShipDataProtocolIDSpine, env.Data.Header.ProtocolID)
				a.Equal([]byte("spine-bytes"), env.Data.Payload)
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.description, func(t *testing.T) {
			assert := assert.New(t)

			raw, err := Encode(FrameControl, tc.valueType, tc.value)
			require.NoError(t, err)
			assert.Equal(byte(FrameControl), raw[0])

			env, err := Decode(raw)
			require.NoError(t, err)
			tc.check(assert, env)
		})
	}
}

func TestDecodeUnknownDiscriminator(t *testing.T) {
	_, err := Decode(append([]byte{byte(FrameControl)}, []byte(`{"somethingUnknown":{}}`)...))
	assert.ErrorIs(t, err, ErrParse)
}

func TestDecodeMultipleDiscriminators(t *testing.T) {
	_, err := Decode(append([]byte{byte(FrameControl)}, []byte(`{"connectionHello":{},"connectionClose":{}}`)...))
	assert.ErrorIs(t, err, ErrParse)
}

func TestDecodeEmptyFrame(t *testing.T) {
	_, err := Decode(nil)
	assert.ErrorIs(t, err, ErrParse)
}

func uint32Ptr(v uint32) *uint32 { return &v }
