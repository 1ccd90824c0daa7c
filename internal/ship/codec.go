// SPDX-FileCopyrightText: 2023 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package ship

import (
	"fmt"

	json "github.com/goccy/go-json"
)

// Envelope is the decoded, self-describing result of Decode: exactly one of
// its typed fields is non-nil, selected by Type.
type Envelope struct {
	Type                   MsgValueType
	Hello                  *Hello
	ProtocolHandshake      *ProtocolHandshake
	ProtocolHandshakeError *ProtocolHandshakeError
	PinState               *ConnectionPinState
	AccessMethodsRequest   *ConnectionAccessMethodsRequest
	AccessMethods          *ConnectionAccessMethods
	Close                  *Close
	Data                   *Data
}

// initBody is the fixed two-byte body of a CMI Init frame.
var initBody = []byte{byte(FrameInit), 0x00}

// Encode serializes value, tagged by valueType, into a wire frame whose
// first byte is frameType. The SHIP wire payload (everything after the frame
// byte) is JSON-UTF8; Init frames are the fixed two-byte exception.
func Encode(frameType FrameType, valueType MsgValueType, value any) ([]byte, error) {
	if frameType == FrameInit {
		return append([]byte(nil), initBody...), nil
	}

	body, err := json.Marshal(map[string]any{string(valueType): value})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrParse, err)
	}

	out := make([]byte, 0, 1+len(body))
	out = append(out, byte(frameType))
	out = append(out, body...)
	return out, nil
}

// Decode strips the frame byte from raw and decodes the remainder into a
// typed Envelope. A frame whose body cannot be recognized (bad length for
// Init, malformed JSON, or an unknown/missing discriminator key for
// Control/Data) is reported as ErrParse.
func Decode(raw []byte) (Envelope, error) {
	if len(raw) == 0 {
		return Envelope{}, fmt.Errorf("%w: empty frame", ErrParse)
	}

	frameType := FrameType(raw[0])
	body := raw[1:]

	switch frameType {
	case FrameInit:
		if len(body) != 1 || body[0] != 0x00 {
			return Envelope{}, fmt.Errorf("%w: malformed init frame", ErrParse)
		}
		return Envelope{Type: ValueTypeInit}, nil

	case FrameControl, FrameData:
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(body, &fields); err != nil {
			return Envelope{}, fmt.Errorf("%w: %s", ErrParse, err)
		}
		if len(fields) != 1 {
			return Envelope{}, fmt.Errorf("%w: expected exactly one discriminator key, got %d", ErrParse, len(fields))
		}

		for key, raw := range fields {
			return decodeByKey(MsgValueType(key), raw)
		}
		// unreachable: len(fields) == 1 guarantees one loop iteration
		return Envelope{}, fmt.Errorf("%w: no discriminator key", ErrParse)

	default:
		return Envelope{}, fmt.Errorf("%w: unrecognized frame type 0x%02x", ErrParse, byte(frameType))
	}
}

func decodeByKey(key MsgValueType, raw json.RawMessage) (Envelope, error) {
	switch key {
	case ValueTypeHello:
		var v Hello
		if err := json.Unmarshal(raw, &v); err != nil {
			return Envelope{}, fmt.Errorf("%w: hello: %s", ErrParse, err)
		}
		return Envelope{Type: key, Hello: &v}, nil

	case ValueTypeProtocolHandshake:
		var v ProtocolHandshake
		if err := json.Unmarshal(raw, &v); err != nil {
			return Envelope{}, fmt.Errorf("%w: protocolHandshake: %s", ErrParse, err)
		}
		return Envelope{Type: key, ProtocolHandshake: &v}, nil

	case ValueTypeProtocolHandshakeError:
		var v ProtocolHandshakeError
		if err := json.Unmarshal(raw, &v); err != nil {
			return Envelope{}, fmt.Errorf("%w: protocolHandshakeError: %s", ErrParse, err)
		}
		return Envelope{Type: key, ProtocolHandshakeError: &v}, nil

	case ValueTypeConnectionPinState:
		var v ConnectionPinState
		if err := json.Unmarshal(raw, &v); err != nil {
			return Envelope{}, fmt.Errorf("%w: pinState: %s", ErrParse, err)
		}
		return Envelope{Type: key, PinState: &v}, nil

	case ValueTypeConnectionAccessMethodsReq:
		var v ConnectionAccessMethodsRequest
		return Envelope{Type: key, AccessMethodsRequest: &v}, nil

	case ValueTypeConnectionAccessMethods:
		var v ConnectionAccessMethods
		if err := json.Unmarshal(raw, &v); err != nil {
			return Envelope{}, fmt.Errorf("%w: accessMethods: %s", ErrParse, err)
		}
		return Envelope{Type: key, AccessMethods: &v}, nil

	case ValueTypeClose:
		var v Close
		if err := json.Unmarshal(raw, &v); err != nil {
			return Envelope{}, fmt.Errorf("%w: close: %s", ErrParse, err)
		}
		return Envelope{Type: key, Close: &v}, nil

	case ValueTypeData:
		var v Data
		if err := json.Unmarshal(raw, &v); err != nil {
			return Envelope{}, fmt.Errorf("%w: data: %s", ErrParse, err)
		}
		return Envelope{Type: key, Data: &v}, nil

	default:
		return Envelope{}, fmt.Errorf("%w: unknown discriminator %q", ErrParse, key)
	}
}
