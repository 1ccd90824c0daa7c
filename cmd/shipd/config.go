// SPDX-FileCopyrightText: 2023 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/goschtalt/goschtalt"
	"github.com/xmidt-org/arrange/arrangehttp"
	"github.com/xmidt-org/arrange/arrangetls"
	"github.com/xmidt-org/retry"
	"github.com/xmidt-org/sallust"
	"go.uber.org/zap/zapcore"
	"gopkg.in/dealancer/validate.v2"
)

// Config is the configuration for shipd, grounded on
// cmd/xmidt-agent/config.go's Config struct.
type Config struct {
	Node      Node
	Websocket Websocket
	Demo      Demo
	Logger    sallust.Config
}

// Node identifies this SHIP endpoint and the single peer it either dials or
// expects to accept a connection from.
type Node struct {
	// Role is "client" or "server".
	Role string `validate:"one_of=[client,server]"`

	// LocalShipID is the SHIP id this node presents to its peer during the
	// access-methods exchange.
	LocalShipID string `validate:"empty=false"`

	// RemoteSKI is the peer's subject key identifier, taken from its TLS
	// certificate.
	RemoteSKI string `validate:"empty=false"`

	// RemoteShipID, if known ahead of time, is the peer's expected SHIP id.
	// Leave empty to accept whatever the peer reports.
	RemoteShipID string
}

// Websocket configures the single WebSocket connection shipd dials or
// listens on, grounded on cmd/xmidt-agent/config.go's Websocket struct
// (the reconnect-policy fields; transport timeouts live in HTTPClient).
type Websocket struct {
	// URL is the ws:// or wss:// endpoint to dial. It is dialed for either
	// Node.Role; the role only selects which side of the SHIP handshake
	// this node drives.
	URL string

	// ListenAddr is not read by shipd: shipd only dials URL and does not
	// accept inbound connections.
	ListenAddr string

	// AdditionalHeaders are sent with the dial request.
	AdditionalHeaders http.Header

	// DialTimeout bounds the initial WebSocket handshake.
	DialTimeout time.Duration

	// PingInterval, when non-zero, starts a background keepalive pinger.
	PingInterval time.Duration

	// HTTPClient supplies the dial's TLS configuration and client timeout;
	// its Transport settings are not applied.
	HTTPClient arrangehttp.ClientConfig

	// RetryPolicy sets the backoff policy used between reconnect attempts.
	RetryPolicy retry.Config

	// Once disables reconnection: after a single failed or closed
	// connection the host makes no further attempts. The process itself
	// keeps running until it is stopped.
	Once bool
}

// Demo configures the built-in internal/demo.Provider used in place of a
// real SPINE node.
type Demo struct {
	// AutoTrust accepts any peer SKI without an out-of-band pairing step.
	AutoTrust bool

	// TrustedSKIs pre-trusts a fixed list of peer SKIs.
	TrustedSKIs []string

	// EchoPayloads logs and echoes every inbound SPINE payload back to the
	// peer, useful for smoke-testing a handshake end to end.
	EchoPayloads bool
}

func provideConfig(cli *CLI) (*goschtalt.Config, error) {
	gs, err := goschtalt.New(
		goschtalt.StdCfgLayout(applicationName, cli.Files...),
		goschtalt.ConfigIs("two_words"),
		goschtalt.DefaultUnmarshalOptions(
			goschtalt.WithValidator(
				goschtalt.ValidatorFunc(validate.Validate),
			),
		),

		goschtalt.AddValue("built-in", goschtalt.Root, defaultConfig,
			goschtalt.AsDefault()),
	)
	if err != nil {
		return nil, err
	}

	if cli.Show {
		fmt.Fprintln(os.Stdout, gs.Explain().String())

		out, err := gs.Marshal()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
		} else {
			fmt.Fprintln(os.Stdout, "## Final Configuration\n---\n"+string(out))
		}

		os.Exit(0)
	}

	var tmp Config
	if err := gs.Unmarshal(goschtalt.Root, &tmp); err != nil {
		fmt.Fprintln(os.Stderr, "There is a critical error in the configuration.")
		fmt.Fprintln(os.Stderr, "Run with -s/--show to see the configuration.")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(0)
	}

	return gs, nil
}

var defaultConfig = Config{
	Node: Node{
		Role: "client",
	},
	Websocket: Websocket{
		ListenAddr:   ":8381",
		DialTimeout:  10 * time.Second,
		PingInterval: 30 * time.Second,
		HTTPClient: arrangehttp.ClientConfig{
			Timeout: 20 * time.Second,
			Transport: arrangehttp.TransportConfig{
				DisableKeepAlives: true,
				MaxIdleConns:      1,
			},
			TLS: &arrangetls.Config{
				MinVersion: tls.VersionTLS13,
			},
		},
		RetryPolicy: retry.Config{
			Interval:    time.Second,
			Multiplier:  2.0,
			Jitter:      1.0 / 3.0,
			MaxInterval: 5 * time.Minute,
		},
	},
	Demo: Demo{
		EchoPayloads: true,
	},
	Logger: sallust.Config{
		EncoderConfig: sallust.EncoderConfig{
			TimeKey:        "T",
			LevelKey:       "L",
			NameKey:        "N",
			CallerKey:      "C",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "M",
			StacktraceKey:  "S",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    "capital",
			EncodeTime:     "RFC3339Nano",
			EncodeDuration: "string",
			EncodeCaller:   "short",
		},
	},
}
