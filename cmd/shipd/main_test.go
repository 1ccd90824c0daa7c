// SPDX-FileCopyrightText: 2023 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"testing"

	_ "github.com/goschtalt/goschtalt/pkg/typical"
	_ "github.com/goschtalt/yaml-decoder"
	_ "github.com/goschtalt/yaml-encoder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xmidt-org/sallust"
)

func Test_provideCLI(t *testing.T) {
	tests := []struct {
		description string
		args        cliArgs
		want        CLI
		exits       bool
	}{
		{
			description: "no arguments, everything works",
		}, {
			description: "dev mode",
			args:        cliArgs{"-d"},
			want:        CLI{Dev: true},
		}, {
			description: "invalid argument",
			args:        cliArgs{"-w"},
			exits:       true,
		}, {
			description: "help",
			args:        cliArgs{"-h"},
			exits:       true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.description, func(t *testing.T) {
			assert := assert.New(t)

			if tc.exits {
				assert.Panics(func() {
					_, _ = provideCLIWithOpts(tc.args, true)
				})
				return
			}

			got, err := provideCLI(tc.args)
			require.NoError(t, err)
			want := tc.want
			assert.Equal(&want, got)
		})
	}
}

func Test_provideLogger(t *testing.T) {
	tests := []struct {
		description string
		cli         *CLI
		cfg         sallust.Config
	}{
		{
			description: "validate empty config",
			cfg:         sallust.Config{},
			cli:         &CLI{},
		}, {
			description: "validate dev config",
			cfg:         sallust.Config{},
			cli:         &CLI{Dev: true},
		},
	}
	for _, tc := range tests {
		t.Run(tc.description, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			logger, err := provideLogger(LoggerIn{CLI: tc.cli, Cfg: tc.cfg})
			require.NoError(err)
			assert.NotNil(logger)
		})
	}
}

func Test_roleFor(t *testing.T) {
	assert := assert.New(t)
	assert.Equal("client", roleFor("client").String())
	assert.Equal("server", roleFor("server").String())
	assert.Equal("client", roleFor("").String())
}
