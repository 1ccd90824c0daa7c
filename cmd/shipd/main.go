// SPDX-FileCopyrightText: 2023 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"
	"time"

	"github.com/alecthomas/kong"
	"github.com/goschtalt/goschtalt"
	"github.com/xmidt-org/retry"
	"github.com/xmidt-org/sallust"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/philipptrenz/ship-go/internal/demo"
	"github.com/philipptrenz/ship-go/internal/transport/wsconn"
)

const applicationName = "shipd"

var (
	commit  = "undefined"
	version = "undefined"
	date    = "undefined"
	builtBy = "undefined"
)

// CLI is the structure used to capture the command line arguments.
type CLI struct {
	Dev   bool     `optional:"" short:"d" help:"Run in development mode."`
	Show  bool     `optional:"" short:"s" help:"Show the configuration and exit."`
	Graph string   `optional:"" short:"g" help:"Output the dependency graph to the specified file."`
	Files []string `optional:"" short:"f" help:"Specific configuration files or directories."`
}

type LifeCycleIn struct {
	fx.In
	Logger     *zap.Logger
	LC         fx.Lifecycle
	Shutdowner fx.Shutdowner
	Host       *Host
}

// shipd is the main entry point for the program, responsible for setting up
// the dependency injection framework and returning the app object.
func shipd(args []string) (*fx.App, error) {
	var (
		gscfg *goschtalt.Config
		g     fx.DotGraph
		cli   *CLI
	)

	app := fx.New(
		fx.Supply(cliArgs(args)),
		fx.Populate(&g),
		fx.Populate(&gscfg),
		fx.Populate(&cli),

		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),

		fx.Provide(
			provideCLI,
			provideLogger,
			provideConfig,
			provideInfoProvider,
			provideTransportFactory,
			provideHost,

			goschtalt.UnmarshalFunc[sallust.Config]("logger", goschtalt.Optional()),
			goschtalt.UnmarshalFunc[Node]("node"),
			goschtalt.UnmarshalFunc[Websocket]("websocket"),
			goschtalt.UnmarshalFunc[Demo]("demo"),
		),

		fx.Invoke(lifeCycle),
	)

	if cli != nil && cli.Graph != "" {
		_ = os.WriteFile(cli.Graph, []byte(g), 0600)
	}

	if err := app.Err(); err != nil {
		return nil, err
	}

	return app, nil
}

func main() {
	app, err := shipd(os.Args[1:])
	if err == nil {
		app.Run()
		return
	}

	fmt.Fprintln(os.Stderr, err)
	os.Exit(-1)
}

type cliArgs []string

func provideCLI(args cliArgs) (*CLI, error) {
	return provideCLIWithOpts(args, false)
}

func provideCLIWithOpts(args cliArgs, testOpts bool) (*CLI, error) {
	var cli CLI

	var opt kong.Option = kong.OptionFunc(func(*kong.Kong) error { return nil })
	if testOpts {
		opt = kong.Writers(nil, nil)
	}

	parser, err := kong.New(&cli,
		kong.Name(applicationName),
		kong.Description("A standalone SHIP (Smart Home IP) handshake endpoint.\n"+
			fmt.Sprintf("\tVersion:  %s\n", version)+
			fmt.Sprintf("\tDate:     %s\n", date)+
			fmt.Sprintf("\tCommit:   %s\n", commit)+
			fmt.Sprintf("\tBuilt By: %s\n", builtBy),
		),
		kong.UsageOnError(),
		opt,
	)
	if err != nil {
		return nil, err
	}

	if testOpts {
		parser.Exit = func(_ int) { panic("exit") }
	}

	if _, err := parser.Parse(args); err != nil {
		parser.FatalIfErrorf(err)
	}

	return &cli, nil
}

type LoggerIn struct {
	fx.In
	CLI *CLI
	Cfg sallust.Config
}

func provideLogger(in LoggerIn) (*zap.Logger, error) {
	if in.CLI.Dev {
		in.Cfg.EncoderConfig.EncodeLevel = "capitalColor"
		in.Cfg.EncoderConfig.EncodeTime = "RFC3339"
		in.Cfg.Level = "DEBUG"
		in.Cfg.Development = true
		in.Cfg.Encoding = "console"
		in.Cfg.OutputPaths = append(in.Cfg.OutputPaths, "stderr")
		in.Cfg.ErrorOutputPaths = append(in.Cfg.ErrorOutputPaths, "stderr")
	}

	return in.Cfg.Build()
}

func provideInfoProvider(d Demo, logger *zap.Logger) *demo.Provider {
	opts := []demo.Option{demo.WithLogger(logger)}
	if d.AutoTrust {
		opts = append(opts, demo.WithAutoTrust())
	}
	for _, ski := range d.TrustedSKIs {
		opts = append(opts, demo.WithTrustedSKI(ski))
	}
	return demo.New(opts...)
}

func provideTransportFactory(ws Websocket) *wsconn.Factory {
	return &wsconn.Factory{
		URL:               ws.URL,
		DialTimeout:       ws.DialTimeout,
		PingInterval:      ws.PingInterval,
		HTTPClient:        ws.HTTPClient,
		AdditionalHeaders: ws.AdditionalHeaders,
	}
}

func lifeCycle(in LifeCycleIn) {
	logger := in.Logger.Named("fx_lifecycle")
	in.LC.Append(fx.Hook{
		OnStart: onStart(in.Host, logger),
		OnStop:  onStop(in.Host, in.Shutdowner, logger),
	})
}

func onStart(host *Host, logger *zap.Logger) func(context.Context) error {
	logger = logger.Named("on_start")
	return func(ctx context.Context) error {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("stacktrace from panic", zap.String("stacktrace", string(debug.Stack())), zap.Any("panic", r))
			}
		}()

		host.Start()
		return nil
	}
}

func onStop(host *Host, shutdowner fx.Shutdowner, logger *zap.Logger) func(context.Context) error {
	logger = logger.Named("on_stop")
	return func(_ context.Context) error {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("stacktrace from panic", zap.String("stacktrace", string(debug.Stack())), zap.Any("panic", r))
			}
			if err := shutdowner.Shutdown(); err != nil {
				logger.Error("encountered error trying to shutdown app", zap.Error(err))
			}
		}()

		host.Stop()
		return nil
	}
}

// retryNext returns the next backoff interval from policy, discarding the
// second result of policy.Next.
func retryNext(policy retry.Policy) time.Duration {
	d, _ := policy.Next()
	return d
}
