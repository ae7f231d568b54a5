package main

import (
	"fmt"
	"os"

	"github.com/zsjsll/gemini-proxy/cmd"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

var version = "notset"

func main() {
	config, err := cmd.GetConfigFromEnvironment()
	if err == nil {
		err = config.Validate()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	app := fx.New(
		fx.Supply(config),
		fx.Provide(
			provideLogger,
			provideCollectors,
			provideUpstream,
			provideTransport,
			provideProxyHandler,
		),
		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger.Named("fx")}
		}),
		fx.StopTimeout(config.ShutdownTimeout),
		fx.Invoke(registerServers),
	)

	app.Run()
}
