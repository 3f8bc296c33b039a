package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/roman-kulish/drone-mission/cmd/flymission/app"
	"github.com/roman-kulish/drone-mission/internal/autopilot"
)

const usage = `Usage : %s [-c config.yaml] <connection_url>
Connection URL format should be :
 For TCP : tcp://[server_host][:server_port]
 For UDP : udp://[bind_host][:bind_port]
 For Serial : serial:///path/to/serial/dev[:baudrate]
 For the built-in simulator : sim://
For example, to connect to the simulator use URL: udp://:14540
`

func main() {
	var logLevel slog.LevelVar
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: &logLevel}))

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), usage, os.Args[0])
		flag.PrintDefaults()
	}

	var configPath string
	flag.StringVar(&configPath, "c", "", "Path to the configuration file")
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}

	config, err := app.LoadConfig(configPath)
	if err != nil {
		logger.Error(fmt.Sprintf("failed to load configuration file: %s", err.Error()), slog.String("path", configPath))
		os.Exit(1)
	}

	logLevel.Set(config.Settings.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	err = app.Run(ctx, flag.Arg(0), config, logger)
	switch {
	case err == nil:
		logger.Info("finished")

	case errors.Is(err, autopilot.ErrInvalidURL):
		logger.Error(err.Error())
		flag.Usage()

		cancel()
		os.Exit(1)

	case errors.Is(err, autopilot.ErrSystemTimedOut), errors.Is(err, autopilot.ErrSystemNotReady):
		logger.Warn(err.Error())

	default:
		logger.Error(err.Error())

		cancel()
		os.Exit(1)
	}
}
