// Command lwm2m-client runs a device management client.
//
// The client bootstraps the Security, Server, Test Object and Access
// Control objects, opens one UDP socket per configured server and runs the
// event loop until it receives SIGINT or SIGTERM.
//
// Usage:
//
//	lwm2m-client [flags]
//
// Flags:
//
//	--config string        YAML configuration file
//	--endpoint string      Endpoint name (overrides the configuration)
//	--log-level string     Log level: debug, info, warn, error (default "info")
//	--protocol-log string  Append datagram and socket events to this CBOR file
//	--state string         Restore and save the data model in this file
//	--advertise            Announce the endpoint with mDNS
//	--interactive          Start the interactive console
//
// Examples:
//
//	# Run against the default local servers
//	lwm2m-client
//
//	# Run with a configuration file and a protocol trace
//	lwm2m-client --config /etc/lwm2m/client.yaml --protocol-log /tmp/trace.cbor
//
// The exit code is 1 when the client cannot be bootstrapped and 0 after a
// signal-driven shutdown.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/mash-protocol/lwm2m-go/cmd/lwm2m-client/interactive"
	"github.com/mash-protocol/lwm2m-go/pkg/bootstrap"
	"github.com/mash-protocol/lwm2m-go/pkg/discovery"
	"github.com/mash-protocol/lwm2m-go/pkg/log"
	"github.com/mash-protocol/lwm2m-go/pkg/server"
)

// options holds the command-line flags.
type options struct {
	ConfigFile  string
	Endpoint    string
	LogLevel    string
	ProtocolLog string
	StatePath   string
	Advertise   bool
	Interactive bool
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (options, error) {
	var opts options

	flagSet := pflag.NewFlagSet("lwm2m-client", pflag.ContinueOnError)
	flagSet.StringVar(&opts.ConfigFile, "config", "", "YAML configuration file")
	flagSet.StringVar(&opts.Endpoint, "endpoint", "", "endpoint name (overrides the configuration)")
	flagSet.StringVar(&opts.LogLevel, "log-level", "info", "log level: debug, info, warn, error")
	flagSet.StringVar(&opts.ProtocolLog, "protocol-log", "", "append datagram and socket events to this CBOR file")
	flagSet.StringVar(&opts.StatePath, "state", "", "restore and save the data model in this file")
	flagSet.BoolVar(&opts.Advertise, "advertise", false, "announce the endpoint with mDNS")
	flagSet.BoolVarP(&opts.Interactive, "interactive", "i", false, "start the interactive console")

	if err := flagSet.Parse(args); err != nil {
		return opts, err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return opts, fmt.Errorf("unexpected argument: %s", rest[0])
	}
	return opts, nil
}

// loadConfig applies defaults, then the configuration file, then flags.
func loadConfig(opts options) (bootstrap.Config, error) {
	cfg := bootstrap.DefaultConfig()
	if opts.ConfigFile != "" {
		var err error
		if cfg, err = bootstrap.LoadConfig(opts.ConfigFile); err != nil {
			return cfg, err
		}
	}
	if opts.Endpoint != "" {
		cfg.EndpointName = opts.Endpoint
	}
	if opts.StatePath != "" {
		cfg.StatePath = opts.StatePath
	}
	return cfg, nil
}

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

func run(args []string) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	var console *interactive.Console
	var logOut io.Writer = os.Stderr
	if opts.Interactive {
		if console, err = interactive.New(); err != nil {
			return err
		}
		logOut = console.Stderr()
	}

	logger, err := newLogger(logOut, opts.LogLevel)
	if err != nil {
		return err
	}
	cfg.Logger = logger

	// Protocol events go to the debug log and optionally to a trace file.
	traces := []log.Logger{log.NewSlogAdapter(logger)}
	if opts.ProtocolLog != "" {
		fileLogger, err := log.NewFileLogger(opts.ProtocolLog)
		if err != nil {
			return fmt.Errorf("open protocol log: %w", err)
		}
		defer fileLogger.Close()
		traces = append(traces, fileLogger)
	}
	cfg.Trace = log.NewMultiLogger(traces...)

	agent, err := bootstrap.Bootstrap(cfg)
	if err != nil {
		logger.Error("bootstrap failed", "error", err)
		return err
	}
	defer func() {
		if err := agent.Close(); err != nil {
			logger.Error("teardown failed", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if opts.Advertise {
		adv := discovery.NewMDNSAdvertiser(discovery.AdvertiserConfig{
			TTL:    discovery.DefaultTTL,
			Logger: logger,
		})
		info := &discovery.ServiceInfo{
			EndpointName: cfg.EndpointName,
			Binding:      string(server.BindingUDP),
			Version:      "1.0",
			Servers:      len(agent.Security().Servers()),
		}
		go func() {
			if err := discovery.Run(ctx, adv, info); err != nil {
				logger.Warn("mDNS advertisement failed", "error", err)
			}
		}()
	}

	if console != nil {
		go console.Run(ctx, agent, interactive.OnLoop(agent.Client().Scheduler()), stop)
	}

	logger.Info("client started", "endpoint", cfg.EndpointName, "servers", len(agent.Security().Servers()))
	if err := agent.Run(ctx, nil); err != nil {
		return fmt.Errorf("event loop: %w", err)
	}
	logger.Info("shutting down")
	return nil
}
