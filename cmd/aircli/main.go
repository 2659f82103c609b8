// Command aircli is an interactive console for Philips connected air
// purifiers.
//
// Usage:
//
//	aircli [flags]
//
// Flags:
//
//	-host string          Purifier host or IP (required unless set in config)
//	-model string         Device model (default "AC4236")
//	-config string        Configuration file path (YAML)
//	-log-level string     Log level: debug, info, warn, error (default "info")
//	-protocol-log string  Write the raw protocol event stream to this file
//
// Examples:
//
//	# Connect to a purifier and enter the console
//	aircli -host 192.168.1.40
//
//	# Use a config file and capture the protocol exchange
//	aircli -config ~/.aircli.yaml -protocol-log session.cborlog
package main

import (
	"context"
	"flag"
	"fmt"
	stdlog "log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mertbulan/philips-airpurifier/cmd/aircli/interactive"
	"github.com/mertbulan/philips-airpurifier/pkg/airctrl"
	"github.com/mertbulan/philips-airpurifier/pkg/log"
	"github.com/mertbulan/philips-airpurifier/pkg/purifier"
)

var flags struct {
	Host        string
	Model       string
	ConfigFile  string
	LogLevel    string
	ProtocolLog string
}

func init() {
	flag.StringVar(&flags.Host, "host", "", "Purifier host or IP")
	flag.StringVar(&flags.Model, "model", "", "Device model")
	flag.StringVar(&flags.ConfigFile, "config", "", "Configuration file path (YAML)")
	flag.StringVar(&flags.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.StringVar(&flags.ProtocolLog, "protocol-log", "", "Write the raw protocol event stream to this file")
}

func main() {
	flag.Parse()

	cfg, err := loadConfig(flags.ConfigFile)
	if err != nil {
		stdlog.Fatalf("Invalid configuration: %v", err)
	}
	cfg.override(flags.Host, flags.Model)
	if err := cfg.validate(); err != nil {
		stdlog.Fatalf("Invalid configuration: %v", err)
	}

	logger := newLogger(flags.LogLevel)

	clientCfg := airctrl.Config{Logger: logger}
	if flags.ProtocolLog != "" {
		fl, err := log.NewFileLogger(flags.ProtocolLog)
		if err != nil {
			stdlog.Fatalf("Failed to open protocol log: %v", err)
		}
		defer fl.Close()
		clientCfg.Transport.Logger = fl
	}
	if cfg.Port != 0 {
		clientCfg.Transport.Port = cfg.Port
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fmt.Printf("Connecting to %s...\n", cfg.Host)
	client, err := airctrl.Create(ctx, cfg.Host, clientCfg)
	if err != nil {
		stdlog.Fatalf("Failed to connect: %v", err)
	}
	defer client.Close()

	id := client.Identity()
	fmt.Printf("Connected to %s\n", id.UniqueID())

	model := cfg.Model
	if model == "" {
		model = id.ModelID
	}
	fan, err := purifier.NewFan(client, model)
	if err != nil {
		stdlog.Fatalf("Failed to set up device: %v", err)
	}

	console, err := interactive.New(fan)
	if err != nil {
		stdlog.Fatalf("Failed to create console: %v", err)
	}
	// Redirect log output through readline to avoid interfering with input
	stdlog.SetOutput(console.Stdout())
	go console.Run(ctx, cancel)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		stdlog.Printf("Received signal: %v", sig)
	case <-ctx.Done():
		// Console quit
	}

	fmt.Println("Goodbye!")
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}
