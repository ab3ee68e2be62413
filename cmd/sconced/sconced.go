package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"time"

	"dev.acmcsuf.com/sconced"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"libdb.so/hserve"
	"periph.io/x/host/v3"
)

var (
	configPath = "sconced.yml"
	verbose    = false
)

func init() {
	pflag.StringVarP(&configPath, "config", "c", configPath, "path to the config file")
	pflag.BoolVarP(&verbose, "verbose", "v", verbose, "verbose logging")
}

const haRetryDelay = 5 * time.Second

func main() {
	log.SetFlags(0)
	pflag.Parse()

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	logHandler := tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05 PM", // extended time.Kitchen
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	})

	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, logger, level); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, logger *slog.Logger, level slog.Level) error {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}

	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize host drivers: %v", err)
	}

	stripSink, err := newStripSink(cfg.Strip)
	if err != nil {
		return fmt.Errorf("failed to create strip driver: %v", err)
	}

	gridSink, gridCloser, err := newAPA102Sink(cfg.Grid)
	if err != nil {
		return fmt.Errorf("failed to create grid driver: %v", err)
	}
	defer gridCloser.Close()

	stripSend, stripRecv := sconced.NewMailbox[sconced.StripCommand](sconced.DefaultMailboxCap)
	gridSend, gridRecv := sconced.NewMailbox[sconced.GridCommand](sconced.DefaultMailboxCap)
	haSend, haRecv := sconced.NewMailbox[sconced.HaCommand](sconced.DefaultMailboxCap)

	stripEngine := sconced.NewStripEngine(stripRecv, sconced.StripEngineOpts{
		Sink:   stripSink,
		Logger: logger.With("component", "strip"),
	})

	gridEngine, err := sconced.NewGridEngine(gridRecv, sconced.GridEngineOpts{
		Bindings:     sconced.DefaultPadBindings,
		Sink:         gridSink,
		Logger:       logger.With("component", "grid"),
		SleepTimeout: cfg.Grid.SleepTimeout(),
	})
	if err != nil {
		return fmt.Errorf("failed to create grid engine: %v", err)
	}

	buttons, buttonsCloser, err := newButtonPoller(
		cfg.Grid, sconced.DefaultPadBindings, haSend, gridSend,
		logger.With("component", "buttons"))
	if err != nil {
		return fmt.Errorf("failed to create button poller: %v", err)
	}
	defer buttonsCloser.Close()

	cmdConn, err := net.ListenPacket("udp", cfg.CommandAddr)
	if err != nil {
		return fmt.Errorf("failed to bind command socket: %v", err)
	}

	discoverConn, err := net.ListenPacket("udp", cfg.DiscoveryAddr)
	if err != nil {
		return fmt.Errorf("failed to bind discovery socket: %v", err)
	}

	mac, err := primaryMAC()
	if err != nil {
		return err
	}

	haClient := sconced.NewHAClient(haRecv, sconced.HAClientOpts{
		URL:      cfg.HomeAssistant.URL,
		Token:    cfg.HomeAssistant.Token,
		Entities: cfg.HomeAssistant.Entities,
		Bindings: sconced.DefaultPadBindings,
		Grid:     gridSend,
		Logger:   logger.With("component", "hass"),
	})

	errg, ctx := errgroup.WithContext(ctx)

	errg.Go(func() error {
		return stripEngine.Run(ctx)
	})

	errg.Go(func() error {
		return gridEngine.Run(ctx)
	})

	errg.Go(func() error {
		return buttons.Run(ctx)
	})

	errg.Go(func() error {
		logger.Info(
			"listening for strip commands",
			"addr", cmdConn.LocalAddr())

		return sconced.ListenCommands(ctx, cmdConn, stripSend,
			logger.With("component", "udp"))
	})

	errg.Go(func() error {
		logger.Info(
			"answering discovery probes",
			"addr", discoverConn.LocalAddr(),
			"mac", mac)

		return sconced.RespondDiscovery(ctx, discoverConn, mac,
			logger.With("component", "discovery"))
	})

	errg.Go(func() error {
		if cfg.HomeAssistant.URL == "" {
			logger.Warn("no Home Assistant URL configured, buttons are local-only")
			return nil
		}

		for {
			err := haClient.Run(ctx)
			if ctx.Err() != nil {
				return nil
			}
			logger.Warn(
				"connection to Home Assistant dropped, retrying",
				"error", err,
				"delay", haRetryDelay)

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(haRetryDelay):
			}
		}
	})

	errg.Go(func() error {
		admin := newAdminHandler(stripSend, gridSend, level)

		logger.Info(
			"starting admin HTTP server",
			"addr", cfg.AdminAddr)

		return hserve.ListenAndServe(ctx, cfg.AdminAddr, admin)
	})

	return errg.Wait()
}

func newStripSink(cfg StripConfig) (sconced.StripSink, error) {
	switch cfg.Driver {
	case "ws281x":
		return newWS281xSink(cfg)
	case "nrz-spi":
		return newNRZSink(cfg)
	case "screen":
		return newScreenSink(), nil
	default:
		return nil, fmt.Errorf("unknown strip driver %q", cfg.Driver)
	}
}

// primaryMAC is the address advertised in discovery replies.
func primaryMAC() (net.HardwareAddr, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to list interfaces: %w", err)
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback == 0 && len(iface.HardwareAddr) == 6 {
			return iface.HardwareAddr, nil
		}
	}
	return nil, errors.New("no interface with a hardware address")
}
