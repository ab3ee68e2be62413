package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"

	"dev.acmcsuf.com/sconced"
	"github.com/go-chi/chi/v5"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"libdb.so/hserve"
)

var (
	httpAddr      = ":9001"
	commandAddr   = ":7650"
	discoveryAddr = ":7651"
	verbose       = false
)

func init() {
	pflag.StringVarP(&httpAddr, "http-addr", "a", httpAddr, "HTTP server address")
	pflag.StringVar(&commandAddr, "command-addr", commandAddr, "UDP strip command address")
	pflag.StringVar(&discoveryAddr, "discovery-addr", discoveryAddr, "UDP discovery address")
	pflag.BoolVarP(&verbose, "verbose", "v", verbose, "verbose logging")
}

// simMAC is a locally administered address for discovery replies.
var simMAC = net.HardwareAddr{0x02, 0x00, 0x5C, 0x51, 0x4D, 0x01}

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

	if err := run(ctx, logger); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	bc := &broadcaster{}

	stripSend, stripRecv := sconced.NewMailbox[sconced.StripCommand](sconced.DefaultMailboxCap)
	gridSend, gridRecv := sconced.NewMailbox[sconced.GridCommand](sconced.DefaultMailboxCap)
	haSend, haRecv := sconced.NewMailbox[sconced.HaCommand](sconced.DefaultMailboxCap)

	stripEngine := sconced.NewStripEngine(stripRecv, sconced.StripEngineOpts{
		Sink:   &stripBroadcastSink{bc: bc},
		Logger: logger.With("component", "strip"),
	})

	gridEngine, err := sconced.NewGridEngine(gridRecv, sconced.GridEngineOpts{
		Bindings: sconced.DefaultPadBindings,
		Sink:     &gridBroadcastSink{bc: bc},
		Logger:   logger.With("component", "grid"),
	})
	if err != nil {
		return fmt.Errorf("failed to create grid engine: %v", err)
	}

	cmdConn, err := net.ListenPacket("udp", commandAddr)
	if err != nil {
		return fmt.Errorf("failed to bind command socket: %v", err)
	}

	discoverConn, err := net.ListenPacket("udp", discoveryAddr)
	if err != nil {
		return fmt.Errorf("failed to bind discovery socket: %v", err)
	}

	sessions := &sessionsHandler{
		bc:     bc,
		logger: logger,
	}

	r := chi.NewRouter()
	r.Get("/session", sessions.handleNewSession)
	r.Post("/press/{button}", func(w http.ResponseWriter, req *http.Request) {
		button, err := strconv.Atoi(chi.URLParam(req, "button"))
		if err != nil || button < 0 || button >= sconced.NumPads {
			http.Error(w, "bad button index", http.StatusBadRequest)
			return
		}

		gridSend.TrySend(sconced.OrCheckedMask{Mask: 1 << button})
		if button < len(sconced.DefaultPadBindings) {
			haSend.TrySend(sconced.DefaultPadBindings[button].Command)
		}

		w.WriteHeader(http.StatusNoContent)
	})

	errg, ctx := errgroup.WithContext(ctx)

	errg.Go(func() error {
		return stripEngine.Run(ctx)
	})

	errg.Go(func() error {
		return gridEngine.Run(ctx)
	})

	errg.Go(func() error {
		return sconced.ListenCommands(ctx, cmdConn, stripSend,
			logger.With("component", "udp"))
	})

	errg.Go(func() error {
		return sconced.RespondDiscovery(ctx, discoverConn, simMAC,
			logger.With("component", "discovery"))
	})

	// There is no Home Assistant here; log what would have been called.
	errg.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case cmd := <-haRecv.C():
				logger.Info(
					"button would call Home Assistant",
					"command", fmt.Sprintf("%+v", cmd))
			}
		}
	})

	errg.Go(func() error {
		logger.Info(
			"starting HTTP server",
			"addr", httpAddr)

		return hserve.ListenAndServe(ctx, httpAddr, r)
	})

	return errg.Wait()
}
