package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/asyncwatch/console/internal/aggregator"
	"github.com/asyncwatch/console/internal/config"
	"github.com/asyncwatch/console/internal/errs"
	"github.com/asyncwatch/console/internal/grpcserver"
	"github.com/asyncwatch/console/internal/grpcweb"
	"github.com/asyncwatch/console/internal/instrument"
	"github.com/asyncwatch/console/internal/logging"
	"github.com/asyncwatch/console/internal/recording"
	"github.com/asyncwatch/console/internal/transport"
	"github.com/asyncwatch/console/proto"
)

var (
	flagAddr         string
	flagRecordPath   string
	flagReplayPath   string
	flagReplaySpeed  float64
	flagPublishEvery time.Duration
	flagRetention    time.Duration
	flagGrpcWebAddr  string
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"run"},
	Short:   "Start the aggregator and gRPC server",
	RunE:    runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagAddr, "addr", "", "listen URI (http://, file://, or vsock://), overrides CONSOLE_SERVER_ADDR")
	serveCmd.Flags().StringVar(&flagRecordPath, "recording-path", "", "create a JSON-lines recording file here (only its format header is written; console-server records no callbacks into it)")
	serveCmd.Flags().StringVar(&flagReplayPath, "replay", "", "replay a previously recorded session into the aggregator instead of waiting for live instrumentation")
	serveCmd.Flags().Float64Var(&flagReplaySpeed, "replay-speed", 1.0, "replay speed multiplier (0 means as fast as possible)")
	serveCmd.Flags().DurationVar(&flagPublishEvery, "publish-interval", 0, "override the configured publish interval")
	serveCmd.Flags().DurationVar(&flagRetention, "retention", 0, "override the configured dropped-entity retention")
	serveCmd.Flags().StringVar(&flagGrpcWebAddr, "grpcweb-addr", "", "also serve Pause/Resume over grpc-web on this tcp address (disabled if empty)")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logging.Named("console-server")

	cfg, err := config.Load()
	if err != nil {
		return errs.Wrap(err, "load config")
	}
	if flagAddr != "" {
		cfg.ServerAddr = flagAddr
	}
	if flagRecordPath != "" {
		cfg.RecordingPath = flagRecordPath
	}
	if flagPublishEvery > 0 {
		cfg.PublishInterval = flagPublishEvery
	}
	if flagRetention > 0 {
		cfg.Retention = flagRetention
	}

	channel := instrument.NewChannel(cfg.EventBufferCapacity)
	layer := instrument.NewLayer(channel)

	var recorder *recording.Writer
	if cfg.RecordingPath != "" {
		recorder, err = recording.NewWriter(cfg.RecordingPath)
		if err != nil {
			return errs.Wrap(err, "open recording file")
		}
	}

	agg := aggregator.New(aggregator.Config{
		PublishInterval:      cfg.PublishInterval,
		Retention:            cfg.Retention,
		ClientBufferCapacity: cfg.ClientBufferCapacity,
	}, channel)

	ctx, cancel := context.WithCancel(context.Background())
	go agg.Run(ctx)

	listener, err := transport.Listen(cfg.ServerAddr)
	if err != nil {
		cancel()
		return errs.Wrapf(err, "listen on %s", cfg.ServerAddr)
	}

	instrumentSrv := grpcserver.New(agg.Commands())
	grpcServer := grpc.NewServer()
	proto.RegisterInstrumentServer(grpcServer, instrumentSrv)

	printBanner(cfg)

	errChan := make(chan error, 1)
	go func() {
		errChan <- grpcServer.Serve(listener)
	}()
	pterm.Info.Printf("listening on %s\n", cfg.ServerAddr)

	var webServer *http.Server
	if flagGrpcWebAddr != "" {
		webServer = &http.Server{Addr: flagGrpcWebAddr, Handler: grpcweb.NewHandler(instrumentSrv)}
		go func() {
			if err := webServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Warnw("grpc-web listener stopped", "error", err)
			}
		}()
		pterm.Info.Printf("grpc-web listening on %s\n", flagGrpcWebAddr)
	}

	if flagReplayPath != "" {
		go replayInto(layer, flagReplayPath, flagReplaySpeed, log)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		cancel()
		if webServer != nil {
			_ = webServer.Close()
		}
		if recorder != nil {
			_ = recorder.Stop()
		}
		return errs.Wrap(err, "grpc server stopped unexpectedly")

	case <-sigChan:
		pterm.Info.Println("shutting down gracefully (press Ctrl+C again to force)...")
		done := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-sigChan:
			pterm.Warning.Println("force shutdown - exiting immediately")
			os.Exit(1)
		}
		cancel()
		if webServer != nil {
			_ = webServer.Close()
		}
		if recorder != nil {
			if err := recorder.Stop(); err != nil {
				log.Warnw("error closing recording file", "error", err)
			}
		}
		pterm.Success.Println("server stopped cleanly")
		return nil
	}
}

// replayInto drives layer from a previously recorded session, standing
// in for a live instrumented program when none is attached (a recording
// is the only event source this binary produces on its own).
func replayInto(layer *instrument.Layer, path string, speed float64, log interface {
	Warnw(string, ...any)
	Infow(string, ...any)
}) {
	reader, err := recording.NewReader(path)
	if err != nil {
		log.Warnw("failed to open replay file", "path", path, "error", err)
		return
	}
	defer reader.Close()

	log.Infow("replaying recorded session", "path", path, "speed", speed)
	if err := reader.Replay(layer, speed); err != nil {
		log.Warnw("replay stopped early", "error", err)
	}
}

func printBanner(cfg *config.Config) {
	pterm.Println(pterm.NewStyle(pterm.FgCyan, pterm.Bold).Sprint("console-server"))
	pterm.Printf("  listen            %s\n", cfg.ServerAddr)
	pterm.Printf("  publish interval  %s\n", cfg.PublishInterval)
	pterm.Printf("  retention         %s\n", cfg.Retention)
	pterm.Printf("  event buffer      %d\n", cfg.EventBufferCapacity)
	if cfg.RecordingPath != "" {
		pterm.Printf("  recording         %s\n", cfg.RecordingPath)
	}
	pterm.Println()
}
