package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/SoyDuilio/quevendi/internal/cart"
	"github.com/SoyDuilio/quevendi/internal/classifier"
	"github.com/SoyDuilio/quevendi/internal/config"
	"github.com/SoyDuilio/quevendi/internal/dispatcher"
	"github.com/SoyDuilio/quevendi/internal/gateway"
	"github.com/SoyDuilio/quevendi/internal/httpserver"
	"github.com/SoyDuilio/quevendi/internal/listener"
	"github.com/SoyDuilio/quevendi/internal/speech"
	"github.com/SoyDuilio/quevendi/internal/stt"
)

func main() {
	// Include sub-second precision in all log timestamps
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	cfg := config.Load()

	backend := gateway.NewClient(cfg.BackendBaseURL, cfg.BackendToken)
	parser := classifier.NewClient(cfg.BackendBaseURL, cfg.BackendToken)
	engine := cart.NewEngine()
	hub := httpserver.NewHub()

	var synth speech.Synthesizer
	if cfg.DeepgramAPIKey != "" {
		synth = speech.NewDeepgramSynthesizer(cfg.DeepgramAPIKey, cfg.DeepgramModel)
	}
	queue := speech.NewQueue(synth, hub)

	loadCtx, cancelLoad := context.WithTimeout(context.Background(), 5*time.Second)
	vs := backend.LoadVoiceSettings(loadCtx)
	cancelLoad()
	queue.SetSettings(speech.Settings{Voice: vs.Voice, Speed: vs.Speed, Enabled: vs.Enabled})

	disp := dispatcher.New(parser, engine, backend, queue, httpserver.DispatcherEvents(hub, engine))
	rec := stt.NewStream(cfg.STTWSEndpoint)
	loop := listener.New(rec, disp, queue, backend, engine, cfg.Mobile, cfg.IdleTimeout, httpserver.ListenerEvents(hub))

	e := httpserver.NewEcho()
	httpserver.NewServer(disp, loop, backend, queue, hub, engine).Register(e)
	server := &http.Server{
		Addr:              cfg.HTTPAddress,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(rootCtx)

	g.Go(func() error {
		queue.Start(ctx)
		return nil
	})

	g.Go(func() error {
		if err := disp.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		err := loop.Run(ctx)
		switch {
		case errors.Is(err, stt.ErrUnsupported):
			// no engine endpoint: utterances still arrive via the HTTP surface
			log.Printf("terminal: speech recognition unavailable, page input only")
			return nil
		case errors.Is(err, context.Canceled):
			return nil
		}
		return err
	})

	g.Go(func() error {
		log.Printf("server listening on %s", cfg.HTTPAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutCtx); err != nil {
			log.Printf("graceful shutdown failed: %v", err)
			_ = server.Close()
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("terminal error: %v", err)
	}
	log.Printf("terminal stopped")
}
