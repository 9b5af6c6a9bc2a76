package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lovebox/internal/config"
	"lovebox/internal/httpapi"
	"lovebox/internal/love"
	"lovebox/internal/obs"
	"lovebox/internal/stream"
	"lovebox/internal/summary"
	"lovebox/internal/token"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	obs.UseFile(cfg.LogFile)

	tokens, err := token.Open(cfg.CachePath,
		token.WithBootstrapToken(cfg.BootstrapToken),
		token.WithPollInterval(cfg.CachePoll),
	)
	if err != nil {
		log.Fatalf("open credential cache: %v", err)
	}

	backend := love.New(cfg.APIBase)
	hub := stream.NewHub()
	sc := stream.NewClient(backend.StreamEndpoint(),
		stream.WithOnEvent(func(evt stream.ActivityEvent) {
			obs.StreamEventRelayed()
			hub.Publish(evt)
		}),
	)

	api := httpapi.New(tokens, backend, sc, hub, summary.New(backend, tokens), httpapi.Options{
		Version:       version,
		Origin:        cfg.PublicOrigin,
		APIBase:       cfg.APIBase,
		RateBurst:     cfg.RateBurst,
		RatePerSecond: cfg.RatePerSecond,
		MaxBodyBytes:  cfg.MaxBodyBytes,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		// No write timeout: the relay endpoint holds its response open for
		// the lifetime of the viewer's SSE subscription.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	log.Printf("Starting lovebox %s on %s (backend %s)", version, srv.Addr, cfg.APIBase)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	sc.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	_ = tokens.Close()
	log.Println("Stopped")
}
