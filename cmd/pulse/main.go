// Command pulse serves category insights over HTTP and keeps the article
// store fresh in the background.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/abelbrown/pulse/internal/app"
	"github.com/abelbrown/pulse/internal/config"
	"github.com/abelbrown/pulse/internal/otel"
)

func main() {
	addr := flag.String("addr", "", "listen address (overrides config)")
	noBackground := flag.Bool("no-background", false, "serve only; skip fetching, purging and proactive generation")
	flag.Parse()

	if err := config.LoadEnv(); err != nil {
		log.Printf("Warning: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}

	a, err := app.Open(cfg)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}
	defer a.Close()

	a.Log.Emit(otel.Event{
		Level: otel.LevelInfo,
		Kind:  otel.KindStartup,
		Comp:  "main",
		Count: len(a.Sources),
		Msg:   "models: " + modelsSummary(a.Models.Names()),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !*noBackground {
		a.Coord.Start(ctx)
	}

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("pulse listening on %s", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Server error: %v", err)
			stop()
		}
	}()

	<-ctx.Done()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown: %v", err)
	}
	a.Coord.Wait()
	a.Log.Info(otel.KindShutdown, "main", "stopped")
}

func modelsSummary(names []string) string {
	if len(names) == 0 {
		return "none (fallback insights only)"
	}
	return strings.Join(names, ", ")
}
