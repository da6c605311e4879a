package main

import (
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	natsadapter "github.com/samirrijal/geoviewer/internal/adapters/nats"
	"github.com/samirrijal/geoviewer/internal/core/domain"
	"github.com/samirrijal/geoviewer/internal/pkg/config"
	"github.com/samirrijal/geoviewer/internal/pkg/logging"
)

// tail follows the camera events of one session and prints them as JSON lines.
//
//	tail <session-id> [pane]
func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: tail <session-id> [pane]")
	}
	sessionID := os.Args[1]
	var pane string
	if len(os.Args) > 2 {
		pane = os.Args[2]
	}

	cfg, err := config.Load("geoviewer-tail")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	// Logs go to stderr so stdout stays a clean event stream.
	slog.SetDefault(logging.New(os.Stderr, "geoviewer-tail", cfg.Log.Level, cfg.Log.Format))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer sub.Close()

	var mu sync.Mutex
	enc := json.NewEncoder(os.Stdout)
	unsubscribe, err := sub.SubscribeCamera(ctx, sessionID, func(_ context.Context, ev *domain.CameraEvent) error {
		if pane != "" && ev.Pane != pane {
			return nil
		}
		mu.Lock()
		defer mu.Unlock()
		return enc.Encode(ev)
	})
	if err != nil {
		log.Fatalf("subscribe: %v", err)
	}
	defer unsubscribe()

	slog.Info("following session", "session", sessionID, "pane", pane, "subject", natsadapter.CameraSubject(sessionID, "*"))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("stopping", "signal", sig.String())
}
