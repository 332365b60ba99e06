package natsserver

import (
	"io"
	"log/slog"
	"testing"

	"github.com/loqalabs/loqa-karaoke/internal/config"
)

func TestStartDisabled(t *testing.T) {
	srv, err := Start(config.BusConfig{Embedded: false}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if srv != nil {
		t.Fatal("expected nil server when embedded mode is off")
	}
	srv.Shutdown()
	if srv.ClientURL() != "" {
		t.Fatal("expected empty client url for nil server")
	}
}

func TestStartEmbeddedWithoutJetStream(t *testing.T) {
	srv, err := Start(config.BusConfig{Embedded: true, Port: -1}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("start embedded server: %v", err)
	}
	t.Cleanup(srv.Shutdown)
	if srv.ClientURL() == "" {
		t.Fatal("expected client url for running server")
	}
	if srv.ns.JetStreamEnabled() {
		t.Fatal("expected jetstream disabled")
	}
}
