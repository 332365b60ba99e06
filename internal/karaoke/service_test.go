package karaoke

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/loqalabs/loqa-karaoke/internal/bus"
	"github.com/loqalabs/loqa-karaoke/internal/config"
	"github.com/loqalabs/loqa-karaoke/internal/display"
	"github.com/loqalabs/loqa-karaoke/internal/natsserver"
	"github.com/loqalabs/loqa-karaoke/internal/protocol"
)

func startBus(t *testing.T) *bus.Client {
	t.Helper()
	srv, err := natsserver.Start(config.BusConfig{Embedded: true, Port: -1}, newLogger())
	if err != nil {
		t.Fatalf("start nats: %v", err)
	}
	t.Cleanup(srv.Shutdown)
	client, err := bus.Connect(context.Background(), config.BusConfig{Servers: []string{srv.ClientURL()}, ConnectTimeout: 2000}, newLogger())
	if err != nil {
		t.Fatalf("connect nats: %v", err)
	}
	t.Cleanup(client.Close)
	return client
}

func TestServiceRoutesTranscriptsOverBus(t *testing.T) {
	client := startBus(t)

	renders := make(chan protocol.DisplayRender, 32)
	sub, err := client.Conn().Subscribe(protocol.DisplaySubject("glasses-1"), func(msg *nats.Msg) {
		var r protocol.DisplayRender
		if err := json.Unmarshal(msg.Data, &r); err == nil {
			renders <- r
		}
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	t.Cleanup(func() { _ = sub.Unsubscribe() })

	engine := New(context.Background(), newDetector(t), display.NewBusPublisher(client), newLogger(), WithTimings(testTimings(0)))
	t.Cleanup(engine.Close)
	svc := NewService(context.Background(), engine, client, newLogger())
	if err := svc.Start(); err != nil {
		t.Fatalf("start service: %v", err)
	}
	t.Cleanup(svc.Close)
	if err := client.Conn().Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if !svc.Healthy() {
		t.Fatal("expected healthy service")
	}

	if err := client.PublishJSON(protocol.SubjectTranscriptFinal, protocol.Transcript{SessionID: "glasses-1", Text: "3", Timestamp: time.Now()}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	deadline := time.After(5 * time.Second)
	for ready := false; !ready; {
		select {
		case r := <-renders:
			if r.SessionID != "glasses-1" {
				t.Fatalf("render for wrong session: %+v", r)
			}
			if strings.Contains(r.Content, "Get ready") {
				ready = true
				if r.DurationMS != 1000 {
					t.Fatalf("expected temporary render, got %d ms", r.DurationMS)
				}
			}
		case <-deadline:
			t.Fatal("no get-ready render published")
		}
	}

	if err := client.PublishJSON(protocol.SubjectSessionEnd, protocol.SessionEnd{SessionID: "glasses-1"}); err != nil {
		t.Fatalf("publish end: %v", err)
	}
	for end := time.Now().Add(5 * time.Second); engine.Sessions() != 0; {
		if time.Now().After(end) {
			t.Fatal("session not ended")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
