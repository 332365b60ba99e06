package display

import (
	"context"
	"errors"
	"testing"
)

type recordingSurface struct {
	err    error
	shown  []Render
	called int
}

func (s *recordingSurface) Show(_ context.Context, _ string, r Render) error {
	s.called++
	if s.err != nil {
		return s.err
	}
	s.shown = append(s.shown, r)
	return nil
}

func TestChainStopsAtFirstSuccess(t *testing.T) {
	first := &recordingSurface{}
	second := &recordingSurface{}
	if err := (Chain{first, second}).Show(context.Background(), "s1", Render{Content: "hi"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first.shown) != 1 || second.called != 0 {
		t.Fatalf("expected only first surface used, got first=%d second=%d", len(first.shown), second.called)
	}
}

func TestChainFallsBack(t *testing.T) {
	first := &recordingSurface{err: ErrUnavailable}
	second := &recordingSurface{}
	if err := (Chain{nil, first, second}).Show(context.Background(), "s1", Render{Content: "hi"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.called != 1 || len(second.shown) != 1 {
		t.Fatalf("expected fallback to second surface")
	}
}

func TestChainJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	err := (Chain{&recordingSurface{err: ErrUnavailable}, &recordingSurface{err: boom}}).Show(context.Background(), "s1", Render{})
	if !errors.Is(err, ErrUnavailable) || !errors.Is(err, boom) {
		t.Fatalf("expected joined errors, got %v", err)
	}
	if err := (Chain{}).Show(context.Background(), "s1", Render{}); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable for empty chain, got %v", err)
	}
}

func TestBusPublisherWithoutConnection(t *testing.T) {
	var p *BusPublisher
	if err := p.Show(context.Background(), "s1", Render{Content: "x"}); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	p = NewBusPublisher(nil)
	if err := p.Show(context.Background(), "s1", Render{Content: "x"}); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable for nil bus, got %v", err)
	}
}
