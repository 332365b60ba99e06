package karaoke

import (
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/loqalabs/loqa-karaoke/internal/eventstore"
)

func newTracedHarness(t *testing.T, opts ...Option) (*harness, *tracetest.SpanRecorder) {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	return newHarness(t, append(opts, WithTracerProvider(tp))...), sr
}

func spansNamed(sr *tracetest.SpanRecorder, name string) []sdktrace.ReadOnlySpan {
	var out []sdktrace.ReadOnlySpan
	for _, s := range sr.Ended() {
		if s.Name() == name {
			out = append(out, s)
		}
	}
	return out
}

func attr(s sdktrace.ReadOnlySpan, key string) string {
	for _, kv := range s.Attributes() {
		if kv.Key == attribute.Key(key) {
			return kv.Value.Emit()
		}
	}
	return ""
}

func childOf(child, parent sdktrace.ReadOnlySpan) bool {
	return child.Parent().SpanID() == parent.SpanContext().SpanID() &&
		child.SpanContext().TraceID() == parent.SpanContext().TraceID()
}

func TestHandleSpansAndTimelineTraceIDs(t *testing.T) {
	rec := &fakeRecorder{}
	h, sr := newTracedHarness(t, WithRecorder(rec))
	h.startGajiyo()
	h.say("menu", false)

	handles := spansNamed(sr, "karaoke.handle")
	if len(handles) != 2 {
		t.Fatalf("expected 2 handle spans, got %d", len(handles))
	}
	first, second := handles[0], handles[1]
	if attr(first, "session_id") != h.id || attr(first, "state") != "menu" || attr(first, "outcome") != string(OutcomeSongStarted) {
		t.Fatalf("unexpected song start span attributes %v", first.Attributes())
	}
	if attr(second, "state") != "playing" || attr(second, "outcome") != string(OutcomeMenu) {
		t.Fatalf("unexpected menu span attributes %v", second.Attributes())
	}

	starts := spansNamed(sr, "karaoke.song.start")
	if len(starts) != 1 || !childOf(starts[0], first) {
		t.Fatalf("expected song start span under the first handle span, got %d", len(starts))
	}
	if attr(starts[0], "method") != "title" || attr(starts[0], "title") != "Gajiyo Mujho Jor" {
		t.Fatalf("unexpected song start attributes %v", starts[0].Attributes())
	}

	h.e.Close()
	rec.mu.Lock()
	defer rec.mu.Unlock()
	want := first.SpanContext().TraceID().String()
	for _, evt := range rec.events {
		if evt.Type == eventstore.TypeSongStarted && evt.TraceID != want {
			t.Fatalf("song start recorded trace %s, span trace %s", evt.TraceID, want)
		}
	}
}

func TestFinishSpanFollowsLastLine(t *testing.T) {
	h, sr := newTracedHarness(t)
	h.startGajiyo()
	for _, line := range []string{
		"Gajiyo munjo jor jalanu",
		"Gajiyo munjo jor jalanu",
		"Jala maine juliaan",
		"Bhen Gajiyo te gaaiyaan",
		"Bhen Gajiyo ji gaaiyaan",
	} {
		h.say(line, true)
	}

	finishes := spansNamed(sr, "karaoke.song.finish")
	if len(finishes) != 1 {
		t.Fatalf("expected one finish span, got %d", len(finishes))
	}
	handles := spansNamed(sr, "karaoke.handle")
	last := handles[len(handles)-1]
	if !childOf(finishes[0], last) {
		t.Fatal("expected finish span under the handle span of the last line")
	}
	if attr(last, "outcome") != string(OutcomeLyric) {
		t.Fatalf("unexpected outcome %q", attr(last, "outcome"))
	}
}

func TestTimerSpans(t *testing.T) {
	h, sr := newTracedHarness(t)
	h.clock.fire(testScroll)
	h.say("dakor na", false)
	h.clock.fire(testSearch)

	timers := spansNamed(sr, "karaoke.timer")
	if len(timers) != 2 {
		t.Fatalf("expected scroll and search timer spans, got %d", len(timers))
	}
	if attr(timers[0], "timer") != "scroll" || attr(timers[1], "timer") != "search" {
		t.Fatalf("unexpected timer names %q, %q", attr(timers[0], "timer"), attr(timers[1], "timer"))
	}
	starts := spansNamed(sr, "karaoke.song.start")
	if len(starts) != 1 || !childOf(starts[0], timers[1]) {
		t.Fatal("expected song start span under the search timer span")
	}
	if attr(starts[0], "method") != "search_timer" {
		t.Fatalf("unexpected method %q", attr(starts[0], "method"))
	}
}
