package karaoke

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/getsentry/sentry-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/loqalabs/loqa-karaoke/internal/corpus"
	"github.com/loqalabs/loqa-karaoke/internal/display"
	"github.com/loqalabs/loqa-karaoke/internal/eventstore"
	"github.com/loqalabs/loqa-karaoke/internal/match"
	"github.com/loqalabs/loqa-karaoke/internal/textnorm"
)

var errNoSong = errors.New("playing state without an active song")

type songEvent struct {
	Title    string `json:"title"`
	Category string `json:"category,omitempty"`
	Method   string `json:"method,omitempty"`
}

func (e *Engine) dispatch(ctx context.Context, s *session, text string, final bool) (Outcome, error) {
	switch s.state {
	case StateMenu:
		return e.handleMenu(ctx, s, text, final), nil
	case StateLiveCaptions:
		if containsFold(text, "stop") {
			e.resetToMenu(s)
			return OutcomeCommand, nil
		}
		e.show(s, liveCaption(text), 0)
		return OutcomeCaption, nil
	case StatePlaying:
		return e.handlePlaying(ctx, s, text, final)
	default:
		return OutcomeError, fmt.Errorf("session %s in unexpected state %s", s.id, s.state)
	}
}

func (e *Engine) handleMenu(ctx context.Context, s *session, text string, final bool) Outcome {
	s.searchText = text
	s.search.cancel()

	if s.view == viewCategories {
		if cat, ok := e.det.FindCategory(text); ok {
			e.filter(s, cat)
			return OutcomeCommand
		}
	}
	if song := match.SelectByNumber(text, s.shown); song != nil {
		e.startSong(ctx, s, song, "number")
		return OutcomeSongStarted
	}

	if final {
		if song := e.det.DetectSong(text, s.category); song != nil {
			e.startSong(ctx, s, song, "title")
			return OutcomeSongStarted
		}
	}

	tokens := make(map[string]bool)
	for _, tok := range textnorm.Tokenize(text) {
		tokens[tok] = true
	}
	switch {
	case tokens["live"]:
		s.cancelTimers()
		s.state = StateLiveCaptions
		e.show(s, liveCaptionsOn, e.timings.Temporary)
		return OutcomeCommand
	case tokens["categories"]:
		e.showCategories(s)
		return OutcomeCommand
	}
	if cat, ok := e.det.FindCategoryByName(text); ok {
		e.filter(s, cat)
		return OutcomeCommand
	}
	switch {
	case tokens["all"]:
		s.category = ""
		e.startScroll(s)
		return OutcomeCommand
	case tokens["search"]:
		if term := searchTerm(text); term != "" {
			e.showSearch(s, term)
		}
		return OutcomeCommand
	case tokens["scroll"]:
		e.startScroll(s)
		return OutcomeCommand
	}

	if cand := e.det.Validate(text); cand != "" && e.det.IsProgressing(cand) {
		e.arm(s, &s.search, "search", e.timings.SearchDelay, func(ctx context.Context) {
			if s.state != StateMenu {
				return
			}
			if song := e.det.DetectSong(s.searchText, s.category); song != nil {
				e.startSong(ctx, s, song, "search_timer")
			}
		})
		return OutcomeSearchPending
	}
	return OutcomeNoMatch
}

func (e *Engine) handlePlaying(ctx context.Context, s *session, text string, final bool) (Outcome, error) {
	if s.song == nil {
		return OutcomeError, errNoSong
	}
	if containsFold(text, "stop") {
		e.resetToMenu(s)
		return OutcomeCommand, nil
	}
	words := s.song.Words(s.line)
	if len(words) == 0 {
		e.nextLine(ctx, s)
		return OutcomeLyric, nil
	}
	if n := e.lyrics.MatchSequential(words, s.word, text); n > 0 {
		s.word += n
	} else if step := e.lyrics.MatchOne(words, s.word, text, final); step.Advances() {
		s.word++
	}
	if s.word >= len(words) {
		e.nextLine(ctx, s)
	} else {
		e.renderLine(s)
	}
	return OutcomeLyric, nil
}

func (e *Engine) resetToMenu(s *session) {
	s.cancelTimers()
	s.state = StateMenu
	s.song = nil
	s.line, s.word = 0, 0
	s.category = ""
	s.searchText = ""
	e.startScroll(s)
}

func (e *Engine) filter(s *session, category string) {
	s.category = category
	e.startScroll(s)
}

// startScroll shows the first page of the current list and pages through it
// every scroll interval, wrapping at the end.
func (e *Engine) startScroll(s *session) {
	s.scroll.cancel()
	songs := e.det.Prioritized(s.category)
	s.view = viewSongs
	s.shown = songs
	s.scrollOffset = 0
	if len(songs) == 0 {
		e.show(s, emptyCategory, 0)
		return
	}
	e.scrollTick(s)
}

func (e *Engine) scrollTick(s *session) {
	songs := s.shown
	end := min(s.scrollOffset+e.timings.PageSize, len(songs))
	e.show(s, menuPage(songs, s.scrollOffset, e.timings.PageSize), 0)
	if end >= len(songs) {
		s.scrollOffset = 0
	} else {
		s.scrollOffset = end
	}
	e.arm(s, &s.scroll, "scroll", e.timings.ScrollInterval, func(context.Context) { e.scrollTick(s) })
}

func (e *Engine) showCategories(s *session) {
	s.scroll.cancel()
	s.view = viewCategories
	s.shown = nil
	cats := e.det.Index().Categories()
	counts := make([]categoryCount, len(cats))
	for i, c := range cats {
		counts[i] = categoryCount{name: c, songs: len(e.det.Prioritized(c))}
	}
	e.show(s, categoryMenu(counts), 0)
}

func (e *Engine) showSearch(s *session, term string) {
	s.scroll.cancel()
	results := rankSearch(e.det.Index(), term)
	if len(results) == 0 {
		all := e.det.Prioritized("")
		s.view = viewSongs
		s.shown = all
		e.show(s, noSearchResults(term, staticMenu(all, e.timings.PageSize)), 0)
		return
	}
	top := results[:min(e.timings.PageSize, len(results))]
	s.view = viewSearch
	s.shown = top
	e.show(s, searchResults(term, top, len(results)), 0)
}

func (e *Engine) startSong(ctx context.Context, s *session, song *corpus.Song, method string) {
	ctx, span := e.tracer.Start(ctx, "karaoke.song.start", trace.WithAttributes(
		attribute.String("session_id", s.id),
		attribute.String("title", song.Title),
		attribute.String("method", method),
	))
	defer span.End()

	s.cancelTimers()
	s.state = StatePlaying
	s.song = song
	s.line, s.word = 0, 0
	s.searchText = ""

	e.metrics.songStarted(e.ctx, method)
	e.record(ctx, s.id, eventstore.TypeSongStarted, songEvent{Title: song.Title, Category: song.Category, Method: method})
	e.logger.Info("song started",
		slog.String("session_id", s.id),
		slog.String("title", song.Title),
		slog.String("method", method))

	e.show(s, getReady(song), e.timings.Temporary)
	if !e.skipEmptyLines(s) {
		e.finish(ctx, s)
		return
	}
	e.renderLine(s)
}

func (e *Engine) nextLine(ctx context.Context, s *session) {
	s.line++
	s.word = 0
	if !e.skipEmptyLines(s) {
		e.finish(ctx, s)
		return
	}
	e.renderLine(s)
}

// skipEmptyLines moves the cursor past lines without words and reports
// whether a line is left to sing.
func (e *Engine) skipEmptyLines(s *session) bool {
	for s.line < len(s.song.Lyrics) && len(s.song.Words(s.line)) == 0 {
		s.line++
	}
	return s.line < len(s.song.Lyrics)
}

// finish shows the completion card and folds back into the menu, keeping
// the category filter so a spoken number picks from the same list.
func (e *Engine) finish(ctx context.Context, s *session) {
	song := s.song
	ctx, span := e.tracer.Start(ctx, "karaoke.song.finish", trace.WithAttributes(
		attribute.String("session_id", s.id),
		attribute.String("title", song.Title),
	))
	defer span.End()

	s.state = StateFinished
	s.cancelTimers()

	e.metrics.songsFinished.Add(e.ctx, 1)
	e.record(ctx, s.id, eventstore.TypeSongFinished, songEvent{Title: song.Title, Category: song.Category})
	e.show(s, songFinished(song), 0)

	s.state = StateMenu
	s.song = nil
	s.line, s.word = 0, 0
	s.view = viewSongs
	s.shown = e.det.Prioritized(s.category)
	s.scrollOffset = 0
}

func (e *Engine) renderLine(s *session) {
	e.coalesced(s, lyricLine(s.song, s.song.Words(s.line), s.word))
}

// coalesced schedules content so that renders requested within one
// coalescing window collapse to the latest.
func (e *Engine) coalesced(s *session, content string) {
	if e.timings.Coalesce <= 0 {
		e.show(s, content, 0)
		return
	}
	s.pending = content
	e.arm(s, &s.coalesce, "coalesce", e.timings.Coalesce, func(context.Context) {
		pending := s.pending
		s.pending = ""
		e.show(s, pending, 0)
	})
}

// show renders immediately and supersedes any pending coalesced render.
func (e *Engine) show(s *session, content string, d time.Duration) {
	s.coalesce.cancel()
	s.pending = ""
	e.display(s.id, display.Render{Content: content, Duration: d})
}

func (e *Engine) display(sessionID string, r display.Render) {
	err := e.surface.Show(e.ctx, sessionID, r)
	if err == nil {
		return
	}
	e.metrics.renderFailures.Add(e.ctx, 1)
	e.logger.Warn("render failed", slog.String("session_id", sessionID), slogError(err))
	fallback := display.Render{Content: fallbackRender, Duration: e.timings.Temporary}
	if err := e.surface.Show(e.ctx, sessionID, fallback); err != nil {
		e.logger.Warn("fallback render failed", slog.String("session_id", sessionID), slogError(err))
	}
}

// arm schedules fn on the slot, replacing whatever it held. fn runs with the
// session lock held, inside a karaoke.timer span, and is skipped once the
// slot is cancelled or re-armed.
func (e *Engine) arm(s *session, sl *slot, name string, d time.Duration, fn func(ctx context.Context)) {
	sl.cancel()
	gen := sl.gen
	sl.stop = e.after(d, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed || !sl.current(gen) {
			return
		}
		sl.stop = nil
		ctx, span := e.tracer.Start(e.ctx, "karaoke.timer", trace.WithAttributes(
			attribute.String("session_id", s.id),
			attribute.String("timer", name),
			attribute.String("state", s.state.String()),
		))
		defer span.End()
		defer e.recoverTimer(s)
		fn(ctx)
	})
}

// fail reports a handler error and asks the user to reset.
func (e *Engine) fail(s *session, err error) {
	e.logger.Error("karaoke handler failed", slog.String("session_id", s.id), slogError(err))
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("session_id", s.id)
		scope.SetTag("state", s.state.String())
		sentry.CaptureException(err)
	})
	e.show(s, processingError, 0)
}

func (e *Engine) recoverUtterance(s *session, out *Outcome) {
	if r := recover(); r != nil {
		*out = OutcomeError
		e.recovered(s, r)
	}
}

func (e *Engine) recoverTimer(s *session) {
	if r := recover(); r != nil {
		e.recovered(s, r)
	}
}

func (e *Engine) recovered(s *session, r any) {
	e.logger.Error("karaoke handler panicked",
		slog.String("session_id", s.id),
		slog.String("panic", fmt.Sprint(r)),
		slog.String("stack", string(debug.Stack())))
	hub := sentry.CurrentHub().Clone()
	hub.Scope().SetTag("session_id", s.id)
	hub.Recover(r)

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("fallback render panicked", slog.String("session_id", s.id), slog.String("panic", fmt.Sprint(r)))
		}
	}()
	e.show(s, processingError, 0)
}
