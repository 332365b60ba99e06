package karaoke

import (
	"sync"
	"time"

	"github.com/loqalabs/loqa-karaoke/internal/corpus"
)

// State is the top-level mode of a session.
type State int

const (
	StateMenu State = iota
	StateLiveCaptions
	StatePlaying
	// StateFinished is held only while the completion card is shown; the
	// session folds back into StateMenu before the handler returns.
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateMenu:
		return "menu"
	case StateLiveCaptions:
		return "live_captions"
	case StatePlaying:
		return "playing"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// view is the list the user currently sees while in the menu.
type view int

const (
	viewSongs view = iota
	viewSearch
	viewCategories
)

// stopFunc cancels a scheduled callback.
type stopFunc func() bool

// slot holds one cancelable timer. Every stop or re-arm bumps gen so a
// callback that already left the runtime's timer queue can tell it is stale.
type slot struct {
	stop stopFunc
	gen  uint64
}

func (sl *slot) cancel() {
	if sl.stop != nil {
		sl.stop()
		sl.stop = nil
	}
	sl.gen++
}

func (sl *slot) armed() bool { return sl.stop != nil }

func (sl *slot) current(gen uint64) bool { return sl.stop != nil && sl.gen == gen }

// session is the per-user state. mu is held for the whole handling of an
// event or timer callback and doubles as the in-flight flag.
type session struct {
	id string
	mu sync.Mutex

	state    State
	song     *corpus.Song
	line     int
	word     int
	category string

	view         view
	shown        []*corpus.Song
	scrollOffset int
	searchText   string

	lastText string
	lastAt   time.Time
	closed   bool

	scroll   slot
	search   slot
	coalesce slot
	pending  string
}

func newSession(id string) *session {
	return &session{id: id, state: StateMenu}
}

func (s *session) cancelTimers() {
	s.scroll.cancel()
	s.search.cancel()
	s.coalesce.cancel()
	s.pending = ""
}

// Snapshot is a read-only view of a session for diagnostics and tests.
type Snapshot struct {
	State    State
	Song     string
	Line     int
	Word     int
	Category string
}

func (s *session) snapshot() Snapshot {
	snap := Snapshot{State: s.state, Line: s.line, Word: s.word, Category: s.category}
	if s.song != nil {
		snap.Song = s.song.Title
	}
	return snap
}
