package protocol

import "time"

// Transcript represents STT output broadcast on the bus.
type Transcript struct {
	SessionID  string    `json:"session_id"`
	Text       string    `json:"text"`
	Partial    bool      `json:"partial"`
	Timestamp  time.Time `json:"timestamp"`
	Confidence float64   `json:"confidence,omitempty"`
}

// SessionEnd tells the karaoke service a user disconnected.
type SessionEnd struct {
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
}

// DisplayRender is a text wall pushed to a user's display. A zero
// DurationMS keeps the content on screen until replaced.
type DisplayRender struct {
	SessionID  string    `json:"session_id"`
	Content    string    `json:"content"`
	DurationMS int       `json:"duration_ms,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

const (
	SubjectTranscriptPartial = "stt.text.partial"
	SubjectTranscriptFinal   = "stt.text.final"
	SubjectSessionEnd        = "karaoke.session.end"
	SubjectDisplayPrefix     = "display.render"
)

// DisplaySubject returns the subject renders for sessionID are published on.
func DisplaySubject(sessionID string) string {
	return SubjectDisplayPrefix + "." + sessionID
}
