package display

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/loqalabs/loqa-karaoke/internal/bus"
	"github.com/loqalabs/loqa-karaoke/internal/protocol"
)

// BusPublisher publishes renders on display.render.<session> for display
// clients attached to the bus.
type BusPublisher struct {
	bus *bus.Client
	now func() time.Time
}

// NewBusPublisher publishes renders through client. A nil client is never available.
func NewBusPublisher(client *bus.Client) *BusPublisher {
	return &BusPublisher{bus: client, now: time.Now}
}

func (p *BusPublisher) Show(_ context.Context, sessionID string, r Render) error {
	if p == nil || !p.bus.Healthy() {
		return fmt.Errorf("bus publisher: %w", ErrUnavailable)
	}
	if sessionID == "" {
		return errors.New("bus publisher: empty session id")
	}
	data, err := json.Marshal(protocol.DisplayRender{
		SessionID:  sessionID,
		Content:    r.Content,
		DurationMS: int(r.Duration / time.Millisecond),
		Timestamp:  p.now().UTC(),
	})
	if err != nil {
		return err
	}
	return p.bus.Conn().Publish(protocol.DisplaySubject(sessionID), data)
}
