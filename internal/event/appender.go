package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/avolkhov/mxchat-server/internal/coordstore"
)

// ErrInvalidEvent indicates a malformed event that cannot be appended.
var ErrInvalidEvent = errors.New("invalid event")

// Log entry field names used on the room state log.
const (
	FieldType  = "type"
	FieldEvent = "event"
)

// Appender validates events and writes them into their room's ordered log.
// A durable log entry is the sole "new event happened" notification; there
// is no separate pub/sub.
type Appender struct {
	store coordstore.Store
	log   *zerolog.Logger
}

// NewAppender creates an appender over the given coordination store.
func NewAppender(st coordstore.Store, logger *zerolog.Logger) *Appender {
	return &Appender{store: st, log: logger}
}

// Process appends one event to its room's log and returns the position the
// store assigned to it. Validation is purely syntactic; checking the event
// against prior room state belongs to state resolution, which this server
// does not do.
func (a *Appender) Process(ctx context.Context, ev Event) (coordstore.EntryID, error) {
	if err := validate(ev); err != nil {
		return 0, err
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return 0, fmt.Errorf("marshal event %s: %w", ev.EventID, err)
	}

	entryID, err := a.store.Append(ctx, coordstore.StateLogKey(ev.RoomID), map[string]string{
		FieldType:  ev.Type,
		FieldEvent: string(data),
	})
	if err != nil {
		return 0, fmt.Errorf("append event %s: %w", ev.EventID, err)
	}

	a.log.Debug().
		Str("room_id", ev.RoomID).
		Str("event_id", ev.EventID).
		Str("type", ev.Type).
		Uint64("entry_id", uint64(entryID)).
		Msg("event appended")

	return entryID, nil
}

func validate(ev Event) error {
	switch {
	case ev.EventID == "":
		return fmt.Errorf("%w: missing event_id", ErrInvalidEvent)
	case ev.RoomID == "":
		return fmt.Errorf("%w: missing room_id", ErrInvalidEvent)
	case ev.Sender == "":
		return fmt.Errorf("%w: missing sender", ErrInvalidEvent)
	case ev.Type == "":
		return fmt.Errorf("%w: missing type", ErrInvalidEvent)
	}
	return nil
}
