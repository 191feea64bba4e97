// Package push delivers live feed events from the backend's push channel.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/adamavenir/frayfeed/internal/types"
)

// ErrUnknownEvent is returned by Decode for event types the feed ignores.
var ErrUnknownEvent = errors.New("unknown push event type")

// Source streams push events until ctx is done. Implementations reconnect on
// their own; Run only returns on cancellation or an unrecoverable setup error.
type Source interface {
	Run(ctx context.Context, out chan<- types.PushEvent) error
}

// Decode parses one JSON envelope. Missing id and channel fields are filled
// from the payload when it carries them.
func Decode(data []byte) (types.PushEvent, error) {
	var ev types.PushEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return types.PushEvent{}, fmt.Errorf("decode push event: %w", err)
	}
	switch ev.Type {
	case types.EventMessagePosted, types.EventThreadMessagePosted,
		types.EventMessageDeleted, types.EventThreadMessageDeleted:
	default:
		return types.PushEvent{}, fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Type)
	}
	if ev.Payload != nil {
		if ev.ID == "" {
			ev.ID = ev.Payload.ID
		}
		if ev.ChannelID == "" {
			ev.ChannelID = ev.Payload.ChannelID
		}
		if ev.Payload.ChannelID == "" {
			ev.Payload.ChannelID = ev.ChannelID
		}
	}
	return ev, nil
}

// Encode renders ev as a single-line envelope.
func Encode(ev types.PushEvent) ([]byte, error) {
	return json.Marshal(ev)
}

func send(ctx context.Context, out chan<- types.PushEvent, ev types.PushEvent) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
