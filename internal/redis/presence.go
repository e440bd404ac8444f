package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/mossy-p/call-signaling/internal/relay"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	activeRoomsKey = "rooms:active"
	peersTTL       = 24 * time.Hour
	opTimeout      = 2 * time.Second
	queueSize      = 1024
)

func peersKey(roomID string) string {
	return "room:" + roomID + ":peers"
}

// Presence mirrors relay membership into Redis for outside observers.
// The relay never reads it back.
type Presence struct {
	client *redis.Client
	events chan relay.Event
	logger *zap.Logger
}

func NewPresence(client *redis.Client, logger *zap.Logger) *Presence {
	return &Presence{
		client: client,
		events: make(chan relay.Event, queueSize),
		logger: logger,
	}
}

// Notify implements relay.Observer. A full queue drops the event.
func (p *Presence) Notify(ev relay.Event) {
	select {
	case p.events <- ev:
	default:
		p.logger.Warn("presence queue full, dropping event",
			zap.Stringer("kind", ev.Kind),
			zap.String("room_id", ev.RoomID),
		)
	}
}

// Run applies queued events until ctx is cancelled
func (p *Presence) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-p.events:
			if err := p.apply(ctx, ev); err != nil {
				p.logger.Warn("presence update failed", zap.String("room_id", ev.RoomID), zap.Error(err))
				continue
			}
			p.logger.Debug("presence updated", zap.Stringer("kind", ev.Kind), zap.String("room_id", ev.RoomID))
		}
	}
}

// Clear removes entries left behind by a previous process
func (p *Presence) Clear(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	roomIDs, err := p.client.SMembers(ctx, activeRoomsKey).Result()
	if err != nil {
		return fmt.Errorf("list active rooms: %w", err)
	}

	keys := make([]string, 0, len(roomIDs)+1)
	for _, id := range roomIDs {
		keys = append(keys, peersKey(id))
	}
	keys = append(keys, activeRoomsKey)

	if err := p.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete presence keys: %w", err)
	}
	return nil
}

func (p *Presence) apply(ctx context.Context, ev relay.Event) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	key := peersKey(ev.RoomID)

	switch ev.Kind {
	case relay.EventJoined:
		if err := p.client.SAdd(ctx, key, ev.PeerID).Err(); err != nil {
			return err
		}
		if err := p.client.Expire(ctx, key, peersTTL).Err(); err != nil {
			return err
		}
		return p.client.SAdd(ctx, activeRoomsKey, ev.RoomID).Err()

	case relay.EventLeft:
		return p.client.SRem(ctx, key, ev.PeerID).Err()

	case relay.EventRoomClosed:
		if err := p.client.Del(ctx, key).Err(); err != nil {
			return err
		}
		return p.client.SRem(ctx, activeRoomsKey, ev.RoomID).Err()
	}
	return nil
}
