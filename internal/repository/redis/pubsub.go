package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// SlotsPubSub broadcasts slot occupancy changes so dashboards and other
// instances can refresh their view of a court's day.
type SlotsPubSub struct {
	rdb     *redis.Client
	channel string
}

func NewSlotsPubSub(rdb *redis.Client) *SlotsPubSub {
	return &SlotsPubSub{
		rdb:     rdb,
		channel: ChannelSlotsChanged(),
	}
}

type slotChangedMsg struct {
	Type    string `json:"type"`
	CourtID int64  `json:"court_id"`
	Date    string `json:"date"`
	TsUnix  int64  `json:"ts_unix"`
}

func (p *SlotsPubSub) PublishSlotChanged(ctx context.Context, courtID int64, date string) error {
	msg := slotChangedMsg{
		Type:    "slot_changed",
		CourtID: courtID,
		Date:    date,
		TsUnix:  time.Now().Unix(),
	}

	b, _ := json.Marshal(msg)

	return p.rdb.Publish(ctx, p.channel, b).Err()
}

func (p *SlotsPubSub) Subscribe(ctx context.Context, handler func(ctx context.Context, courtID int64, date string)) error {
	sub := p.rdb.Subscribe(ctx, p.channel)
	defer sub.Close()

	ch := sub.Channel(redis.WithChannelSize(256))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var ev slotChangedMsg
			if err := json.Unmarshal([]byte(m.Payload), &ev); err == nil &&
				ev.CourtID != 0 {
				handler(ctx, ev.CourtID, ev.Date)
			}
		}
	}
}
