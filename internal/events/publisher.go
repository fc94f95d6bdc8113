package events

import (
	"context"
	"sync/atomic"
	"time"

	"farmrent/internal/metrics"
	"farmrent/internal/models"
)

// Publisher stamps events of one window and sends them on a channel.
type Publisher struct {
	channel  Channel
	origin   string
	windowID string
	seq      atomic.Uint64
	now      func() time.Time
}

func NewPublisher(channel Channel, origin, windowID string) *Publisher {
	return &Publisher{
		channel:  channel,
		origin:   origin,
		windowID: windowID,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// PublishRequest broadcasts a snapshot of req. The snapshot is detached from
// the caller's record.
func (p *Publisher) PublishRequest(ctx context.Context, eventType string, req *models.RentalRequest) error {
	event := &Event{
		Type:        eventType,
		Origin:      p.origin,
		WindowID:    p.windowID,
		Seq:         p.seq.Add(1),
		PublishedAt: p.now(),
		Request:     req.Clone(),
	}
	err := p.channel.Publish(ctx, event)
	metrics.ObservePublish(p.channel.Name(), err)
	return err
}
