package publisher

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/LavaJover/shvark-smm-service/internal/domain"
)

// ProviderConfigEvent tells other instances to rebuild their provider
// snapshot. Origin lets an instance skip its own events.
type ProviderConfigEvent struct {
	ProviderID string    `json:"provider_id"`
	Origin     string    `json:"origin"`
	OccurredAt time.Time `json:"occurred_at"`
}

type ProviderEventPublisher struct {
	pub    domain.PublisherPort
	topic  string
	origin string
}

func NewProviderEventPublisher(pub domain.PublisherPort, topic, origin string) *ProviderEventPublisher {
	return &ProviderEventPublisher{pub: pub, topic: topic, origin: origin}
}

func (p *ProviderEventPublisher) ProviderChanged(ctx context.Context, providerID string) error {
	return publishJSON(ctx, p.pub, p.topic, providerID, ProviderConfigEvent{
		ProviderID: providerID,
		Origin:     p.origin,
		OccurredAt: time.Now().UTC(),
	})
}

// ListenProviderEvents calls reload for every event published by another
// instance until ctx is done.
func ListenProviderEvents(ctx context.Context, sub domain.SubscriberPort, topic, groupID, origin string, reload func(ctx context.Context) error) error {
	msgs, err := sub.Subscribe(ctx, topic, groupID)
	if err != nil {
		return err
	}
	go func() {
		for m := range msgs {
			var ev ProviderConfigEvent
			if err := json.Unmarshal(m.Value, &ev); err != nil {
				slog.Warn("skipping malformed provider event", "error", err)
				continue
			}
			if ev.Origin == origin {
				continue
			}
			if err := reload(ctx); err != nil {
				slog.Error("provider snapshot reload failed", "provider_id", ev.ProviderID, "error", err)
				continue
			}
			slog.Info("provider snapshot reloaded", "provider_id", ev.ProviderID, "origin", ev.Origin)
		}
	}()
	return nil
}
