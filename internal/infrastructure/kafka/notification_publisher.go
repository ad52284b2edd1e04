package publisher

import (
	"context"
	"time"

	"github.com/LavaJover/shvark-smm-service/internal/domain"
)

// NotificationPublisher hands notifications to the delivery layer through a
// topic keyed by user id.
type NotificationPublisher struct {
	pub   domain.PublisherPort
	topic string
}

func NewNotificationPublisher(pub domain.PublisherPort, topic string) *NotificationPublisher {
	return &NotificationPublisher{pub: pub, topic: topic}
}

var _ domain.Notifier = (*NotificationPublisher)(nil)

func (p *NotificationPublisher) Notify(ctx context.Context, n domain.Notification) error {
	if n.OccurredAt.IsZero() {
		n.OccurredAt = time.Now().UTC()
	}
	return publishJSON(ctx, p.pub, p.topic, n.UserID, n)
}
