package testutil

import (
	"context"
	"sync"

	"github.com/LavaJover/shvark-smm-service/internal/domain"
)

type RecordingNotifier struct {
	mu   sync.Mutex
	sent []domain.Notification
	Err  error
}

func (n *RecordingNotifier) Notify(ctx context.Context, msg domain.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return n.Err
}

func (n *RecordingNotifier) Sent() []domain.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.Notification(nil), n.sent...)
}

// Kinds lists the kinds sent so far, in order.
func (n *RecordingNotifier) Kinds() []domain.NotificationKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]domain.NotificationKind, 0, len(n.sent))
	for _, s := range n.sent {
		out = append(out, s.Kind)
	}
	return out
}
