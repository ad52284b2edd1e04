package notifier

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/LavaJover/shvark-smm-service/internal/domain"
)

// LogNotifier stands in for the delivery layer when no broker is configured.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, msg domain.Notification) error {
	n.logger.InfoContext(ctx, "notification",
		"kind", string(msg.Kind),
		"user_id", msg.UserID,
		"order_id", msg.OrderID,
		"deposit_id", msg.DepositID,
		"amount", msg.Amount.String(),
		"currency", msg.Currency,
	)
	return nil
}

// Multi fans a notification out to every notifier and returns the first
// error after trying all of them.
type Multi []domain.Notifier

func (m Multi) Notify(ctx context.Context, msg domain.Notification) error {
	var first error
	for _, n := range m {
		if err := n.Notify(ctx, msg); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Async hands notifications to next on a goroutine so the caller never
// waits on the broker. Wait drains in-flight deliveries on shutdown.
type Async struct {
	next    domain.Notifier
	timeout time.Duration
	logger  *slog.Logger
	wg      sync.WaitGroup
}

func NewAsync(next domain.Notifier, timeout time.Duration, logger *slog.Logger) *Async {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Async{next: next, timeout: timeout, logger: logger}
}

func (a *Async) Notify(ctx context.Context, msg domain.Notification) error {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
		defer cancel()
		if err := a.next.Notify(sendCtx, msg); err != nil {
			a.logger.Error("failed to deliver notification",
				"kind", string(msg.Kind),
				"user_id", msg.UserID,
				"error", err,
			)
		}
	}()
	return nil
}

func (a *Async) Wait() {
	a.wg.Wait()
}
