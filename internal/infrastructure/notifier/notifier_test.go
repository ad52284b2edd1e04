package notifier

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LavaJover/shvark-smm-service/internal/domain"
)

type recorder struct {
	mu   sync.Mutex
	got  []domain.Notification
	fail bool
}

func (r *recorder) Notify(ctx context.Context, n domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
	if r.fail {
		return errors.New("broker down")
	}
	return nil
}

func TestMulti_TriesEveryNotifier(t *testing.T) {
	a := &recorder{fail: true}
	b := &recorder{}
	err := Multi{a, b}.Notify(context.Background(), domain.Notification{Kind: domain.NotifyDepositApproved, UserID: "u1"})
	require.Error(t, err)
	assert.Len(t, a.got, 1)
	assert.Len(t, b.got, 1)
}

func TestAsync_DeliversAfterCallerContextEnds(t *testing.T) {
	rec := &recorder{fail: true}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	async := NewAsync(rec, 0, logger)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, async.Notify(ctx, domain.Notification{Kind: domain.NotifyOrderRefunded, UserID: "u1"}))
	cancel()
	async.Wait()

	require.Len(t, rec.got, 1)
	assert.Equal(t, domain.NotifyOrderRefunded, rec.got[0].Kind)
}

func TestLogNotifier(t *testing.T) {
	n := NewLogNotifier(slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.NoError(t, n.Notify(context.Background(), domain.Notification{Kind: domain.NotifyCancelApproved}))
}
