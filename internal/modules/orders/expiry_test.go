package orders

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ethioshop.com/app/internal/logging"
	"ethioshop.com/app/internal/modules/audit"
)

type livePayments map[string]bool

func (l livePayments) OrdersWithLivePayments(_ context.Context, ids []string, _ time.Time) (map[string]bool, error) {
	out := map[string]bool{}
	for _, id := range ids {
		if l[id] {
			out[id] = true
		}
	}
	return out, nil
}

func TestExpireStaleCancelsAndRestocks(t *testing.T) {
	f := newFixture(t)
	a := f.product(t, "A", 100, 10)
	stale := f.order(t, CartItem{ProductID: a.ID, Quantity: 2})
	paying := f.order(t, CartItem{ProductID: a.ID, Quantity: 3})
	require.Equal(t, 5, f.stock(t, a.ID))

	e := NewExpirer(f.db, livePayments{paying.ID: true}, time.Hour, logging.Discard(), nil)

	n, err := e.ExpireStale(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "nothing is older than the ttl yet")

	e.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	n, err = e.ExpireStale(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	repo := NewRepo(f.db)
	got, err := repo.GetDetail(context.Background(), stale.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)

	got, err = repo.GetDetail(context.Background(), paying.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)

	assert.Equal(t, 7, f.stock(t, a.ID))

	logs, err := audit.NewRepo(f.db).ForEntity(context.Background(), "order", stale.ID)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, audit.ActorSystem, logs[1].ActorID)
	assert.Equal(t, audit.ActionOrderExpire, logs[1].Action)

	n, err = e.ExpireStale(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	e := NewExpirer(f.db, nil, time.Hour, logging.Discard(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.Run(ctx, 10*time.Millisecond)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
