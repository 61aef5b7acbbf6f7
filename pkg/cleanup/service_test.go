package cleanup

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/canadianpizza/orderbot-core/pkg/config"
	"github.com/canadianpizza/orderbot-core/pkg/session"
)

type fakeCachePurger struct {
	purged int64
	err    error
	calls  int
}

func (f *fakeCachePurger) Purge(ctx context.Context) (int64, error) {
	f.calls++
	return f.purged, f.err
}

func TestService_StartRejectsInvalidSchedule(t *testing.T) {
	svc := NewService(config.RetentionConfig{}, "not-a-cron-expression-at-all-!!", nil, &fakeCachePurger{}, nil)
	err := svc.Start(context.Background())
	require.Error(t, err)
}

func TestService_StopBeforeStartIsNoOp(t *testing.T) {
	svc := NewService(config.DefaultRetentionConfig(), "@hourly", nil, &fakeCachePurger{}, nil)
	svc.Stop() // must not panic or block
}

func TestService_PurgeCacheHandlesFailure(t *testing.T) {
	purger := &fakeCachePurger{err: errors.New("disk full")}
	svc := NewService(config.DefaultRetentionConfig(), "@hourly", nil, purger, nil)
	svc.purgeCache(context.Background())
	require.Equal(t, 1, purger.calls)
}

func TestService_PurgeCacheSkipsWhenNil(t *testing.T) {
	svc := NewService(config.DefaultRetentionConfig(), "@hourly", nil, nil, nil)
	svc.purgeCache(context.Background()) // must not panic
}

func TestService_StartStopLifecycle(t *testing.T) {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set, skipping cleanup integration test")
	}

	pool, err := pgxpool.New(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	purger := &fakeCachePurger{}
	svc := NewService(config.DefaultRetentionConfig(), "@every 1h", session.New(pool), purger, nil)

	require.NoError(t, svc.Start(context.Background()))
	svc.Stop()
}
