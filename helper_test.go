package bakersdozen_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	bakersdozen "github.com/bakersdozen/bakersdozen.go"
	"github.com/bakersdozen/bakersdozen.go/internal/fakebakery"
	"github.com/bakersdozen/bakersdozen.go/pkg/logger"
)

func newTestServer(t *testing.T) *fakebakery.Server {
	t.Helper()

	srv := fakebakery.NewServer("127.0.0.1:0")
	require.NoError(t, srv.Start())
	t.Cleanup(func() {
		_ = srv.Stop()
	})
	return srv
}

// newTestDB connects a DB to srv with a probe interval long enough that only
// explicit Check calls change the connection state during a test.
func newTestDB(t *testing.T, srv *fakebakery.Server) *bakersdozen.DB {
	t.Helper()

	cfg := bakersdozen.NewConfig(srv.URL(), "test-anon-key")
	cfg.Logger = logger.New(slog.NewTextHandler(io.Discard, nil))
	cfg.ProbeInterval = time.Hour

	db := bakersdozen.New(context.Background(), cfg)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = db.Close(ctx)
	})

	require.True(t, db.Online(), "expected the DB to come up online against the fake backend")
	return db
}
