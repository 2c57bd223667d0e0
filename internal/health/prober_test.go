package health_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/pysugar/wg-provisioner/internal/credentials"
	"github.com/pysugar/wg-provisioner/internal/db"
	"github.com/pysugar/wg-provisioner/internal/db/dbtest"
	"github.com/pysugar/wg-provisioner/internal/db/models"
	"github.com/pysugar/wg-provisioner/internal/health"
	"github.com/pysugar/wg-provisioner/internal/wgapi"
	"github.com/pysugar/wg-provisioner/internal/wgapi/wgapitest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProber(store *db.Store) *health.Prober {
	client := wgapi.NewClient(wgapi.WithTimeout(2 * time.Second))
	return health.NewProber(store, credentials.NewProvisioner(store, client), client)
}

func TestProbeAll(t *testing.T) {
	store := dbtest.New(t)
	ctx := context.Background()
	admin := dbtest.User(t, store, 1, "Admin", true)

	up := wgapitest.New(t, "op", "t")
	failing := wgapitest.New(t, "op", "t")
	failing.FailAll(http.StatusServiceUnavailable)

	s1 := dbtest.RegisteredServer(t, store, "up", up.URL(), admin, "op", "t")
	s2 := dbtest.RegisteredServer(t, store, "failing", failing.URL(), admin, "op", "t")
	s3 := dbtest.RegisteredServer(t, store, "gone", "http://127.0.0.1:1", admin, "op", "t")
	s4 := dbtest.Server(t, store, "no-creds", up.URL())
	s4.Status = models.ServerStatusError
	require.NoError(t, store.UpdateServerStatus(ctx, s4.ID, models.ServerStatusError, time.Now()))

	results, err := newProber(store).ProbeAll(ctx)
	require.NoError(t, err)
	require.Len(t, results, 4)

	want := map[uint]string{
		s1.ID: models.ServerStatusActive,
		s2.ID: models.ServerStatusError,
		s3.ID: models.ServerStatusError,
	}
	for id, status := range want {
		s, err := store.GetServer(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, status, s.Status, s.Name)
		require.NotNil(t, s.LastChecked, s.Name)
	}
	assert.True(t, results[3].Skipped)
	skipped, err := store.GetServer(ctx, s4.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ServerStatusError, skipped.Status, "skipped servers keep their status")
}

func TestProbe_RecoversServer(t *testing.T) {
	store := dbtest.New(t)
	ctx := context.Background()
	admin := dbtest.User(t, store, 1, "Admin", true)
	gw := wgapitest.New(t, "op", "t")
	s := dbtest.RegisteredServer(t, store, "edge", gw.URL(), admin, "op", "t")
	prober := newProber(store)

	gw.FailAll(http.StatusBadGateway)
	_, err := prober.ProbeAll(ctx)
	require.NoError(t, err)
	got, _ := store.GetServer(ctx, s.ID)
	assert.Equal(t, models.ServerStatusError, got.Status)

	gw.FailAll(0)
	_, err = prober.ProbeAll(ctx)
	require.NoError(t, err)
	got, _ = store.GetServer(ctx, s.ID)
	assert.Equal(t, models.ServerStatusActive, got.Status)
	assert.Equal(t, []wgapitest.Call{
		{Method: http.MethodGet, Path: "/interface/all"},
		{Method: http.MethodGet, Path: "/interface/all"},
	}, gw.Calls())
}

func TestProbe_BadCredentialsMarkError(t *testing.T) {
	store := dbtest.New(t)
	ctx := context.Background()
	admin := dbtest.User(t, store, 1, "Admin", true)
	gw := wgapitest.New(t, "op", "t")
	s := dbtest.RegisteredServer(t, store, "edge", gw.URL(), admin, "op", "wrong")

	results, err := newProber(store).ProbeAll(ctx)
	require.NoError(t, err)
	assert.Contains(t, results[0].Failure, "401")
	got, _ := store.GetServer(ctx, s.ID)
	assert.Equal(t, models.ServerStatusError, got.Status)
}

func TestProbeAll_Empty(t *testing.T) {
	results, err := newProber(dbtest.New(t)).ProbeAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, results)
}
