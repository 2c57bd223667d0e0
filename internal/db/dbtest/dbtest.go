// Package dbtest opens throwaway in-memory directories for tests.
package dbtest

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/pysugar/wg-provisioner/internal/db"
	"github.com/pysugar/wg-provisioner/internal/db/models"
	"github.com/stretchr/testify/require"
)

// New returns a migrated store backed by a private in-memory database.
func New(t testing.TB) *db.Store {
	t.Helper()
	store, err := db.InitDB(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	sqlDB, err := store.DB().DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	return store
}

// Server inserts an active server.
func Server(t testing.TB, store *db.Store, name, apiURL string) *models.Server {
	t.Helper()
	s := &models.Server{Name: name, APIURL: apiURL, Status: models.ServerStatusActive}
	require.NoError(t, store.CreateServer(context.Background(), s))
	return s
}

// RegisteredServer inserts an active server with the operator credential of
// admin, the way an admin registration does.
func RegisteredServer(t testing.TB, store *db.Store, name, apiURL string, admin *models.User, login, token string) *models.Server {
	t.Helper()
	s := &models.Server{Name: name, APIURL: apiURL, Status: models.ServerStatusActive}
	cred := &models.ServerCredential{UserID: admin.ID, ExternalID: admin.ExternalID, Identifier: login, APIToken: token}
	require.NoError(t, store.RegisterServer(context.Background(), s, cred))
	return s
}

// User inserts an authenticated user.
func User(t testing.TB, store *db.Store, externalID int64, name string, admin bool) *models.User {
	t.Helper()
	u := &models.User{ExternalID: externalID, DisplayName: name, IsAdmin: admin, IsAuthenticated: true}
	require.NoError(t, store.CreateUser(context.Background(), u))
	return u
}
