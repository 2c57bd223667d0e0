package db_test

import (
	"bytes"
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/pysugar/wg-provisioner/internal/db"
	"github.com/pysugar/wg-provisioner/internal/db/dbtest"
	"github.com/pysugar/wg-provisioner/internal/db/models"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureUser_FirstUserBecomesAdmin(t *testing.T) {
	store := dbtest.New(t)
	ctx := context.Background()

	first, created, err := store.EnsureUser(ctx, 10, "First")
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, first.IsAdmin)
	assert.True(t, first.IsAuthenticated)

	second, created, err := store.EnsureUser(ctx, 20, "Second")
	require.NoError(t, err)
	assert.True(t, created)
	assert.False(t, second.IsAdmin)

	again, created, err := store.EnsureUser(ctx, 10, "Renamed")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)
}

func TestCompleteRegistration_UniqueEmail(t *testing.T) {
	store := dbtest.New(t)
	ctx := context.Background()
	a := dbtest.User(t, store, 1, "A", false)
	b := dbtest.User(t, store, 2, "B", false)
	c := dbtest.User(t, store, 3, "C", false)

	require.NoError(t, store.CompleteRegistration(ctx, a.ID, "a@example.com", "+1", "ops"))
	assert.ErrorIs(t, store.CompleteRegistration(ctx, b.ID, "a@example.com", "", ""), db.ErrDuplicate)
	require.NoError(t, store.CompleteRegistration(ctx, c.ID, "", "", ""), "many users may have no email")
	assert.ErrorIs(t, store.CompleteRegistration(ctx, 999, "", "", ""), db.ErrNotFound)

	got, err := store.GetUserByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.True(t, got.IsRegistered)
	assert.Equal(t, "ops", got.Department)
}

func TestCredential_UniquePerServerAndUser(t *testing.T) {
	store := dbtest.New(t)
	ctx := context.Background()
	u := dbtest.User(t, store, 1, "A", false)
	s := dbtest.Server(t, store, "s", "http://s")

	cred := &models.ServerCredential{ServerID: s.ID, UserID: u.ID, ExternalID: 1, Identifier: "1", APIToken: "t"}
	require.NoError(t, store.CreateCredential(ctx, cred))
	assert.Equal(t, models.CredentialSourceProvisioned, cred.Source)

	dup := &models.ServerCredential{ServerID: s.ID, UserID: u.ID, ExternalID: 1, Identifier: "1", APIToken: "other"}
	assert.ErrorIs(t, store.CreateCredential(ctx, dup), db.ErrDuplicate)

	byExt, err := store.GetCredentialByExternalID(ctx, s.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, cred.ID, byExt.ID)

	require.NoError(t, store.DeleteCredential(ctx, cred.ID))
	assert.ErrorIs(t, store.DeleteCredential(ctx, cred.ID), db.ErrNotFound)
}

func TestAdminCredential_PrefersRegistered(t *testing.T) {
	store := dbtest.New(t)
	ctx := context.Background()
	admin := dbtest.User(t, store, 1, "Admin", true)
	other := dbtest.User(t, store, 2, "Other admin", true)
	plain := dbtest.User(t, store, 3, "Plain", false)
	s := dbtest.Server(t, store, "s", "http://s")

	_, err := store.AdminCredential(ctx, s.ID)
	assert.ErrorIs(t, err, db.ErrNotFound)

	require.NoError(t, store.CreateCredential(ctx, &models.ServerCredential{ServerID: s.ID, UserID: plain.ID, Identifier: "3", APIToken: "t3"}))
	_, err = store.AdminCredential(ctx, s.ID)
	assert.ErrorIs(t, err, db.ErrNotFound, "non-admin credentials never administer a server")

	require.NoError(t, store.CreateCredential(ctx, &models.ServerCredential{ServerID: s.ID, UserID: other.ID, Identifier: "2", APIToken: "t2"}))
	got, err := store.AdminCredential(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "2", got.Identifier)

	require.NoError(t, store.CreateCredential(ctx, &models.ServerCredential{
		ServerID: s.ID, UserID: admin.ID, Identifier: "operator", APIToken: "op", Source: models.CredentialSourceRegistered,
	}))
	got, err = store.AdminCredential(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "operator", got.Identifier)
}

func TestDeleteServer_Cascades(t *testing.T) {
	store := dbtest.New(t)
	ctx := context.Background()
	admin := dbtest.User(t, store, 1, "Admin", true)
	u := dbtest.User(t, store, 2, "U", false)
	s := dbtest.RegisteredServer(t, store, "s", "http://s", admin, "operator", "op")
	keep := dbtest.Server(t, store, "keep", "http://keep")
	require.NoError(t, store.AddGrant(ctx, u.ID, s.ID))
	require.NoError(t, store.AddGrant(ctx, u.ID, keep.ID))

	require.NoError(t, store.DeleteServer(ctx, s.ID))

	_, err := store.GetServer(ctx, s.ID)
	assert.ErrorIs(t, err, db.ErrNotFound)
	creds, err := store.ListCredentialsForServer(ctx, s.ID)
	require.NoError(t, err)
	assert.Empty(t, creds)
	ids, err := store.ServerIDsForUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{keep.ID}, ids)

	assert.ErrorIs(t, store.DeleteServer(ctx, s.ID), db.ErrNotFound)
}

func TestRegisterServer_DuplicateNameLeavesNothing(t *testing.T) {
	store := dbtest.New(t)
	ctx := context.Background()
	admin := dbtest.User(t, store, 1, "Admin", true)
	dbtest.Server(t, store, "s", "http://s")

	err := store.RegisterServer(ctx, &models.Server{Name: "s", APIURL: "http://other"},
		&models.ServerCredential{UserID: admin.ID, Identifier: "op", APIToken: "t"})
	assert.ErrorIs(t, err, db.ErrDuplicate)
	_, err = store.GetServerByURL(ctx, "http://other")
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestUpdateServerStatus(t *testing.T) {
	store := dbtest.New(t)
	ctx := context.Background()
	s := dbtest.Server(t, store, "s", "http://s")
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, store.UpdateServerStatus(ctx, s.ID, models.ServerStatusError, at))
	got, err := store.GetServer(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ServerStatusError, got.Status)
	require.NotNil(t, got.LastChecked)
	assert.True(t, at.Equal(*got.LastChecked))
	assert.Equal(t, "s", got.Name)

	assert.ErrorIs(t, store.UpdateServerStatus(ctx, 999, models.ServerStatusActive, at), db.ErrNotFound)
}

func TestDeleteUser_Cascades(t *testing.T) {
	store := dbtest.New(t)
	ctx := context.Background()
	admin := dbtest.User(t, store, 1, "Admin", true)
	s := dbtest.Server(t, store, "s", "http://s")
	invite := &models.Invite{Code: "code-1", ServerIDs: []uint{s.ID}, AdminExternalID: admin.ExternalID}
	require.NoError(t, store.CreateInvite(ctx, invite))
	red, err := store.RedeemInvite(ctx, "code-1", 50, "Guest")
	require.NoError(t, err)
	require.NoError(t, store.CreateCredential(ctx, &models.ServerCredential{ServerID: s.ID, UserID: red.User.ID, Identifier: "50", APIToken: "t"}))

	require.NoError(t, store.DeleteUser(ctx, red.User.ID))

	_, err = store.GetCredential(ctx, s.ID, red.User.ID)
	assert.ErrorIs(t, err, db.ErrNotFound)
	grants, err := store.ListGrantsForServer(ctx, s.ID)
	require.NoError(t, err)
	assert.Empty(t, grants)
	_, err = store.GetInviteByCode(ctx, "code-1")
	assert.ErrorIs(t, err, db.ErrNotFound)
	assert.ErrorIs(t, store.DeleteUser(ctx, red.User.ID), db.ErrNotFound)
}

func TestSetUserAccess(t *testing.T) {
	store := dbtest.New(t)
	ctx := context.Background()
	u := dbtest.User(t, store, 1, "U", false)
	s1 := dbtest.Server(t, store, "s1", "http://s1")
	s2 := dbtest.Server(t, store, "s2", "http://s2")
	require.NoError(t, store.AddGrant(ctx, u.ID, s1.ID))
	require.NoError(t, store.AddGrant(ctx, u.ID, s1.ID), "granting twice is a no-op")

	require.NoError(t, store.SetUserAccess(ctx, u.ID, []uint{s2.ID, s2.ID}, true))
	ids, err := store.ServerIDsForUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{s2.ID}, ids)
	got, err := store.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.IsAdmin)

	assert.ErrorIs(t, store.SetUserAccess(ctx, 999, nil, false), db.ErrNotFound)
}

func TestRedeemInvite_SingleUse(t *testing.T) {
	store := dbtest.New(t)
	ctx := context.Background()
	admin := dbtest.User(t, store, 1, "Admin", true)
	s := dbtest.Server(t, store, "s", "http://s")
	require.NoError(t, store.CreateInvite(ctx, &models.Invite{Code: "once", ServerIDs: []uint{s.ID, 999}, AdminExternalID: admin.ExternalID}))

	red, err := store.RedeemInvite(ctx, "once", 100, "First")
	require.NoError(t, err)
	assert.True(t, red.User.IsAuthenticated)
	assert.False(t, red.User.IsAdmin)
	assert.False(t, red.Invite.IsActive)
	require.NotNil(t, red.Invite.UsedBy)
	assert.Equal(t, red.User.ID, *red.Invite.UsedBy)

	_, err = store.RedeemInvite(ctx, "once", 200, "Second")
	assert.ErrorIs(t, err, db.ErrInviteInactive)
	_, err = store.GetUserByExternalID(ctx, 200)
	assert.ErrorIs(t, err, db.ErrNotFound)

	grants, err := store.ListGrantsForServer(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, grants, 1)
	assert.Equal(t, red.User.ID, grants[0].UserID)

	_, err = store.RedeemInvite(ctx, "unknown", 300, "X")
	assert.ErrorIs(t, err, db.ErrInviteInactive)
}

func TestRedeemInvite_ConcurrentSingleWinner(t *testing.T) {
	store := dbtest.New(t)
	ctx := context.Background()
	admin := dbtest.User(t, store, 1, "Admin", true)
	require.NoError(t, store.CreateInvite(ctx, &models.Invite{Code: "race", IsAdmin: true, AdminExternalID: admin.ExternalID}))

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = store.RedeemInvite(ctx, "race", int64(1000+i), "racer")
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, db.ErrInviteInactive)
	}
	assert.Equal(t, 1, wins)

	users, err := store.ListUsers(ctx)
	require.NoError(t, err)
	admins := 0
	for _, u := range users {
		if u.IsAdmin {
			admins++
		}
	}
	assert.Equal(t, 2, admins)
}

func TestInviteManagement(t *testing.T) {
	store := dbtest.New(t)
	ctx := context.Background()
	a := &models.Invite{Code: "a"}
	b := &models.Invite{Code: "b"}
	require.NoError(t, store.CreateInvite(ctx, a))
	require.NoError(t, store.CreateInvite(ctx, b))
	assert.ErrorIs(t, store.CreateInvite(ctx, &models.Invite{Code: "a"}), db.ErrDuplicate)

	require.NoError(t, store.DeactivateInvite(ctx, a.ID))
	active, err := store.ListActiveInvites(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "b", active[0].Code)
	assert.Empty(t, active[0].ServerIDs)

	_, err = store.RedeemInvite(ctx, "a", 1, "x")
	assert.ErrorIs(t, err, db.ErrInviteInactive)

	require.NoError(t, store.DeleteInvite(ctx, b.ID))
	assert.ErrorIs(t, store.DeleteInvite(ctx, b.ID), db.ErrNotFound)
	assert.ErrorIs(t, store.DeactivateInvite(ctx, b.ID), db.ErrNotFound)
}

func TestAdminCredential_RegisteredSurvivesDemotion(t *testing.T) {
	store := dbtest.New(t)
	ctx := context.Background()
	admin := dbtest.User(t, store, 1, "Admin", true)
	s := dbtest.RegisteredServer(t, store, "s", "http://s", admin, "operator", "op")

	require.NoError(t, store.SetUserAccess(ctx, admin.ID, nil, false))

	got, err := store.AdminCredential(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "operator", got.Identifier)
}

func TestLookupMissIsNotLogged(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	store := dbtest.New(t)
	_, err := store.GetServer(context.Background(), 42)
	assert.ErrorIs(t, err, db.ErrNotFound)
	_, err = store.AdminCredential(context.Background(), 42)
	assert.ErrorIs(t, err, db.ErrNotFound)
	assert.NotContains(t, buf.String(), "record not found")
}
