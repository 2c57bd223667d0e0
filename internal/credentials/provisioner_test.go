package credentials_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/pysugar/wg-provisioner/internal/credentials"
	"github.com/pysugar/wg-provisioner/internal/db"
	"github.com/pysugar/wg-provisioner/internal/db/dbtest"
	"github.com/pysugar/wg-provisioner/internal/db/models"
	"github.com/pysugar/wg-provisioner/internal/wgapi"
	"github.com/pysugar/wg-provisioner/internal/wgapi/wgapitest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store  *db.Store
	gw     *wgapitest.Gateway
	admin  *models.User
	server *models.Server
	prov   *credentials.Provisioner
}

func newFixture(t *testing.T) *fixture {
	store := dbtest.New(t)
	gw := wgapitest.New(t, "operator", "op-token")
	admin := dbtest.User(t, store, 1, "Admin", true)
	server := dbtest.RegisteredServer(t, store, "edge", gw.URL(), admin, "operator", "op-token")
	return &fixture{
		store:  store,
		gw:     gw,
		admin:  admin,
		server: server,
		prov:   credentials.NewProvisioner(store, wgapi.NewClient()),
	}
}

func TestProvision_CreatesAccountAndCredential(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	email := "alice@example.com"
	alice := &models.User{ExternalID: 100, DisplayName: "Alice", Email: &email, Department: "ops", IsAuthenticated: true}
	require.NoError(t, f.store.CreateUser(ctx, alice))

	cred, created, err := f.prov.Provision(ctx, f.server, alice)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "100", cred.Identifier)
	assert.Len(t, cred.APIToken, credentials.APITokenLength)
	assert.Len(t, cred.AccountPassword, credentials.AccountSecretLength)
	assert.Equal(t, models.CredentialSourceProvisioned, cred.Source)

	remote, ok := f.gw.User("100")
	require.True(t, ok)
	assert.Equal(t, "alice@example.com", remote.Email)
	assert.Equal(t, "Alice", remote.Firstname)
	assert.Equal(t, "ops", remote.Department)
	assert.Equal(t, cred.APIToken, remote.ApiToken)
	assert.False(t, remote.Disabled)
	assert.False(t, remote.Locked)

	stored, err := f.store.GetCredential(ctx, f.server.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, cred.APIToken, stored.APIToken)
}

func TestProvision_IdempotentOnExistingCredential(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bob := dbtest.User(t, f.store, 200, "Bob", false)

	first, _, err := f.prov.Provision(ctx, f.server, bob)
	require.NoError(t, err)
	f.gw.ResetCalls()

	second, created, err := f.prov.Provision(ctx, f.server, bob)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Empty(t, f.gw.Calls())
}

func TestProvision_GatewayFailureStoresNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bob := dbtest.User(t, f.store, 200, "Bob", false)
	f.gw.FailPath(http.MethodPost, "/user/new", http.StatusInternalServerError)

	_, _, err := f.prov.Provision(ctx, f.server, bob)
	assert.Equal(t, http.StatusInternalServerError, wgapi.StatusOf(err))

	_, err = f.store.GetCredential(ctx, f.server.ID, bob.ID)
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestProvision_NoAdminCredential(t *testing.T) {
	store := dbtest.New(t)
	gw := wgapitest.New(t, "operator", "op-token")
	server := dbtest.Server(t, store, "bare", gw.URL())
	bob := dbtest.User(t, store, 200, "Bob", false)

	_, _, err := credentials.NewProvisioner(store, wgapi.NewClient()).Provision(context.Background(), server, bob)
	assert.ErrorIs(t, err, credentials.ErrNoAdminCredential)
	assert.Empty(t, gw.Calls())
}

func TestIssuerEndpoint_PrefersInvitingAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	second := dbtest.User(t, f.store, 2, "Second admin", true)
	secondCred, _, err := f.prov.Provision(ctx, f.server, second)
	require.NoError(t, err)

	invite := &models.Invite{Code: uuid.NewString(), ServerIDs: []uint{f.server.ID}, AdminExternalID: second.ExternalID}
	require.NoError(t, f.store.CreateInvite(ctx, invite))
	redeemed, err := f.store.RedeemInvite(ctx, invite.Code, 300, "Carol")
	require.NoError(t, err)

	ep, err := f.prov.IssuerEndpoint(ctx, f.server, &redeemed.User)
	require.NoError(t, err)
	assert.Equal(t, secondCred.Identifier, ep.Login)

	// without an invite the registered operator account is used
	dave := dbtest.User(t, f.store, 400, "Dave", false)
	ep, err = f.prov.IssuerEndpoint(ctx, f.server, dave)
	require.NoError(t, err)
	assert.Equal(t, "operator", ep.Login)
}

func TestRepair_ReusesStoredSecrets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bob := dbtest.User(t, f.store, 200, "Bob", false)
	cred, _, err := f.prov.Provision(ctx, f.server, bob)
	require.NoError(t, err)

	f.gw.RemoveUser("200")
	require.NoError(t, f.prov.Repair(ctx, f.server, bob, cred))

	remote, ok := f.gw.User("200")
	require.True(t, ok)
	assert.Equal(t, cred.APIToken, remote.ApiToken)
	assert.Equal(t, cred.AccountPassword, remote.Password)
}

func TestRotate_ReplacesSecrets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bob := dbtest.User(t, f.store, 200, "Bob", false)
	old, _, err := f.prov.Provision(ctx, f.server, bob)
	require.NoError(t, err)

	fresh, err := f.prov.Rotate(ctx, f.server, bob)
	require.NoError(t, err)
	assert.NotEqual(t, old.APIToken, fresh.APIToken)
	assert.Equal(t, old.Identifier, fresh.Identifier)

	remote, ok := f.gw.User("200")
	require.True(t, ok)
	assert.Equal(t, fresh.APIToken, remote.ApiToken)
}

func TestRotate_RemoteAlreadyGone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bob := dbtest.User(t, f.store, 200, "Bob", false)
	_, _, err := f.prov.Provision(ctx, f.server, bob)
	require.NoError(t, err)
	f.gw.RemoveUser("200")

	_, err = f.prov.Rotate(ctx, f.server, bob)
	require.NoError(t, err)
	_, ok := f.gw.User("200")
	assert.True(t, ok)
}

func TestRotate_RefusesRegisteredCredential(t *testing.T) {
	f := newFixture(t)
	_, err := f.prov.Rotate(context.Background(), f.server, f.admin)
	assert.ErrorIs(t, err, credentials.ErrRegisteredCredential)
}
