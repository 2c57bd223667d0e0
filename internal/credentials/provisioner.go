package credentials

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/pysugar/wg-provisioner/internal/db"
	"github.com/pysugar/wg-provisioner/internal/db/models"
	"github.com/pysugar/wg-provisioner/internal/logging"
	"github.com/pysugar/wg-provisioner/internal/metrics"
	"github.com/pysugar/wg-provisioner/internal/wgapi"
	log "github.com/sirupsen/logrus"
)

var (
	// ErrNoAdminCredential means no admin user holds a credential on the server.
	ErrNoAdminCredential = errors.New("no admin credential for server")
	// ErrRegisteredCredential rejects rotation of an operator account entered at registration.
	ErrRegisteredCredential = errors.New("registered credential cannot be rotated")
)

// Store is the part of the directory the provisioner needs.
type Store interface {
	GetCredential(ctx context.Context, serverID, userID uint) (*models.ServerCredential, error)
	GetCredentialByExternalID(ctx context.Context, serverID uint, externalID int64) (*models.ServerCredential, error)
	AdminCredential(ctx context.Context, serverID uint) (*models.ServerCredential, error)
	CreateCredential(ctx context.Context, cred *models.ServerCredential) error
	DeleteCredential(ctx context.Context, id uint) error
	GetInviteUsedBy(ctx context.Context, userID uint) (*models.Invite, error)
}

// Gateway is the part of the gateway client the provisioner needs.
type Gateway interface {
	CreateUser(ctx context.Context, ep wgapi.Endpoint, user wgapi.User) (*wgapi.User, error)
	DeleteUser(ctx context.Context, ep wgapi.Endpoint, id string) error
}

// Provisioner creates gateway accounts and the matching credential rows.
type Provisioner struct {
	store   Store
	gateway Gateway
}

// NewProvisioner creates a Provisioner.
func NewProvisioner(store Store, gateway Gateway) *Provisioner {
	return &Provisioner{store: store, gateway: gateway}
}

// Endpoint addresses server with cred. Gateways authenticate with the login
// identifier and the API token.
func Endpoint(server *models.Server, cred *models.ServerCredential) wgapi.Endpoint {
	return wgapi.Endpoint{BaseURL: server.APIURL, Login: cred.Identifier, Secret: cred.APIToken}
}

// UserPayload is the full account record pushed to a gateway for user.
func UserPayload(user *models.User, cred *models.ServerCredential) wgapi.User {
	return wgapi.User{
		Identifier: cred.Identifier,
		Email:      user.EmailValue(),
		Source:     "db",
		IsAdmin:    user.IsAdmin,
		Firstname:  user.DisplayName,
		Phone:      user.Phone,
		Department: user.Department,
		Password:   cred.AccountPassword,
		ApiToken:   cred.APIToken,
	}
}

// AdminEndpoint returns the endpoint used for administrative calls on server.
func (p *Provisioner) AdminEndpoint(ctx context.Context, server *models.Server) (wgapi.Endpoint, *models.ServerCredential, error) {
	cred, err := p.store.AdminCredential(ctx, server.ID)
	if errors.Is(err, db.ErrNotFound) {
		return wgapi.Endpoint{}, nil, ErrNoAdminCredential
	}
	if err != nil {
		return wgapi.Endpoint{}, nil, err
	}
	return Endpoint(server, cred), cred, nil
}

// IssuerEndpoint returns the endpoint used to create user's account: the
// credential of the admin who invited user when it exists on server, else any
// admin credential.
func (p *Provisioner) IssuerEndpoint(ctx context.Context, server *models.Server, user *models.User) (wgapi.Endpoint, error) {
	invite, err := p.store.GetInviteUsedBy(ctx, user.ID)
	switch {
	case err == nil && invite.AdminExternalID != 0:
		cred, err := p.store.GetCredentialByExternalID(ctx, server.ID, invite.AdminExternalID)
		if err == nil {
			return Endpoint(server, cred), nil
		}
		if !errors.Is(err, db.ErrNotFound) {
			return wgapi.Endpoint{}, err
		}
	case err != nil && !errors.Is(err, db.ErrNotFound):
		return wgapi.Endpoint{}, err
	}
	ep, _, err := p.AdminEndpoint(ctx, server)
	return ep, err
}

// Provision ensures user has an account on server. An existing credential is
// returned untouched and no gateway call is made.
func (p *Provisioner) Provision(ctx context.Context, server *models.Server, user *models.User) (*models.ServerCredential, bool, error) {
	existing, err := p.store.GetCredential(ctx, server.ID, user.ID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, false, err
	}

	ep, err := p.IssuerEndpoint(ctx, server, user)
	if err != nil {
		return nil, false, err
	}
	secret, err := GenerateAccountSecret(AccountSecretLength)
	if err != nil {
		return nil, false, err
	}
	token, err := GenerateAPIToken(APITokenLength)
	if err != nil {
		return nil, false, err
	}
	cred := &models.ServerCredential{
		ServerID:        server.ID,
		UserID:          user.ID,
		ExternalID:      user.ExternalID,
		Identifier:      strconv.FormatInt(user.ExternalID, 10),
		APIToken:        token,
		AccountPassword: secret,
		Source:          models.CredentialSourceProvisioned,
	}
	if _, err := p.gateway.CreateUser(ctx, ep, UserPayload(user, cred)); err != nil {
		return nil, false, err
	}
	if err := p.store.CreateCredential(ctx, cred); err != nil {
		return nil, false, fmt.Errorf("store credential for %s: %w", cred.Identifier, err)
	}
	metrics.ReconcileAction("create")
	logging.FromContext(ctx).WithFields(log.Fields{
		"server":     server.Name,
		"identifier": cred.Identifier,
	}).Info("provisioned gateway account")
	return cred, true, nil
}

// Repair recreates a lost gateway account with the stored secrets so peer
// configurations issued earlier keep working.
func (p *Provisioner) Repair(ctx context.Context, server *models.Server, user *models.User, cred *models.ServerCredential) error {
	ep, err := p.IssuerEndpoint(ctx, server, user)
	if err != nil {
		return err
	}
	if _, err := p.gateway.CreateUser(ctx, ep, UserPayload(user, cred)); err != nil {
		return err
	}
	metrics.ReconcileAction("repair")
	logging.FromContext(ctx).WithFields(log.Fields{
		"server":     server.Name,
		"identifier": cred.Identifier,
	}).Warn("recreated missing gateway account")
	return nil
}

// Rotate replaces user's credential on server with freshly generated secrets.
// Peer configurations tied to the old account stop working.
func (p *Provisioner) Rotate(ctx context.Context, server *models.Server, user *models.User) (*models.ServerCredential, error) {
	cred, err := p.store.GetCredential(ctx, server.ID, user.ID)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		return nil, err
	}
	if cred != nil {
		if cred.IsRegistered() {
			return nil, ErrRegisteredCredential
		}
		ep, _, err := p.AdminEndpoint(ctx, server)
		if err != nil {
			return nil, err
		}
		if err := p.gateway.DeleteUser(ctx, ep, cred.Identifier); err != nil && !wgapi.IsNotFound(err) {
			return nil, err
		}
		if err := p.store.DeleteCredential(ctx, cred.ID); err != nil && !errors.Is(err, db.ErrNotFound) {
			return nil, err
		}
	}
	fresh, _, err := p.Provision(ctx, server, user)
	if err != nil {
		return nil, err
	}
	metrics.ReconcileAction("rotate")
	return fresh, nil
}
