// Package reconcile drives every active gateway toward the account set the
// directory intends for it.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pysugar/wg-provisioner/internal/credentials"
	"github.com/pysugar/wg-provisioner/internal/db/models"
	"github.com/pysugar/wg-provisioner/internal/logging"
	"github.com/pysugar/wg-provisioner/internal/metrics"
	"github.com/pysugar/wg-provisioner/internal/wgapi"
	log "github.com/sirupsen/logrus"
)

// Directory is the read side of the directory used by a pass.
type Directory interface {
	ListServers(ctx context.Context) ([]models.Server, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	ListGrantsForServer(ctx context.Context, serverID uint) ([]models.AccessGrant, error)
	ListCredentialsForServer(ctx context.Context, serverID uint) ([]models.ServerCredential, error)
}

// Gateway is the part of the gateway client used by a pass.
type Gateway interface {
	ListUsers(ctx context.Context, ep wgapi.Endpoint) ([]wgapi.User, error)
	GetUser(ctx context.Context, ep wgapi.Endpoint, id string) (*wgapi.User, error)
	UpdateUser(ctx context.Context, ep wgapi.Endpoint, id string, user wgapi.User) (*wgapi.User, error)
	DeleteUser(ctx context.Context, ep wgapi.Endpoint, id string) error
}

// Provisioner creates, repairs and rotates accounts.
type Provisioner interface {
	AdminEndpoint(ctx context.Context, server *models.Server) (wgapi.Endpoint, *models.ServerCredential, error)
	Provision(ctx context.Context, server *models.Server, user *models.User) (*models.ServerCredential, bool, error)
	Repair(ctx context.Context, server *models.Server, user *models.User, cred *models.ServerCredential) error
	Rotate(ctx context.Context, server *models.Server, user *models.User) (*models.ServerCredential, error)
}

// ServerResult summarizes one server's pass.
type ServerResult struct {
	ServerID uint   `json:"server_id"`
	Server   string `json:"server"`
	Skipped  string `json:"skipped,omitempty"`
	Created  int    `json:"created"`
	Updated  int    `json:"updated"`
	Deleted  int    `json:"deleted"`
	Repaired int    `json:"repaired"`
	Errors   int    `json:"errors"`
	Failure  string `json:"failure,omitempty"`
	// Err aborted the server's pass.
	Err error `json:"-"`
}

// Report is the outcome of SyncAll.
type Report struct {
	Pass    string         `json:"pass"`
	Servers []ServerResult `json:"servers"`
}

// Failed returns the servers whose pass was aborted.
func (r *Report) Failed() []ServerResult {
	var out []ServerResult
	for _, s := range r.Servers {
		if s.Err != nil {
			out = append(out, s)
		}
	}
	return out
}

// Engine runs reconciliation passes. Passes never overlap.
type Engine struct {
	dir  Directory
	gw   Gateway
	prov Provisioner
	mu   sync.Mutex
}

// NewEngine creates an Engine.
func NewEngine(dir Directory, gw Gateway, prov Provisioner) *Engine {
	return &Engine{dir: dir, gw: gw, prov: prov}
}

// SyncAll reconciles every active server in id order. A gateway failure
// aborts only the affected server; a directory failure aborts the pass and
// is returned.
func (e *Engine) SyncAll(ctx context.Context) (*Report, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pass := logging.NewPassID()
	ctx = logging.WithPassID(ctx, pass)
	start := time.Now()
	defer func() { metrics.ObservePass("sync", time.Since(start)) }()

	servers, err := e.dir.ListServers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list servers: %w", err)
	}
	users, err := e.dir.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	report := &Report{Pass: pass}
	for i := range servers {
		res, err := e.syncServer(ctx, &servers[i], users)
		if err != nil {
			return report, err
		}
		report.Servers = append(report.Servers, res)
	}
	logging.FromContext(ctx).WithFields(log.Fields{
		"servers":  len(servers),
		"failed":   len(report.Failed()),
		"duration": time.Since(start),
	}).Info("sync pass completed")
	return report, nil
}

// Rotate replaces a user's secrets on server. It holds the pass lock so a
// running pass never repairs the credential being replaced.
func (e *Engine) Rotate(ctx context.Context, server *models.Server, user *models.User) (*models.ServerCredential, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.prov.Rotate(ctx, server, user)
}

func (e *Engine) syncServer(ctx context.Context, server *models.Server, users []models.User) (ServerResult, error) {
	res := ServerResult{ServerID: server.ID, Server: server.Name}
	entry := logging.FromContext(ctx).WithFields(log.Fields{"server": server.Name, "server_id": server.ID})

	if !server.IsActive() {
		res.Skipped = "inactive"
		entry.Debug("server not active, skipping")
		return res, nil
	}
	adminEP, adminCred, err := e.prov.AdminEndpoint(ctx, server)
	if errors.Is(err, credentials.ErrNoAdminCredential) {
		res.Skipped = "no admin credential"
		entry.Warn("no admin credential, skipping")
		return res, nil
	}
	if err != nil {
		return res, err
	}

	grants, err := e.dir.ListGrantsForServer(ctx, server.ID)
	if err != nil {
		return res, fmt.Errorf("list grants of server %d: %w", server.ID, err)
	}
	creds, err := e.dir.ListCredentialsForServer(ctx, server.ID)
	if err != nil {
		return res, fmt.Errorf("list credentials of server %d: %w", server.ID, err)
	}
	intended := IntendedUsers(server.ID, grants, users)

	remote, err := e.gw.ListUsers(ctx, adminEP)
	if err != nil {
		res.Err = err
		res.Failure = err.Error()
		metrics.ReconcileServerFailed()
		entry.WithError(err).Error("cannot list gateway users, server pass aborted")
		return res, nil
	}

	credByUser := make(map[uint]*models.ServerCredential, len(creds))
	keep := map[string]bool{adminCred.Identifier: true}
	for i := range creds {
		c := &creds[i]
		credByUser[c.UserID] = c
		if c.IsRegistered() {
			keep[c.Identifier] = true
		}
	}
	for _, u := range intended {
		if c, ok := credByUser[u.ID]; ok {
			keep[c.Identifier] = true
		}
	}

	// prune before converge
	for _, ru := range remote {
		if ru.Identifier == "" || keep[ru.Identifier] {
			continue
		}
		if err := e.gw.DeleteUser(ctx, adminEP, ru.Identifier); err != nil && !wgapi.IsNotFound(err) {
			res.Errors++
			entry.WithError(err).WithField("identifier", ru.Identifier).Error("failed to delete unauthorized gateway user")
			continue
		}
		res.Deleted++
		metrics.ReconcileAction("delete")
		entry.WithField("identifier", ru.Identifier).Info("deleted unauthorized gateway user")
	}

	for i := range intended {
		if err := e.converge(ctx, server, adminEP, &intended[i], credByUser[intended[i].ID], &res); err != nil {
			return res, err
		}
	}
	entry.WithFields(log.Fields{
		"created":  res.Created,
		"updated":  res.Updated,
		"deleted":  res.Deleted,
		"repaired": res.Repaired,
		"errors":   res.Errors,
	}).Info("server synced")
	return res, nil
}

// converge brings one intended user's account in line. Gateway failures are
// logged and counted; anything else is a directory failure and is returned.
func (e *Engine) converge(ctx context.Context, server *models.Server, adminEP wgapi.Endpoint, user *models.User, cred *models.ServerCredential, res *ServerResult) error {
	entry := logging.FromContext(ctx).WithFields(log.Fields{"server": server.Name, "user_id": user.ID})
	userFailed := func(err error, msg string) error {
		var apiErr *wgapi.RemoteAPIError
		if errors.As(err, &apiErr) || errors.Is(err, credentials.ErrNoAdminCredential) {
			res.Errors++
			entry.WithError(err).Error(msg)
			return nil
		}
		return err
	}

	if cred == nil {
		_, created, err := e.prov.Provision(ctx, server, user)
		if err != nil {
			return userFailed(err, "failed to provision gateway user")
		}
		if created {
			res.Created++
		}
		return nil
	}
	if cred.IsRegistered() {
		return nil
	}
	entry = entry.WithField("identifier", cred.Identifier)

	remote, err := e.gw.GetUser(ctx, adminEP, cred.Identifier)
	if wgapi.IsNotFound(err) {
		if err := e.prov.Repair(ctx, server, user, cred); err != nil {
			return userFailed(err, "failed to recreate gateway user")
		}
		res.Repaired++
		return nil
	}
	if err != nil {
		return userFailed(err, "cannot fetch gateway user, skipping")
	}

	want := credentials.UserPayload(user, cred)
	if !drifted(remote, &want) {
		return nil
	}
	if _, err := e.gw.UpdateUser(ctx, adminEP, cred.Identifier, want); err != nil {
		return userFailed(err, "failed to update gateway user")
	}
	res.Updated++
	metrics.ReconcileAction("update")
	entry.Info("updated drifted gateway user")
	return nil
}

// drifted compares the profile fields owned by the directory.
func drifted(remote, want *wgapi.User) bool {
	return remote.Email != want.Email ||
		remote.Firstname != want.Firstname ||
		remote.Phone != want.Phone ||
		remote.Department != want.Department ||
		remote.IsAdmin != want.IsAdmin
}
