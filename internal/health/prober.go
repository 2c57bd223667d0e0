// Package health probes gateway reachability and records server status.
package health

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pysugar/wg-provisioner/internal/credentials"
	"github.com/pysugar/wg-provisioner/internal/db/models"
	"github.com/pysugar/wg-provisioner/internal/logging"
	"github.com/pysugar/wg-provisioner/internal/metrics"
	"github.com/pysugar/wg-provisioner/internal/wgapi"
	log "github.com/sirupsen/logrus"
)

// Directory reads servers and records probe outcomes.
type Directory interface {
	ListServers(ctx context.Context) ([]models.Server, error)
	UpdateServerStatus(ctx context.Context, id uint, status string, checkedAt time.Time) error
}

// Credentials resolves the admin endpoint of a server.
type Credentials interface {
	AdminEndpoint(ctx context.Context, server *models.Server) (wgapi.Endpoint, *models.ServerCredential, error)
}

// Gateway is the lightweight call used as a probe.
type Gateway interface {
	ListInterfaces(ctx context.Context, ep wgapi.Endpoint) ([]wgapi.Interface, error)
}

// Result is the outcome of probing one server.
type Result struct {
	ServerID uint   `json:"server_id"`
	Server   string `json:"server"`
	Status   string `json:"status,omitempty"`
	Skipped  bool   `json:"skipped,omitempty"`
	Failure  string `json:"failure,omitempty"`
}

// Prober checks servers one after another.
type Prober struct {
	dir   Directory
	creds Credentials
	gw    Gateway
	now   func() time.Time
}

// NewProber creates a Prober.
func NewProber(dir Directory, creds Credentials, gw Gateway) *Prober {
	return &Prober{dir: dir, creds: creds, gw: gw, now: time.Now}
}

// ProbeAll probes every registered server.
func (p *Prober) ProbeAll(ctx context.Context) ([]Result, error) {
	ctx = logging.WithPassID(ctx, logging.NewPassID())
	start := time.Now()
	defer func() { metrics.ObservePass("probe", time.Since(start)) }()

	servers, err := p.dir.ListServers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list servers: %w", err)
	}
	if len(servers) == 0 {
		logging.FromContext(ctx).Info("no servers to probe")
		return nil, nil
	}
	return p.ProbeServers(ctx, servers)
}

// ProbeServers probes the given servers. Each outcome is written only to its
// own server's row. Servers without an admin credential are skipped.
func (p *Prober) ProbeServers(ctx context.Context, servers []models.Server) ([]Result, error) {
	results := make([]Result, 0, len(servers))
	for i := range servers {
		res, err := p.probe(ctx, &servers[i])
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

func (p *Prober) probe(ctx context.Context, server *models.Server) (Result, error) {
	res := Result{ServerID: server.ID, Server: server.Name}
	entry := logging.FromContext(ctx).WithFields(log.Fields{"server": server.Name, "url": server.APIURL})

	ep, _, err := p.creds.AdminEndpoint(ctx, server)
	if errors.Is(err, credentials.ErrNoAdminCredential) {
		res.Skipped = true
		entry.Warn("no admin credential, probe skipped")
		return res, nil
	}
	if err != nil {
		return res, err
	}

	res.Status = models.ServerStatusActive
	if _, err := p.gw.ListInterfaces(ctx, ep); err != nil {
		var apiErr *wgapi.RemoteAPIError
		if !errors.As(err, &apiErr) {
			return res, err
		}
		res.Status = models.ServerStatusError
		res.Failure = err.Error()
		entry.WithError(err).Error("server unavailable")
	} else {
		entry.Debug("server active")
	}
	metrics.SetServerUp(server.Name, res.Status == models.ServerStatusActive)

	if err := p.dir.UpdateServerStatus(ctx, server.ID, res.Status, p.now().UTC()); err != nil {
		return res, fmt.Errorf("record status of server %d: %w", server.ID, err)
	}
	if res.Status != server.Status {
		entry.WithFields(log.Fields{"from": server.Status, "to": res.Status}).Info("server status changed")
	}
	return res, nil
}
