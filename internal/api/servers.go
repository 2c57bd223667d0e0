package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/pysugar/wg-provisioner/internal/credentials"
	"github.com/pysugar/wg-provisioner/internal/db"
	"github.com/pysugar/wg-provisioner/internal/db/models"
	"github.com/pysugar/wg-provisioner/internal/reconcile"
	"github.com/pysugar/wg-provisioner/internal/wgapi"
)

const (
	minAPIPasswordLen = 32
	maxAPIPasswordLen = 64
)

type registerServerRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	APIURL      string `json:"api_url"`
	APILogin    string `json:"api_login"`
	APIPassword string `json:"api_password"`
	AdminUserID uint   `json:"admin_user_id"`
}

type updateServerRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ListServersHandler returns every registered server.
func ListServersHandler(store *db.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		servers, err := store.ListServers(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"servers": servers, "count": len(servers)})
	}
}

// RegisterServerHandler validates the operator credentials against the
// gateway, stores the server and runs a sync.
func RegisterServerHandler(store *db.Store, gw *wgapi.Client, engine *reconcile.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerServerRequest
		if err := decode(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		admin, err := validateRegistration(r.Context(), store, &req)
		if err != nil {
			writeError(w, r, err)
			return
		}

		ep := wgapi.Endpoint{BaseURL: req.APIURL, Login: req.APILogin, Secret: req.APIPassword}
		if _, err := gw.ListInterfaces(r.Context(), ep); err != nil {
			writeRegistrationError(w, r, err)
			return
		}

		server := &models.Server{Name: req.Name, Description: req.Description, APIURL: req.APIURL}
		cred := &models.ServerCredential{
			UserID:     admin.ID,
			ExternalID: admin.ExternalID,
			Identifier: req.APILogin,
			APIToken:   req.APIPassword,
		}
		if err := store.RegisterServer(r.Context(), server, cred); err != nil {
			writeError(w, r, err)
			return
		}
		report := syncAfter(r.Context(), engine)
		writeJSON(w, http.StatusCreated, map[string]any{"server": server, "sync": report})
	}
}

func validateRegistration(ctx context.Context, store *db.Store, req *registerServerRequest) (*models.User, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.APIURL = strings.TrimSpace(req.APIURL)
	req.APILogin = strings.TrimSpace(req.APILogin)
	req.APIPassword = strings.TrimSpace(req.APIPassword)
	if req.Description == "-" {
		req.Description = ""
	}

	if req.Name == "" {
		return nil, invalid("name", "must not be empty")
	}
	if _, err := store.GetServerByName(ctx, req.Name); err == nil {
		return nil, invalid("name", "a server named %q already exists", req.Name)
	} else if !errors.Is(err, db.ErrNotFound) {
		return nil, err
	}
	u, err := url.Parse(req.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, invalid("api_url", "must be an http or https URL")
	}
	if _, err := store.GetServerByURL(ctx, req.APIURL); err == nil {
		return nil, invalid("api_url", "a server with this URL already exists")
	} else if !errors.Is(err, db.ErrNotFound) {
		return nil, err
	}
	if req.APILogin == "" {
		return nil, invalid("api_login", "must not be empty")
	}
	if n := len(req.APIPassword); n < minAPIPasswordLen || n > maxAPIPasswordLen {
		return nil, invalid("api_password", "must be %d to %d characters", minAPIPasswordLen, maxAPIPasswordLen)
	}
	admin, err := store.GetUser(ctx, req.AdminUserID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, invalid("admin_user_id", "unknown user %d", req.AdminUserID)
	}
	if err != nil {
		return nil, err
	}
	if !admin.IsAdmin {
		return nil, invalid("admin_user_id", "user %d is not an admin", req.AdminUserID)
	}
	return admin, nil
}

// writeRegistrationError reports a failed connectivity check by gateway status.
func writeRegistrationError(w http.ResponseWriter, r *http.Request, err error) {
	status := wgapi.StatusOf(err)
	var msg string
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		msg = "invalid API credentials"
	case status >= 500:
		msg = "gateway error"
	case status == 0:
		msg = "gateway unreachable"
	default:
		msg = fmt.Sprintf("gateway rejected the check with status %d", status)
	}
	writeJSON(w, http.StatusBadGateway, map[string]any{"error": msg, "gateway_status": status})
}

// UpdateServerHandler changes the name and description of a server.
func UpdateServerHandler(store *db.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uintParam(r, "id")
		if err != nil {
			writeError(w, r, err)
			return
		}
		var req updateServerRequest
		if err := decode(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			writeError(w, r, invalid("name", "must not be empty"))
			return
		}
		server, err := store.UpdateServer(r.Context(), id, req.Name, req.Description)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, server)
	}
}

// DeleteServerHandler removes a server with its credentials and grants.
func DeleteServerHandler(store *db.Store, engine *reconcile.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uintParam(r, "id")
		if err != nil {
			writeError(w, r, err)
			return
		}
		if err := store.DeleteServer(r.Context(), id); err != nil {
			writeError(w, r, err)
			return
		}
		report := syncAfter(r.Context(), engine)
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "sync": report})
	}
}

// adminTarget loads the server named by the id URL parameter and its admin endpoint.
func adminTarget(r *http.Request, store *db.Store, prov *credentials.Provisioner) (*models.Server, wgapi.Endpoint, error) {
	id, err := uintParam(r, "id")
	if err != nil {
		return nil, wgapi.Endpoint{}, err
	}
	server, err := store.GetServer(r.Context(), id)
	if err != nil {
		return nil, wgapi.Endpoint{}, err
	}
	ep, _, err := prov.AdminEndpoint(r.Context(), server)
	if err != nil {
		return nil, wgapi.Endpoint{}, err
	}
	return server, ep, nil
}
