package api

import (
	"net/http"

	"github.com/pysugar/wg-provisioner/internal/credentials"
	"github.com/pysugar/wg-provisioner/internal/db"
	"github.com/pysugar/wg-provisioner/internal/db/models"
	"github.com/pysugar/wg-provisioner/internal/reconcile"
	"github.com/pysugar/wg-provisioner/internal/wgapi"
)

type createPeerRequest struct {
	InterfaceID string `json:"interface_id"`
}

func userTarget(r *http.Request, store *db.Store) (*models.Server, *models.User, error) {
	serverID, err := uintParam(r, "id")
	if err != nil {
		return nil, nil, err
	}
	userID, err := uintParam(r, "userID")
	if err != nil {
		return nil, nil, err
	}
	server, err := store.GetServer(r.Context(), serverID)
	if err != nil {
		return nil, nil, err
	}
	user, err := store.GetUser(r.Context(), userID)
	if err != nil {
		return nil, nil, err
	}
	return server, user, nil
}

// ListUserPeersHandler lists a user's peers, read with the user's own credential.
func ListUserPeersHandler(store *db.Store, gw *wgapi.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		server, user, err := userTarget(r, store)
		if err != nil {
			writeError(w, r, err)
			return
		}
		cred, err := store.GetCredential(r.Context(), server.ID, user.ID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		info, err := gw.UserPeers(r.Context(), credentials.Endpoint(server, cred), cred.Identifier)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, info)
	}
}

// CreatePeerHandler allocates a peer for a user, provisioning the user's
// account first when it does not exist yet.
func CreatePeerHandler(store *db.Store, prov *credentials.Provisioner, gw *wgapi.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		server, user, err := userTarget(r, store)
		if err != nil {
			writeError(w, r, err)
			return
		}
		var req createPeerRequest
		if err := decode(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		if req.InterfaceID == "" {
			writeError(w, r, invalid("interface_id", "must not be empty"))
			return
		}
		grants, err := store.ListGrantsForServer(r.Context(), server.ID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if !reconcile.HasAccess(*user, server.ID, grants) {
			writeError(w, r, errForbidden)
			return
		}
		cred, _, err := prov.Provision(r.Context(), server, user)
		if err != nil {
			writeError(w, r, err)
			return
		}
		ep, _, err := prov.AdminEndpoint(r.Context(), server)
		if err != nil {
			writeError(w, r, err)
			return
		}
		peer, err := gw.NewPeer(r.Context(), ep, wgapi.NewPeerRequest{
			InterfaceIdentifier: req.InterfaceID,
			UserIdentifier:      cred.Identifier,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, peer)
	}
}

// RotateCredentialHandler replaces a user's gateway secrets on a server.
func RotateCredentialHandler(store *db.Store, engine *reconcile.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		server, user, err := userTarget(r, store)
		if err != nil {
			writeError(w, r, err)
			return
		}
		cred, err := engine.Rotate(r.Context(), server, user)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, cred)
	}
}

// UserMetricsHandler returns traffic counters of a user's peers.
func UserMetricsHandler(store *db.Store, prov *credentials.Provisioner, gw *wgapi.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		server, user, err := userTarget(r, store)
		if err != nil {
			writeError(w, r, err)
			return
		}
		cred, err := store.GetCredential(r.Context(), server.ID, user.ID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		ep, _, err := prov.AdminEndpoint(r.Context(), server)
		if err != nil {
			writeError(w, r, err)
			return
		}
		m, err := gw.UserMetrics(r.Context(), ep, cred.Identifier)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, m)
	}
}

// GetPeerHandler returns one peer.
func GetPeerHandler(store *db.Store, prov *credentials.Provisioner, gw *wgapi.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, ep, err := adminTarget(r, store, prov)
		if err != nil {
			writeError(w, r, err)
			return
		}
		peer, err := gw.GetPeer(r.Context(), ep, pathParam(r, "peerID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, peer)
	}
}

// DeletePeerHandler removes a peer.
func DeletePeerHandler(store *db.Store, prov *credentials.Provisioner, gw *wgapi.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, ep, err := adminTarget(r, store, prov)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if err := gw.DeletePeer(r.Context(), ep, pathParam(r, "peerID")); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	}
}

// PeerConfigHandler serves the wg-quick configuration of a peer as a download.
func PeerConfigHandler(store *db.Store, prov *credentials.Provisioner, gw *wgapi.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, ep, err := adminTarget(r, store, prov)
		if err != nil {
			writeError(w, r, err)
			return
		}
		cfg, err := gw.PeerConfig(r.Context(), ep, pathParam(r, "peerID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="wg.conf"`)
		w.Write([]byte(cfg))
	}
}

// PeerQRHandler serves the configuration of a peer as a PNG QR code.
func PeerQRHandler(store *db.Store, prov *credentials.Provisioner, gw *wgapi.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, ep, err := adminTarget(r, store, prov)
		if err != nil {
			writeError(w, r, err)
			return
		}
		png, err := gw.PeerQR(r.Context(), ep, pathParam(r, "peerID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(png)
	}
}

// PeerMetricsHandler returns traffic and handshake data of a peer.
func PeerMetricsHandler(store *db.Store, prov *credentials.Provisioner, gw *wgapi.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, ep, err := adminTarget(r, store, prov)
		if err != nil {
			writeError(w, r, err)
			return
		}
		m, err := gw.PeerMetrics(r.Context(), ep, pathParam(r, "peerID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, m)
	}
}
