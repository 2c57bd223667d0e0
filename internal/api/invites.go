package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/pysugar/wg-provisioner/internal/db"
	"github.com/pysugar/wg-provisioner/internal/db/models"
	"github.com/pysugar/wg-provisioner/internal/reconcile"
)

type createInviteRequest struct {
	ServerIDs   []uint `json:"server_ids"`
	IsAdmin     bool   `json:"is_admin"`
	AdminUserID uint   `json:"admin_user_id"`
}

type redeemRequest struct {
	Code        string `json:"code"`
	ExternalID  int64  `json:"external_id"`
	DisplayName string `json:"display_name"`
}

// ListInvitesHandler returns invites that can still be redeemed.
func ListInvitesHandler(store *db.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		invites, err := store.ListActiveInvites(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"invites": invites, "count": len(invites)})
	}
}

// CreateInviteHandler issues a one-time code for a server list or for admin rights.
func CreateInviteHandler(store *db.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createInviteRequest
		if err := decode(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		issuer, err := store.GetUser(r.Context(), req.AdminUserID)
		if errors.Is(err, db.ErrNotFound) || (err == nil && !issuer.IsAdmin) {
			writeError(w, r, invalid("admin_user_id", "user %d is not an admin", req.AdminUserID))
			return
		}
		if err != nil {
			writeError(w, r, err)
			return
		}
		if !req.IsAdmin && len(req.ServerIDs) == 0 {
			writeError(w, r, invalid("server_ids", "choose at least one server or is_admin"))
			return
		}
		if err := requireServers(r.Context(), store, req.ServerIDs); err != nil {
			writeError(w, r, err)
			return
		}
		invite := &models.Invite{
			Code:            uuid.NewString(),
			ServerIDs:       req.ServerIDs,
			IsAdmin:         req.IsAdmin,
			AdminExternalID: issuer.ExternalID,
		}
		if req.IsAdmin {
			invite.ServerIDs = nil
		}
		if err := store.CreateInvite(r.Context(), invite); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, invite)
	}
}

// RedeemInviteHandler consumes a code for a chat identity and syncs its accounts.
func RedeemInviteHandler(store *db.Store, engine *reconcile.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req redeemRequest
		if err := decode(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		req.Code = strings.TrimSpace(req.Code)
		if req.Code == "" || req.ExternalID == 0 {
			writeError(w, r, invalid("", "code and external_id are required"))
			return
		}
		redemption, err := store.RedeemInvite(r.Context(), req.Code, req.ExternalID, strings.TrimSpace(req.DisplayName))
		if err != nil {
			writeError(w, r, err)
			return
		}
		report := syncAfter(r.Context(), engine)
		writeJSON(w, http.StatusOK, map[string]any{"user": redemption.User, "invite": redemption.Invite, "sync": report})
	}
}

// DeactivateInviteHandler makes an invite unusable.
func DeactivateInviteHandler(store *db.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uintParam(r, "id")
		if err != nil {
			writeError(w, r, err)
			return
		}
		if err := store.DeactivateInvite(r.Context(), id); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	}
}

// DeleteInviteHandler removes an invite.
func DeleteInviteHandler(store *db.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uintParam(r, "id")
		if err != nil {
			writeError(w, r, err)
			return
		}
		if err := store.DeleteInvite(r.Context(), id); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	}
}
