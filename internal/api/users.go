package api

import (
	"context"
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"github.com/pysugar/wg-provisioner/internal/db"
	"github.com/pysugar/wg-provisioner/internal/db/models"
	"github.com/pysugar/wg-provisioner/internal/reconcile"
)

type userView struct {
	models.User
	ServerIDs []uint `json:"server_ids"`
}

type ensureUserRequest struct {
	ExternalID  int64  `json:"external_id"`
	DisplayName string `json:"display_name"`
}

type profileRequest struct {
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Department string `json:"department"`
}

type accessRequest struct {
	ServerIDs []uint `json:"server_ids"`
	IsAdmin   bool   `json:"is_admin"`
}

// ListUsersHandler returns every user with its explicit grants.
func ListUsersHandler(store *db.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users, err := store.ListUsers(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		out := make([]userView, 0, len(users))
		for _, u := range users {
			ids, err := store.ServerIDsForUser(r.Context(), u.ID)
			if err != nil {
				writeError(w, r, err)
				return
			}
			if ids == nil {
				ids = []uint{}
			}
			out = append(out, userView{User: u, ServerIDs: ids})
		}
		writeJSON(w, http.StatusOK, map[string]any{"users": out, "count": len(out)})
	}
}

// EnsureUserHandler records first contact of a chat identity.
func EnsureUserHandler(store *db.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ensureUserRequest
		if err := decode(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		if req.ExternalID == 0 {
			writeError(w, r, invalid("external_id", "must be set"))
			return
		}
		user, created, err := store.EnsureUser(r.Context(), req.ExternalID, strings.TrimSpace(req.DisplayName))
		if err != nil {
			writeError(w, r, err)
			return
		}
		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		writeJSON(w, status, user)
	}
}

// UpdateProfileHandler stores contact fields and pushes them to the gateways.
func UpdateProfileHandler(store *db.Store, engine *reconcile.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uintParam(r, "id")
		if err != nil {
			writeError(w, r, err)
			return
		}
		var req profileRequest
		if err := decode(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		req.Email = strings.TrimSpace(req.Email)
		if req.Email != "" {
			if _, err := mail.ParseAddress(req.Email); err != nil {
				writeError(w, r, invalid("email", "%q is not an email address", req.Email))
				return
			}
		}
		if err := store.CompleteRegistration(r.Context(), id, req.Email, strings.TrimSpace(req.Phone), strings.TrimSpace(req.Department)); err != nil {
			writeError(w, r, err)
			return
		}
		user, err := store.GetUser(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		report := syncAfter(r.Context(), engine)
		writeJSON(w, http.StatusOK, map[string]any{"user": user, "sync": report})
	}
}

// SetAccessHandler replaces the grants and admin flag of a user, then syncs.
func SetAccessHandler(store *db.Store, engine *reconcile.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uintParam(r, "id")
		if err != nil {
			writeError(w, r, err)
			return
		}
		var req accessRequest
		if err := decode(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		if err := requireServers(r.Context(), store, req.ServerIDs); err != nil {
			writeError(w, r, err)
			return
		}
		if err := store.SetUserAccess(r.Context(), id, req.ServerIDs, req.IsAdmin); err != nil {
			writeError(w, r, err)
			return
		}
		ids, err := store.ServerIDsForUser(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		report := syncAfter(r.Context(), engine)
		writeJSON(w, http.StatusOK, map[string]any{"server_ids": ids, "is_admin": req.IsAdmin, "sync": report})
	}
}

// DeleteUserHandler removes a user; the following sync prunes its accounts.
func DeleteUserHandler(store *db.Store, engine *reconcile.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uintParam(r, "id")
		if err != nil {
			writeError(w, r, err)
			return
		}
		if err := store.DeleteUser(r.Context(), id); err != nil {
			writeError(w, r, err)
			return
		}
		report := syncAfter(r.Context(), engine)
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "sync": report})
	}
}

func requireServers(ctx context.Context, store *db.Store, ids []uint) error {
	for _, id := range ids {
		if _, err := store.GetServer(ctx, id); err != nil {
			if errors.Is(err, db.ErrNotFound) {
				return invalid("server_ids", "unknown server %d", id)
			}
			return err
		}
	}
	return nil
}
