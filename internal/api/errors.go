package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/pysugar/wg-provisioner/internal/credentials"
	"github.com/pysugar/wg-provisioner/internal/db"
	"github.com/pysugar/wg-provisioner/internal/logging"
	"github.com/pysugar/wg-provisioner/internal/wgapi"
)

// ValidationError rejects malformed admin input before it reaches the core.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

var errForbidden = errors.New("user has no access to this server")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps err to a status code by type, never by message text.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	body := map[string]any{"error": err.Error()}

	var vErr *ValidationError
	var apiErr *wgapi.RemoteAPIError
	switch {
	case errors.As(err, &vErr):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, db.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, db.ErrDuplicate),
		errors.Is(err, credentials.ErrNoAdminCredential),
		errors.Is(err, credentials.ErrRegisteredCredential):
		status = http.StatusConflict
	case errors.Is(err, db.ErrInviteInactive):
		status = http.StatusGone
	case errors.Is(err, errForbidden):
		status = http.StatusForbidden
	case errors.As(err, &apiErr):
		status = http.StatusBadGateway
		body["gateway_status"] = apiErr.Status
		if apiErr.Status == http.StatusNotFound {
			status = http.StatusNotFound
		}
	}
	if status >= 500 {
		logging.FromContext(r.Context()).WithError(err).WithField("path", r.URL.Path).Error("request failed")
	}
	writeJSON(w, status, body)
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &ValidationError{Message: "invalid request body: " + err.Error()}
	}
	return nil
}

func uintParam(r *http.Request, name string) (uint, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, invalid(name, "%q is not a valid id", raw)
	}
	return uint(id), nil
}

// pathParam returns an unescaped string URL parameter. Peer ids are base64
// keys and arrive percent-encoded.
func pathParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}
