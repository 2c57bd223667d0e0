// Package api is the admin HTTP surface over the directory and the gateways.
package api

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/pysugar/wg-provisioner/internal/credentials"
	"github.com/pysugar/wg-provisioner/internal/db"
	"github.com/pysugar/wg-provisioner/internal/health"
	"github.com/pysugar/wg-provisioner/internal/logging"
	"github.com/pysugar/wg-provisioner/internal/metrics"
	"github.com/pysugar/wg-provisioner/internal/reconcile"
	"github.com/pysugar/wg-provisioner/internal/version"
	"github.com/pysugar/wg-provisioner/internal/wgapi"
	log "github.com/sirupsen/logrus"
)

// Deps are the collaborators of the admin surface.
type Deps struct {
	Store         *db.Store
	Gateway       *wgapi.Client
	Provisioner   *credentials.Provisioner
	Engine        *reconcile.Engine
	Prober        *health.Prober
	AdminPassword string
}

// NewRouter builds the admin HTTP handler.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(requestLogger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": version.String()})
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(adminAuth(d.AdminPassword))

		r.Post("/sync", SyncHandler(d.Engine))
		r.Post("/probe", ProbeHandler(d.Prober))

		r.Get("/servers", ListServersHandler(d.Store))
		r.Post("/servers", RegisterServerHandler(d.Store, d.Gateway, d.Engine))
		r.Put("/servers/{id}", UpdateServerHandler(d.Store))
		r.Delete("/servers/{id}", DeleteServerHandler(d.Store, d.Engine))

		r.Get("/servers/{id}/interfaces", ListInterfacesHandler(d.Store, d.Provisioner, d.Gateway))
		r.Post("/servers/{id}/interfaces", CreateInterfaceHandler(d.Store, d.Provisioner, d.Gateway))
		r.Get("/servers/{id}/interfaces/prepare", PrepareInterfaceHandler(d.Store, d.Provisioner, d.Gateway))
		r.Get("/servers/{id}/interfaces/{ifaceID}", GetInterfaceHandler(d.Store, d.Provisioner, d.Gateway))
		r.Put("/servers/{id}/interfaces/{ifaceID}", UpdateInterfaceHandler(d.Store, d.Provisioner, d.Gateway))
		r.Delete("/servers/{id}/interfaces/{ifaceID}", DeleteInterfaceHandler(d.Store, d.Provisioner, d.Gateway))
		r.Get("/servers/{id}/interfaces/{ifaceID}/metrics", InterfaceMetricsHandler(d.Store, d.Provisioner, d.Gateway))

		r.Get("/users", ListUsersHandler(d.Store))
		r.Post("/users", EnsureUserHandler(d.Store))
		r.Put("/users/{id}/profile", UpdateProfileHandler(d.Store, d.Engine))
		r.Put("/users/{id}/access", SetAccessHandler(d.Store, d.Engine))
		r.Delete("/users/{id}", DeleteUserHandler(d.Store, d.Engine))

		r.Get("/servers/{id}/users/{userID}/peers", ListUserPeersHandler(d.Store, d.Gateway))
		r.Post("/servers/{id}/users/{userID}/peers", CreatePeerHandler(d.Store, d.Provisioner, d.Gateway))
		r.Post("/servers/{id}/users/{userID}/rotate", RotateCredentialHandler(d.Store, d.Engine))
		r.Get("/servers/{id}/users/{userID}/metrics", UserMetricsHandler(d.Store, d.Provisioner, d.Gateway))

		r.Get("/servers/{id}/peers/{peerID}", GetPeerHandler(d.Store, d.Provisioner, d.Gateway))
		r.Delete("/servers/{id}/peers/{peerID}", DeletePeerHandler(d.Store, d.Provisioner, d.Gateway))
		r.Get("/servers/{id}/peers/{peerID}/config", PeerConfigHandler(d.Store, d.Provisioner, d.Gateway))
		r.Get("/servers/{id}/peers/{peerID}/qr", PeerQRHandler(d.Store, d.Provisioner, d.Gateway))
		r.Get("/servers/{id}/peers/{peerID}/metrics", PeerMetricsHandler(d.Store, d.Provisioner, d.Gateway))

		r.Get("/invites", ListInvitesHandler(d.Store))
		r.Post("/invites", CreateInviteHandler(d.Store))
		r.Post("/invites/redeem", RedeemInviteHandler(d.Store, d.Engine))
		r.Post("/invites/{id}/deactivate", DeactivateInviteHandler(d.Store))
		r.Delete("/invites/{id}", DeleteInviteHandler(d.Store))
	})
	return r
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = logging.GenerateRequestID()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), id)))
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logging.FromContext(r.Context()).WithFields(log.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   ww.Status(),
			"bytes":    ww.BytesWritten(),
			"duration": time.Since(start),
		}).Debug("admin request")
	})
}

// adminAuth requires Basic auth with password when password is set.
func adminAuth(password string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if password == "" {
				next.ServeHTTP(w, r)
				return
			}
			_, pass, ok := r.BasicAuth()
			if !ok || subtle.ConstantTimeCompare([]byte(pass), []byte(password)) != 1 {
				w.Header().Set("WWW-Authenticate", `Basic realm="wgprov admin"`)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
