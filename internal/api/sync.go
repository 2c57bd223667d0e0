package api

import (
	"context"
	"net/http"

	"github.com/pysugar/wg-provisioner/internal/health"
	"github.com/pysugar/wg-provisioner/internal/logging"
	"github.com/pysugar/wg-provisioner/internal/reconcile"
)

// SyncHandler runs a reconciliation pass over every server.
func SyncHandler(engine *reconcile.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := engine.SyncAll(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

// ProbeHandler probes every server.
func ProbeHandler(prober *health.Prober) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		results, err := prober.ProbeAll(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"servers": results, "count": len(results)})
	}
}

// syncAfter runs a pass inline after a directory mutation. The mutation has
// already been committed, so a failed pass is logged and left to the next tick.
func syncAfter(ctx context.Context, engine *reconcile.Engine) *reconcile.Report {
	report, err := engine.SyncAll(ctx)
	if err != nil {
		logging.FromContext(ctx).WithError(err).Error("on-demand sync failed")
	}
	return report
}
