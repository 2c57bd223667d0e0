package api

import (
	"net/http"

	"github.com/pysugar/wg-provisioner/internal/credentials"
	"github.com/pysugar/wg-provisioner/internal/db"
	"github.com/pysugar/wg-provisioner/internal/wgapi"
)

// ListInterfacesHandler lists the interfaces of a gateway.
func ListInterfacesHandler(store *db.Store, prov *credentials.Provisioner, gw *wgapi.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, ep, err := adminTarget(r, store, prov)
		if err != nil {
			writeError(w, r, err)
			return
		}
		ifaces, err := gw.ListInterfaces(r.Context(), ep)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"interfaces": ifaces, "count": len(ifaces)})
	}
}

// PrepareInterfaceHandler returns a gateway-generated template for a new interface.
func PrepareInterfaceHandler(store *db.Store, prov *credentials.Provisioner, gw *wgapi.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, ep, err := adminTarget(r, store, prov)
		if err != nil {
			writeError(w, r, err)
			return
		}
		iface, err := gw.PrepareInterface(r.Context(), ep)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, iface)
	}
}

// CreateInterfaceHandler creates an interface from the posted record.
func CreateInterfaceHandler(store *db.Store, prov *credentials.Provisioner, gw *wgapi.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, ep, err := adminTarget(r, store, prov)
		if err != nil {
			writeError(w, r, err)
			return
		}
		var iface wgapi.Interface
		if err := decode(r, &iface); err != nil {
			writeError(w, r, err)
			return
		}
		if iface.Identifier == "" {
			writeError(w, r, invalid("Identifier", "must not be empty"))
			return
		}
		created, err := gw.CreateInterface(r.Context(), ep, iface)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

// GetInterfaceHandler returns one interface.
func GetInterfaceHandler(store *db.Store, prov *credentials.Provisioner, gw *wgapi.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, ep, err := adminTarget(r, store, prov)
		if err != nil {
			writeError(w, r, err)
			return
		}
		iface, err := gw.GetInterface(r.Context(), ep, pathParam(r, "ifaceID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, iface)
	}
}

// UpdateInterfaceHandler replaces an interface.
func UpdateInterfaceHandler(store *db.Store, prov *credentials.Provisioner, gw *wgapi.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, ep, err := adminTarget(r, store, prov)
		if err != nil {
			writeError(w, r, err)
			return
		}
		var iface wgapi.Interface
		if err := decode(r, &iface); err != nil {
			writeError(w, r, err)
			return
		}
		id := pathParam(r, "ifaceID")
		iface.Identifier = id
		updated, err := gw.UpdateInterface(r.Context(), ep, id, iface)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}

// DeleteInterfaceHandler removes an interface.
func DeleteInterfaceHandler(store *db.Store, prov *credentials.Provisioner, gw *wgapi.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, ep, err := adminTarget(r, store, prov)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if err := gw.DeleteInterface(r.Context(), ep, pathParam(r, "ifaceID")); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	}
}

// InterfaceMetricsHandler returns traffic counters of an interface.
func InterfaceMetricsHandler(store *db.Store, prov *credentials.Provisioner, gw *wgapi.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, ep, err := adminTarget(r, store, prov)
		if err != nil {
			writeError(w, r, err)
			return
		}
		m, err := gw.InterfaceMetrics(r.Context(), ep, pathParam(r, "ifaceID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, m)
	}
}
