// Package wgapitest runs an in-memory gateway speaking the REST contract of wgapi.
package wgapitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/pysugar/wg-provisioner/internal/wgapi"
)

// Call is one request received by the fake gateway.
type Call struct {
	Method string
	Path   string
}

// Mutating reports whether the call changes gateway state.
func (c Call) Mutating() bool {
	return c.Method == http.MethodPost || c.Method == http.MethodPut || c.Method == http.MethodDelete
}

// Gateway is a fake gateway. The zero value is not usable; call New.
type Gateway struct {
	Server *httptest.Server
	Login  string
	Secret string

	mu         sync.Mutex
	users      map[string]wgapi.User
	interfaces map[string]wgapi.Interface
	peers      map[string]wgapi.Peer
	calls      []Call
	failStatus int
	failPaths  map[string]int
	peerSeq    int
}

// New starts a fake gateway whose operator account is login/secret.
func New(t testing.TB, login, secret string) *Gateway {
	g := &Gateway{
		Login:      login,
		Secret:     secret,
		users:      map[string]wgapi.User{},
		interfaces: map[string]wgapi.Interface{},
		peers:      map[string]wgapi.Peer{},
		failPaths:  map[string]int{},
	}
	g.users[login] = wgapi.User{Identifier: login, IsAdmin: true, ApiToken: secret, ApiEnabled: true}
	g.Server = httptest.NewServer(g.routes())
	t.Cleanup(g.Server.Close)
	return g
}

// Endpoint returns the operator endpoint of the gateway.
func (g *Gateway) Endpoint() wgapi.Endpoint {
	return wgapi.Endpoint{BaseURL: g.Server.URL, Login: g.Login, Secret: g.Secret}
}

// URL returns the base URL of the gateway.
func (g *Gateway) URL() string {
	return g.Server.URL
}

// SeedUser stores an account without recording a call.
func (g *Gateway) SeedUser(u wgapi.User) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.users[u.Identifier] = u
}

// SeedInterface stores an interface without recording a call.
func (g *Gateway) SeedInterface(i wgapi.Interface) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.interfaces[i.Identifier] = i
}

// RemoveUser drops an account behind the client's back.
func (g *Gateway) RemoveUser(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.users, id)
}

// User returns a stored account.
func (g *Gateway) User(id string) (wgapi.User, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	u, ok := g.users[id]
	return u, ok
}

// UserIDs returns the sorted account identifiers.
func (g *Gateway) UserIDs() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	ids := make([]string, 0, len(g.users))
	for id := range g.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Calls returns every request received so far.
func (g *Gateway) Calls() []Call {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Call(nil), g.calls...)
}

// MutatingCalls returns the POST, PUT and DELETE requests received so far.
func (g *Gateway) MutatingCalls() []Call {
	var out []Call
	for _, c := range g.Calls() {
		if c.Mutating() {
			out = append(out, c)
		}
	}
	return out
}

// ResetCalls forgets recorded requests.
func (g *Gateway) ResetCalls() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = nil
}

// FailAll makes every request answer status; 0 restores normal service.
func (g *Gateway) FailAll(status int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failStatus = status
}

// FailPath makes requests to one "METHOD /path" answer status.
func (g *Gateway) FailPath(method, path string, status int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failPaths[method+" "+path] = status
}

func (g *Gateway) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(g.record, g.authenticate)

	r.Get("/interface/all", g.listInterfaces)
	r.Get("/interface/prepare", g.prepareInterface)
	r.Post("/interface/new", g.createInterface)
	r.Get("/interface/by-id/{id}", g.getInterface)
	r.Put("/interface/by-id/{id}", g.updateInterface)
	r.Delete("/interface/by-id/{id}", g.deleteInterface)

	r.Get("/user/all", g.listUsers)
	r.Post("/user/new", g.createUser)
	r.Get("/user/by-id/{id}", g.getUser)
	r.Put("/user/by-id/{id}", g.updateUser)
	r.Delete("/user/by-id/{id}", g.deleteUser)

	r.Get("/peer/by-id/{id}", g.getPeer)
	r.Delete("/peer/by-id/{id}", g.deletePeer)

	r.Get("/provisioning/data/user-info", g.userInfo)
	r.Post("/provisioning/new-peer", g.newPeer)
	r.Get("/provisioning/data/peer-config", g.peerConfig)
	r.Get("/provisioning/data/peer-qr", g.peerQR)
	return r
}

func (g *Gateway) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		g.calls = append(g.calls, Call{Method: r.Method, Path: r.URL.Path})
		status := g.failStatus
		if s, ok := g.failPaths[r.Method+" "+r.URL.Path]; ok {
			status = s
		}
		g.mu.Unlock()
		if status != 0 {
			http.Error(w, "injected failure", status)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (g *Gateway) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		login, secret, ok := r.BasicAuth()
		if ok {
			g.mu.Lock()
			u, found := g.users[login]
			g.mu.Unlock()
			if found && u.ApiToken != "" && u.ApiToken == secret {
				next.ServeHTTP(w, r)
				return
			}
		}
		http.Error(w, `{"Code":401,"Message":"unauthorized"}`, http.StatusUnauthorized)
	})
}

func idParam(r *http.Request) string {
	raw := chi.URLParam(r, "id")
	if id, err := url.PathUnescape(raw); err == nil {
		return id
	}
	return raw
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func notFound(w http.ResponseWriter, kind, id string) {
	writeJSON(w, http.StatusNotFound, map[string]any{"Code": 404, "Message": fmt.Sprintf("%s %s not found", kind, id)})
}

func (g *Gateway) listInterfaces(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	out := make([]wgapi.Interface, 0, len(g.interfaces))
	for _, i := range g.interfaces {
		out = append(out, i)
	}
	g.mu.Unlock()
	sort.Slice(out, func(a, b int) bool { return out[a].Identifier < out[b].Identifier })
	writeJSON(w, http.StatusOK, out)
}

func (g *Gateway) prepareInterface(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	next := fmt.Sprintf("wg%d", len(g.interfaces))
	g.mu.Unlock()
	writeJSON(w, http.StatusOK, wgapi.Interface{Identifier: next, DisplayName: next, Mode: "server", ListenPort: 51820})
}

func (g *Gateway) createInterface(w http.ResponseWriter, r *http.Request) {
	var in wgapi.Interface
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Identifier == "" {
		http.Error(w, "bad interface", http.StatusBadRequest)
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.interfaces[in.Identifier]; exists {
		http.Error(w, "interface exists", http.StatusConflict)
		return
	}
	g.interfaces[in.Identifier] = in
	writeJSON(w, http.StatusOK, in)
}

func (g *Gateway) getInterface(w http.ResponseWriter, r *http.Request) {
	id := idParam(r)
	g.mu.Lock()
	i, ok := g.interfaces[id]
	g.mu.Unlock()
	if !ok {
		notFound(w, "interface", id)
		return
	}
	writeJSON(w, http.StatusOK, i)
}

func (g *Gateway) updateInterface(w http.ResponseWriter, r *http.Request) {
	id := idParam(r)
	var in wgapi.Interface
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "bad interface", http.StatusBadRequest)
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.interfaces[id]; !ok {
		notFound(w, "interface", id)
		return
	}
	in.Identifier = id
	g.interfaces[id] = in
	writeJSON(w, http.StatusOK, in)
}

func (g *Gateway) deleteInterface(w http.ResponseWriter, r *http.Request) {
	id := idParam(r)
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.interfaces[id]; !ok {
		notFound(w, "interface", id)
		return
	}
	delete(g.interfaces, id)
	for pid, p := range g.peers {
		if p.InterfaceIdentifier == id {
			delete(g.peers, pid)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) listUsers(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	out := make([]wgapi.User, 0, len(g.users))
	for _, u := range g.users {
		out = append(out, publicUser(u))
	}
	g.mu.Unlock()
	sort.Slice(out, func(a, b int) bool { return out[a].Identifier < out[b].Identifier })
	writeJSON(w, http.StatusOK, out)
}

func (g *Gateway) createUser(w http.ResponseWriter, r *http.Request) {
	var in wgapi.User
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Identifier == "" {
		http.Error(w, "bad user", http.StatusBadRequest)
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.users[in.Identifier]; exists {
		http.Error(w, "user exists", http.StatusConflict)
		return
	}
	in.ApiEnabled = in.ApiToken != ""
	g.users[in.Identifier] = in
	writeJSON(w, http.StatusOK, publicUser(in))
}

func (g *Gateway) getUser(w http.ResponseWriter, r *http.Request) {
	id := idParam(r)
	g.mu.Lock()
	u, ok := g.users[id]
	g.mu.Unlock()
	if !ok {
		notFound(w, "user", id)
		return
	}
	writeJSON(w, http.StatusOK, publicUser(u))
}

func (g *Gateway) updateUser(w http.ResponseWriter, r *http.Request) {
	id := idParam(r)
	var in wgapi.User
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "bad user", http.StatusBadRequest)
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.users[id]; !ok {
		notFound(w, "user", id)
		return
	}
	in.Identifier = id
	in.ApiEnabled = in.ApiToken != ""
	g.users[id] = in
	writeJSON(w, http.StatusOK, publicUser(in))
}

func (g *Gateway) deleteUser(w http.ResponseWriter, r *http.Request) {
	id := idParam(r)
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.users[id]; !ok {
		notFound(w, "user", id)
		return
	}
	delete(g.users, id)
	for pid, p := range g.peers {
		if p.UserIdentifier == id {
			delete(g.peers, pid)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) getPeer(w http.ResponseWriter, r *http.Request) {
	id := idParam(r)
	g.mu.Lock()
	p, ok := g.peers[id]
	g.mu.Unlock()
	if !ok {
		notFound(w, "peer", id)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (g *Gateway) deletePeer(w http.ResponseWriter, r *http.Request) {
	id := idParam(r)
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.peers[id]; !ok {
		notFound(w, "peer", id)
		return
	}
	delete(g.peers, id)
	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) userInfo(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("UserId")
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.users[userID]; !ok {
		notFound(w, "user", userID)
		return
	}
	info := wgapi.UserPeerInfo{UserIdentifier: userID, Peers: []wgapi.PeerSummary{}}
	for _, p := range g.peers {
		if p.UserIdentifier != userID {
			continue
		}
		info.Peers = append(info.Peers, wgapi.PeerSummary{
			Identifier:          p.Identifier,
			DisplayName:         p.DisplayName,
			IsDisabled:          p.Disabled,
			InterfaceIdentifier: p.InterfaceIdentifier,
		})
	}
	sort.Slice(info.Peers, func(a, b int) bool { return info.Peers[a].Identifier < info.Peers[b].Identifier })
	info.PeerCount = len(info.Peers)
	writeJSON(w, http.StatusOK, info)
}

func (g *Gateway) newPeer(w http.ResponseWriter, r *http.Request) {
	var in wgapi.NewPeerRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.interfaces[in.InterfaceIdentifier]; !ok {
		notFound(w, "interface", in.InterfaceIdentifier)
		return
	}
	if _, ok := g.users[in.UserIdentifier]; !ok {
		notFound(w, "user", in.UserIdentifier)
		return
	}
	g.peerSeq++
	p := wgapi.Peer{
		Identifier:          fmt.Sprintf("pk/%d+key=", g.peerSeq),
		DisplayName:         fmt.Sprintf("peer %d", g.peerSeq),
		UserIdentifier:      in.UserIdentifier,
		InterfaceIdentifier: in.InterfaceIdentifier,
		Addresses:           []string{fmt.Sprintf("10.0.0.%d/32", g.peerSeq+1)},
	}
	g.peers[p.Identifier] = p
	writeJSON(w, http.StatusOK, p)
}

func (g *Gateway) peerConfig(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("PeerId")
	g.mu.Lock()
	p, ok := g.peers[id]
	g.mu.Unlock()
	if !ok {
		notFound(w, "peer", id)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintf(w, "[Interface]\nAddress = %s\n\n[Peer]\nPublicKey = %s\n", p.Addresses[0], p.Identifier)
}

// PNGMagic starts every QR answer of the fake gateway.
var PNGMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func (g *Gateway) peerQR(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("PeerId")
	g.mu.Lock()
	_, ok := g.peers[id]
	g.mu.Unlock()
	if !ok {
		notFound(w, "peer", id)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(append(append([]byte(nil), PNGMagic...), []byte(id)...))
}

// publicUser hides secrets the way the real API does.
func publicUser(u wgapi.User) wgapi.User {
	u.Password = ""
	u.ApiToken = ""
	return u
}
