package wgapi

import (
	"context"
	"net/http"
	"net/url"
)

// GetPeer returns a peer by its identifier (usually a base64 public key).
func (c *Client) GetPeer(ctx context.Context, ep Endpoint, id string) (*Peer, error) {
	var out Peer
	if err := c.doJSON(ctx, ep, call{method: http.MethodGet, path: byID("/peer/by-id/", id)}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeletePeer removes a peer.
func (c *Client) DeletePeer(ctx context.Context, ep Endpoint, id string) error {
	_, err := c.do(ctx, ep, call{method: http.MethodDelete, path: byID("/peer/by-id/", id)})
	return err
}

// UserPeers lists the peers owned by a gateway user.
func (c *Client) UserPeers(ctx context.Context, ep Endpoint, userID string) (*UserPeerInfo, error) {
	var out UserPeerInfo
	q := url.Values{"UserId": {userID}}
	if err := c.doJSON(ctx, ep, call{method: http.MethodGet, path: "/provisioning/data/user-info", query: q}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// NewPeer allocates a peer for a user on an interface.
func (c *Client) NewPeer(ctx context.Context, ep Endpoint, req NewPeerRequest) (*Peer, error) {
	var out Peer
	if err := c.doJSON(ctx, ep, call{method: http.MethodPost, path: "/provisioning/new-peer", body: req}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PeerConfig returns the wg-quick configuration of a peer.
func (c *Client) PeerConfig(ctx context.Context, ep Endpoint, peerID string) (string, error) {
	q := url.Values{"PeerId": {peerID}}
	body, err := c.do(ctx, ep, call{method: http.MethodGet, path: "/provisioning/data/peer-config", query: q, accept: "text/plain"})
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// PeerQR returns the configuration of a peer as a PNG QR code.
func (c *Client) PeerQR(ctx context.Context, ep Endpoint, peerID string) ([]byte, error) {
	q := url.Values{"PeerId": {peerID}}
	return c.do(ctx, ep, call{method: http.MethodGet, path: "/provisioning/data/peer-qr", query: q, accept: "image/png"})
}
