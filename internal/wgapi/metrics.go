package wgapi

import (
	"context"
	"net/http"
)

// InterfaceMetrics returns traffic counters of an interface.
func (c *Client) InterfaceMetrics(ctx context.Context, ep Endpoint, id string) (*InterfaceMetrics, error) {
	var out InterfaceMetrics
	if err := c.doJSON(ctx, ep, call{method: http.MethodGet, path: byID("/metrics/by-interface/", id)}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UserMetrics returns traffic counters of a user's peers.
func (c *Client) UserMetrics(ctx context.Context, ep Endpoint, id string) (*UserMetrics, error) {
	var out UserMetrics
	if err := c.doJSON(ctx, ep, call{method: http.MethodGet, path: byID("/metrics/by-user/", id)}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PeerMetrics returns traffic and handshake data of a peer.
func (c *Client) PeerMetrics(ctx context.Context, ep Endpoint, id string) (*PeerMetrics, error) {
	var out PeerMetrics
	if err := c.doJSON(ctx, ep, call{method: http.MethodGet, path: byID("/metrics/by-peer/", id)}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
