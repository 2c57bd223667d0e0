package wgapi

import (
	"context"
	"net/http"
)

// ListInterfaces returns every interface of the gateway.
func (c *Client) ListInterfaces(ctx context.Context, ep Endpoint) ([]Interface, error) {
	var out []Interface
	err := c.doJSON(ctx, ep, call{method: http.MethodGet, path: "/interface/all"}, &out)
	return out, err
}

// GetInterface returns one interface.
func (c *Client) GetInterface(ctx context.Context, ep Endpoint, id string) (*Interface, error) {
	var out Interface
	if err := c.doJSON(ctx, ep, call{method: http.MethodGet, path: byID("/interface/by-id/", id)}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PrepareInterface returns a template for a new interface with fresh keys.
func (c *Client) PrepareInterface(ctx context.Context, ep Endpoint) (*Interface, error) {
	var out Interface
	if err := c.doJSON(ctx, ep, call{method: http.MethodGet, path: "/interface/prepare"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateInterface creates an interface.
func (c *Client) CreateInterface(ctx context.Context, ep Endpoint, iface Interface) (*Interface, error) {
	var out Interface
	if err := c.doJSON(ctx, ep, call{method: http.MethodPost, path: "/interface/new", body: iface}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateInterface replaces an interface.
func (c *Client) UpdateInterface(ctx context.Context, ep Endpoint, id string, iface Interface) (*Interface, error) {
	var out Interface
	if err := c.doJSON(ctx, ep, call{method: http.MethodPut, path: byID("/interface/by-id/", id), body: iface}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteInterface removes an interface and its peers.
func (c *Client) DeleteInterface(ctx context.Context, ep Endpoint, id string) error {
	_, err := c.do(ctx, ep, call{method: http.MethodDelete, path: byID("/interface/by-id/", id)})
	return err
}
