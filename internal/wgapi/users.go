package wgapi

import (
	"context"
	"net/http"
)

// ListUsers returns every account of the gateway.
func (c *Client) ListUsers(ctx context.Context, ep Endpoint) ([]User, error) {
	var out []User
	err := c.doJSON(ctx, ep, call{method: http.MethodGet, path: "/user/all"}, &out)
	return out, err
}

// GetUser returns the account with the given identifier.
func (c *Client) GetUser(ctx context.Context, ep Endpoint, id string) (*User, error) {
	var out User
	if err := c.doJSON(ctx, ep, call{method: http.MethodGet, path: byID("/user/by-id/", id)}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateUser creates an account.
func (c *Client) CreateUser(ctx context.Context, ep Endpoint, user User) (*User, error) {
	var out User
	if err := c.doJSON(ctx, ep, call{method: http.MethodPost, path: "/user/new", body: user}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateUser replaces the account with the given identifier.
func (c *Client) UpdateUser(ctx context.Context, ep Endpoint, id string, user User) (*User, error) {
	var out User
	if err := c.doJSON(ctx, ep, call{method: http.MethodPut, path: byID("/user/by-id/", id), body: user}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteUser removes an account and its peers.
func (c *Client) DeleteUser(ctx context.Context, ep Endpoint, id string) error {
	_, err := c.do(ctx, ep, call{method: http.MethodDelete, path: byID("/user/by-id/", id)})
	return err
}
