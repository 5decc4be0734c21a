// ABOUTME: Auxiliary read-only endpoints: active model list and home-page suggestions

package client

import (
	"context"
	"net/http"
)

// ListActiveModels returns the models selectable for a query.
func (c *Client) ListActiveModels(ctx context.Context) ([]Model, error) {
	var models []Model
	if err := c.do(ctx, http.MethodGet, "/api/llm/models/active", nil, &models); err != nil {
		return nil, err
	}
	return models, nil
}

// Suggestions returns starter questions generated by the backend.
func (c *Client) Suggestions(ctx context.Context) ([]string, error) {
	var resp suggestionsResponse
	if err := c.do(ctx, http.MethodGet, "/api/chat/suggestions", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Suggestions, nil
}
