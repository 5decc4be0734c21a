// ABOUTME: Conversation resource endpoints: list, detail, create, delete
// ABOUTME: Maps /api/conversations/ routes onto typed calls

package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// ListConversations returns every conversation (without messages). A body
// that is not a JSON array, null included, yields ErrUnexpectedFormat.
func (c *Client) ListConversations(ctx context.Context) ([]Conversation, error) {
	const path = "/api/conversations/"
	var conversations []Conversation
	if err := c.do(ctx, http.MethodGet, path, nil, &conversations); err != nil {
		return nil, err
	}
	// Unmarshal leaves the slice nil only for a null body; [] yields an empty slice.
	if conversations == nil {
		return nil, fmt.Errorf("%w: GET %s: null body", ErrUnexpectedFormat, path)
	}
	return conversations, nil
}

// GetConversation returns a conversation with its ordered messages.
func (c *Client) GetConversation(ctx context.Context, id ID) (*Conversation, error) {
	var conv Conversation
	if err := c.do(ctx, http.MethodGet, "/api/conversations/"+url.PathEscape(id.String()), nil, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// CreateConversation creates an empty conversation.
func (c *Client) CreateConversation(ctx context.Context, title string) (*Conversation, error) {
	var conv Conversation
	if err := c.do(ctx, http.MethodPost, "/api/conversations/", createConversationRequest{Title: title}, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// DeleteConversation removes a conversation and its messages.
func (c *Client) DeleteConversation(ctx context.Context, id ID) error {
	return c.do(ctx, http.MethodDelete, "/api/conversations/"+url.PathEscape(id.String()), nil, nil)
}
