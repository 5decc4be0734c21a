// ABOUTME: Chat endpoints: single-shot answer and streaming event body
// ABOUTME: The streaming call hands the open body to the caller for incremental decoding

package client

import (
	"context"
	"io"
	"net/http"
)

// Chat sends a query and waits for the complete answer.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	var resp ChatResponse
	if err := c.do(ctx, http.MethodPost, "/api/chat/", normalize(req), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ChatStream sends a query to the streaming endpoint and returns the open
// response body. The caller must close it. The body ends when the backend
// finishes or the transport fails; cancel ctx to abandon it early.
func (c *Client) ChatStream(ctx context.Context, req ChatRequest) (io.ReadCloser, error) {
	resp, err := c.send(ctx, http.MethodPost, "/api/chat/stream", "text/event-stream", normalize(req))
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// normalize sends an empty focus list rather than null.
func normalize(req ChatRequest) ChatRequest {
	if req.FocusModes == nil {
		req.FocusModes = []string{}
	}
	return req
}
