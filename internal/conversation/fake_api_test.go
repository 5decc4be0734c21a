// ABOUTME: In-memory stand-in for the backend used by conversation tests
// ABOUTME: Records requests and returns canned responses or errors

package conversation

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/2389/moplexity-client/internal/client"
)

type fakeAPI struct {
	mu sync.Mutex

	conversations []client.Conversation
	listErr       error
	listCalls     int

	details   map[client.ID]*client.Conversation
	getErr    error
	createErr error
	deleteErr error
	deleted   []client.ID

	chatResp  *client.ChatResponse
	chatErr   error
	stream    func() io.ReadCloser
	streamErr error
	requests  []client.ChatRequest
}

func (f *fakeAPI) ListConversations(ctx context.Context) ([]client.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]client.Conversation{}, f.conversations...), nil
}

func (f *fakeAPI) GetConversation(ctx context.Context, id client.ID) (*client.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	conv, ok := f.details[id]
	if !ok {
		return nil, &client.APIError{StatusCode: 404, Detail: "Conversation not found"}
	}
	c := cloneConversation(*conv)
	return &c, nil
}

func (f *fakeAPI) CreateConversation(ctx context.Context, title string) (*client.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	conv := client.Conversation{ID: "99", Title: title}
	f.conversations = append([]client.Conversation{conv}, f.conversations...)
	return &conv, nil
}

func (f *fakeAPI) DeleteConversation(ctx context.Context, id client.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeAPI) Chat(ctx context.Context, req client.ChatRequest) (*client.ChatResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.chatErr != nil {
		return nil, f.chatErr
	}
	return f.chatResp, nil
}

func (f *fakeAPI) ChatStream(ctx context.Context, req client.ChatRequest) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	return f.stream(), nil
}

func (f *fakeAPI) listCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

func (f *fakeAPI) lastRequest() client.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

// body returns a stream factory serving the given frames verbatim.
func body(frames ...string) func() io.ReadCloser {
	return func() io.ReadCloser {
		return io.NopCloser(strings.NewReader(strings.Join(frames, "")))
	}
}

func frame(payload string) string {
	return "data: " + payload + "\n\n"
}

func newTestStore(t *testing.T, api *fakeAPI) *Store {
	t.Helper()
	s := NewStore(api, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(s.Close)
	return s
}

func countRole(msgs []client.Message, role client.Role) int {
	n := 0
	for _, m := range msgs {
		if m.Role == role {
			n++
		}
	}
	return n
}
