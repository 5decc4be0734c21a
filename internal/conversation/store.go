// ABOUTME: Conversation state store: the authoritative in-memory model observed by the UI
// ABOUTME: Network-backed operations convert failures into the shared error string and never return errors

package conversation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/2389/moplexity-client/internal/client"
	"github.com/2389/moplexity-client/internal/settings"
)

// Fallback error texts, used when the backend gives no detail.
const (
	ErrTextFetchConversations = "Failed to fetch conversations"
	ErrTextFetchConversation  = "Failed to fetch conversation"
	ErrTextCreateConversation = "Failed to create conversation"
	ErrTextDeleteConversation = "Failed to delete conversation"
	ErrTextSendMessage        = "Failed to send message"
	ErrTextStreamMessage      = "Failed to stream message"
)

// API is the backend surface the store drives. *client.Client implements it.
type API interface {
	ListConversations(ctx context.Context) ([]client.Conversation, error)
	GetConversation(ctx context.Context, id client.ID) (*client.Conversation, error)
	CreateConversation(ctx context.Context, title string) (*client.Conversation, error)
	DeleteConversation(ctx context.Context, id client.ID) error
	Chat(ctx context.Context, req client.ChatRequest) (*client.ChatResponse, error)
	ChatStream(ctx context.Context, req client.ChatRequest) (io.ReadCloser, error)
}

// State is a read-only view of the store.
type State struct {
	Conversations []client.Conversation
	// Current is the selected conversation; its Messages field is unused,
	// see Messages.
	Current           *client.Conversation
	Messages          []client.Message
	Sources           []client.Source
	FollowUpQuestions []string
	Loading           bool
	Streaming         bool
	// Status is the backend's progress note for an in-flight stream.
	Status string
	Error  string
}

// SendOptions are passed through to the backend unchanged.
type SendOptions struct {
	ProMode    bool
	ModelID    client.ID
	FocusModes []string
}

// Store owns conversation state. All mutation goes through its methods;
// observers read Snapshot or Subscribe to changes. Safe for concurrent use.
type Store struct {
	api         API
	broadcaster *Broadcaster
	inst        *instruments
	logger      *slog.Logger

	mu sync.Mutex
	// generation increments whenever the conversation view is replaced, so
	// requests started against an older view leave the new one alone.
	generation    uint64
	conversations []client.Conversation
	current       *client.Conversation
	messages      []*client.Message
	sources       []client.Source
	followUps     []string
	loading       int
	streaming     int
	status        string
	errText       string

	// last is the most recently published state. Message-only changes reuse
	// it instead of copying every message again.
	last      State
	published bool
}

// NewStore creates a store backed by api.
func NewStore(api API, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "conversation")
	return &Store{
		api:           api,
		broadcaster:   NewBroadcaster(logger),
		inst:          newInstruments(logger),
		logger:        logger,
		conversations: []client.Conversation{},
	}
}

// Close releases subscribers.
func (s *Store) Close() {
	s.broadcaster.Close()
}

// Subscribe returns a channel of committed changes until ctx is done.
// Changes are dropped for a subscriber that falls behind; Snapshot always has
// the latest state. Published states share unchanged parts with earlier ones
// and must be treated as read-only; Snapshot returns a private copy.
func (s *Store) Subscribe(ctx context.Context) <-chan Change {
	ch, _ := s.broadcaster.Subscribe(ctx)
	return ch
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() State {
	st := State{
		Conversations:     make([]client.Conversation, len(s.conversations)),
		Messages:          make([]client.Message, len(s.messages)),
		Sources:           slices.Clone(s.sources),
		FollowUpQuestions: slices.Clone(s.followUps),
		Loading:           s.loading > 0,
		Streaming:         s.streaming > 0,
		Status:            s.status,
		Error:             s.errText,
	}
	for i, c := range s.conversations {
		st.Conversations[i] = cloneConversation(c)
	}
	if s.current != nil {
		c := cloneConversation(*s.current)
		st.Current = &c
	}
	for i, m := range s.messages {
		st.Messages[i] = m.Clone()
	}
	return st
}

// commitLocked publishes the state after a mutation. Publishing under the
// lock keeps changes in commit order. Each operation applies all of its field
// changes first and commits once, so observers never see half of a mutation.
func (s *Store) commitLocked(kind ChangeKind) {
	s.last = s.snapshotLocked()
	s.published = true
	s.broadcaster.Publish(Change{Kind: kind, State: s.last})
}

// commitMessageLocked publishes a change that touched only msg. Every other
// message is shared with the previous published state.
func (s *Store) commitMessageLocked(kind ChangeKind, msg *client.Message) {
	idx := slices.Index(s.messages, msg)
	if !s.published || idx < 0 || len(s.last.Messages) != len(s.messages) {
		s.commitLocked(kind)
		return
	}
	st := s.last
	st.Messages = slices.Clone(s.last.Messages)
	st.Messages[idx] = msg.Clone()
	s.last = st
	s.broadcaster.Publish(Change{Kind: kind, State: st})
}

// failLocked logs err, records it on the span in ctx, and sets the shared
// error text. The caller commits.
func (s *Store) failLocked(ctx context.Context, op, fallback string, err error) {
	s.logger.Error(fallback, "operation", op, "error", err)
	s.inst.failed(ctx, op, err)
	s.errText = errorText(err, fallback)
}

// replaceViewLocked swaps in a new conversation view and invalidates
// requests running against the old one.
func (s *Store) replaceViewLocked(current *client.Conversation, messages []*client.Message) {
	s.generation++
	s.current = current
	s.messages = messages
	s.sources = nil
	s.followUps = nil
}

func (s *Store) beginLoading() {
	s.mu.Lock()
	s.loading++
	s.errText = ""
	s.commitLocked(ChangeActivity)
	s.mu.Unlock()
}

func (s *Store) endLoading() {
	s.mu.Lock()
	s.loading--
	s.commitLocked(ChangeActivity)
	s.mu.Unlock()
}

// ListConversations refreshes the conversation list. On a transport failure
// the existing list stays; on a malformed response the list is cleared.
func (s *Store) ListConversations(ctx context.Context) bool {
	ctx, span := s.inst.start(ctx, "ListConversations")
	defer span.End()

	conversations, err := s.api.ListConversations(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.errText = ""
	return s.applyListLocked(ctx, conversations, err, true)
}

// refresh replaces the list with the server's. It only sets the error, never
// clears it, so a refresh at the end of a stream keeps any error the stream
// reported. sess is the stream that asked for the refresh, or nil; a stream
// whose view was replaced keeps the list current but never reports a failure.
func (s *Store) refresh(ctx context.Context, sess *Session) bool {
	conversations, err := s.api.ListConversations(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.applyListLocked(ctx, conversations, err, sess == nil || sess.gen == s.generation)
}

// applyListLocked installs a list response and commits once. A transport
// failure keeps the list; a malformed response clears it. The error is only
// set when report is true.
func (s *Store) applyListLocked(ctx context.Context, conversations []client.Conversation, err error, report bool) bool {
	if err == nil {
		s.conversations = conversations
		s.commitLocked(ChangeConversations)
		return true
	}
	if !report {
		s.logger.Warn("list refresh failed for a replaced conversation view", "error", err)
		return false
	}
	if errors.Is(err, client.ErrUnexpectedFormat) {
		s.conversations = []client.Conversation{}
	}
	s.failLocked(ctx, "list_conversations", ErrTextFetchConversations, err)
	s.commitLocked(ChangeError)
	return false
}

// LoadConversation makes id the current conversation with its messages. The
// sources projection is every message's sources in order; the follow-up
// projection comes from the last assistant message. The list is refreshed
// afterwards. On failure the view is cleared and nil returned.
func (s *Store) LoadConversation(ctx context.Context, id client.ID) *client.Conversation {
	ctx, span := s.inst.start(ctx, "LoadConversation", attribute.String("conversation_id", id.String()))
	defer span.End()

	s.beginLoading()
	defer s.endLoading()

	conv, err := s.api.GetConversation(ctx, id)
	if err != nil {
		s.mu.Lock()
		s.replaceViewLocked(nil, nil)
		s.failLocked(ctx, "load_conversation", ErrTextFetchConversation, err)
		s.commitLocked(ChangeCurrent)
		s.mu.Unlock()
		return nil
	}

	messages := make([]*client.Message, len(conv.Messages))
	var sources []client.Source
	var followUps []string
	for i := range conv.Messages {
		m := conv.Messages[i].Clone()
		messages[i] = &m
		sources = append(sources, m.Sources...)
		if m.Role == client.RoleAssistant {
			followUps = slices.Clone(m.FollowUpQuestions)
		}
	}
	current := cloneConversation(*conv)
	current.Messages = nil

	s.mu.Lock()
	s.replaceViewLocked(&current, messages)
	s.sources = sources
	s.followUps = followUps
	s.commitLocked(ChangeCurrent)
	s.mu.Unlock()

	s.refresh(ctx, nil)

	result := cloneConversation(*conv)
	return &result
}

// CreateConversation creates a conversation remotely, selects it with an
// empty message list, and prepends it to the list. Returns nil on failure.
func (s *Store) CreateConversation(ctx context.Context, title string) *client.Conversation {
	ctx, span := s.inst.start(ctx, "CreateConversation")
	defer span.End()

	conv, err := s.api.CreateConversation(ctx, title)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.failLocked(ctx, "create_conversation", ErrTextCreateConversation, err)
		s.commitLocked(ChangeError)
		return nil
	}

	current := cloneConversation(*conv)
	current.Messages = nil
	s.replaceViewLocked(&current, nil)
	s.conversations = append([]client.Conversation{cloneConversation(current)}, s.conversations...)
	s.commitLocked(ChangeCurrent)

	result := cloneConversation(*conv)
	return &result
}

// DeleteConversation removes a conversation remotely and from the list. If it
// was current, the view is cleared.
func (s *Store) DeleteConversation(ctx context.Context, id client.ID) bool {
	ctx, span := s.inst.start(ctx, "DeleteConversation", attribute.String("conversation_id", id.String()))
	defer span.End()

	err := s.api.DeleteConversation(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.failLocked(ctx, "delete_conversation", ErrTextDeleteConversation, err)
		s.commitLocked(ChangeError)
		return false
	}

	kind := ChangeConversations
	s.conversations = slices.DeleteFunc(slices.Clone(s.conversations), func(c client.Conversation) bool {
		return c.ID == id
	})
	if s.current != nil && s.current.ID == id {
		s.replaceViewLocked(nil, nil)
		kind = ChangeCurrent
	}
	s.commitLocked(kind)
	return true
}

// ResetConversation clears the current conversation, messages, and
// projections. The conversation list is not touched.
func (s *Store) ResetConversation() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.replaceViewLocked(nil, nil)
	s.commitLocked(ChangeReset)
}

// SendMessage sends query on the single-shot path. The user message is
// appended before the request and stays even if the request fails. On
// success the assistant message is appended as returned, the projections are
// updated, and the list is refreshed.
func (s *Store) SendMessage(ctx context.Context, query string, opts SendOptions) *client.ChatResponse {
	ctx, span := s.inst.start(ctx, "SendMessage", attribute.Bool("pro_mode", opts.ProMode))
	defer span.End()

	s.beginLoading()
	defer s.endLoading()

	s.mu.Lock()
	gen := s.generation
	req := s.chatRequestLocked(query, opts)
	s.messages = append(s.messages, s.newMessage(client.RoleUser, req.ConversationID, query))
	s.commitLocked(ChangeMessages)
	s.mu.Unlock()

	resp, err := s.api.Chat(ctx, req)
	if err != nil {
		s.mu.Lock()
		s.failLocked(ctx, "send_message", ErrTextSendMessage, err)
		s.commitLocked(ChangeError)
		s.mu.Unlock()
		return nil
	}

	s.mu.Lock()
	if gen == s.generation && s.current == nil {
		s.current = &client.Conversation{ID: resp.ConversationID}
		s.commitLocked(ChangeCurrent)
	}
	s.mu.Unlock()

	s.refresh(ctx, nil)

	followUps := resp.FollowUpQuestions
	if followUps == nil {
		followUps = []string{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		s.logger.Debug("conversation view changed during send, answer not applied",
			"conversation_id", resp.ConversationID)
		return resp
	}
	s.messages = append(s.messages, &client.Message{
		ID:                resp.MessageID,
		ConversationID:    resp.ConversationID,
		Role:              client.RoleAssistant,
		Content:           resp.Content,
		CreatedAt:         client.Timestamp{Time: time.Now().UTC()},
		Sources:           slices.Clone(resp.Sources),
		FollowUpQuestions: slices.Clone(followUps),
	})
	s.sources = slices.Clone(resp.Sources)
	s.followUps = slices.Clone(followUps)
	s.commitLocked(ChangeMessages)
	return resp
}

// SendMessageStreaming sends query on the streaming path. The user message
// and an empty assistant placeholder are appended before the request; events
// are then dispatched in arrival order until the body ends. A done event does
// not end the loop; only the transport does. After a clean end the list is
// refreshed once more and a copy of the assistant message is returned. On a
// transport failure nil is returned and partial content is kept.
func (s *Store) SendMessageStreaming(ctx context.Context, query string, opts SendOptions) *client.Message {
	ctx, span := s.inst.start(ctx, "SendMessageStreaming", attribute.Bool("pro_mode", opts.ProMode))
	defer span.End()

	s.mu.Lock()
	s.streaming++
	s.errText = ""
	req := s.chatRequestLocked(query, opts)
	s.messages = append(s.messages, s.newMessage(client.RoleUser, req.ConversationID, query))
	placeholder := s.newMessage(client.RoleAssistant, req.ConversationID, "")
	placeholder.Sources = []client.Source{}
	placeholder.FollowUpQuestions = []string{}
	s.messages = append(s.messages, placeholder)
	sess := newSession(s, placeholder)
	s.commitLocked(ChangeMessages)
	s.mu.Unlock()

	defer s.endStreaming()

	body, err := s.api.ChatStream(ctx, req)
	if err != nil {
		s.streamFailed(ctx, sess, err)
		return nil
	}
	defer body.Close()

	if err := sess.Run(ctx, body); err != nil {
		s.streamFailed(ctx, sess, err)
		return nil
	}

	s.refresh(ctx, sess)

	s.mu.Lock()
	defer s.mu.Unlock()
	m := placeholder.Clone()
	return &m
}

// streamFailed reports a transport failure of sess. A session whose view was
// replaced only logs it.
func (s *Store) streamFailed(ctx context.Context, sess *Session, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess.gen != s.generation {
		s.logger.Warn("stream failed for a replaced conversation view", "error", err)
		return
	}
	s.failLocked(ctx, "stream_message", ErrTextStreamMessage, err)
	s.commitLocked(ChangeError)
}

func (s *Store) endStreaming() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.streaming--
	if s.streaming == 0 {
		s.status = ""
	}
	s.commitLocked(ChangeActivity)
}

// chatRequestLocked builds the request body for the current view.
func (s *Store) chatRequestLocked(query string, opts SendOptions) client.ChatRequest {
	focus := slices.Clone(opts.FocusModes)
	if focus == nil {
		focus = []string{settings.DefaultFocusMode}
	}
	req := client.ChatRequest{
		Query:      query,
		ModelID:    opts.ModelID,
		ProMode:    opts.ProMode,
		FocusModes: focus,
	}
	if s.current != nil {
		req.ConversationID = s.current.ID
	}
	return req
}

// newMessage builds a local message with a client-generated placeholder id.
func (s *Store) newMessage(role client.Role, conversationID client.ID, content string) *client.Message {
	return &client.Message{
		ID:             client.ID(uuid.NewString()),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      client.Timestamp{Time: time.Now().UTC()},
	}
}

// errorText prefers the backend's own explanation.
func errorText(err error, fallback string) string {
	if detail := client.Detail(err); detail != "" {
		return detail
	}
	return fallback
}

func cloneConversation(c client.Conversation) client.Conversation {
	if c.Messages != nil {
		msgs := make([]client.Message, len(c.Messages))
		for i, m := range c.Messages {
			msgs[i] = m.Clone()
		}
		c.Messages = msgs
	}
	return c
}
