// ABOUTME: StreamSession: per-request state for one streaming answer and the event dispatcher
// ABOUTME: Applies exactly one state transition per decoded event, in arrival order

package conversation

import (
	"context"
	"io"

	"github.com/2389/moplexity-client/internal/client"
	"github.com/2389/moplexity-client/internal/sse"
)

// Session tracks one in-flight streaming response: the assistant message
// being built and whether a conversation has been bound to it. Events for a
// session must be dispatched from a single goroutine.
type Session struct {
	store *Store
	msg   *client.Message
	// gen is the store generation the session started in. Once it differs
	// the session only updates its own message.
	gen    uint64
	bound  bool
	sealed bool
}

// newSession must be called with s.mu held.
func newSession(s *Store, msg *client.Message) *Session {
	return &Session{
		store: s,
		msg:   msg,
		gen:   s.generation,
		bound: s.current != nil,
	}
}

// Run decodes events from body and dispatches each one until the body ends.
// It returns nil at a clean end of stream and the read error otherwise.
func (sess *Session) Run(ctx context.Context, body io.Reader) error {
	s := sess.store
	reader := sse.NewReader[client.Event](body,
		sse.WithLogger(s.logger),
		sse.WithSkipHook(func(string, error) {
			s.inst.skippedFrame(ctx)
		}))

	for ev, err := range reader.All() {
		if err != nil {
			return err
		}
		sess.Dispatch(ctx, ev)
	}
	return nil
}

// Dispatch applies one event. Unknown types are ignored.
func (sess *Session) Dispatch(ctx context.Context, ev client.Event) {
	s := sess.store
	s.inst.dispatched(ctx, string(ev.Type))

	if ev.Type == client.EventConversationID {
		sess.bind(ev.ConversationID)
		// The list refresh talks to the network, so it runs outside the lock.
		s.refresh(ctx, sess)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	live := sess.gen == s.generation

	switch ev.Type {
	case client.EventSources:
		sess.msg.Sources = ev.Sources
		if live {
			s.sources = ev.Sources
			s.commitLocked(ChangeSources)
		}

	case client.EventContent:
		if sess.sealed {
			s.logger.Debug("content after done dropped",
				"message_id", sess.msg.ID,
				"bytes", len(ev.Content))
			return
		}
		sess.msg.Content += ev.Content
		if live {
			s.commitMessageLocked(ChangeContent, sess.msg)
		}

	case client.EventFollowUpQuestions:
		questions := ev.Questions
		if questions == nil {
			questions = []string{}
		}
		sess.msg.FollowUpQuestions = questions
		if live {
			s.followUps = questions
			s.commitLocked(ChangeFollowUps)
		}

	case client.EventDone:
		sess.msg.ID = ev.MessageID
		sess.sealed = true
		if live {
			s.commitMessageLocked(ChangeSealed, sess.msg)
		}

	case client.EventError:
		if !live {
			s.logger.Warn("stream error for a replaced conversation view", "message", ev.Message)
			return
		}
		s.errText = ev.Message
		s.commitLocked(ChangeError)

	case client.EventStatus:
		if live {
			s.status = ev.Message
			s.commitLocked(ChangeStatus)
		}

	default:
		s.logger.Debug("ignoring unknown event type", "type", ev.Type)
	}
}

// bind attaches the session to the conversation the backend created or used.
// The first binding selects the conversation if the view has none yet.
func (sess *Session) bind(id client.ID) {
	s := sess.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess.bound {
		return
	}
	sess.bound = true
	sess.msg.ConversationID = id

	if sess.gen != s.generation || s.current != nil {
		return
	}
	s.current = &client.Conversation{ID: id}
	for _, m := range s.messages {
		if m.ConversationID == "" {
			m.ConversationID = id
		}
	}
	s.commitLocked(ChangeCurrent)
}

// Message returns a copy of the session's assistant message.
func (sess *Session) Message() client.Message {
	sess.store.mu.Lock()
	defer sess.store.mu.Unlock()
	return sess.msg.Clone()
}

// Sealed reports whether the done event has arrived.
func (sess *Session) Sealed() bool {
	sess.store.mu.Lock()
	defer sess.store.mu.Unlock()
	return sess.sealed
}
