// ABOUTME: Tests for streaming sends: event dispatch, sealing, leniency, and stale sessions
// ABOUTME: Drives the store with canned and piped response bodies

package conversation

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/moplexity-client/internal/client"
)

const fullStream = `data: {"type":"conversation_id","conversation_id":7}

data: {"type":"status","message":"Searching..."}

data: {"type":"sources","sources":[{"title":"Go","url":"https://go.dev","score":0.9}]}

data: {"type":"content","content":"Hel"}

data: {"type":"content","content":"lo, "}

data: {"type":"content","content":"world"}

data: {"type":"follow_up_questions","questions":["Why?","How?"]}

data: {"type":"done","message_id":42}

`

func TestStreaming_FullAnswer(t *testing.T) {
	api := &fakeAPI{
		conversations: []client.Conversation{{ID: "7", Title: "hello"}},
		stream:        body(fullStream),
	}
	s := newTestStore(t, api)

	msg := s.SendMessageStreaming(context.Background(), "hi", SendOptions{})
	require.NotNil(t, msg)

	assert.Equal(t, "Hello, world", msg.Content)
	assert.Equal(t, client.ID("42"), msg.ID)
	assert.Equal(t, client.ID("7"), msg.ConversationID)

	st := s.Snapshot()
	require.Len(t, st.Messages, 2)
	assert.Equal(t, client.RoleUser, st.Messages[0].Role)
	assert.Equal(t, "hi", st.Messages[0].Content)
	assert.Equal(t, client.RoleAssistant, st.Messages[1].Role)
	assert.Equal(t, "Hello, world", st.Messages[1].Content)
	assert.Equal(t, client.ID("42"), st.Messages[1].ID)

	require.NotNil(t, st.Current)
	assert.Equal(t, client.ID("7"), st.Current.ID)
	require.Len(t, st.Sources, 1)
	assert.Equal(t, "https://go.dev", st.Sources[0].URL)
	assert.Contains(t, string(st.Sources[0].Raw()), `"score":0.9`)
	assert.Equal(t, []string{"Why?", "How?"}, st.FollowUpQuestions)
	assert.Equal(t, []string{"Why?", "How?"}, st.Messages[1].FollowUpQuestions)
	assert.Len(t, st.Conversations, 1)

	assert.False(t, st.Streaming)
	assert.Empty(t, st.Status, "status is cleared when the stream ends")
	assert.Empty(t, st.Error)

	// One refresh for conversation_id, one after the body ended.
	assert.Equal(t, 2, api.listCallCount())
}

func TestStreaming_OneByteReadsMatchWholeBody(t *testing.T) {
	api := &fakeAPI{
		stream: func() io.ReadCloser {
			return io.NopCloser(iotest.OneByteReader(strings.NewReader(
				frame(`{"type":"content","content":"héllo "}`) +
					frame(`{"type":"content","content":"wörld 🌍"}`) +
					frame(`{"type":"done","message_id":5}`))))
		},
	}
	s := newTestStore(t, api)

	msg := s.SendMessageStreaming(context.Background(), "q", SendOptions{})
	require.NotNil(t, msg)
	assert.Equal(t, "héllo wörld 🌍", msg.Content)
	assert.Equal(t, client.ID("5"), msg.ID)
}

func TestStreaming_PlaceholderVisibleBeforeFirstByte(t *testing.T) {
	pr, pw := io.Pipe()
	api := &fakeAPI{stream: func() io.ReadCloser { return pr }}
	s := newTestStore(t, api)

	done := make(chan *client.Message)
	go func() {
		done <- s.SendMessageStreaming(context.Background(), "q", SendOptions{})
	}()

	require.Eventually(t, func() bool {
		return len(s.Snapshot().Messages) == 2
	}, time.Second, 5*time.Millisecond)

	st := s.Snapshot()
	assert.True(t, st.Streaming)
	assert.Equal(t, client.RoleAssistant, st.Messages[1].Role)
	assert.Empty(t, st.Messages[1].Content)
	assert.NotEmpty(t, st.Messages[1].ID, "placeholder has a client-generated id")
	assert.NotEqual(t, st.Messages[0].ID, st.Messages[1].ID)

	_, _ = pw.Write([]byte(frame(`{"type":"content","content":"x"}`)))
	require.NoError(t, pw.Close())

	msg := <-done
	require.NotNil(t, msg)
	assert.Equal(t, "x", msg.Content)
}

func TestStreaming_ContentAfterDoneIsDropped(t *testing.T) {
	api := &fakeAPI{
		stream: body(
			frame(`{"type":"content","content":"final"}`),
			frame(`{"type":"done","message_id":42}`),
			frame(`{"type":"content","content":" extra"}`),
		),
	}
	s := newTestStore(t, api)

	msg := s.SendMessageStreaming(context.Background(), "q", SendOptions{})
	require.NotNil(t, msg)
	assert.Equal(t, "final", msg.Content)
	assert.Equal(t, client.ID("42"), msg.ID)

	st := s.Snapshot()
	assert.Equal(t, "q", st.Messages[0].Content, "other messages are untouched")
	assert.Equal(t, "final", st.Messages[1].Content)
}

func TestStreaming_MalformedFrameSkipped(t *testing.T) {
	api := &fakeAPI{
		stream: body(
			frame(`{"type":"content","content":"a"}`),
			frame(`{"type":"content",`),
			frame(`"just a string"`),
			"event: ping\n\n",
			frame(`{"type":"content","content":"b"}`),
		),
	}
	s := newTestStore(t, api)

	msg := s.SendMessageStreaming(context.Background(), "q", SendOptions{})
	require.NotNil(t, msg)
	assert.Equal(t, "ab", msg.Content)
	assert.Empty(t, s.Snapshot().Error)
}

func TestStreaming_UnterminatedDoneNotHonored(t *testing.T) {
	api := &fakeAPI{
		stream: body(
			frame(`{"type":"content","content":"partial"}`),
			`data: {"type":"done","message_id":42}`,
		),
	}
	s := newTestStore(t, api)

	msg := s.SendMessageStreaming(context.Background(), "q", SendOptions{})
	require.NotNil(t, msg)
	assert.Equal(t, "partial", msg.Content)
	assert.NotEqual(t, client.ID("42"), msg.ID)
}

func TestStreaming_UnknownTypeIgnored(t *testing.T) {
	api := &fakeAPI{
		stream: body(
			frame(`{"type":"telemetry","value":1}`),
			frame(`{"type":"content","content":"ok"}`),
		),
	}
	s := newTestStore(t, api)

	msg := s.SendMessageStreaming(context.Background(), "q", SendOptions{})
	require.NotNil(t, msg)
	assert.Equal(t, "ok", msg.Content)
}

func TestStreaming_ErrorEventRecordedStreamContinues(t *testing.T) {
	api := &fakeAPI{
		stream: body(
			frame(`{"type":"error","message":"search provider unavailable"}`),
			frame(`{"type":"content","content":"fallback answer"}`),
		),
	}
	s := newTestStore(t, api)

	msg := s.SendMessageStreaming(context.Background(), "q", SendOptions{})
	require.NotNil(t, msg)
	assert.Equal(t, "fallback answer", msg.Content)

	st := s.Snapshot()
	assert.Equal(t, "search provider unavailable", st.Error, "final list refresh keeps the stream's error")
}

func TestStreaming_MissingQuestionsBecomeEmpty(t *testing.T) {
	api := &fakeAPI{
		stream: body(
			frame(`{"type":"follow_up_questions","questions":["a"]}`),
			frame(`{"type":"follow_up_questions"}`),
		),
	}
	s := newTestStore(t, api)

	msg := s.SendMessageStreaming(context.Background(), "q", SendOptions{})
	require.NotNil(t, msg)
	assert.NotNil(t, msg.FollowUpQuestions)
	assert.Empty(t, msg.FollowUpQuestions)
	assert.Empty(t, s.Snapshot().FollowUpQuestions)
}

func TestStreaming_OpenFailure(t *testing.T) {
	api := &fakeAPI{streamErr: errors.New("connection refused")}
	s := newTestStore(t, api)

	msg := s.SendMessageStreaming(context.Background(), "q", SendOptions{})
	assert.Nil(t, msg)

	st := s.Snapshot()
	assert.Equal(t, ErrTextStreamMessage, st.Error)
	assert.False(t, st.Streaming)
	assert.Equal(t, 1, countRole(st.Messages, client.RoleUser))
	assert.Equal(t, 0, api.listCallCount())
}

func TestStreaming_OpenFailureUsesDetail(t *testing.T) {
	api := &fakeAPI{streamErr: &client.APIError{StatusCode: 400, Detail: "No active LLM model configured"}}
	s := newTestStore(t, api)

	assert.Nil(t, s.SendMessageStreaming(context.Background(), "q", SendOptions{}))
	assert.Equal(t, "No active LLM model configured", s.Snapshot().Error)
}

func TestStreaming_ReadErrorKeepsPartialContent(t *testing.T) {
	api := &fakeAPI{
		stream: func() io.ReadCloser {
			return io.NopCloser(io.MultiReader(
				strings.NewReader(frame(`{"type":"content","content":"half an ans"}`)),
				iotest.ErrReader(errors.New("connection reset")),
			))
		},
	}
	s := newTestStore(t, api)

	msg := s.SendMessageStreaming(context.Background(), "q", SendOptions{})
	assert.Nil(t, msg)

	st := s.Snapshot()
	assert.Equal(t, ErrTextStreamMessage, st.Error)
	require.Len(t, st.Messages, 2)
	assert.Equal(t, "half an ans", st.Messages[1].Content)
}

func TestStreaming_BindsOnlyWhenNoCurrentConversation(t *testing.T) {
	api := &fakeAPI{
		details: map[client.ID]*client.Conversation{"3": {ID: "3", Title: "existing"}},
		stream:  body(frame(`{"type":"conversation_id","conversation_id":3}`)),
	}
	s := newTestStore(t, api)
	require.NotNil(t, s.LoadConversation(context.Background(), "3"))

	msg := s.SendMessageStreaming(context.Background(), "q", SendOptions{})
	require.NotNil(t, msg)

	assert.Equal(t, client.ID("3"), api.lastRequest().ConversationID)
	st := s.Snapshot()
	assert.Equal(t, "existing", st.Current.Title, "current conversation is not replaced")
}

func TestStreaming_ResetMidStreamLeavesNewViewAlone(t *testing.T) {
	pr, pw := io.Pipe()
	api := &fakeAPI{stream: func() io.ReadCloser { return pr }}
	s := newTestStore(t, api)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes := s.Subscribe(ctx)

	done := make(chan *client.Message)
	go func() {
		done <- s.SendMessageStreaming(context.Background(), "q", SendOptions{})
	}()

	_, err := pw.Write([]byte(frame(`{"type":"content","content":"before "}`)))
	require.NoError(t, err)
	waitForChange(t, changes, ChangeContent)

	s.ResetConversation()

	_, err = pw.Write([]byte(
		frame(`{"type":"content","content":"after"}`) +
			frame(`{"type":"sources","sources":[{"title":"t","url":"u"}]}`) +
			frame(`{"type":"follow_up_questions","questions":["q2"]}`) +
			frame(`{"type":"conversation_id","conversation_id":11}`) +
			frame(`{"type":"done","message_id":12}`)))
	require.NoError(t, err)
	require.NoError(t, pw.Close())

	msg := <-done
	require.NotNil(t, msg)
	assert.Equal(t, "before after", msg.Content, "the session keeps building its own message")
	assert.Equal(t, client.ID("12"), msg.ID)

	st := s.Snapshot()
	assert.Empty(t, st.Messages)
	assert.Nil(t, st.Current)
	assert.Empty(t, st.Sources)
	assert.Empty(t, st.FollowUpQuestions)
}

func TestStreaming_ReplacedViewDoesNotReportFailures(t *testing.T) {
	pr, pw := io.Pipe()
	api := &fakeAPI{
		listErr: errors.New("dial tcp: connection refused"),
		stream:  func() io.ReadCloser { return pr },
	}
	s := newTestStore(t, api)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes := s.Subscribe(ctx)

	done := make(chan *client.Message)
	go func() {
		done <- s.SendMessageStreaming(context.Background(), "q", SendOptions{})
	}()

	_, err := pw.Write([]byte(frame(`{"type":"content","content":"partial"}`)))
	require.NoError(t, err)
	waitForChange(t, changes, ChangeContent)

	s.ResetConversation()

	_, err = pw.Write([]byte(frame(`{"type":"conversation_id","conversation_id":11}`)))
	require.NoError(t, err)
	require.NoError(t, pw.CloseWithError(errors.New("connection reset")))

	assert.Nil(t, <-done)
	assert.Equal(t, 1, api.listCallCount(), "the list is still refreshed")
	st := s.Snapshot()
	assert.Empty(t, st.Error)
	assert.Nil(t, st.Current)
	assert.False(t, st.Streaming)
}

func TestStreaming_ContentChangesReuseUnchangedMessages(t *testing.T) {
	api := seededAPI()
	api.stream = body(
		frame(`{"type":"content","content":"a"}`),
		frame(`{"type":"content","content":"b"}`),
		frame(`{"type":"done","message_id":50}`))
	s := newTestStore(t, api)
	require.NotNil(t, s.LoadConversation(context.Background(), "1"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes := s.Subscribe(ctx)

	require.NotNil(t, s.SendMessageStreaming(context.Background(), "q", SendOptions{}))

	var content []State
	var sealed State
	for _, c := range drainChanges(changes) {
		switch c.Kind {
		case ChangeContent:
			content = append(content, c.State)
		case ChangeSealed:
			sealed = c.State
		}
	}
	require.Len(t, content, 2)
	require.Len(t, content[1].Messages, 6)
	assert.Equal(t, "a", content[0].Messages[5].Content)
	assert.Equal(t, "ab", content[1].Messages[5].Content)
	assert.Equal(t, client.ID("50"), sealed.Messages[5].ID)
	assert.Equal(t, "google", content[1].Messages[3].Content)
	assert.Same(t, &content[0].Messages[1].Sources[0], &content[1].Messages[1].Sources[0],
		"unchanged messages are shared between content changes")

	// Snapshots stay private.
	st := s.Snapshot()
	assert.NotSame(t, &content[1].Messages[1].Sources[0], &st.Messages[1].Sources[0])
}

func TestStreaming_ConcurrentSessionsKeepTheirOwnMessages(t *testing.T) {
	first, firstW := io.Pipe()
	second, secondW := io.Pipe()
	bodies := make(chan io.ReadCloser, 2)
	bodies <- first
	bodies <- second
	api := &fakeAPI{stream: func() io.ReadCloser { return <-bodies }}
	s := newTestStore(t, api)

	results := make(chan *client.Message, 2)
	go func() { results <- s.SendMessageStreaming(context.Background(), "one", SendOptions{}) }()
	require.Eventually(t, func() bool { return len(s.Snapshot().Messages) == 2 }, time.Second, 5*time.Millisecond)
	go func() { results <- s.SendMessageStreaming(context.Background(), "two", SendOptions{}) }()
	require.Eventually(t, func() bool { return len(s.Snapshot().Messages) == 4 }, time.Second, 5*time.Millisecond)

	_, _ = secondW.Write([]byte(frame(`{"type":"content","content":"B"}`)))
	_, _ = firstW.Write([]byte(frame(`{"type":"content","content":"A"}`)))
	require.NoError(t, firstW.Close())
	require.NoError(t, secondW.Close())
	<-results
	<-results

	st := s.Snapshot()
	require.Len(t, st.Messages, 4)
	assert.Equal(t, "A", st.Messages[1].Content)
	assert.Equal(t, "B", st.Messages[3].Content)
	assert.False(t, st.Streaming)
}

func waitForChange(t *testing.T, ch <-chan Change, kind ChangeKind) Change {
	t.Helper()
	timeout := time.After(time.Second)
	for {
		select {
		case c := <-ch:
			if c.Kind == kind {
				return c
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s change", kind)
			return Change{}
		}
	}
}
