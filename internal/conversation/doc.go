// Package conversation holds the client's conversation model and the logic
// that keeps it consistent while answers stream in.
//
// # Overview
//
// The Store is the single owner of conversation state: the conversation
// list, the selected conversation, its messages, and two projections
// (sources and follow-up questions) that always reflect the latest assistant
// message. Every mutation goes through a Store method and is published to
// subscribers as one Change carrying the complete new State. Published
// states are read-only and may share unchanged parts with earlier ones.
//
//	st := conversation.NewStore(apiClient, logger)
//	changes := st.Subscribe(ctx)
//	st.ListConversations(ctx)
//
// # Operations
//
// Network-backed operations never return errors. They log the cause, set
// State.Error (the backend's detail when it sent one, otherwise a fixed
// message such as "Failed to send message"), and return a definite result:
//
//   - ListConversations(ctx) bool
//   - LoadConversation(ctx, id) *client.Conversation
//   - CreateConversation(ctx, title) *client.Conversation
//   - DeleteConversation(ctx, id) bool
//   - SendMessage(ctx, query, opts) *client.ChatResponse
//   - SendMessageStreaming(ctx, query, opts) *client.Message
//   - ResetConversation()
//
// Partial results are never rolled back: a failed send leaves the user
// message in place, and a stream cut short keeps the content received.
//
// # Streaming
//
// SendMessageStreaming appends the user message and an empty assistant
// placeholder, then runs a Session over the response body. The Session
// decodes frames with package sse and dispatches each event in arrival
// order:
//
//   - conversation_id: bind the conversation, refresh the list
//   - sources: replace the message's sources and the projection
//   - content: append to the message
//   - follow_up_questions: replace the message's questions and the projection
//   - done: assign the server id and seal the message
//   - error: set State.Error (the stream continues)
//   - status: set State.Status until the stream ends
//
// The loop ends only when the body does.
//
// # Generations
//
// Loading, creating, resetting, or deleting the current conversation
// replaces the view and bumps an internal generation. A request started
// under an older generation keeps updating its own message but leaves the
// new view's messages and projections alone. Two streams in the same view
// share the projections; the last event applied wins.
//
// # Orchestrator
//
// Orchestrator.Send reads the user's settings and chooses the streaming or
// single-shot path, passing model id, pro mode, and focus categories through.
package conversation
