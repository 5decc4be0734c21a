// Package client is the HTTP transport for the conversational search backend.
//
// # Overview
//
// The backend exposes conventional JSON resources plus one streaming route:
//
//   - GET    /api/conversations/        list conversations
//   - GET    /api/conversations/{id}    conversation with ordered messages
//   - POST   /api/conversations/        create a conversation
//   - DELETE /api/conversations/{id}    delete a conversation
//   - POST   /api/chat/                 single-shot answer
//   - POST   /api/chat/stream           streaming answer (event-stream body)
//   - GET    /api/llm/models/active     selectable models
//   - GET    /api/chat/suggestions      starter questions
//
// # Streaming Events
//
// The streaming body is decoded by package sse into Event values:
//
//   - conversation_id: conversation the answer belongs to
//   - status: progress text ("Searching...")
//   - sources: citations for the answer
//   - content: text fragment to append
//   - follow_up_questions: suggested next questions
//   - done: answer persisted; carries the message id
//   - error: backend failure description
//
// # Errors
//
// Non-2xx responses become *APIError, carrying the backend's detail text when
// present. Bodies of the wrong shape wrap ErrUnexpectedFormat.
//
// # Usage
//
//	c := client.New("http://localhost:8000")
//	body, err := c.ChatStream(ctx, client.ChatRequest{Query: "why is the sky blue"})
//	if err != nil {
//	    return err
//	}
//	defer body.Close()
package client
