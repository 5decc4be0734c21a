// Package sse decodes the chat backend's streaming response body.
//
// # Overview
//
// The backend answers a streaming chat request with a long-lived body made of
// text frames separated by a blank line:
//
//	data: {"type":"content","content":"Hel"}
//
//	data: {"type":"content","content":"lo"}
//
// Each frame carries one or more lines starting with "data: ". The remainder
// of those lines, concatenated, is one JSON object.
//
// # Decoding
//
// Decoder is the push side: feed it decoded text in arrival order and it
// returns the payload of every frame completed so far, retaining the rest.
//
// Reader is the pull side: it wraps an io.Reader, decodes UTF-8 across read
// boundaries, and yields one parsed payload per call to Next:
//
//	r := sse.NewReader[client.Event](resp.Body)
//	for {
//	    ev, err := r.Next()
//	    if errors.Is(err, io.EOF) {
//	        break
//	    }
//	    ...
//	}
//
// # Leniency
//
// A frame whose payload is not a JSON object is skipped; it never ends the
// stream. Bytes left over after the last delimiter when the body ends are an
// incomplete frame and are dropped.
package sse
