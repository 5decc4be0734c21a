// ABOUTME: Tests for HTML and Markdown transcript rendering

package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/moplexity-client/internal/client"
)

func sampleTranscript() Transcript {
	return Transcript{
		Title: "Go history",
		Messages: []client.Message{
			{ID: "1", Role: client.RoleUser, Content: "Who created Go?"},
			{
				ID:                "2",
				Role:              client.RoleAssistant,
				Content:           "Go was designed at **Google** by Griesemer, Pike, and Thompson.\n\n<script>alert(1)</script>",
				Sources:           []client.Source{{Title: "Go FAQ", URL: "https://go.dev/doc/faq"}},
				FollowUpQuestions: []string{"When was Go 1.0 released?"},
			},
		},
	}
}

func TestWriteHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHTML(&buf, sampleTranscript()))

	out := buf.String()
	assert.Contains(t, out, "<title>Go history</title>")
	assert.Contains(t, out, "<strong>Google</strong>")
	assert.Contains(t, out, `<a href="https://go.dev/doc/faq">Go FAQ</a>`)
	assert.Contains(t, out, "When was Go 1.0 released?")
	assert.NotContains(t, out, "<script>", "raw HTML in content is dropped")
}

func TestWriteHTML_ExportedStamp(t *testing.T) {
	tr := sampleTranscript()
	tr.Exported = time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)

	var buf bytes.Buffer
	require.NoError(t, WriteHTML(&buf, tr))
	assert.Contains(t, buf.String(), "Exported Sun, 18 Oct 2026 09:30:00 UTC")
}

func TestWriteMarkdown(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMarkdown(&buf, sampleTranscript()))

	out := buf.String()
	assert.Contains(t, out, "# Go history\n")
	assert.Contains(t, out, "## Who created Go?\n")
	assert.Contains(t, out, "1. [Go FAQ](https://go.dev/doc/faq)\n")
	assert.Contains(t, out, "- When was Go 1.0 released?\n")
}

func TestWrite_PicksFormatByExtension(t *testing.T) {
	var md, html bytes.Buffer
	require.NoError(t, Write(&md, "notes.MD", sampleTranscript()))
	require.NoError(t, Write(&html, "notes.html", sampleTranscript()))

	assert.True(t, bytes.HasPrefix(md.Bytes(), []byte("# Go history")))
	assert.Contains(t, html.String(), "<!DOCTYPE html>")
}

func TestTitleFallsBackToFirstQuestion(t *testing.T) {
	tr := sampleTranscript()
	tr.Title = ""

	assert.Equal(t, "Who created Go?", titleOf(tr))
	assert.Equal(t, "Conversation", titleOf(Transcript{}))
}
