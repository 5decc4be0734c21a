// ABOUTME: Renders a conversation transcript as standalone HTML or Markdown
// ABOUTME: Message bodies are Markdown from the model, converted with goldmark

package export

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"github.com/2389/moplexity-client/internal/client"
)

//go:embed templates/*.html
var templateFS embed.FS

var transcriptTmpl = template.Must(template.ParseFS(templateFS, "templates/transcript.html"))

// Transcript is what gets exported.
type Transcript struct {
	Title    string
	Messages []client.Message
	// Exported is stamped into the output when non-zero.
	Exported time.Time
}

type messageView struct {
	Role      client.Role
	CreatedAt string
	Body      template.HTML
	Sources   []client.Source
	FollowUps []string
}

// WriteHTML renders t as a self-contained HTML page. Raw HTML inside message
// content is not passed through.
func WriteHTML(w io.Writer, t Transcript) error {
	data := struct {
		Title    string
		Exported string
		Messages []messageView
	}{
		Title: titleOf(t),
	}
	if !t.Exported.IsZero() {
		data.Exported = t.Exported.Format(time.RFC1123)
	}

	for _, m := range t.Messages {
		var body bytes.Buffer
		if err := goldmark.Convert([]byte(m.Content), &body); err != nil {
			return fmt.Errorf("converting message %s: %w", m.ID, err)
		}
		view := messageView{
			Role:      m.Role,
			Body:      template.HTML(body.String()),
			Sources:   m.Sources,
			FollowUps: m.FollowUpQuestions,
		}
		if !m.CreatedAt.IsZero() {
			view.CreatedAt = m.CreatedAt.Format("2006-01-02 15:04")
		}
		data.Messages = append(data.Messages, view)
	}

	if err := transcriptTmpl.Execute(w, data); err != nil {
		return fmt.Errorf("rendering transcript: %w", err)
	}
	return nil
}

// WriteMarkdown renders t as a Markdown document.
func WriteMarkdown(w io.Writer, t Transcript) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", titleOf(t))

	for _, m := range t.Messages {
		switch m.Role {
		case client.RoleUser:
			fmt.Fprintf(&b, "\n## %s\n", firstLine(m.Content))
		default:
			fmt.Fprintf(&b, "\n%s\n", strings.TrimSpace(m.Content))
		}

		if len(m.Sources) > 0 {
			b.WriteString("\n**Sources**\n\n")
			for i, src := range m.Sources {
				title := src.Title
				if title == "" {
					title = src.URL
				}
				fmt.Fprintf(&b, "%d. [%s](%s)\n", i+1, title, src.URL)
			}
		}
		if len(m.FollowUpQuestions) > 0 {
			b.WriteString("\n**Related**\n\n")
			for _, q := range m.FollowUpQuestions {
				fmt.Fprintf(&b, "- %s\n", q)
			}
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// Write picks the format from the file extension: .md and .markdown give
// Markdown, anything else HTML.
func Write(w io.Writer, filename string, t Transcript) error {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".md", ".markdown":
		return WriteMarkdown(w, t)
	default:
		return WriteHTML(w, t)
	}
}

func titleOf(t Transcript) string {
	if t.Title != "" {
		return t.Title
	}
	for _, m := range t.Messages {
		if m.Role == client.RoleUser {
			return firstLine(m.Content)
		}
	}
	return "Conversation"
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return s
}
