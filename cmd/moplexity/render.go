// ABOUTME: Terminal rendering: incremental answer output, sources, follow-ups, and lists
// ABOUTME: The stream printer follows store changes and prints only the newly arrived text

package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/2389/moplexity-client/internal/client"
	"github.com/2389/moplexity-client/internal/conversation"
)

var (
	cyan   = color.New(color.FgCyan)
	gray   = color.New(color.FgHiBlack)
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed)
)

// streamPrinter writes the assistant message at index idx as it grows.
type streamPrinter struct {
	out     io.Writer
	idx     int
	printed int
	status  string
}

// follow prints content and status updates from changes until ctx is done or
// the channel closes, then returns how much content it printed. Changes
// already buffered when ctx ends are still applied.
func (p *streamPrinter) follow(ctx context.Context, changes <-chan conversation.Change) int {
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case c, ok := <-changes:
					if !ok {
						return p.printed
					}
					p.apply(c)
				default:
					return p.printed
				}
			}
		case c, ok := <-changes:
			if !ok {
				return p.printed
			}
			p.apply(c)
		}
	}
}

func (p *streamPrinter) apply(c conversation.Change) {
	switch c.Kind {
	case conversation.ChangeStatus:
		if c.State.Status != "" && c.State.Status != p.status && p.printed == 0 {
			gray.Fprintf(p.out, "%s\n", c.State.Status)
		}
		p.status = c.State.Status
	case conversation.ChangeContent, conversation.ChangeSealed, conversation.ChangeMessages:
		if p.idx < len(c.State.Messages) {
			p.flush(c.State.Messages[p.idx].Content)
		}
	}
}

// flush prints whatever part of content has not been printed yet.
func (p *streamPrinter) flush(content string) {
	if len(content) <= p.printed {
		return
	}
	fmt.Fprint(p.out, content[p.printed:])
	p.printed = len(content)
}

// printAnswerFooter prints sources and follow-up questions under an answer.
func printAnswerFooter(out io.Writer, msg *client.Message) {
	if !strings.HasSuffix(msg.Content, "\n") {
		fmt.Fprintln(out)
	}
	if len(msg.Sources) > 0 {
		fmt.Fprintln(out)
		cyan.Fprintln(out, "Sources")
		for i, src := range msg.Sources {
			title := src.Title
			if title == "" {
				title = src.URL
			}
			fmt.Fprintf(out, "  [%d] %s %s\n", i+1, title, gray.Sprint(src.URL))
		}
	}
	if len(msg.FollowUpQuestions) > 0 {
		fmt.Fprintln(out)
		cyan.Fprintln(out, "Related")
		for _, q := range msg.FollowUpQuestions {
			fmt.Fprintf(out, "  - %s\n", q)
		}
	}
}

func printConversations(out io.Writer, st conversation.State) {
	if len(st.Conversations) == 0 {
		fmt.Fprintln(out, "No conversations yet.")
		return
	}
	for _, c := range st.Conversations {
		marker := " "
		if st.Current != nil && st.Current.ID == c.ID {
			marker = green.Sprint("*")
		}
		title := c.Title
		if title == "" {
			title = "(untitled)"
		}
		when := ""
		if !c.UpdatedAt.IsZero() {
			when = gray.Sprint(" " + c.UpdatedAt.Local().Format("2006-01-02 15:04"))
		}
		fmt.Fprintf(out, "%s %s  %s%s\n", marker, cyan.Sprint(c.ID), title, when)
	}
}

func printMessages(out io.Writer, msgs []client.Message) {
	for _, m := range msgs {
		if m.Role == client.RoleUser {
			fmt.Fprintf(out, "\n%s %s\n", cyan.Sprint(">"), m.Content)
			continue
		}
		fmt.Fprintln(out)
		fmt.Fprint(out, m.Content)
		printAnswerFooter(out, &m)
	}
}

func printError(out io.Writer, msg string) {
	red.Fprintf(out, "[error] %s\n", msg)
}
