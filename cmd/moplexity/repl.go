// ABOUTME: Interactive REPL: plain lines are queries, slash commands manage conversations and settings
// ABOUTME: Streamed answers are printed as they arrive by following the store's change feed

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/2389/moplexity-client/internal/client"
	"github.com/2389/moplexity-client/internal/export"
	"github.com/2389/moplexity-client/internal/settings"
)

func (a *app) repl(ctx context.Context, in io.Reader) error {
	fmt.Fprintf(a.out, "moplexity connected to %s\n", a.api.BaseURL())
	fmt.Fprintln(a.out, "Type a question and press Enter. /help for commands. Ctrl+C to quit.")

	a.store.ListConversations(ctx)
	a.reportError()
	fmt.Fprintln(a.out)

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for {
		a.prompt()

		// Read input with context awareness
		inputCh := make(chan string, 1)
		errCh := make(chan error, 1)

		go func() {
			if scanner.Scan() {
				inputCh <- scanner.Text()
			} else {
				if err := scanner.Err(); err != nil {
					errCh <- err
				} else {
					errCh <- io.EOF
				}
			}
		}()

		var input string
		select {
		case <-ctx.Done():
			fmt.Fprintln(a.out, "\nGoodbye!")
			return nil
		case err := <-errCh:
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(a.out, "\nGoodbye!")
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		case input = <-inputCh:
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			if quit := a.command(ctx, input); quit {
				fmt.Fprintln(a.out, "Goodbye!")
				return nil
			}
			fmt.Fprintln(a.out)
			continue
		}

		a.send(ctx, input)
		fmt.Fprintln(a.out)
	}
}

func (a *app) prompt() {
	st := a.store.Snapshot()
	if st.Current != nil {
		title := st.Current.Title
		if title == "" {
			title = st.Current.ID.String()
		}
		fmt.Fprintf(a.out, "%s ", cyan.Sprintf("[%s]>", title))
		return
	}
	fmt.Fprint(a.out, cyan.Sprint("> "))
}

// send submits a query and prints the answer, incrementally when streaming.
func (a *app) send(ctx context.Context, query string) bool {
	base := len(a.store.Snapshot().Messages)
	streaming := a.settings.Current().StreamingEnabled

	printer := &streamPrinter{out: a.out, idx: base + 1}
	var done chan int
	var stop context.CancelFunc = func() {}
	if streaming {
		var followCtx context.Context
		followCtx, stop = context.WithCancel(ctx)
		changes := a.store.Subscribe(followCtx)
		done = make(chan int, 1)
		go func() { done <- printer.follow(followCtx, changes) }()
	}

	msg := a.orchestrator.Send(ctx, query)

	stop()
	if done != nil {
		<-done
	}

	if msg == nil {
		if printer.printed > 0 {
			fmt.Fprintln(a.out)
		}
		a.reportError()
		return false
	}

	printer.flush(msg.Content)
	printAnswerFooter(a.out, msg)
	a.reportError()
	return true
}

// reportError prints the store's error text, if any.
func (a *app) reportError() {
	if e := a.store.Snapshot().Error; e != "" {
		printError(a.out, e)
	}
}

// command runs a slash command and reports whether the REPL should exit.
func (a *app) command(ctx context.Context, input string) bool {
	name, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/quit", "/exit", "/q":
		return true

	case "/help":
		printHelp(a.out)

	case "/list":
		if a.store.ListConversations(ctx) {
			printConversations(a.out, a.store.Snapshot())
		}
		a.reportError()

	case "/open":
		if arg == "" {
			printError(a.out, "usage: /open <id>")
			return false
		}
		if conv := a.store.LoadConversation(ctx, client.ID(arg)); conv != nil {
			green.Fprintf(a.out, "Opened %s\n", conv.Title)
			printMessages(a.out, a.store.Snapshot().Messages)
		}
		a.reportError()

	case "/new":
		title := arg
		if title == "" {
			title = "New Conversation"
		}
		if conv := a.store.CreateConversation(ctx, title); conv != nil {
			green.Fprintf(a.out, "Created conversation %s\n", conv.ID)
		}
		a.reportError()

	case "/delete":
		if arg == "" {
			printError(a.out, "usage: /delete <id>")
			return false
		}
		if a.store.DeleteConversation(ctx, client.ID(arg)) {
			green.Fprintf(a.out, "Deleted conversation %s\n", arg)
		}
		a.reportError()

	case "/reset":
		a.store.ResetConversation()
		fmt.Fprintln(a.out, "Started a fresh conversation.")

	case "/models":
		a.listModels(ctx)

	case "/suggest":
		a.listSuggestions(ctx)

	case "/stream":
		enabled, err := a.settings.ToggleStreaming(ctx)
		a.reportSetting("Streaming", onOff(enabled), err)

	case "/pro":
		enabled, err := a.settings.ToggleProMode(ctx)
		a.reportSetting("Pro mode", onOff(enabled), err)

	case "/model":
		err := a.settings.SetModelID(ctx, client.ID(arg))
		shown := arg
		if shown == "" {
			shown = "backend default"
		}
		a.reportSetting("Model", shown, err)

	case "/focus":
		var modes []string
		for m := range strings.SplitSeq(arg, ",") {
			if m = strings.TrimSpace(m); m != "" {
				modes = append(modes, m)
			}
		}
		err := a.settings.SetFocusModes(ctx, modes)
		a.reportSetting("Focus", strings.Join(a.settings.Current().FocusModes, ", "), err)

	case "/key":
		keyName, value, _ := strings.Cut(arg, " ")
		if !slices.Contains(settings.APIKeyNames, keyName) {
			printError(a.out, "usage: /key <name> <value>, name one of: "+strings.Join(settings.APIKeyNames, ", "))
			return false
		}
		err := a.settings.UpdateAPIKey(ctx, keyName, strings.TrimSpace(value))
		a.reportSetting(keyName, mask(strings.TrimSpace(value)), err)

	case "/token":
		err := a.settings.SetAdminToken(ctx, arg)
		a.reportSetting("Admin token", mask(arg), err)

	case "/settings":
		a.printSettings()

	case "/export":
		if arg == "" {
			printError(a.out, "usage: /export <file.html|file.md>")
			return false
		}
		a.exportTranscript(arg)

	default:
		printError(a.out, fmt.Sprintf("unknown command %s (try /help)", name))
	}
	return false
}

func (a *app) listModels(ctx context.Context) {
	models, err := a.api.ListActiveModels(ctx)
	if err != nil {
		a.logger.Error("listing models", "error", err)
		printError(a.out, "Failed to fetch models")
		return
	}
	if len(models) == 0 {
		fmt.Fprintln(a.out, "No active models.")
		return
	}
	selected := a.settings.Current().ModelID
	for _, m := range models {
		marker := " "
		if m.ID == selected {
			marker = green.Sprint("*")
		}
		fmt.Fprintf(a.out, "%s %s  %s %s\n", marker, cyan.Sprint(m.ID), m.ModelName, gray.Sprint(m.ProviderType))
	}
}

func (a *app) listSuggestions(ctx context.Context) {
	suggestions, err := a.api.Suggestions(ctx)
	if err != nil {
		a.logger.Error("fetching suggestions", "error", err)
		printError(a.out, "Failed to fetch suggestions")
		return
	}
	for _, s := range suggestions {
		fmt.Fprintf(a.out, "  - %s\n", s)
	}
}

func (a *app) reportSetting(name, value string, err error) {
	if err != nil {
		a.logger.Error("saving settings", "error", err)
		printError(a.out, "Failed to save settings")
		return
	}
	fmt.Fprintf(a.out, "%s: %s\n", name, yellow.Sprint(value))
}

func (a *app) printSettings() {
	s := a.settings.Current()
	model := s.ModelID.String()
	if model == "" {
		model = "backend default"
	}
	fmt.Fprintf(a.out, "Streaming:  %s\n", onOff(s.StreamingEnabled))
	fmt.Fprintf(a.out, "Pro mode:   %s\n", onOff(s.ProMode))
	fmt.Fprintf(a.out, "Model:      %s\n", model)
	fmt.Fprintf(a.out, "Focus:      %s\n", strings.Join(s.FocusModes, ", "))
	for _, name := range settings.APIKeyNames {
		fmt.Fprintf(a.out, "%-22s %s\n", name+":", mask(s.APIKeys[name]))
	}
}

func (a *app) exportTranscript(path string) {
	st := a.store.Snapshot()
	if len(st.Messages) == 0 {
		printError(a.out, "nothing to export")
		return
	}

	t := export.Transcript{Messages: st.Messages, Exported: time.Now()}
	if st.Current != nil {
		t.Title = st.Current.Title
	}

	f, err := os.Create(path)
	if err != nil {
		printError(a.out, err.Error())
		return
	}
	if err := export.Write(f, path, t); err != nil {
		f.Close()
		printError(a.out, err.Error())
		return
	}
	if err := f.Close(); err != nil {
		printError(a.out, err.Error())
		return
	}
	green.Fprintf(a.out, "Exported %d messages to %s\n", len(st.Messages), path)
}

// ask sends one query, prints the answer, and fails if the send failed.
func (a *app) ask(ctx context.Context, query string) error {
	if !a.send(ctx, query) {
		return errors.New("query failed")
	}
	return nil
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// mask hides all but the last four characters of a secret.
func mask(secret string) string {
	switch {
	case secret == "":
		return "(not set)"
	case len(secret) <= 4:
		return "****"
	default:
		return "****" + secret[len(secret)-4:]
	}
}

func printHelp(out io.Writer) {
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  /list                 List conversations")
	fmt.Fprintln(out, "  /open <id>            Open a conversation")
	fmt.Fprintln(out, "  /new [title]          Create a conversation")
	fmt.Fprintln(out, "  /delete <id>          Delete a conversation")
	fmt.Fprintln(out, "  /reset                Start fresh without selecting a conversation")
	fmt.Fprintln(out, "  /models               List active models")
	fmt.Fprintln(out, "  /model [id]           Use a model (no id: backend default)")
	fmt.Fprintln(out, "  /suggest              Show suggested questions")
	fmt.Fprintln(out, "  /stream               Toggle streaming answers")
	fmt.Fprintln(out, "  /pro                  Toggle pro mode")
	fmt.Fprintln(out, "  /focus <a,b>          Set focus categories (empty: web)")
	fmt.Fprintln(out, "  /key <name> <value>   Store a provider API key")
	fmt.Fprintln(out, "  /token <value>        Store the admin token")
	fmt.Fprintln(out, "  /settings             Show settings")
	fmt.Fprintln(out, "  /export <file>        Save the conversation as .html or .md")
	fmt.Fprintln(out, "  /help                 Show this help")
	fmt.Fprintln(out, "  /quit                 Exit")
}
