// ABOUTME: Entry point for the moplexity terminal client
// ABOUTME: Interactive chat REPL and one-shot ask against a conversational search backend

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
)

// Version is set at build time.
var version = "dev"

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: moplexity [flags] <command>")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  chat            Interactive conversation (default)")
	fmt.Fprintln(os.Stderr, "  ask <query>     Ask one question and print the answer")
	fmt.Fprintln(os.Stderr, "  version         Print the version")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Flags:")
	flag.PrintDefaults()
}

func main() {
	configPath := flag.String("config", "", "Config file (default $MOPLEXITY_CONFIG or $XDG_CONFIG_HOME/moplexity/client.yaml)")
	ephemeral := flag.Bool("ephemeral", false, "Keep settings in memory only")
	flag.Usage = usage
	flag.Parse()

	// Setup context with signal handling for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	command := "chat"
	args := flag.Args()
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}

	opts := appOptions{
		configPath: *configPath,
		ephemeral:  *ephemeral,
		out:        os.Stdout,
	}

	var err error
	switch command {
	case "chat":
		err = runChat(ctx, opts)
	case "ask":
		err = runAsk(ctx, opts, strings.Join(args, " "))
	case "version":
		fmt.Println("moplexity", version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runChat(ctx context.Context, opts appOptions) error {
	a, err := newApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.repl(ctx, os.Stdin)
}

func runAsk(ctx context.Context, opts appOptions, query string) error {
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("ask needs a query")
	}

	a, err := newApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.ask(ctx, query)
}
