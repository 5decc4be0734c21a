// ABOUTME: Request orchestrator: picks the streaming or single-shot send path from user settings
// ABOUTME: Threads model id, pro mode, and focus categories through to the backend unchanged

package conversation

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/2389/moplexity-client/internal/client"
	"github.com/2389/moplexity-client/internal/settings"
)

// SettingsSource supplies the user's current settings. *settings.Manager
// implements it.
type SettingsSource interface {
	Current() settings.Settings
}

// Orchestrator sends queries through the store using the path the user's
// settings select.
type Orchestrator struct {
	store    *Store
	settings SettingsSource
	logger   *slog.Logger
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(store *Store, src SettingsSource, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		store:    store,
		settings: src,
		logger:   logger.With("component", "orchestrator"),
	}
}

// Options returns the send options derived from the current settings.
func (o *Orchestrator) Options() SendOptions {
	return optionsFrom(o.settings.Current())
}

func optionsFrom(cur settings.Settings) SendOptions {
	return SendOptions{
		ProMode:    cur.ProMode,
		ModelID:    cur.ModelID,
		FocusModes: cur.FocusModes,
	}
}

// Send submits query and returns the finished assistant message, or nil when
// the send failed (the store's error text says why) or the query was blank.
func (o *Orchestrator) Send(ctx context.Context, query string) *client.Message {
	if strings.TrimSpace(query) == "" {
		return nil
	}

	cur := o.settings.Current()
	opts := optionsFrom(cur)
	streaming := cur.StreamingEnabled

	o.logger.Debug("sending query",
		"streaming", streaming,
		"pro_mode", opts.ProMode,
		"model_id", opts.ModelID,
		"focus_modes", opts.FocusModes)

	if streaming {
		return o.store.SendMessageStreaming(ctx, query, opts)
	}

	resp := o.store.SendMessage(ctx, query, opts)
	if resp == nil {
		return nil
	}
	return &client.Message{
		ID:                resp.MessageID,
		ConversationID:    resp.ConversationID,
		Role:              client.RoleAssistant,
		Content:           resp.Content,
		CreatedAt:         client.Timestamp{Time: time.Now().UTC()},
		Sources:           resp.Sources,
		FollowUpQuestions: resp.FollowUpQuestions,
	}
}
