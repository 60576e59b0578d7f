// Package mail is a minimal demonstration app exercising the engine's
// tool-dispatch and state-snapshot machinery end to end (SPEC_FULL.md
// SUPPLEMENTED FEATURES: concrete mail/calendar/etc. business logic is a
// Non-goal of spec.md §1, but *some* app must exist to drive the six
// end-to-end scenarios of spec §8).
package mail

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vedsirdeshmukh/are-sim/app"
	"github.com/vedsirdeshmukh/are-sim/clock"
)

// Message is one inbox entry.
type Message struct {
	ID        string    `json:"id"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
}

// App is an in-memory inbox: add_email appends, get_inbox lists.
type App struct {
	app.Base

	mu       sync.Mutex
	messages []Message
}

// New constructs a mail App with the given registered name, holding an
// explicit reference to the shared clock rather than reaching for a
// global "current environment" (spec §9's re-architecture note).
func New(name string, clk *clock.Manager) *App {
	a := &App{}
	a.AppName = name
	a.Clock = clk
	return a
}

// Tools implements app.App.
func (a *App) Tools() []*app.ToolSpec {
	return []*app.ToolSpec{
		{
			PublicName:  "add_email",
			Description: "Add an email to the inbox.",
			Params: []app.ParamSpec{
				{Name: "subject", Type: "string", Required: true},
				{Name: "body", Type: "string", Required: true},
			},
			ReturnType: "object",
			Op:         app.OpWrite,
			Role:       app.RoleApp,
			Handler:    a.addEmail,
		},
		{
			PublicName:  "get_inbox",
			Description: "List every message currently in the inbox.",
			ReturnType:  "array",
			Op:          app.OpRead,
			Role:        app.RoleApp,
			Handler:     a.getInbox,
		},
	}
}

func (a *App) addEmail(ctx *app.InvokeContext, args map[string]any) (any, error) {
	subject, _ := args["subject"].(string)
	body, _ := args["body"].(string)

	a.mu.Lock()
	defer a.mu.Unlock()
	msg := Message{ID: uuid.NewString(), Subject: subject, Body: body, Timestamp: ctx.Now}
	a.messages = append(a.messages, msg)
	return map[string]any{"id": msg.ID, "subject": msg.Subject}, nil
}

func (a *App) getInbox(ctx *app.InvokeContext, args map[string]any) (any, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]map[string]any, 0, len(a.messages))
	for _, m := range a.messages {
		out = append(out, map[string]any{
			"id":        m.ID,
			"subject":   m.Subject,
			"body":      m.Body,
			"timestamp": m.Timestamp,
		})
	}
	return out, nil
}

// GetState implements app.App.
func (a *App) GetState() map[string]any {
	a.mu.Lock()
	defer a.mu.Unlock()
	msgs := make([]map[string]any, 0, len(a.messages))
	for _, m := range a.messages {
		msgs = append(msgs, map[string]any{
			"id":        m.ID,
			"subject":   m.Subject,
			"body":      m.Body,
			"timestamp": m.Timestamp,
		})
	}
	return map[string]any{"messages": msgs}
}

// LoadState implements app.App. It accepts both the native shape
// GetState produces and the same shape after a JSON round-trip (where
// timestamps arrive as RFC3339 strings).
func (a *App) LoadState(state map[string]any) error {
	entries, ok := messageEntries(state["messages"])
	if !ok {
		return fmt.Errorf("mail: state missing \"messages\" array")
	}
	msgs := make([]Message, 0, len(entries))
	for _, m := range entries {
		id, _ := m["id"].(string)
		subject, _ := m["subject"].(string)
		body, _ := m["body"].(string)
		var ts time.Time
		switch v := m["timestamp"].(type) {
		case time.Time:
			ts = v
		case string:
			ts, _ = time.Parse(time.RFC3339Nano, v)
		}
		msgs = append(msgs, Message{ID: id, Subject: subject, Body: body, Timestamp: ts})
	}
	a.mu.Lock()
	a.messages = msgs
	a.mu.Unlock()
	return nil
}

func messageEntries(v any) ([]map[string]any, bool) {
	switch raw := v.(type) {
	case []map[string]any:
		return raw, true
	case []any:
		out := make([]map[string]any, 0, len(raw))
		for _, item := range raw {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, false
			}
			out = append(out, m)
		}
		return out, true
	default:
		return nil, false
	}
}

// Reset implements app.App.
func (a *App) Reset() {
	a.mu.Lock()
	a.messages = nil
	a.mu.Unlock()
}

// DeleteFutureData implements app.App by discarding messages timestamped
// after cutoff, overriding app.Base's no-op default.
func (a *App) DeleteFutureData(cutoff time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	kept := a.messages[:0]
	for _, m := range a.messages {
		if !m.Timestamp.After(cutoff) {
			kept = append(kept, m)
		}
	}
	a.messages = kept
}
