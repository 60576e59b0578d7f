// Package aui is the scripted "agent user interface" demonstration app:
// its one tool, send_to_user, is how a scripted user (or a scenario's
// own follow-on events) delivers an explicit message the agent must
// observe. Grounded on the end-to-end scenarios of spec §8, which name
// AUI as the vehicle for "tell me when inbox >= 2" and its reply.
package aui

import (
	"github.com/vedsirdeshmukh/are-sim/app"
	"github.com/vedsirdeshmukh/are-sim/clock"
)

// App holds the delivered-message log a scripted user has sent.
type App struct {
	app.Base

	messages []string
}

// New constructs an aui App with the given registered name.
func New(name string, clk *clock.Manager) *App {
	a := &App{}
	a.AppName = name
	a.Clock = clk
	return a
}

// Tools implements app.App. send_to_user is RoleUser: only a
// scripted-user-actor event may invoke it (see app.roleAllows). A
// notification policy surfaces its calls as user messages only when
// notify.Key(<app name>, "send_to_user") is listed in that policy's
// UserMessageTools; the role alone does not mark it.
func (a *App) Tools() []*app.ToolSpec {
	return []*app.ToolSpec{
		{
			PublicName:  "send_to_user",
			Description: "Deliver a message to the agent as if spoken by the user.",
			Params: []app.ParamSpec{
				{Name: "message", Type: "string", Required: true},
			},
			ReturnType: "object",
			Op:         app.OpWrite,
			Role:       app.RoleUser,
			Handler:    a.sendToUser,
		},
	}
}

func (a *App) sendToUser(ctx *app.InvokeContext, args map[string]any) (any, error) {
	message, _ := args["message"].(string)
	a.messages = append(a.messages, message)
	return map[string]any{"sent": true, "message": message}, nil
}

// GetState implements app.App.
func (a *App) GetState() map[string]any {
	msgs := make([]string, len(a.messages))
	copy(msgs, a.messages)
	return map[string]any{"messages": msgs}
}

// LoadState implements app.App.
func (a *App) LoadState(state map[string]any) error {
	var msgs []string
	switch raw := state["messages"].(type) {
	case []string:
		msgs = append(msgs, raw...)
	case []any:
		for _, item := range raw {
			if s, ok := item.(string); ok {
				msgs = append(msgs, s)
			}
		}
	}
	a.messages = msgs
	return nil
}

// Reset implements app.App.
func (a *App) Reset() {
	a.messages = nil
}
