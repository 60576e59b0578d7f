package notify

import (
	"github.com/vedsirdeshmukh/are-sim/event"
)

// Policy decides whether a completed event produces a Notification.
// ENVIRONMENT_STOP is never produced by a Policy: it is emitted directly
// by the engine when the loop exits (spec §4.3).
type Policy interface {
	Notify(e *event.Event) (Notification, bool)
}

// UserMessageTools identifies which "<App>__<Tool>" pairs constitute an
// explicit user-to-agent message (e.g. the AUI app's send-to-user tool).
// Both policies treat these identically; it is the one thing spec §4.5
// requires even the silent policy to surface.
type UserMessageTools map[string]bool

// Key builds the "<App>__<Tool>" lookup key UserMessageTools is keyed
// by. (NotableRule matches on its own App and Tool fields instead.)
func Key(app, tool string) string { return app + "__" + tool }

func (u UserMessageTools) matches(e *event.Event) bool {
	if e.Action == nil {
		return false
	}
	return u[Key(e.Action.App, e.Action.Tool)]
}

func userMessageText(e *event.Event) string {
	if e.Action == nil {
		return ""
	}
	if msg, ok := e.Action.ResolvedArgs["message"].(string); ok {
		return msg
	}
	if msg, ok := e.Action.ResolvedArgs["text"].(string); ok {
		return msg
	}
	return ""
}

// SilentPolicy emits only explicit user-to-agent messages. Spec §4.5:
// "only explicit user-to-agent messages and the environment-stop
// sentinel are emitted."
type SilentPolicy struct {
	UserMessageTools UserMessageTools
}

// Notify implements Policy.
func (p SilentPolicy) Notify(e *event.Event) (Notification, bool) {
	if e.Completed == nil || e.Completed.Err != nil {
		return Notification{}, false
	}
	if p.UserMessageTools.matches(e) {
		return Notification{
			Kind:      KindUserMessage,
			Message:   userMessageText(e),
			Timestamp: e.Completed.ExecutedAt,
		}, true
	}
	return Notification{}, false
}

// NotableRule names one "<App>.<Tool>" pair the verbose policy surfaces,
// plus how to render its message. This is spec §9's Open Question 2,
// decided as configuration rather than a hardcoded list: scenario
// authors supply the rules their scenario actually needs (new incoming
// mail, new calendar invite from a third party, ...) instead of the
// engine baking in a fixed "notable events" table.
type NotableRule struct {
	App      string
	Tool     string
	Template func(e *event.Event) string
}

// VerbosePolicyConfig configures VerbosePolicy's curated set of ENV-typed
// events to surface, beyond what SilentPolicy already surfaces.
type VerbosePolicyConfig struct {
	UserMessageTools UserMessageTools
	Notable          []NotableRule
}

// VerbosePolicy additionally surfaces a curated set of ENV-typed events:
// spec §4.5 ("new incoming mail for the user, new message in a
// conversation, new calendar event added by a third party, etc.").
type VerbosePolicy struct {
	Config VerbosePolicyConfig
}

// Notify implements Policy.
func (p VerbosePolicy) Notify(e *event.Event) (Notification, bool) {
	silent := SilentPolicy{UserMessageTools: p.Config.UserMessageTools}
	if n, ok := silent.Notify(e); ok {
		return n, true
	}
	if e.Action == nil || e.Actor != event.ActorEnv || e.Completed == nil || e.Completed.Err != nil {
		return Notification{}, false
	}
	for _, rule := range p.Config.Notable {
		if rule.App == e.Action.App && rule.Tool == e.Action.Tool {
			msg := ""
			if rule.Template != nil {
				msg = rule.Template(e)
			}
			return Notification{
				Kind:      KindEnvironmentNotification,
				Message:   msg,
				Timestamp: e.Completed.ExecutedAt,
			}, true
		}
	}
	return Notification{}, false
}
