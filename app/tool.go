// Package app defines the application framework: the Tool/App contract
// every simulated application implements, the registry that wires apps
// together (including protocol discovery), and the two invocation modes
// the original decorator-based source exposed — live dispatch (which
// writes to the event log) and capture mode (which returns un-executed
// event.Event values for scenario composition). See spec §4.6 and §9.
package app

import (
	"fmt"
)

// Role tags which audience may invoke a tool: spec §3.5.
type Role int

const (
	// RoleApp tools are callable by the agent.
	RoleApp Role = iota
	// RoleEnv tools are callable only by the environment's own scripted
	// actions.
	RoleEnv
	// RoleData tools seed initial state during scenario bootstrap.
	RoleData
	// RoleUser tools are callable by a scripted user (e.g. AUI replies).
	RoleUser
)

func (r Role) String() string {
	switch r {
	case RoleApp:
		return "APP"
	case RoleEnv:
		return "ENV"
	case RoleData:
		return "DATA"
	case RoleUser:
		return "USER"
	default:
		return "UNKNOWN"
	}
}

// OpTag marks whether a tool mutates application state: spec §3.5.
type OpTag int

const (
	// OpRead tools must not mutate app state.
	OpRead OpTag = iota
	// OpWrite tools may mutate app state.
	OpWrite
)

func (o OpTag) String() string {
	if o == OpWrite {
		return "WRITE"
	}
	return "READ"
}

// ParamSpec describes one typed, documented tool parameter: spec §3.5.
type ParamSpec struct {
	Name        string
	Type        string // "string", "int", "float", "bool", "object", "array"
	Required    bool
	Default     any
	Description string
}

// Handler is the function an app registers to implement a tool. args is
// keyed by ParamSpec.Name; the return value matches ReturnType.
type Handler func(ctx *InvokeContext, args map[string]any) (any, error)

// ToolSpec is a named, typed, documented operation on an app: spec §3.5.
type ToolSpec struct {
	// PrivateName is "<App>__<method>", used for event routing and audit.
	PrivateName string
	// PublicName is exposed to agents; may differ from PrivateName.
	PublicName string
	Description string
	Params      []ParamSpec
	ReturnType  string
	Op          OpTag
	Role        Role

	// FailureProbability, when > 0, is the chance in [0,1) that this tool
	// fails with FailureMessage instead of running its Handler, for
	// fault-injection scenarios.
	FailureProbability float64
	FailureMessage     string

	Handler Handler
}

// Schema renders a JSON-schema-shaped description of this tool's
// parameters, for hand-off to an external agent runtime (spec §9's
// AppToolAdapter-style introspection, restored from
// original_source/tool_utils.py's build_tool()).
func (t *ToolSpec) Schema() map[string]any {
	props := make(map[string]any, len(t.Params))
	var required []string
	for _, p := range t.Params {
		prop := map[string]any{"type": jsonSchemaType(p.Type), "description": p.Description}
		if p.Default != nil {
			prop["default"] = p.Default
		}
		props[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	schema := map[string]any{
		"name":        t.PublicName,
		"description": t.Description,
		"parameters": map[string]any{
			"type":       "object",
			"properties": props,
			"required":   required,
		},
	}
	return schema
}

func jsonSchemaType(t string) string {
	switch t {
	case "int", "float":
		return "number"
	case "object":
		return "object"
	case "array":
		return "array"
	case "bool":
		return "boolean"
	default:
		return "string"
	}
}

// validateArgs checks args against Params: a missing required param, or
// a param present with an incompatible Go type, yields an error the
// caller should surface as simerrors.InvalidArgument.
func (t *ToolSpec) validateArgs(args map[string]any) error {
	for _, p := range t.Params {
		v, ok := args[p.Name]
		if !ok {
			if p.Required {
				return fmt.Errorf("missing required parameter %q", p.Name)
			}
			continue
		}
		if !typeMatches(p.Type, v) {
			return fmt.Errorf("parameter %q: expected %s, got %T", p.Name, p.Type, v)
		}
	}
	return nil
}

func typeMatches(want string, v any) bool {
	if v == nil {
		return true
	}
	switch want {
	case "string":
		_, ok := v.(string)
		return ok
	case "int":
		switch v.(type) {
		case int, int32, int64, float64:
			return true
		}
		return false
	case "float":
		switch v.(type) {
		case float32, float64, int:
			return true
		}
		return false
	case "bool":
		_, ok := v.(bool)
		return ok
	case "object":
		_, ok := v.(map[string]any)
		return ok
	case "array":
		_, ok := v.([]any)
		return ok
	default:
		return true
	}
}
