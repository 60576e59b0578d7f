package app_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vedsirdeshmukh/are-sim/app"
)

func echoHandler(ctx *app.InvokeContext, args map[string]any) (any, error) {
	return args, nil
}

func TestToolSpecSchemaRendersRequiredAndDefaults(t *testing.T) {
	spec := &app.ToolSpec{
		PublicName:  "send",
		Description: "send a message",
		Params: []app.ParamSpec{
			{Name: "to", Type: "string", Required: true},
			{Name: "priority", Type: "int", Required: false, Default: 1},
		},
		ReturnType: "object",
	}

	schema := spec.Schema()
	assert.Equal(t, "send", schema["name"])
	params := schema["parameters"].(map[string]any)
	props := params["properties"].(map[string]any)
	assert.Contains(t, props, "to")
	assert.Contains(t, props, "priority")
	priority := props["priority"].(map[string]any)
	assert.Equal(t, 1, priority["default"])
	assert.Equal(t, []string{"to"}, params["required"])
}

func TestRoleStringAndOpTagString(t *testing.T) {
	assert.Equal(t, "APP", app.RoleApp.String())
	assert.Equal(t, "ENV", app.RoleEnv.String())
	assert.Equal(t, "DATA", app.RoleData.String())
	assert.Equal(t, "USER", app.RoleUser.String())
	assert.Equal(t, "READ", app.OpRead.String())
	assert.Equal(t, "WRITE", app.OpWrite.String())
}
