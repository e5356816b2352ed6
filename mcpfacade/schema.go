package mcpfacade

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ValidateArguments checks a tool call's JSON arguments against the
// tool's declared JSON Schema before the call is dispatched to the
// remote MCP server. A malformed call becomes a Tool-kind error without
// a network round trip, matching the §7 Tool error locality ("captured
// as tool message unless permission error").
func ValidateArguments(schemaBytes json.RawMessage, args json.RawMessage) error {
	if len(schemaBytes) == 0 {
		return nil
	}
	var schemaDoc any
	if err := json.Unmarshal(schemaBytes, &schemaDoc); err != nil {
		return fmt.Errorf("mcpfacade: unmarshal tool schema: %w", err)
	}
	var argDoc any
	if err := json.Unmarshal(args, &argDoc); err != nil {
		return fmt.Errorf("mcpfacade: unmarshal tool arguments: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("tool-schema.json", schemaDoc); err != nil {
		return fmt.Errorf("mcpfacade: add tool schema resource: %w", err)
	}
	schema, err := c.Compile("tool-schema.json")
	if err != nil {
		return fmt.Errorf("mcpfacade: compile tool schema: %w", err)
	}
	if err := schema.Validate(argDoc); err != nil {
		return fmt.Errorf("mcpfacade: tool arguments do not match schema: %w", err)
	}
	return nil
}
