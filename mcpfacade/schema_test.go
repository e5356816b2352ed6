package mcpfacade_test

import (
	"encoding/json"
	"testing"

	"github.com/flowcraft/execore/mcpfacade"
)

func TestValidateArgumentsEmptySchemaAlwaysPasses(t *testing.T) {
	if err := mcpfacade.ValidateArguments(nil, json.RawMessage(`{"anything":1}`)); err != nil {
		t.Fatalf("expected no validation when no schema is declared, got %v", err)
	}
}

func TestValidateArgumentsAcceptsMatchingArguments(t *testing.T) {
	schema := json.RawMessage(`{"type":"object","required":["repo"],"properties":{"repo":{"type":"string"}}}`)
	if err := mcpfacade.ValidateArguments(schema, json.RawMessage(`{"repo":"flowcraft/execore"}`)); err != nil {
		t.Fatalf("expected matching arguments to pass, got %v", err)
	}
}

func TestValidateArgumentsRejectsMissingRequiredField(t *testing.T) {
	schema := json.RawMessage(`{"type":"object","required":["repo"]}`)
	if err := mcpfacade.ValidateArguments(schema, json.RawMessage(`{}`)); err == nil {
		t.Fatalf("expected an error for a missing required field")
	}
}

func TestValidateArgumentsRejectsWrongType(t *testing.T) {
	schema := json.RawMessage(`{"type":"object","properties":{"count":{"type":"integer"}}}`)
	if err := mcpfacade.ValidateArguments(schema, json.RawMessage(`{"count":"not a number"}`)); err == nil {
		t.Fatalf("expected an error for a type mismatch")
	}
}

func TestValidateArgumentsMalformedArgumentsFails(t *testing.T) {
	schema := json.RawMessage(`{"type":"object"}`)
	if err := mcpfacade.ValidateArguments(schema, json.RawMessage(`not json`)); err == nil {
		t.Fatalf("expected an error for malformed argument JSON")
	}
}
