package main

import (
	"testing"

	"github.com/flowcraft/execore/config"
)

func TestNewProviderClientRejectsEmptyAPIKey(t *testing.T) {
	if _, err := newProviderClient("anthropic", config.ProviderConfig{DefaultModel: "claude-3-opus"}); err == nil {
		t.Fatalf("expected an error for a missing anthropic api key")
	}
	if _, err := newProviderClient("openai", config.ProviderConfig{DefaultModel: "gpt-5"}); err == nil {
		t.Fatalf("expected an error for a missing openai api key")
	}
}

func TestNewProviderClientRejectsUnsupportedProvider(t *testing.T) {
	if _, err := newProviderClient("bedrock", config.ProviderConfig{APIKey: "unused"}); err == nil {
		t.Fatalf("expected bedrock to be rejected since it needs a programmatic aws-sdk-go-v2 session")
	}
	if _, err := newProviderClient("made-up", config.ProviderConfig{APIKey: "k"}); err == nil {
		t.Fatalf("expected an unknown provider name to be rejected")
	}
}
