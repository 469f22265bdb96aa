package config

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateLegacyMatchesBuiltInEndpoint(t *testing.T) {
	raw := json.RawMessage(`{
		"llm": {
			"baseURL": "https://api.deepseek.com/v1",
			"apiKey": "sk-legacy",
			"model": "deepseek-chat"
		}
	}`)

	migrated := MigrateLegacy(raw)

	var doc struct {
		LLM LLMConfig `json:"llm"`
	}
	require.NoError(t, json.Unmarshal(migrated, &doc))
	assert.Equal(t, "deepseek/deepseek-chat", doc.LLM.DefaultModel)

	p, ok := doc.LLM.Providers["deepseek"]
	require.True(t, ok)
	assert.Equal(t, "sk-legacy", p.APIKey)
	assert.True(t, p.Enabled)
	assert.True(t, p.IsBuiltIn)
}

func TestMigrateLegacyUnknownEndpointSynthesizesCustomProvider(t *testing.T) {
	raw := json.RawMessage(`{
		"llm": {
			"baseURL": "https://llm.internal.example/v1",
			"apiKey": "sk-internal"
		}
	}`)

	migrated := MigrateLegacy(raw)

	var doc struct {
		LLM LLMConfig `json:"llm"`
	}
	require.NoError(t, json.Unmarshal(migrated, &doc))
	assert.Equal(t, MigratedCustomProviderID+"/default", doc.LLM.DefaultModel)

	p, ok := doc.LLM.Providers[MigratedCustomProviderID]
	require.True(t, ok)
	assert.Equal(t, "https://llm.internal.example/v1", p.BaseURL)
	assert.Equal(t, "sk-internal", p.APIKey)
	assert.True(t, p.Enabled)
	assert.False(t, p.IsBuiltIn)
}

func TestMigrateLegacyResetsFunctionModels(t *testing.T) {
	raw := json.RawMessage(`{
		"llm": {"baseURL": "https://api.openai.com/v1", "apiKey": "sk-x"},
		"functions": {
			"translate": {"title": "Translate", "model": "openai/gpt-4o"},
			"polish": {"title": "Polish", "model": "default"}
		}
	}`)

	migrated := MigrateLegacy(raw)

	var doc struct {
		Functions map[string]FunctionConfig `json:"functions"`
	}
	require.NoError(t, json.Unmarshal(migrated, &doc))
	assert.Equal(t, DefaultModelRef, doc.Functions["translate"].Model,
		"legacy per-function model pinning is dropped")
	assert.Equal(t, DefaultModelRef, doc.Functions["polish"].Model)
}

func TestMigrateLegacyIdempotent(t *testing.T) {
	inputs := []json.RawMessage{
		json.RawMessage(`{"llm": {"baseURL": "https://api.openai.com/v1", "apiKey": "k", "model": "gpt-4o"}}`),
		json.RawMessage(`{"llm": {"baseURL": "https://other.example/v1", "apiKey": "k"}, "functions": {"translate": {"model": "x/y"}}}`),
	}
	for _, raw := range inputs {
		once := MigrateLegacy(raw)
		twice := MigrateLegacy(once)
		assert.JSONEq(t, string(once), string(twice))
	}
}

func TestMigrateLegacyPassThrough(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"new_schema", `{"llm": {"defaultModel": "openai/gpt-4o", "providers": {"openai": {"id": "openai"}}}}`},
		{"no_llm_section", `{"general": {"language": "en"}}`},
		{"empty_llm", `{"llm": {}}`},
		{"not_json", `garbage`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := MigrateLegacy(json.RawMessage(tt.raw))
			assert.Equal(t, tt.raw, string(out))
		})
	}
}

func TestMigrateThenMergeProducesCompleteConfig(t *testing.T) {
	raw := json.RawMessage(`{"llm": {"baseURL": "https://api.openai.com/v1", "apiKey": "sk-x", "model": "gpt-4o-mini"}}`)

	var persisted Partial
	require.NoError(t, json.Unmarshal(MigrateLegacy(raw), &persisted))
	merged := Merge(DefaultConfig("en"), &persisted, false)

	assert.Equal(t, "openai/gpt-4o-mini", merged.LLM.DefaultModel)
	assertOrderIsPermutation(t, merged)
	for _, id := range BuiltInProviderIDs() {
		_, ok := merged.LLM.Providers[id]
		assert.True(t, ok)
	}
}
