package config

import (
	"encoding/json"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawFunction(t *testing.T, fn map[string]any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(fn)
	require.NoError(t, err)
	return data
}

// functionOrder must always be an exact permutation of the function keys.
func assertOrderIsPermutation(t *testing.T, cfg *UserConfig) {
	t.Helper()
	require.Len(t, cfg.FunctionOrder, len(cfg.Functions))
	seen := make(map[string]bool)
	for _, key := range cfg.FunctionOrder {
		assert.False(t, seen[key], "duplicate key %q in functionOrder", key)
		seen[key] = true
		_, ok := cfg.Functions[key]
		assert.True(t, ok, "foreign key %q in functionOrder", key)
	}
}

func TestMergeEmptyOverrideKeepsDefaults(t *testing.T) {
	defaults := DefaultConfig("en")
	merged := Merge(defaults, &Partial{}, false)

	assert.Equal(t, len(defaults.Functions), len(merged.Functions))
	assertOrderIsPermutation(t, merged)
	for _, id := range BuiltInProviderIDs() {
		_, ok := merged.LLM.Providers[id]
		assert.True(t, ok, "built-in provider %q missing", id)
	}
}

func TestMergeOverrideWinsFieldByField(t *testing.T) {
	defaults := DefaultConfig("en")
	override := &Partial{
		Functions: map[string]json.RawMessage{
			"translate": rawFunction(t, map[string]any{
				"prompt": "custom translation prompt {text}",
			}),
		},
	}

	merged := Merge(defaults, override, false)

	fn := merged.Functions["translate"]
	assert.Equal(t, "custom translation prompt {text}", fn.Prompt)
	// Fields absent from the override keep their base values.
	assert.Equal(t, defaults.Functions["translate"].Title, fn.Title)
	assert.True(t, fn.IsBuiltIn)
	assert.True(t, fn.RequiresAI)
}

func TestMergeDropsStaleBuiltIn(t *testing.T) {
	defaults := DefaultConfig("en")
	override := &Partial{
		Functions: map[string]json.RawMessage{
			"retired_builtin": rawFunction(t, map[string]any{
				"title":     "Retired",
				"isBuiltIn": true,
			}),
		},
	}

	merged := Merge(defaults, override, false)

	_, ok := merged.Functions["retired_builtin"]
	assert.False(t, ok, "stale built-in override must be dropped")
	assertOrderIsPermutation(t, merged)
}

func TestMergeInsertsCustomFunction(t *testing.T) {
	defaults := DefaultConfig("en")
	override := &Partial{
		Functions: map[string]json.RawMessage{
			"my_action": rawFunction(t, map[string]any{
				"title":  "My Action",
				"prompt": "do something with {text}",
			}),
		},
	}

	merged := Merge(defaults, override, false)

	fn, ok := merged.Functions["my_action"]
	require.True(t, ok)
	assert.False(t, fn.IsBuiltIn, "custom key must not default to built-in")
	assert.True(t, fn.RequiresAI, "custom key outside the non-AI set defaults to requiring AI")
	assertOrderIsPermutation(t, merged)
	assert.Contains(t, merged.FunctionOrder, "my_action")
}

func TestMergeNonAIDefaultForKnownKeys(t *testing.T) {
	merged := Merge(&UserConfig{}, &Partial{
		Functions: map[string]json.RawMessage{
			"copy": rawFunction(t, map[string]any{"title": "Copy"}),
		},
	}, false)

	assert.False(t, merged.Functions["copy"].RequiresAI)
	assert.True(t, merged.Functions["copy"].IsBuiltIn)
}

func TestMergeForceReplaceFunctions(t *testing.T) {
	defaults := DefaultConfig("en")
	override := &Partial{
		Functions: map[string]json.RawMessage{
			"translate": rawFunction(t, map[string]any{
				"title":      "Translate",
				"isBuiltIn":  true,
				"requiresAI": true,
			}),
		},
	}

	merged := Merge(defaults, override, true)

	require.Len(t, merged.Functions, 1, "force replace keeps exactly the override set")
	_, ok := merged.Functions["translate"]
	assert.True(t, ok)
	assertOrderIsPermutation(t, merged)
}

func TestMergeFunctionOrderFiltersAndAppends(t *testing.T) {
	defaults := DefaultConfig("en")
	override := &Partial{
		// Stale order: has a foreign key, misses most real keys.
		FunctionOrder: []string{"polish", "ghost", "translate", "polish"},
	}

	merged := Merge(defaults, override, false)

	assertOrderIsPermutation(t, merged)
	assert.Equal(t, []string{"polish", "translate"}, merged.FunctionOrder[:2],
		"surviving override order entries keep their relative positions")
}

func TestMergeProvidersKeepCustomAndInjectBuiltIns(t *testing.T) {
	defaults := DefaultConfig("en")
	override := &Partial{
		LLM: &PartialLLM{
			DefaultModel: "ollama/llama3",
			Providers: map[string]Provider{
				"ollama": {Name: "Ollama", BaseURL: "http://localhost:11434/v1", Enabled: true},
				"openai": {Name: "OpenAI", BaseURL: "https://api.openai.com/v1", APIKey: "sk-x", Enabled: true, IsBuiltIn: true},
			},
		},
	}

	merged := Merge(defaults, override, false)

	assert.Equal(t, "ollama/llama3", merged.LLM.DefaultModel)
	custom, ok := merged.LLM.Providers["ollama"]
	require.True(t, ok)
	assert.Equal(t, "ollama", custom.ID, "map key is authoritative for the id")
	assert.Equal(t, "sk-x", merged.LLM.Providers["openai"].APIKey)
	for _, id := range BuiltInProviderIDs() {
		_, ok := merged.LLM.Providers[id]
		assert.True(t, ok, "built-in provider %q missing after merge", id)
	}
}

func TestMergeGeneralShallowOverride(t *testing.T) {
	old := DefaultConfig("en")
	merged := Merge(old, &Partial{
		General: json.RawMessage(`{"language":"zh-CN"}`),
	}, false)

	assert.Equal(t, "zh-CN", merged.General.Language)
	assert.Equal(t, old.General.ButtonPosition, merged.General.ButtonPosition,
		"fields absent from the override keep old values")
}

func TestMergeOrderDeterministicForAppendedKeys(t *testing.T) {
	functions := map[string]json.RawMessage{}
	for _, key := range []string{"zeta", "alpha", "midway"} {
		functions[key] = rawFunction(t, map[string]any{"title": key})
	}
	merged := Merge(DefaultConfig("en"), &Partial{Functions: functions}, false)

	appended := merged.FunctionOrder[len(merged.FunctionOrder)-3:]
	want := []string{"alpha", "midway", "zeta"}
	assert.True(t, sort.StringsAreSorted(appended))
	assert.Equal(t, want, appended)
}

func TestMergeNilInputs(t *testing.T) {
	merged := Merge(nil, nil, false)
	require.NotNil(t, merged)
	assertOrderIsPermutation(t, merged)
	for _, id := range BuiltInProviderIDs() {
		_, ok := merged.LLM.Providers[id]
		assert.True(t, ok)
	}
}
