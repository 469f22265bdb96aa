package config

import (
	"encoding/json"
)

// legacyLLM is the pre-provider-map schema: one flat endpoint and key.
type legacyLLM struct {
	BaseURL string `json:"baseURL"`
	APIKey  string `json:"apiKey"`
	Model   string `json:"model"`
}

// MigrateLegacy rewrites a persisted config from the flat llm schema into
// the provider-map schema. Already-migrated (or default-shaped) data passes
// through unchanged, so re-running the migration is a no-op.
func MigrateLegacy(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return raw
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return raw
	}

	llmRaw, ok := doc["llm"]
	if !ok {
		return raw
	}

	var shape struct {
		Providers json.RawMessage `json:"providers"`
	}
	if err := json.Unmarshal(llmRaw, &shape); err != nil {
		return raw
	}
	if len(shape.Providers) > 0 {
		// New schema already.
		return raw
	}

	var legacy legacyLLM
	if err := json.Unmarshal(llmRaw, &legacy); err != nil {
		return raw
	}
	if legacy.BaseURL == "" && legacy.APIKey == "" {
		return raw
	}

	provider := matchLegacyProvider(legacy)
	model := legacy.Model
	if model == "" {
		model = DefaultModelRef
	}

	llm := LLMConfig{
		DefaultModel: provider.ID + "/" + model,
		Providers:    map[string]Provider{provider.ID: provider},
	}
	llmOut, err := json.Marshal(llm)
	if err != nil {
		return raw
	}
	doc["llm"] = llmOut

	// Per-function model pinning is no longer supported; everything falls
	// back to the store-wide default.
	if fnRaw, ok := doc["functions"]; ok {
		if rewritten, ok := resetFunctionModels(fnRaw); ok {
			doc["functions"] = rewritten
		}
	}

	out, err := json.Marshal(doc)
	if err != nil {
		return raw
	}
	return out
}

func matchLegacyProvider(legacy legacyLLM) Provider {
	for _, p := range BuiltInProviders() {
		if p.BaseURL == legacy.BaseURL {
			p.APIKey = legacy.APIKey
			p.Enabled = true
			return p
		}
	}
	return Provider{
		ID:      MigratedCustomProviderID,
		Name:    "Migrated Provider",
		BaseURL: legacy.BaseURL,
		APIKey:  legacy.APIKey,
		Enabled: true,
	}
}

func resetFunctionModels(raw json.RawMessage) (json.RawMessage, bool) {
	var functions map[string]map[string]json.RawMessage
	if err := json.Unmarshal(raw, &functions); err != nil {
		return nil, false
	}
	changed := false
	for _, fn := range functions {
		modelRaw, ok := fn["model"]
		if !ok {
			continue
		}
		var model string
		if err := json.Unmarshal(modelRaw, &model); err != nil {
			continue
		}
		if model != DefaultModelRef && model != "" {
			fn["model"], _ = json.Marshal(DefaultModelRef)
			changed = true
		}
	}
	if !changed {
		return raw, true
	}
	out, err := json.Marshal(functions)
	if err != nil {
		return nil, false
	}
	return out, true
}
