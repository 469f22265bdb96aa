package config

import (
	"encoding/json"
	"sort"
)

// Merge reconciles a partial override over an existing config and returns a
// new canonical UserConfig. The inputs are never mutated.
//
// With forceReplace set and a functions map present in the override, the
// merged function set is exactly the override's. Otherwise function entries
// are overlaid field-by-field onto the existing ones, and an override entry
// claiming isBuiltIn with no existing counterpart is dropped as stale.
func Merge(old *UserConfig, override *Partial, forceReplace bool) *UserConfig {
	if old == nil {
		old = &UserConfig{}
	}
	if override == nil {
		override = &Partial{}
	}

	result := &UserConfig{General: old.General}

	if len(override.General) > 0 {
		// Override wins per field; absent fields keep the old value.
		_ = json.Unmarshal(override.General, &result.General)
	}

	result.Functions = mergeFunctions(old.Functions, override.Functions, forceReplace)
	result.LLM = mergeLLM(old.LLM, override.LLM)
	result.FunctionOrder = mergeOrder(old.FunctionOrder, override.FunctionOrder, result.Functions)

	return result
}

func mergeFunctions(old map[string]FunctionConfig, override map[string]json.RawMessage, forceReplace bool) map[string]FunctionConfig {
	merged := make(map[string]FunctionConfig)

	if forceReplace && override != nil {
		for key, raw := range override {
			merged[key] = decodeFunction(FunctionConfig{}, raw, key, false)
		}
		return merged
	}

	for key, fn := range old {
		merged[key] = fn
	}
	for key, raw := range override {
		base, baseExists := merged[key]
		if !baseExists && claimsBuiltIn(raw) {
			// Stale entry for a removed or renamed built-in; do not
			// resurrect it from persisted data.
			continue
		}
		merged[key] = decodeFunction(base, raw, key, baseExists)
	}
	return merged
}

// decodeFunction overlays raw override fields onto base. Flags missing from
// both the base entry and the override fall back to the fixed built-in and
// non-AI key lists.
func decodeFunction(base FunctionConfig, raw json.RawMessage, key string, baseExists bool) FunctionConfig {
	fn := base
	var flags struct {
		IsBuiltIn  *bool `json:"isBuiltIn"`
		RequiresAI *bool `json:"requiresAI"`
	}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &fn)
		_ = json.Unmarshal(raw, &flags)
	}
	if flags.IsBuiltIn == nil && !baseExists {
		fn.IsBuiltIn = IsBuiltInFunctionKey(key)
	}
	if flags.RequiresAI == nil && !baseExists {
		fn.RequiresAI = FunctionRequiresAI(key)
	}
	return fn
}

func claimsBuiltIn(raw json.RawMessage) bool {
	var flags struct {
		IsBuiltIn bool `json:"isBuiltIn"`
	}
	if len(raw) == 0 {
		return false
	}
	if err := json.Unmarshal(raw, &flags); err != nil {
		return false
	}
	return flags.IsBuiltIn
}

func mergeLLM(old LLMConfig, override *PartialLLM) LLMConfig {
	merged := LLMConfig{
		DefaultModel: old.DefaultModel,
		Providers:    make(map[string]Provider),
	}

	if override != nil {
		if override.DefaultModel != "" {
			merged.DefaultModel = override.DefaultModel
		}
		for id, p := range override.Providers {
			p.ID = id
			merged.Providers[id] = p
		}
	}

	// Every built-in provider id exists after any merge, even when the
	// persisted data predates its introduction.
	for _, p := range BuiltInProviders() {
		if _, ok := merged.Providers[p.ID]; !ok {
			merged.Providers[p.ID] = p
		}
	}
	return merged
}

// mergeOrder keeps functionOrder an exact permutation of the merged
// function keys: foreign keys are filtered, missing keys appended.
func mergeOrder(oldOrder, overrideOrder []string, functions map[string]FunctionConfig) []string {
	source := overrideOrder
	if len(source) == 0 {
		source = oldOrder
	}

	order := make([]string, 0, len(functions))
	seen := make(map[string]bool, len(functions))
	for _, key := range source {
		if seen[key] {
			continue
		}
		if _, ok := functions[key]; !ok {
			continue
		}
		seen[key] = true
		order = append(order, key)
	}

	// Append built-ins in canonical order first, then remaining custom
	// keys sorted, so the result is deterministic.
	for _, key := range builtInFunctionKeys {
		if _, ok := functions[key]; ok && !seen[key] {
			seen[key] = true
			order = append(order, key)
		}
	}
	var rest []string
	for key := range functions {
		if !seen[key] {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)
	return append(order, rest...)
}
