package config

import (
	"github.com/samanhappy/selectly/pkg/i18n"
)

// DefaultModelRef is the symbolic model selector resolved through the
// store-wide default model.
const DefaultModelRef = "default"

// DefaultConfig builds the full default configuration for a display
// language: every built-in provider with an empty key, every built-in
// function with texts from the language catalog, and the canonical
// function order. Pure function of language.
func DefaultConfig(language string) *UserConfig {
	lang := i18n.Match(language)
	catalog := i18n.Lookup(lang)

	providers := make(map[string]Provider)
	for _, p := range BuiltInProviders() {
		providers[p.ID] = p
	}

	functions := make(map[string]FunctionConfig)
	for _, key := range builtInFunctionKeys {
		text := catalog.Functions[key]
		fn := FunctionConfig{
			Title:       text.Title,
			Description: text.Description,
			Icon:        key,
			Prompt:      text.Prompt,
			Enabled:     true,
			IsBuiltIn:   true,
			RequiresAI:  FunctionRequiresAI(key),
		}
		if fn.RequiresAI {
			fn.Model = DefaultModelRef
		}
		switch key {
		case "search":
			fn.SearchEngine = "google"
		case "highlight":
			fn.HighlightColor = "#ffeb3b"
		}
		functions[key] = fn
	}

	return &UserConfig{
		General: GeneralConfig{
			Language:       lang,
			ButtonPosition: "above",
		},
		LLM: LLMConfig{
			DefaultModel: "",
			Providers:    providers,
		},
		Functions:     functions,
		FunctionOrder: BuiltInFunctionKeys(),
	}
}
