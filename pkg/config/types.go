package config

import "encoding/json"

// TestStatus tracks the connectivity-test state of a provider.
type TestStatus string

const (
	TestStatusIdle    TestStatus = "idle"
	TestStatusTesting TestStatus = "testing"
	TestStatusSuccess TestStatus = "success"
	TestStatusError   TestStatus = "error"
)

// Provider is one configured LLM backend. The ID doubles as the namespace
// prefix in model strings ("providerId/modelName").
type Provider struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	BaseURL    string     `json:"baseURL"`
	APIKey     string     `json:"apiKey"`
	Enabled    bool       `json:"enabled"`
	IsBuiltIn  bool       `json:"isBuiltIn"`
	TestStatus TestStatus `json:"testStatus,omitempty"`
	WebsiteURL string     `json:"websiteURL,omitempty"`
}

// FunctionConfig is one user-invocable text action.
type FunctionConfig struct {
	Title              string   `json:"title"`
	Description        string   `json:"description,omitempty"`
	Icon               string   `json:"icon,omitempty"`
	Model              string   `json:"model,omitempty"`
	Prompt             string   `json:"prompt,omitempty"`
	Enabled            bool     `json:"enabled"`
	AutoExecute        bool     `json:"autoExecute,omitempty"`
	AutoExecuteDomains []string `json:"autoExecuteDomains,omitempty"`
	AutoCloseButtons   bool     `json:"autoCloseButtons,omitempty"`
	AutoCloseResult    bool     `json:"autoCloseResult,omitempty"`
	Collapsed          bool     `json:"collapsed,omitempty"`
	DisplayDomains     []string `json:"displayDomains,omitempty"`
	IsBuiltIn          bool     `json:"isBuiltIn"`
	RequiresAI         bool     `json:"requiresAI"`
	SearchEngine       string   `json:"searchEngine,omitempty"`
	HighlightColor     string   `json:"highlightColor,omitempty"`
}

// GeneralConfig holds display-level preferences.
type GeneralConfig struct {
	Language            string `json:"language,omitempty"`
	ButtonPosition      string `json:"buttonPosition,omitempty"`
	ShowReadingProgress bool   `json:"showReadingProgress,omitempty"`
}

// LLMConfig is the provider map plus the store-wide fallback model.
type LLMConfig struct {
	DefaultModel string              `json:"defaultModel,omitempty"`
	Providers    map[string]Provider `json:"providers"`
}

// UserConfig is the aggregate configuration root. It is replaced, never
// mutated: every change produces a new merged value.
type UserConfig struct {
	General       GeneralConfig             `json:"general"`
	LLM           LLMConfig                 `json:"llm"`
	Functions     map[string]FunctionConfig `json:"functions"`
	FunctionOrder []string                  `json:"functionOrder"`
}

// Partial is a partial user configuration, typically decoded from persisted
// or imported JSON. Function entries stay raw so that override-wins
// field-level merging can distinguish "absent" from "zero value".
type Partial struct {
	General       json.RawMessage            `json:"general,omitempty"`
	LLM           *PartialLLM                `json:"llm,omitempty"`
	Functions     map[string]json.RawMessage `json:"functions,omitempty"`
	FunctionOrder []string                   `json:"functionOrder,omitempty"`
}

// PartialLLM is the llm section of a Partial.
type PartialLLM struct {
	DefaultModel string              `json:"defaultModel,omitempty"`
	Providers    map[string]Provider `json:"providers,omitempty"`
}

// Clone returns a deep copy of the config.
func (c *UserConfig) Clone() *UserConfig {
	if c == nil {
		return nil
	}
	out := &UserConfig{
		General: c.General,
		LLM: LLMConfig{
			DefaultModel: c.LLM.DefaultModel,
			Providers:    make(map[string]Provider, len(c.LLM.Providers)),
		},
		Functions:     make(map[string]FunctionConfig, len(c.Functions)),
		FunctionOrder: append([]string(nil), c.FunctionOrder...),
	}
	for id, p := range c.LLM.Providers {
		out.LLM.Providers[id] = p
	}
	for key, fn := range c.Functions {
		fn.AutoExecuteDomains = append([]string(nil), fn.AutoExecuteDomains...)
		fn.DisplayDomains = append([]string(nil), fn.DisplayDomains...)
		out.Functions[key] = fn
	}
	return out
}

// AsPartial converts a full config into the Partial shape used by Merge.
func (c *UserConfig) AsPartial() (*Partial, error) {
	if c == nil {
		return &Partial{}, nil
	}
	data, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	var p Partial
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
