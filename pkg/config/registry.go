package config

// CloudProviderID identifies the implicit always-on cloud provider. Its
// credential is an externally managed access token, not a user-entered key.
const CloudProviderID = "cloud"

// DefaultCloudBaseURL is the deployment-time default for the cloud endpoint.
const DefaultCloudBaseURL = "https://api.selectly.app/v1"

// MigratedCustomProviderID is the id synthesized when a legacy flat llm
// config points at an endpoint no built-in provider owns.
const MigratedCustomProviderID = "migrated_custom"

// builtInProviders is the static catalog of providers shipped with the
// product. Every id here must exist in the provider map after any merge.
var builtInProviders = []Provider{
	{
		ID:         "openai",
		Name:       "OpenAI",
		BaseURL:    "https://api.openai.com/v1",
		WebsiteURL: "https://platform.openai.com/api-keys",
		IsBuiltIn:  true,
	},
	{
		ID:         "deepseek",
		Name:       "DeepSeek",
		BaseURL:    "https://api.deepseek.com/v1",
		WebsiteURL: "https://platform.deepseek.com/api_keys",
		IsBuiltIn:  true,
	},
	{
		ID:         "siliconflow",
		Name:       "SiliconFlow",
		BaseURL:    "https://api.siliconflow.cn/v1",
		WebsiteURL: "https://cloud.siliconflow.cn/account/ak",
		IsBuiltIn:  true,
	},
	{
		ID:         "openrouter",
		Name:       "OpenRouter",
		BaseURL:    "https://openrouter.ai/api/v1",
		WebsiteURL: "https://openrouter.ai/keys",
		IsBuiltIn:  true,
	},
}

// BuiltInProviders returns fresh copies of the built-in provider catalog,
// each disabled with an empty key and idle test status.
func BuiltInProviders() []Provider {
	out := make([]Provider, len(builtInProviders))
	for i, p := range builtInProviders {
		p.Enabled = false
		p.APIKey = ""
		p.TestStatus = TestStatusIdle
		out[i] = p
	}
	return out
}

// BuiltInProviderIDs returns the ids of the built-in provider catalog.
func BuiltInProviderIDs() []string {
	ids := make([]string, len(builtInProviders))
	for i, p := range builtInProviders {
		ids[i] = p.ID
	}
	return ids
}

// IsBuiltInProviderID reports whether id names a catalog provider. Catalog
// membership is authoritative; a stored document that unflags a built-in
// does not make it custom.
func IsBuiltInProviderID(id string) bool {
	for _, p := range builtInProviders {
		if p.ID == id {
			return true
		}
	}
	return false
}

// CloudProvider returns the implicit cloud provider addressed at baseURL.
// An empty baseURL selects the deployment default.
func CloudProvider(baseURL string) Provider {
	if baseURL == "" {
		baseURL = DefaultCloudBaseURL
	}
	return Provider{
		ID:         CloudProviderID,
		Name:       "Selectly Cloud",
		BaseURL:    baseURL,
		Enabled:    true,
		IsBuiltIn:  true,
		TestStatus: TestStatusSuccess,
	}
}

// builtInFunctionKeys is the fixed set of functions shipped with the
// product, in canonical order.
var builtInFunctionKeys = []string{
	"translate",
	"polish",
	"explain",
	"summarize",
	"chat",
	"copy",
	"search",
	"open",
	"share",
	"highlight",
	"collect",
}

// nonAIFunctionKeys is the fixed set of functions that run without a model.
var nonAIFunctionKeys = map[string]bool{
	"copy":      true,
	"search":    true,
	"open":      true,
	"share":     true,
	"highlight": true,
	"collect":   true,
}

// BuiltInFunctionKeys returns the canonical built-in function order.
func BuiltInFunctionKeys() []string {
	return append([]string(nil), builtInFunctionKeys...)
}

// IsBuiltInFunctionKey reports whether key names a shipped function.
func IsBuiltInFunctionKey(key string) bool {
	for _, k := range builtInFunctionKeys {
		if k == key {
			return true
		}
	}
	return false
}

// FunctionRequiresAI reports the default requiresAI value for key.
func FunctionRequiresAI(key string) bool {
	return !nonAIFunctionKeys[key]
}
