package i18n

import "testing"

func TestMatch(t *testing.T) {
	tests := []struct {
		name string
		lang string
		want string
	}{
		{"exact_english", "en", "en"},
		{"english_region", "en-US", "en"},
		{"simplified_chinese", "zh-CN", "zh-CN"},
		{"bare_chinese", "zh", "zh-CN"},
		{"chinese_script", "zh-Hans", "zh-CN"},
		{"unsupported_falls_back", "fr", "en"},
		{"garbage_falls_back", "???", "en"},
		{"empty_falls_back", "", "en"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Match(tt.lang); got != tt.want {
				t.Errorf("Match(%q) = %q, want %q", tt.lang, got, tt.want)
			}
		})
	}
}

func TestLookupHasAllBuiltInFunctions(t *testing.T) {
	keys := []string{
		"translate", "polish", "explain", "summarize", "chat",
		"copy", "search", "open", "share", "highlight", "collect",
	}
	for _, lang := range []string{"en", "zh-CN"} {
		cat := Lookup(lang)
		for _, key := range keys {
			text, ok := cat.Functions[key]
			if !ok {
				t.Errorf("catalog %s missing function %q", lang, key)
				continue
			}
			if text.Title == "" {
				t.Errorf("catalog %s function %q has empty title", lang, key)
			}
		}
	}
}

func TestLookupFallsBackToEnglish(t *testing.T) {
	cat := Lookup("de-DE")
	if cat.Language != "en" {
		t.Fatalf("expected en fallback, got %s", cat.Language)
	}
}
