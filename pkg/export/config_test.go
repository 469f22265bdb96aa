package export

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samanhappy/selectly/pkg/config"
	"github.com/samanhappy/selectly/pkg/errors"
)

func TestConfigRoundTrip(t *testing.T) {
	cfg := config.DefaultConfig("en")
	cfg.LLM.DefaultModel = "openai/gpt-5-mini"
	cfg.LLM.Providers["openai"] = config.Provider{
		ID: "openai", Name: "OpenAI", BaseURL: "https://api.openai.com/v1",
		APIKey: "sk-secret", Enabled: true, IsBuiltIn: true,
	}
	cfg.LLM.Providers["my_local"] = config.Provider{
		ID: "my_local", Name: "Local", BaseURL: "http://localhost:11434/v1", Enabled: true,
	}

	var buf bytes.Buffer
	require.NoError(t, WriteConfig(&buf, cfg))

	raw, err := ReadConfig(&buf)
	require.NoError(t, err)

	var restored config.UserConfig
	require.NoError(t, json.Unmarshal(raw, &restored))
	assert.Equal(t, *cfg, restored, "export then import restores the identical configuration")
}

func TestWriteConfigNil(t *testing.T) {
	var buf bytes.Buffer
	err := WriteConfig(&buf, nil)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeExportFailed, errors.GetCode(err))
}

func TestReadConfigRejectsGarbage(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not json", "definitely not json"},
		{"wrong version", `{"version":99,"config":{}}`},
		{"missing config", `{"version":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadConfig(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Equal(t, errors.ErrCodeImportFailed, errors.GetCode(err))
		})
	}
}

func TestFilename(t *testing.T) {
	now := time.Date(2026, 9, 1, 14, 30, 0, 0, time.UTC)
	assert.Equal(t, "selectly-records-2026-09-01.csv", Filename("selectly-records", "csv", now))
	assert.Equal(t, "selectly-config-2026-09-01.json", Filename("selectly-config", "json", now))
}
