// Package export serializes user configuration and collected records into
// portable formats: JSON for configuration backup, CSV and XLSX for
// collection records.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/samanhappy/selectly/pkg/config"
	"github.com/samanhappy/selectly/pkg/errors"
)

// configEnvelopeVersion identifies the backup file layout, not the
// configuration schema inside it.
const configEnvelopeVersion = 1

// ConfigEnvelope wraps an exported configuration with provenance.
type ConfigEnvelope struct {
	Version    int             `json:"version"`
	ExportedAt time.Time       `json:"exportedAt"`
	Config     json.RawMessage `json:"config"`
}

// WriteConfig serializes the full configuration to w as an indented JSON
// envelope. The API keys are included; backups are for the user's own
// machines.
func WriteConfig(w io.Writer, cfg *config.UserConfig) error {
	if cfg == nil {
		return errors.New(errors.ErrCodeExportFailed, "no configuration to export")
	}

	raw, err := json.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeExportFailed, "encoding configuration")
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(ConfigEnvelope{
		Version:    configEnvelopeVersion,
		ExportedAt: time.Now().UTC(),
		Config:     raw,
	}); err != nil {
		return errors.Wrap(err, errors.ErrCodeExportFailed, "writing configuration")
	}
	return nil
}

// ReadConfig parses a backup produced by WriteConfig and returns the raw
// configuration document. The caller runs it through legacy migration and a
// forced save; this function only validates the envelope.
func ReadConfig(r io.Reader) (json.RawMessage, error) {
	var env ConfigEnvelope
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeImportFailed, "parsing backup file")
	}
	if env.Version != configEnvelopeVersion {
		return nil, errors.Newf(errors.ErrCodeImportFailed,
			"unsupported backup version %d", env.Version)
	}
	if len(env.Config) == 0 {
		return nil, errors.New(errors.ErrCodeImportFailed, "backup contains no configuration")
	}
	return env.Config, nil
}

// Filename builds a dated export file name, e.g. "selectly-records-2026-09-01.csv".
func Filename(prefix, ext string, now time.Time) string {
	return fmt.Sprintf("%s-%s.%s", prefix, now.Format("2006-01-02"), ext)
}
