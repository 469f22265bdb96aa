package config

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/samanhappy/selectly/pkg/errors"
	"github.com/samanhappy/selectly/pkg/logging"
)

// UserConfigKey is the persistence key for the whole UserConfig record.
const UserConfigKey = "userConfig"

// KV is the key-value persistence transport the store writes through.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// ModelRef is a parsed model string.
type ModelRef struct {
	ProviderID string
	ModelName  string
}

// String reassembles the wire form.
func (r ModelRef) String() string {
	return r.ProviderID + "/" + r.ModelName
}

// ParseModel splits a model string into provider id and model name. The
// literal "default" (or an empty string) addresses the cloud provider; the
// model name may itself contain slashes.
func ParseModel(model string) (ModelRef, error) {
	if model == "" || model == DefaultModelRef {
		return ModelRef{ProviderID: CloudProviderID, ModelName: DefaultModelRef}, nil
	}
	idx := strings.Index(model, "/")
	if idx <= 0 || idx == len(model)-1 {
		return ModelRef{}, errors.Newf(errors.ErrCodeInvalidModelFormat,
			"model string %q must be \"default\" or \"providerId/modelName\"", model).
			WithContext("model", model)
	}
	return ModelRef{ProviderID: model[:idx], ModelName: model[idx+1:]}, nil
}

// StoreOptions configures a Store.
type StoreOptions struct {
	// Language selects the default text catalog when the persisted config
	// carries no language of its own.
	Language string
	// CloudBaseURL overrides the deployment cloud endpoint.
	CloudBaseURL string
	// DebounceInterval coalesces rapid successive saves into the latest
	// value. Zero disables debouncing (every save persists immediately).
	DebounceInterval time.Duration
	Logger           *logging.Logger
}

// Store owns the canonical in-memory UserConfig. Every read returns a
// complete, internally consistent snapshot regardless of how partial or
// stale the persisted data is. The canonical value is replaced, never
// mutated, on each save.
type Store struct {
	kv     KV
	logger *logging.Logger
	opts   StoreOptions

	mu      sync.RWMutex
	current *UserConfig

	debounceMu sync.Mutex
	pending    *time.Timer
}

// NewStore creates a store over the given persistence transport.
func NewStore(kv KV, opts StoreOptions) *Store {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return &Store{kv: kv, logger: opts.Logger, opts: opts}
}

// Load reads the persisted config, migrates legacy shapes, and merges the
// result over freshly computed defaults. Any read or parse failure falls
// back to defaults; Load never fails the caller.
func (s *Store) Load(ctx context.Context) *UserConfig {
	defaults := DefaultConfig(s.opts.Language)

	raw, ok, err := s.kv.Get(ctx, UserConfigKey)
	if err != nil {
		s.logger.Warn(logging.CategoryConfig, "load_failed",
			"falling back to defaults", map[string]any{"error": err.Error()})
		return s.replace(defaults)
	}
	if !ok || len(raw) == 0 {
		return s.replace(defaults)
	}

	migrated := MigrateLegacy(raw)
	var persisted Partial
	if err := json.Unmarshal(migrated, &persisted); err != nil {
		s.logger.Warn(logging.CategoryConfig, "parse_failed",
			"falling back to defaults", map[string]any{"error": err.Error()})
		return s.replace(defaults)
	}

	// The persisted language, if any, decides which default texts back
	// the merge.
	if lang := persistedLanguage(persisted.General); lang != "" && lang != defaults.General.Language {
		defaults = DefaultConfig(lang)
	}

	merged := Merge(defaults, &persisted, false)
	return s.replace(merged)
}

func persistedLanguage(general json.RawMessage) string {
	if len(general) == 0 {
		return ""
	}
	var g GeneralConfig
	if err := json.Unmarshal(general, &g); err != nil {
		return ""
	}
	return g.Language
}

// Current returns a snapshot of the canonical config, loading it lazily
// when no load has happened yet.
func (s *Store) Current(ctx context.Context) *UserConfig {
	s.mu.RLock()
	cur := s.current
	s.mu.RUnlock()
	if cur == nil {
		return s.Load(ctx)
	}
	return cur.Clone()
}

// Save merges the partial over the current config with forced replacement
// semantics for the functions map, replaces the canonical value, and
// persists it. Persistence failures are logged and swallowed; the in-memory
// value stays updated either way.
func (s *Store) Save(ctx context.Context, partial *Partial) *UserConfig {
	cur := s.Current(ctx)

	if partial == nil {
		partial = &Partial{}
	}
	override := *partial
	if override.Functions == nil {
		// A save without an explicit function set keeps the prior
		// functions untouched even under force-replace.
		full, err := cur.AsPartial()
		if err == nil {
			override.Functions = full.Functions
		}
	}
	if override.LLM == nil {
		override.LLM = &PartialLLM{
			DefaultModel: cur.LLM.DefaultModel,
			Providers:    cur.LLM.Providers,
		}
	} else if override.LLM.Providers == nil {
		llm := *override.LLM
		llm.Providers = cur.LLM.Providers
		override.LLM = &llm
	}

	merged := Merge(cur, &override, true)
	s.replace(merged)
	s.persist(ctx, merged)
	return merged.Clone()
}

func (s *Store) replace(cfg *UserConfig) *UserConfig {
	s.mu.Lock()
	s.current = cfg
	s.mu.Unlock()
	return cfg.Clone()
}

func (s *Store) persist(ctx context.Context, cfg *UserConfig) {
	if s.opts.DebounceInterval <= 0 {
		s.writeNow(ctx, cfg)
		return
	}

	// Coalesce rapid successive saves; only the latest canonical value is
	// ever written once the window closes.
	s.debounceMu.Lock()
	defer s.debounceMu.Unlock()
	if s.pending != nil {
		s.pending.Stop()
	}
	s.pending = time.AfterFunc(s.opts.DebounceInterval, func() {
		s.mu.RLock()
		latest := s.current
		s.mu.RUnlock()
		s.writeNow(context.Background(), latest)
	})
}

// Flush immediately persists the canonical value and cancels any pending
// debounced write.
func (s *Store) Flush(ctx context.Context) {
	s.debounceMu.Lock()
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
	s.debounceMu.Unlock()

	s.mu.RLock()
	cur := s.current
	s.mu.RUnlock()
	if cur != nil {
		s.writeNow(ctx, cur)
	}
}

func (s *Store) writeNow(ctx context.Context, cfg *UserConfig) {
	data, err := json.Marshal(cfg)
	if err != nil {
		s.logger.Error(logging.CategoryConfig, "marshal_failed", err.Error(), nil)
		return
	}
	if err := s.kv.Set(ctx, UserConfigKey, data); err != nil {
		// Availability over durability: the in-memory value stands.
		s.logger.Error(logging.CategoryConfig, "persist_failed", err.Error(), nil)
	}
}

// ResolveModel maps the symbolic "default" selector to the store-wide
// default model; anything else passes through unchanged.
func (s *Store) ResolveModel(ctx context.Context, model string) string {
	if model != "" && model != DefaultModelRef {
		return model
	}
	cur := s.Current(ctx)
	if cur.LLM.DefaultModel == "" {
		return DefaultModelRef
	}
	return cur.LLM.DefaultModel
}

// GetProvider looks up a provider by id.
func (s *Store) GetProvider(ctx context.Context, id string) (Provider, bool) {
	if id == CloudProviderID {
		return CloudProvider(s.opts.CloudBaseURL), true
	}
	p, ok := s.Current(ctx).LLM.Providers[id]
	return p, ok
}

// EnabledProviders returns the implicit cloud provider followed by every
// enabled configured provider, built-ins first in catalog order.
func (s *Store) EnabledProviders(ctx context.Context) []Provider {
	cur := s.Current(ctx)
	out := []Provider{CloudProvider(s.opts.CloudBaseURL)}

	seen := map[string]bool{CloudProviderID: true}
	for _, id := range BuiltInProviderIDs() {
		if p, ok := cur.LLM.Providers[id]; ok && p.Enabled {
			out = append(out, p)
			seen[id] = true
		}
	}
	var customIDs []string
	for id, p := range cur.LLM.Providers {
		if !seen[id] && p.Enabled {
			customIDs = append(customIDs, id)
		}
	}
	sort.Strings(customIDs)
	for _, id := range customIDs {
		out = append(out, cur.LLM.Providers[id])
	}
	return out
}

// SetProvider upserts a provider and persists the change.
func (s *Store) SetProvider(ctx context.Context, p Provider) (*UserConfig, error) {
	if p.ID == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "provider id is required")
	}
	if p.ID == CloudProviderID {
		return nil, errors.New(errors.ErrCodeBuiltInLocked, "the cloud provider cannot be modified")
	}
	cur := s.Current(ctx)
	if existing, ok := cur.LLM.Providers[p.ID]; ok && existing.IsBuiltIn {
		if !p.IsBuiltIn || p.Name != existing.Name {
			return nil, errors.Newf(errors.ErrCodeBuiltInLocked,
				"built-in provider %q cannot be renamed or unflagged", p.ID)
		}
	}

	providers := make(map[string]Provider, len(cur.LLM.Providers)+1)
	for id, existing := range cur.LLM.Providers {
		providers[id] = existing
	}
	providers[p.ID] = p
	return s.Save(ctx, &Partial{LLM: &PartialLLM{
		DefaultModel: cur.LLM.DefaultModel,
		Providers:    providers,
	}}), nil
}

// RemoveProvider deletes a custom provider. Removing a built-in provider is
// an invariant violation.
func (s *Store) RemoveProvider(ctx context.Context, id string) (*UserConfig, error) {
	cur := s.Current(ctx)
	p, ok := cur.LLM.Providers[id]
	if !ok {
		return cur, nil
	}
	if p.IsBuiltIn || id == CloudProviderID || IsBuiltInProviderID(id) {
		return nil, errors.Newf(errors.ErrCodeBuiltInLocked,
			"built-in provider %q cannot be removed", id)
	}

	providers := make(map[string]Provider, len(cur.LLM.Providers))
	for pid, existing := range cur.LLM.Providers {
		if pid != id {
			providers[pid] = existing
		}
	}
	return s.Save(ctx, &Partial{LLM: &PartialLLM{
		DefaultModel: cur.LLM.DefaultModel,
		Providers:    providers,
	}}), nil
}

// Import applies a raw configuration document, typically from a backup
// file. The document goes through legacy migration first, so old flat-llm
// backups import cleanly.
func (s *Store) Import(ctx context.Context, raw json.RawMessage) error {
	migrated := MigrateLegacy(raw)

	var partial Partial
	if err := json.Unmarshal(migrated, &partial); err != nil {
		return errors.Wrap(err, errors.ErrCodeImportFailed, "parsing imported configuration")
	}
	s.Save(ctx, &partial)
	return nil
}

// UpdateProviderStatus records a connectivity-test result. Unknown provider
// ids are ignored.
func (s *Store) UpdateProviderStatus(ctx context.Context, id string, status TestStatus) {
	cur := s.Current(ctx)
	p, ok := cur.LLM.Providers[id]
	if !ok {
		return
	}
	p.TestStatus = status
	if _, err := s.SetProvider(ctx, p); err != nil {
		s.logger.Warn(logging.CategoryConfig, "status_update_failed", err.Error(),
			map[string]any{"provider": id})
	}
}
