package authcore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// ConfigValue is a configuration entry with its value parsed according to
// the declared type.
type ConfigValue struct {
	Entry ConfigEntry
	// Value holds string, float64, bool, map[string]any, []any, or
	// time.Duration depending on Entry.Type.
	Value any
}

// parseConfigValue interprets a raw value under its declared type. A value
// that does not parse is a data error, not a lookup miss.
func parseConfigValue(entry ConfigEntry) (any, error) {
	switch entry.Type {
	case ConfigString:
		return entry.RawValue, nil
	case ConfigNumber:
		n, err := strconv.ParseFloat(entry.RawValue, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: key %q: %v", ErrConfigType, entry.Key, err)
		}
		return n, nil
	case ConfigBoolean:
		b, err := strconv.ParseBool(entry.RawValue)
		if err != nil {
			return nil, fmt.Errorf("%w: key %q: %v", ErrConfigType, entry.Key, err)
		}
		return b, nil
	case ConfigJSON:
		var v any
		if err := json.Unmarshal([]byte(entry.RawValue), &v); err != nil {
			return nil, fmt.Errorf("%w: key %q: %v", ErrConfigType, entry.Key, err)
		}
		return v, nil
	case ConfigDuration:
		d, err := time.ParseDuration(entry.RawValue)
		if err != nil {
			return nil, fmt.Errorf("%w: key %q: %v", ErrConfigType, entry.Key, err)
		}
		return d, nil
	}
	return nil, fmt.Errorf("%w: key %q: unknown type %q", ErrConfigType, entry.Key, entry.Type)
}

// ConfigGet returns the parsed value for key, serving from the TTL cache
// when fresh. Concurrent misses for the same key may each hit the store;
// the duplicate reads are idempotent and the last writer wins the cache
// slot.
func (e *Engine) ConfigGet(ctx context.Context, key string) (*ConfigValue, error) {
	if e == nil || e.configs == nil {
		return nil, ErrEngineNotReady
	}

	if cached, ok := e.configCache.Get(key); ok {
		e.metricInc(MetricConfigCacheHit)
		value := cached.(ConfigValue)
		return &value, nil
	}
	e.metricInc(MetricConfigCacheMiss)

	entry, err := e.configs.ConfigByKey(ctx, key)
	if err != nil {
		if errors.Is(err, ErrConfigNotFound) {
			return nil, ErrConfigNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	value, err := parseConfigValue(entry)
	if err != nil {
		return nil, err
	}

	cv := ConfigValue{Entry: entry, Value: value}
	e.configCache.Set(key, cv)
	return &cv, nil
}

// ConfigGetString returns a string-typed config value.
func (e *Engine) ConfigGetString(ctx context.Context, key string) (string, error) {
	cv, err := e.ConfigGet(ctx, key)
	if err != nil {
		return "", err
	}
	s, ok := cv.Value.(string)
	if !ok {
		return "", fmt.Errorf("%w: key %q holds %q", ErrConfigType, key, cv.Entry.Type)
	}
	return s, nil
}

// ConfigGetNumber returns a number-typed config value.
func (e *Engine) ConfigGetNumber(ctx context.Context, key string) (float64, error) {
	cv, err := e.ConfigGet(ctx, key)
	if err != nil {
		return 0, err
	}
	n, ok := cv.Value.(float64)
	if !ok {
		return 0, fmt.Errorf("%w: key %q holds %q", ErrConfigType, key, cv.Entry.Type)
	}
	return n, nil
}

// ConfigGetBool returns a boolean-typed config value.
func (e *Engine) ConfigGetBool(ctx context.Context, key string) (bool, error) {
	cv, err := e.ConfigGet(ctx, key)
	if err != nil {
		return false, err
	}
	b, ok := cv.Value.(bool)
	if !ok {
		return false, fmt.Errorf("%w: key %q holds %q", ErrConfigType, key, cv.Entry.Type)
	}
	return b, nil
}

// ConfigGetDuration returns a duration-typed config value.
func (e *Engine) ConfigGetDuration(ctx context.Context, key string) (time.Duration, error) {
	cv, err := e.ConfigGet(ctx, key)
	if err != nil {
		return 0, err
	}
	d, ok := cv.Value.(time.Duration)
	if !ok {
		return 0, fmt.Errorf("%w: key %q holds %q", ErrConfigType, key, cv.Entry.Type)
	}
	return d, nil
}

// ConfigGetOr is ConfigGet with a fallback: an unknown key returns def
// instead of [ErrConfigNotFound]. Parse and store failures still surface.
func (e *Engine) ConfigGetOr(ctx context.Context, key string, def any) (any, error) {
	cv, err := e.ConfigGet(ctx, key)
	if err != nil {
		if errors.Is(err, ErrConfigNotFound) {
			return def, nil
		}
		return nil, err
	}
	return cv.Value, nil
}

// ConfigGetMany returns parsed values for the given keys in one store round
// trip. Missing keys are absent from the result rather than an error. Batch
// reads go straight to the store and leave the single-key cache alone.
func (e *Engine) ConfigGetMany(ctx context.Context, keys []string) (map[string]ConfigValue, error) {
	if e == nil || e.configs == nil {
		return nil, ErrEngineNotReady
	}

	entries, err := e.configs.ConfigsByKeys(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return parseEntries(entries)
}

// ConfigByCategory returns every parsed value in a category.
func (e *Engine) ConfigByCategory(ctx context.Context, category string) (map[string]ConfigValue, error) {
	if e == nil || e.configs == nil {
		return nil, ErrEngineNotReady
	}

	entries, err := e.configs.ConfigsByCategory(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return parseEntries(entries)
}

// PublicConfigs returns every config entry marked public, parsed. Intended
// for exposure to untrusted clients; non-public entries never appear here.
func (e *Engine) PublicConfigs(ctx context.Context) (map[string]ConfigValue, error) {
	if e == nil || e.configs == nil {
		return nil, ErrEngineNotReady
	}

	entries, err := e.configs.PublicConfigs(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return parseEntries(entries)
}

func parseEntries(entries []ConfigEntry) (map[string]ConfigValue, error) {
	out := make(map[string]ConfigValue, len(entries))
	for _, entry := range entries {
		value, err := parseConfigValue(entry)
		if err != nil {
			return nil, err
		}
		out[entry.Key] = ConfigValue{Entry: entry, Value: value}
	}
	return out, nil
}

// ConfigSet writes a new value for key and appends a history record in the
// same unit of work, then evicts the cache entry so the next read observes
// the write. The new value must parse under the key's declared type.
func (e *Engine) ConfigSet(ctx context.Context, key, newValue, actor, reason string) error {
	if e == nil || e.configs == nil {
		return ErrEngineNotReady
	}

	entry, err := e.configs.ConfigByKey(ctx, key)
	if err != nil {
		if errors.Is(err, ErrConfigNotFound) {
			return ErrConfigNotFound
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	probe := entry
	probe.RawValue = newValue
	if _, err := parseConfigValue(probe); err != nil {
		return err
	}

	history := ConfigHistoryRecord{
		ID:        uuid.NewString(),
		Key:       key,
		OldValue:  entry.RawValue,
		NewValue:  newValue,
		Actor:     actor,
		Reason:    reason,
		ChangedAt: e.now(),
	}
	if err := e.configs.UpdateConfig(ctx, key, newValue, history); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.configCache.Evict(key)
	e.metricInc(MetricConfigSet)
	e.emitAudit(ctx, auditEventConfigChanged, true, "", actor, nil, map[string]string{
		"key":    key,
		"reason": reason,
	})
	return nil
}

// ReloadConfig refetches a key from the store and replaces its cache entry,
// regardless of freshness.
func (e *Engine) ReloadConfig(ctx context.Context, key string) (*ConfigValue, error) {
	if e == nil || e.configs == nil {
		return nil, ErrEngineNotReady
	}
	e.configCache.Evict(key)
	return e.ConfigGet(ctx, key)
}

// ClearConfigCache drops every cached config entry. Subsequent reads go to
// the store.
func (e *Engine) ClearConfigCache() {
	if e == nil || e.configCache == nil {
		return
	}
	e.configCache.Clear()
}

// IsFeatureEnabled evaluates a feature flag. A disabled flag is off for
// everyone; an enabled flag at percentage p is on for roughly p percent of
// calls via a fresh uniform draw, so individual callers are not sticky.
// The check is recomputed from the store every call and never cached.
// Unknown flags and store failures fail closed.
func (e *Engine) IsFeatureEnabled(ctx context.Context, name string) bool {
	if e == nil || e.configs == nil {
		return false
	}
	e.metricInc(MetricFeatureFlagCheck)

	flag, err := e.configs.FeatureFlagByName(ctx, name)
	if err != nil {
		return false
	}
	if !flag.Enabled {
		return false
	}
	switch {
	case flag.Percentage >= 100:
		return true
	case flag.Percentage <= 0:
		return false
	}
	return e.randInt(100) < flag.Percentage
}
