package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Settings keys the pipeline reads. The values are written by an external
// configuration surface; the pipeline never writes them.
const (
	settingEnabled       = "webhook.enabled"
	settingGlobalURL     = "webhook.url"
	settingHeaders       = "webhook.headers"
	settingSourceConfigs = "source_configs"
)

// EndpointSet is the deduplicated URL list and shared header map assembled
// for one event source.
type EndpointSet struct {
	URLs    []string
	Headers map[string]string
}

// RuleStore reads rule and endpoint configuration from the settings table.
// Every read degrades to a safe default on error: a broken configuration
// source must never abort a dispatch.
type RuleStore struct {
	pool *pgxpool.Pool
}

// NewRuleStore creates a RuleStore on the given pool.
func NewRuleStore(pool *pgxpool.Pool) *RuleStore {
	return &RuleStore{pool: pool}
}

// Enabled reports whether webhook forwarding is switched on. A missing or
// unreadable setting means off.
func (s *RuleStore) Enabled(ctx context.Context) bool {
	raw := s.getSetting(ctx, settingEnabled)
	if raw == nil {
		return false
	}
	var enabled bool
	if err := json.Unmarshal(raw, &enabled); err != nil {
		log.Printf("webhook: malformed %s setting: %v", settingEnabled, err)
		return false
	}
	return enabled
}

// LoadRules returns the rules scoped to sourceID. A source with no entry,
// or an unreadable configuration, yields an empty list, which the matcher
// treats as forward-everything.
func (s *RuleStore) LoadRules(ctx context.Context, sourceID string) []Rule {
	for _, sc := range s.sourceConfigs(ctx) {
		if sc.SourceID == sourceID {
			return sc.FilterRules
		}
	}
	return nil
}

// LoadEndpoints merges the source-specific webhook URLs with the global
// fallback URL, deduplicated in first-seen order, plus the shared headers.
func (s *RuleStore) LoadEndpoints(ctx context.Context, sourceID string) EndpointSet {
	var urls []string
	seen := make(map[string]bool)
	add := func(url string) {
		if url != "" && !seen[url] {
			seen[url] = true
			urls = append(urls, url)
		}
	}

	for _, sc := range s.sourceConfigs(ctx) {
		if sc.SourceID == sourceID {
			for _, url := range sc.WebhookURLs {
				add(url)
			}
		}
	}

	var global string
	if raw := s.getSetting(ctx, settingGlobalURL); raw != nil {
		if err := json.Unmarshal(raw, &global); err != nil {
			log.Printf("webhook: malformed %s setting: %v", settingGlobalURL, err)
		}
	}
	add(global)

	return EndpointSet{URLs: urls, Headers: s.headers(ctx)}
}

func (s *RuleStore) headers(ctx context.Context) map[string]string {
	raw := s.getSetting(ctx, settingHeaders)
	if raw == nil {
		return nil
	}
	var headers map[string]string
	if err := json.Unmarshal(raw, &headers); err != nil {
		log.Printf("webhook: malformed %s setting: %v", settingHeaders, err)
		return nil
	}
	return headers
}

func (s *RuleStore) sourceConfigs(ctx context.Context) []SourceConfig {
	raw := s.getSetting(ctx, settingSourceConfigs)
	if raw == nil {
		return nil
	}
	configs, err := parseSourceConfigs(raw)
	if err != nil {
		log.Printf("webhook: %v", err)
		return nil
	}
	return configs
}

// getSetting reads one settings row. A missing key returns nil without
// logging; read errors are logged and also return nil.
func (s *RuleStore) getSetting(ctx context.Context, key string) []byte {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		"SELECT value FROM settings WHERE key = $1", key,
	).Scan(&raw)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			log.Printf("webhook: failed to read setting %s: %v", key, err)
		}
		return nil
	}
	return raw
}
