package webhook

import (
	"encoding/json"
	"fmt"
	"log"
)

// Field names a Condition or Extractor can reference on an Event.
const (
	FieldSourceID     = "sourceId"
	FieldSourceName   = "sourceName"
	FieldTitle        = "title"
	FieldBody         = "body"
	FieldSubText      = "subText"
	FieldExpandedBody = "expandedBody"
)

// Condition operators. All string comparisons are case-sensitive;
// OpMatchesRegex tests the whole field value against the pattern.
const (
	OpContains     = "contains"
	OpNotContains  = "notContains"
	OpEquals       = "equals"
	OpNotEquals    = "notEquals"
	OpStartsWith   = "startsWith"
	OpEndsWith     = "endsWith"
	OpMatchesRegex = "matches"
)

// Condition compares one event field against a value.
type Condition struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

// Extractor derives one named string from one event field via a regex
// capture group. Group 0 is the whole match.
type Extractor struct {
	Name        string `json:"name"`
	SourceField string `json:"sourceField"`
	Pattern     string `json:"pattern"`
	Group       int    `json:"group"`
}

// Rule is one forwarding rule: all conditions must hold (logical AND) for
// the rule to match, and the extractors of the first matching rule produce
// the extracted fields.
type Rule struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Enabled    bool        `json:"enabled"`
	Conditions []Condition `json:"conditions"`
	Extractors []Extractor `json:"extractors"`
}

// ruleJSON mirrors Rule for decoding with config defaults: enabled defaults
// to true and a missing extractor group defaults to capture group 1.
type ruleJSON struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Enabled    *bool           `json:"enabled"`
	Conditions []Condition     `json:"conditions"`
	Extractors []extractorJSON `json:"extractors"`
}

type extractorJSON struct {
	Name        string `json:"name"`
	SourceField string `json:"sourceField"`
	Pattern     string `json:"pattern"`
	Group       *int   `json:"group"`
}

// UnmarshalJSON applies the configuration defaults.
func (r *Rule) UnmarshalJSON(data []byte) error {
	var rj ruleJSON
	if err := json.Unmarshal(data, &rj); err != nil {
		return err
	}

	r.ID = rj.ID
	r.Name = rj.Name
	r.Enabled = rj.Enabled == nil || *rj.Enabled
	r.Conditions = rj.Conditions
	r.Extractors = make([]Extractor, 0, len(rj.Extractors))
	for _, ej := range rj.Extractors {
		group := 1
		if ej.Group != nil {
			group = *ej.Group
		}
		r.Extractors = append(r.Extractors, Extractor{
			Name:        ej.Name,
			SourceField: ej.SourceField,
			Pattern:     ej.Pattern,
			Group:       group,
		})
	}
	return nil
}

// SourceConfig is the per-source entry of the source_configs setting: the
// rules and endpoint URLs scoped to one event source.
type SourceConfig struct {
	SourceID    string   `json:"sourceId"`
	WebhookURLs []string `json:"webhookUrls"`
	FilterRules []Rule   `json:"filterRules"`
}

// parseSourceConfigs decodes the source_configs setting value. Entries that
// fail to decode are skipped individually so one malformed entry cannot take
// down the whole configuration.
func parseSourceConfigs(raw []byte) ([]SourceConfig, error) {
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("source_configs is not a JSON array: %w", err)
	}

	configs := make([]SourceConfig, 0, len(entries))
	for i, entry := range entries {
		var sc SourceConfig
		if err := json.Unmarshal(entry, &sc); err != nil {
			log.Printf("webhook: skipping malformed source config at index %d: %v", i, err)
			continue
		}
		configs = append(configs, sc)
	}
	return configs, nil
}
