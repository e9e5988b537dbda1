package webhook

import (
	"log"
	"regexp"
	"strings"
)

// MatchResult is the outcome of evaluating an event against a rule set:
// either unmatched, or matched with the fields extracted by the winning
// rule. Construct it with MatchedResult or UnmatchedResult.
type MatchResult struct {
	matched   bool
	extracted map[string]string
}

// MatchedResult returns a matched result carrying the extracted fields.
func MatchedResult(extracted map[string]string) MatchResult {
	return MatchResult{matched: true, extracted: extracted}
}

// UnmatchedResult returns the unmatched result.
func UnmatchedResult() MatchResult {
	return MatchResult{}
}

// Matched reports whether the event matched a rule (or the rule set was
// empty).
func (r MatchResult) Matched() bool { return r.matched }

// Extracted returns the fields extracted by the matching rule's extractors.
// It is never nil for a matched result.
func (r MatchResult) Extracted() map[string]string {
	if r.extracted == nil {
		return map[string]string{}
	}
	return r.extracted
}

// Evaluate checks the event against the rules in order and returns the
// result for the first enabled rule whose conditions all hold. An empty
// rule list matches everything: no configuration means forward everything.
func Evaluate(event Event, rules []Rule) MatchResult {
	if len(rules) == 0 {
		return MatchedResult(nil)
	}

	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}

		allMet := true
		for _, cond := range rule.Conditions {
			if !matchCondition(event, cond) {
				allMet = false
				break
			}
		}

		if allMet {
			extracted := extractFields(event, rule.Extractors)
			log.Printf("webhook: event matched rule %q, extracted %d field(s)", rule.Name, len(extracted))
			return MatchedResult(extracted)
		}
	}

	return UnmatchedResult()
}

// matchCondition evaluates a single condition. Unknown operators or fields
// and invalid regex patterns evaluate to false, never to an error.
func matchCondition(event Event, cond Condition) bool {
	fieldValue, ok := fieldValue(event, cond.Field)
	if !ok {
		log.Printf("webhook: unknown condition field %q", cond.Field)
		return false
	}

	switch cond.Operator {
	case OpContains:
		return strings.Contains(fieldValue, cond.Value)
	case OpNotContains:
		return !strings.Contains(fieldValue, cond.Value)
	case OpEquals:
		return fieldValue == cond.Value
	case OpNotEquals:
		return fieldValue != cond.Value
	case OpStartsWith:
		return strings.HasPrefix(fieldValue, cond.Value)
	case OpEndsWith:
		return strings.HasSuffix(fieldValue, cond.Value)
	case OpMatchesRegex:
		// Whole-string semantics, not a substring search.
		re, err := regexp.Compile(`\A(?:` + cond.Value + `)\z`)
		if err != nil {
			log.Printf("webhook: invalid regex pattern %q: %v", cond.Value, err)
			return false
		}
		return re.MatchString(fieldValue)
	default:
		log.Printf("webhook: unknown condition operator %q", cond.Operator)
		return false
	}
}

// fieldValue reads the named field off the event. The second return value is
// false for unknown field names.
func fieldValue(event Event, field string) (string, bool) {
	switch field {
	case FieldSourceID:
		return event.SourceID, true
	case FieldSourceName:
		return event.SourceName, true
	case FieldTitle:
		return event.Title, true
	case FieldBody:
		return event.Body, true
	case FieldSubText:
		return event.SubText, true
	case FieldExpandedBody:
		return event.ExpandedBody, true
	default:
		return "", false
	}
}

// extractFields runs every extractor independently: a bad pattern or an
// unmatched source field only omits that extractor's output, it never stops
// the remaining extractors.
func extractFields(event Event, extractors []Extractor) map[string]string {
	result := make(map[string]string)

	for _, ex := range extractors {
		src, ok := fieldValue(event, ex.SourceField)
		if !ok {
			log.Printf("webhook: extractor %q references unknown field %q", ex.Name, ex.SourceField)
			continue
		}

		re, err := regexp.Compile(ex.Pattern)
		if err != nil {
			log.Printf("webhook: extractor %q has invalid pattern %q: %v", ex.Name, ex.Pattern, err)
			continue
		}

		groups := re.FindStringSubmatch(src)
		if groups == nil {
			continue
		}

		group := ex.Group
		if group < 0 {
			group = 0
		}
		if group >= len(groups) {
			group = len(groups) - 1
		}
		result[ex.Name] = groups[group]
	}

	return result
}
