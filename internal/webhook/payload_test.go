package webhook

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestBuildPayload(t *testing.T) {
	event := testEvent()
	now := time.Date(2024, 3, 15, 10, 30, 0, 125_000_000, time.UTC)

	payload := BuildPayload(event, map[string]string{"code": "123456"}, now)

	if payload.Type != "notification" {
		t.Errorf("unexpected type %q", payload.Type)
	}
	if payload.Timestamp != "2024-03-15T10:30:00.125Z" {
		t.Errorf("unexpected timestamp %q", payload.Timestamp)
	}
	if payload.Data.SourceID != event.SourceID || payload.Data.Body != event.Body {
		t.Errorf("event fields not carried over: %+v", payload.Data)
	}
	if payload.Data.Timestamp != event.Timestamp {
		t.Errorf("unexpected epoch timestamp %d", payload.Data.Timestamp)
	}
	if payload.Data.TimestampISO != "2023-11-14T22:13:20.000Z" {
		t.Errorf("unexpected ISO timestamp %q", payload.Data.TimestampISO)
	}
	if payload.Data.ExtractedFields["code"] != "123456" {
		t.Errorf("unexpected extracted fields %v", payload.Data.ExtractedFields)
	}
}

func TestBuildPayload_TimestampIsUTC(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	now := time.Date(2024, 3, 15, 15, 30, 0, 0, loc)

	payload := BuildPayload(Event{}, nil, now)
	if payload.Timestamp != "2024-03-15T10:30:00.000Z" {
		t.Errorf("expected UTC conversion, got %q", payload.Timestamp)
	}
}

func TestBuildPayload_OmitsEmptyExtractedFields(t *testing.T) {
	for _, extracted := range []map[string]string{nil, {}} {
		payload := BuildPayload(testEvent(), extracted, time.Now())

		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Contains(string(raw), "extractedFields") {
			t.Errorf("expected extractedFields to be omitted, got %s", raw)
		}
	}
}

func TestBuildPayload_WireFieldNames(t *testing.T) {
	payload := BuildPayload(testEvent(), map[string]string{"code": "123456"}, time.Now())

	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, key := range []string{"type", "timestamp", "data"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("missing top-level key %q", key)
		}
	}

	data, ok := decoded["data"].(map[string]any)
	if !ok {
		t.Fatalf("data is not an object: %v", decoded["data"])
	}
	for _, key := range []string{
		"sourceId", "sourceName", "title", "body", "subText",
		"expandedBody", "timestamp", "timestampISO", "extractedFields",
	} {
		if _, ok := data[key]; !ok {
			t.Errorf("missing data key %q", key)
		}
	}
}
