package webhook

import "time"

// wireTimeFormat is the ISO-8601 UTC millisecond format every consumer of
// the webhook payload expects. Do not change it.
const wireTimeFormat = "2006-01-02T15:04:05.000Z"

// Payload is the JSON body delivered to webhook endpoints.
type Payload struct {
	Type      string      `json:"type"`
	Timestamp string      `json:"timestamp"`
	Data      PayloadData `json:"data"`
}

// PayloadData carries the event's raw fields plus the derived timestamps and
// any extracted fields.
type PayloadData struct {
	SourceID        string            `json:"sourceId"`
	SourceName      string            `json:"sourceName"`
	Title           string            `json:"title"`
	Body            string            `json:"body"`
	SubText         string            `json:"subText"`
	ExpandedBody    string            `json:"expandedBody"`
	Timestamp       int64             `json:"timestamp"`
	TimestampISO    string            `json:"timestampISO"`
	ExtractedFields map[string]string `json:"extractedFields,omitempty"`
}

// BuildPayload assembles the delivery payload for one event. now is the
// dispatch time; extracted may be nil or empty, in which case the
// extractedFields object is omitted from the wire format.
func BuildPayload(event Event, extracted map[string]string, now time.Time) Payload {
	if len(extracted) == 0 {
		extracted = nil
	}
	return Payload{
		Type:      "notification",
		Timestamp: now.UTC().Format(wireTimeFormat),
		Data: PayloadData{
			SourceID:        event.SourceID,
			SourceName:      event.SourceName,
			Title:           event.Title,
			Body:            event.Body,
			SubText:         event.SubText,
			ExpandedBody:    event.ExpandedBody,
			Timestamp:       event.Timestamp,
			TimestampISO:    time.UnixMilli(event.Timestamp).UTC().Format(wireTimeFormat),
			ExtractedFields: extracted,
		},
	}
}
