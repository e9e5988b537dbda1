package webhook

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
)

func newTestRouter(broker MessageBroker) *mux.Router {
	h := NewHandlers(nil, broker)
	r := mux.NewRouter()
	r.HandleFunc("/api/events", h.IngestEvent).Methods("POST")
	return r
}

func TestIngestEvent(t *testing.T) {
	broker := &capturingBroker{}
	router := newTestRouter(broker)

	body := `{"sourceId": "com.bank.app", "sourceName": "Bank", "title": "Your OTP", "body": "Code is 123456", "timestamp": 1700000000000}`
	req := httptest.NewRequest(http.MethodPost, "/api/events", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp["envelopeId"] == "" {
		t.Error("expected an envelope id in the response")
	}

	if len(broker.published) != 1 {
		t.Fatalf("expected 1 published envelope, got %d", len(broker.published))
	}
	if broker.topics[0] != TopicEventCaptured {
		t.Errorf("expected topic %q, got %q", TopicEventCaptured, broker.topics[0])
	}
	if got := broker.published[0].Event.Title; got != "Your OTP" {
		t.Errorf("unexpected event title %q", got)
	}
}

func TestIngestEvent_InvalidJSON(t *testing.T) {
	broker := &capturingBroker{}
	router := newTestRouter(broker)

	req := httptest.NewRequest(http.MethodPost, "/api/events", strings.NewReader(`{not json`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rec.Code)
	}
	if len(broker.published) != 0 {
		t.Error("malformed payload must not be published")
	}
}

func TestIngestEvent_MissingSourceID(t *testing.T) {
	broker := &capturingBroker{}
	router := newTestRouter(broker)

	req := httptest.NewRequest(http.MethodPost, "/api/events", strings.NewReader(`{"title": "hello"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rec.Code)
	}
	if len(broker.published) != 0 {
		t.Error("event without sourceId must not be published")
	}
}

type failingBroker struct{ capturingBroker }

func (b *failingBroker) Publish(topic string, env Envelope) error {
	return errors.New("broker down")
}

func TestIngestEvent_BrokerUnavailable(t *testing.T) {
	router := newTestRouter(&failingBroker{})

	req := httptest.NewRequest(http.MethodPost, "/api/events", strings.NewReader(`{"sourceId": "x"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rec.Code)
	}
}
