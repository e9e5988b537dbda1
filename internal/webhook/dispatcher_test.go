package webhook

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/lazyrhythm/hookfy/internal/webhook/delivery"
)

type fakeConfig struct {
	enabled   bool
	rules     []Rule
	endpoints EndpointSet
}

func (c *fakeConfig) Enabled(ctx context.Context) bool { return c.enabled }
func (c *fakeConfig) LoadRules(ctx context.Context, sourceID string) []Rule {
	return c.rules
}
func (c *fakeConfig) LoadEndpoints(ctx context.Context, sourceID string) EndpointSet {
	return c.endpoints
}

type fakeRecorder struct {
	mu       sync.Mutex
	statuses map[string]string
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{statuses: make(map[string]string)}
}

func (r *fakeRecorder) Record(ctx context.Context, eventID, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses[eventID] = status
}

func (r *fakeRecorder) status(eventID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.statuses[eventID]
}

type fakeSender struct {
	mu       sync.Mutex
	results  map[string]bool // url -> succeeded
	calls    []string
	payloads [][]byte
	headers  []map[string]string
}

func (s *fakeSender) Post(url string, payload []byte, headers map[string]string) delivery.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, url)
	s.payloads = append(s.payloads, payload)
	s.headers = append(s.headers, headers)
	return delivery.Outcome{URL: url, Succeeded: s.results[url]}
}

func (s *fakeSender) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *fakeNotifier) NotifyFailure(eventID, sourceName, title string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, eventID)
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

func newTestDispatcher(cfg *fakeConfig, sender *fakeSender) (*Dispatcher, *fakeRecorder, *fakeNotifier) {
	recorder := newFakeRecorder()
	notifier := &fakeNotifier{}
	return NewDispatcher(cfg, recorder, sender, notifier, 1, 8), recorder, notifier
}

func TestDispatch_Success(t *testing.T) {
	cfg := &fakeConfig{
		enabled:   true,
		endpoints: EndpointSet{URLs: []string{"https://a.example/hook"}},
	}
	sender := &fakeSender{results: map[string]bool{"https://a.example/hook": true}}
	d, recorder, notifier := newTestDispatcher(cfg, sender)

	d.Dispatch(context.Background(), "ev1", testEvent())

	if got := recorder.status("ev1"); got != StatusSuccess {
		t.Errorf("expected status %q, got %q", StatusSuccess, got)
	}
	if notifier.count() != 0 {
		t.Error("expected no failure notification on success")
	}
	if sender.callCount() != 1 {
		t.Errorf("expected 1 delivery, got %d", sender.callCount())
	}
}

func TestDispatch_Filtered(t *testing.T) {
	cfg := &fakeConfig{
		enabled: true,
		rules: []Rule{{
			ID:         "r1",
			Enabled:    true,
			Conditions: []Condition{{Field: FieldTitle, Operator: OpContains, Value: "lottery"}},
		}},
		endpoints: EndpointSet{URLs: []string{"https://a.example/hook"}},
	}
	sender := &fakeSender{results: map[string]bool{}}
	d, recorder, notifier := newTestDispatcher(cfg, sender)

	d.Dispatch(context.Background(), "ev1", testEvent())

	if got := recorder.status("ev1"); got != StatusFiltered {
		t.Errorf("expected status %q, got %q", StatusFiltered, got)
	}
	if sender.callCount() != 0 {
		t.Error("filtered events must not be delivered")
	}
	if notifier.count() != 0 {
		t.Error("filtered is not a failure, no notification expected")
	}
}

func TestDispatch_AllEndpointsFail(t *testing.T) {
	cfg := &fakeConfig{
		enabled: true,
		endpoints: EndpointSet{URLs: []string{
			"https://a.example/hook",
			"https://b.example/hook",
		}},
	}
	sender := &fakeSender{results: map[string]bool{}}
	d, recorder, notifier := newTestDispatcher(cfg, sender)

	d.Dispatch(context.Background(), "ev1", testEvent())

	if got := recorder.status("ev1"); got != StatusFailed {
		t.Errorf("expected status %q, got %q", StatusFailed, got)
	}
	if notifier.count() != 1 {
		t.Errorf("expected 1 failure notification, got %d", notifier.count())
	}
}

func TestDispatch_PartialSuccessIsSuccess(t *testing.T) {
	cfg := &fakeConfig{
		enabled: true,
		endpoints: EndpointSet{URLs: []string{
			"https://down.example/hook",
			"https://up.example/hook",
		}},
	}
	sender := &fakeSender{results: map[string]bool{"https://up.example/hook": true}}
	d, recorder, notifier := newTestDispatcher(cfg, sender)

	d.Dispatch(context.Background(), "ev1", testEvent())

	if got := recorder.status("ev1"); got != StatusSuccess {
		t.Errorf("expected status %q, got %q", StatusSuccess, got)
	}
	if sender.callCount() != 2 {
		t.Errorf("expected both endpoints attempted, got %d", sender.callCount())
	}
	if notifier.count() != 0 {
		t.Error("expected no notification when at least one endpoint succeeded")
	}
}

func TestDispatch_DisabledDoesNothing(t *testing.T) {
	cfg := &fakeConfig{
		enabled:   false,
		endpoints: EndpointSet{URLs: []string{"https://a.example/hook"}},
	}
	sender := &fakeSender{results: map[string]bool{}}
	d, recorder, notifier := newTestDispatcher(cfg, sender)

	d.Dispatch(context.Background(), "ev1", testEvent())

	if got := recorder.status("ev1"); got != "" {
		t.Errorf("expected no status write, got %q", got)
	}
	if sender.callCount() != 0 || notifier.count() != 0 {
		t.Error("disabled dispatcher must not deliver or notify")
	}
}

func TestDispatch_NoEndpointsIsNoOp(t *testing.T) {
	cfg := &fakeConfig{enabled: true}
	sender := &fakeSender{results: map[string]bool{}}
	d, recorder, notifier := newTestDispatcher(cfg, sender)

	d.Dispatch(context.Background(), "ev1", testEvent())

	if got := recorder.status("ev1"); got != "" {
		t.Errorf("matched event with no endpoints must keep its status, got %q", got)
	}
	if notifier.count() != 0 {
		t.Error("no endpoints is not a failure")
	}
}

func TestDispatch_HeadersPassedToSender(t *testing.T) {
	cfg := &fakeConfig{
		enabled: true,
		endpoints: EndpointSet{
			URLs:    []string{"https://a.example/hook"},
			Headers: map[string]string{"Authorization": "Bearer t"},
		},
	}
	sender := &fakeSender{results: map[string]bool{"https://a.example/hook": true}}
	d, _, _ := newTestDispatcher(cfg, sender)

	d.Dispatch(context.Background(), "ev1", testEvent())

	if len(sender.headers) != 1 || sender.headers[0]["Authorization"] != "Bearer t" {
		t.Errorf("expected configured headers on the delivery, got %v", sender.headers)
	}
}

type panickingConfig struct{}

func (panickingConfig) Enabled(ctx context.Context) bool { return true }
func (panickingConfig) LoadRules(ctx context.Context, sourceID string) []Rule {
	panic("boom")
}
func (panickingConfig) LoadEndpoints(ctx context.Context, sourceID string) EndpointSet {
	return EndpointSet{}
}

func TestDispatch_PanicForcesFailed(t *testing.T) {
	recorder := newFakeRecorder()
	notifier := &fakeNotifier{}
	d := NewDispatcher(panickingConfig{}, recorder, &fakeSender{}, notifier, 1, 8)

	d.Dispatch(context.Background(), "ev1", testEvent())

	if got := recorder.status("ev1"); got != StatusFailed {
		t.Errorf("expected panic to force status %q, got %q", StatusFailed, got)
	}
	if notifier.count() != 1 {
		t.Errorf("expected failure notification after panic, got %d", notifier.count())
	}
}

func TestSubmit_ProcessesThroughWorkerPool(t *testing.T) {
	cfg := &fakeConfig{
		enabled:   true,
		endpoints: EndpointSet{URLs: []string{"https://a.example/hook"}},
	}
	sender := &fakeSender{results: map[string]bool{"https://a.example/hook": true}}
	d, recorder, _ := newTestDispatcher(cfg, sender)

	d.Start()
	for i, id := range []string{"ev1", "ev2", "ev3"} {
		ev := testEvent()
		ev.Timestamp += int64(i)
		d.Submit(id, ev)
	}
	d.Stop()

	for _, id := range []string{"ev1", "ev2", "ev3"} {
		if got := recorder.status(id); got != StatusSuccess {
			t.Errorf("event %s: expected %q, got %q", id, StatusSuccess, got)
		}
	}
}

func TestSubmit_QueueFullMarksFailed(t *testing.T) {
	cfg := &fakeConfig{enabled: true}
	recorder := newFakeRecorder()
	notifier := &fakeNotifier{}
	d := NewDispatcher(cfg, recorder, &fakeSender{}, notifier, 1, 1)

	// Workers never started, so the queue holds exactly one job.
	d.Submit("queued", testEvent())
	d.Submit("dropped", testEvent())

	if got := recorder.status("dropped"); got != StatusFailed {
		t.Errorf("expected overflow event to be marked %q, got %q", StatusFailed, got)
	}
	if got := recorder.status("queued"); got != "" {
		t.Errorf("queued event must not be touched, got %q", got)
	}
	if notifier.count() != 1 {
		t.Errorf("expected 1 notification for the dropped event, got %d", notifier.count())
	}
}

func TestSubmit_AfterStopMarksFailed(t *testing.T) {
	cfg := &fakeConfig{
		enabled:   true,
		endpoints: EndpointSet{URLs: []string{"https://a.example/hook"}},
	}
	sender := &fakeSender{results: map[string]bool{"https://a.example/hook": true}}
	d, recorder, notifier := newTestDispatcher(cfg, sender)

	d.Start()
	d.Stop()

	d.Submit("late", testEvent())

	if got := recorder.status("late"); got != StatusFailed {
		t.Errorf("expected late submission to be marked %q, got %q", StatusFailed, got)
	}
	if notifier.count() != 1 {
		t.Errorf("expected 1 notification for the late submission, got %d", notifier.count())
	}
	if sender.callCount() != 0 {
		t.Error("late submission must not be delivered")
	}

	// Stop is idempotent.
	d.Stop()
}

func TestStop_WaitsForInFlightDispatch(t *testing.T) {
	cfg := &fakeConfig{
		enabled:   true,
		endpoints: EndpointSet{URLs: []string{"https://slow.example/hook"}},
	}
	sender := &fakeSender{results: map[string]bool{"https://slow.example/hook": true}}
	d, recorder, _ := newTestDispatcher(cfg, sender)

	d.Start()
	d.Submit("ev1", testEvent())

	done := make(chan struct{})
	go func() {
		d.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}

	if got := recorder.status("ev1"); got != StatusSuccess {
		t.Errorf("expected in-flight event to finish, got %q", got)
	}
}
