package vnats

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// fakeJet scripts PublishMsg outcomes per call: errs[i] is returned for
// call i, nil means success.
type fakeJet struct {
	mu    sync.Mutex
	calls []*nats.Msg
	errs  []error
	ack   jetstream.PubAck
}

func (f *fakeJet) PublishMsg(_ context.Context, msg *nats.Msg, _ ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	i := len(f.calls)
	f.calls = append(f.calls, msg)
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	a := f.ack
	return &a, nil
}

func (f *fakeJet) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (r *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.waits = append(r.waits, d)
	return nil
}

func testPublisher(t *testing.T, js jetPublisher, opts ...PublisherOption) (*Publisher, *sleepRecorder) {
	t.Helper()

	rec := &sleepRecorder{}
	p := NewPublisher(NewClient(DefaultConfig()), opts...)
	p.js = js
	p.sleep = rec.sleep
	return p, rec
}

func testEvent() Event {
	return New(&CourseDeleted{CourseID: "c-1"}, Metadata{SourceService: "test-svc"})
}

func TestPublishFirstAttempt(t *testing.T) {
	js := &fakeJet{ack: jetstream.PubAck{Stream: "ACADEMIC_EVENTS", Sequence: 7}}
	p, rec := testPublisher(t, js)

	ack, err := p.Publish(context.Background(), testEvent())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ack.Sequence != 7 {
		t.Errorf("sequence = %d, want 7", ack.Sequence)
	}
	if got := js.callCount(); got != 1 {
		t.Errorf("publish calls = %d, want 1", got)
	}
	if len(rec.waits) != 0 {
		t.Errorf("unexpected backoff sleeps: %v", rec.waits)
	}
	if got := js.calls[0].Subject; got != TypeCourseDeleted {
		t.Errorf("subject = %q, want %q", got, TypeCourseDeleted)
	}
}

func TestPublishRetriesThenSucceeds(t *testing.T) {
	js := &fakeJet{errs: []error{nats.ErrTimeout, nats.ErrTimeout, nil}}
	p, rec := testPublisher(t, js, WithMaxRetries(3), WithBackoffBase(2.0))

	ack, err := p.Publish(context.Background(), testEvent())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ack == nil {
		t.Fatal("nil ack on success")
	}
	if got := js.callCount(); got != 3 {
		t.Errorf("publish calls = %d, want 3", got)
	}

	want := []time.Duration{1 * time.Second, 2 * time.Second}
	if len(rec.waits) != len(want) {
		t.Fatalf("backoff sleeps = %v, want %v", rec.waits, want)
	}
	for i := range want {
		if rec.waits[i] != want[i] {
			t.Errorf("sleep[%d] = %v, want %v", i, rec.waits[i], want[i])
		}
	}
}

func TestPublishExhaustsBudget(t *testing.T) {
	js := &fakeJet{errs: []error{nats.ErrTimeout, nats.ErrTimeout, nats.ErrTimeout}}
	p, rec := testPublisher(t, js, WithMaxRetries(3))

	_, err := p.Publish(context.Background(), testEvent())

	var pe *PublishError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want *PublishError", err)
	}
	if pe.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", pe.Attempts)
	}
	if !errors.Is(err, nats.ErrTimeout) {
		t.Errorf("cause not preserved: %v", err)
	}
	if got := js.callCount(); got != 3 {
		t.Errorf("publish calls = %d, want 3", got)
	}
	// No sleep after the final attempt.
	if len(rec.waits) != 2 {
		t.Errorf("backoff sleeps = %v, want 2 entries", rec.waits)
	}
}

func TestPublishPermanentErrorFailsFast(t *testing.T) {
	js := &fakeJet{errs: []error{nats.ErrAuthorization}}
	p, rec := testPublisher(t, js, WithMaxRetries(5))

	_, err := p.Publish(context.Background(), testEvent())

	var pe *PublishError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want *PublishError", err)
	}
	if pe.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", pe.Attempts)
	}
	if got := js.callCount(); got != 1 {
		t.Errorf("publish calls = %d, want 1", got)
	}
	if len(rec.waits) != 0 {
		t.Errorf("unexpected backoff sleeps: %v", rec.waits)
	}
}

func TestPublishOversizedPayload(t *testing.T) {
	js := &fakeJet{}
	p, _ := testPublisher(t, js)
	p.client.cfg.MaxPayloadBytes = 1024

	ev := New(&CourseCreated{
		CourseID:    "c-1",
		Title:       "Big",
		Description: strings.Repeat("x", 2048),
	}, Metadata{SourceService: "test-svc"})

	_, err := p.Publish(context.Background(), ev)

	var pte *PayloadTooLargeError
	if !errors.As(err, &pte) {
		t.Fatalf("error = %v, want *PayloadTooLargeError", err)
	}
	if pte.Limit != 1024 {
		t.Errorf("limit = %d, want 1024", pte.Limit)
	}
	if pte.Size <= 1024 {
		t.Errorf("size = %d, want > 1024", pte.Size)
	}
	if got := js.callCount(); got != 0 {
		t.Errorf("publish calls = %d, want 0", got)
	}
}

func TestPublishIdentityHeadersWin(t *testing.T) {
	js := &fakeJet{}
	p, _ := testPublisher(t, js)

	ev := testEvent()
	ev.Metadata.CorrelationID = "corr-1"

	_, err := p.Publish(context.Background(), ev, WithHeaders(map[string]string{
		HeaderEventID: "spoofed",
		"x-custom":    "kept",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	h := js.calls[0].Header
	if got := h.Get(HeaderEventID); got != ev.ID.String() {
		t.Errorf("event-id header = %q, want %q", got, ev.ID)
	}
	if got := h.Get("x-custom"); got != "kept" {
		t.Errorf("x-custom header = %q, want kept", got)
	}
	if got := h.Get(HeaderCorrelationID); got != "corr-1" {
		t.Errorf("correlation-id header = %q, want corr-1", got)
	}
	if got := h.Get(HeaderSourceService); got != "test-svc" {
		t.Errorf("source-service header = %q, want test-svc", got)
	}
}

func TestPublishBatchEmpty(t *testing.T) {
	js := &fakeJet{}
	p, _ := testPublisher(t, js)

	acks, err := p.PublishBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if acks == nil || len(acks) != 0 {
		t.Errorf("acks = %v, want empty non-nil slice", acks)
	}
	if got := js.callCount(); got != 0 {
		t.Errorf("publish calls = %d, want 0", got)
	}
}

func TestPublishBatchParallel(t *testing.T) {
	js := &fakeJet{ack: jetstream.PubAck{Stream: "ACADEMIC_EVENTS"}}
	p, _ := testPublisher(t, js)

	for _, n := range []int{1, 5} {
		events := make([]Event, n)
		for i := range events {
			events[i] = testEvent()
		}

		acks, err := p.PublishBatch(context.Background(), events)
		if err != nil {
			t.Fatalf("n=%d: unexpected error: %v", n, err)
		}
		if len(acks) != n {
			t.Fatalf("n=%d: acks = %d", n, len(acks))
		}
		for i, a := range acks {
			if a == nil {
				t.Errorf("n=%d: acks[%d] is nil", n, i)
			}
		}
	}

	if got := js.callCount(); got != 6 {
		t.Errorf("publish calls = %d, want 6", got)
	}
}

func TestPublishBatchSequentialStopsAtFailure(t *testing.T) {
	js := &fakeJet{errs: []error{nil, nats.ErrTimeout}}
	p, _ := testPublisher(t, js, WithMaxRetries(1))

	events := []Event{testEvent(), testEvent(), testEvent()}

	_, err := p.PublishBatch(context.Background(), events, Sequential())
	if err == nil {
		t.Fatal("expected error")
	}
	// Third event never attempted.
	if got := js.callCount(); got != 2 {
		t.Errorf("publish calls = %d, want 2", got)
	}
}

func TestPublishBatchSequentialOrder(t *testing.T) {
	js := &fakeJet{}
	p, _ := testPublisher(t, js)

	events := []Event{
		New(&CourseCreated{CourseID: "a"}, Metadata{SourceService: "test-svc"}),
		New(&CourseUpdated{CourseID: "a", Changes: map[string]any{"title": "x"}}, Metadata{SourceService: "test-svc"}),
		New(&CourseDeleted{CourseID: "a"}, Metadata{SourceService: "test-svc"}),
	}

	acks, err := p.PublishBatch(context.Background(), events, Sequential())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(acks) != 3 {
		t.Fatalf("acks = %d, want 3", len(acks))
	}

	want := []string{TypeCourseCreated, TypeCourseUpdated, TypeCourseDeleted}
	for i, w := range want {
		if got := js.calls[i].Subject; got != w {
			t.Errorf("call %d subject = %q, want %q", i, got, w)
		}
	}
}

func TestPublishWithReply(t *testing.T) {
	js := &fakeJet{}
	p, _ := testPublisher(t, js)

	inbox := NewInbox()
	if !strings.HasPrefix(inbox, "_INBOX.") {
		t.Fatalf("inbox = %q, want _INBOX. prefix", inbox)
	}

	_, err := p.PublishWithReply(context.Background(), testEvent(), inbox)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := js.calls[0].Header.Get(HeaderReplyTo); got != inbox {
		t.Errorf("reply-to header = %q, want %q", got, inbox)
	}
}

func TestIsPermanentPublishErr(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nats.ErrTimeout, false},
		{nats.ErrConnectionClosed, false},
		{nats.ErrMaxPayload, true},
		{nats.ErrAuthorization, true},
		{nats.ErrBadSubject, true},
		{&jetstream.APIError{Code: 400}, true},
		{&jetstream.APIError{Code: 503}, false},
		{errors.New("anything"), false},
	}

	for _, c := range cases {
		if got := isPermanentPublishErr(c.err); got != c.want {
			t.Errorf("isPermanentPublishErr(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}
