package submit

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lmichel/tonectl/core/metrics"
	"github.com/lmichel/tonectl/core/schedule"
	"github.com/lmichel/tonectl/internal/eventbus"
)

const entity = "text.aldes_1_planning_heating_prog_a"

type mapStatuses struct {
	mu sync.Mutex
	m  map[string]Status
}

func newMapStatuses() *mapStatuses { return &mapStatuses{m: make(map[string]Status)} }

func (s *mapStatuses) Status(id string) Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.m[id]
	if !ok {
		st = DefaultStatus()
	}
	return st
}

func (s *mapStatuses) SetStatus(id string, st Status) {
	s.mu.Lock()
	s.m[id] = st
	s.mu.Unlock()
}

type fakeApplier struct {
	mu      sync.Mutex
	target  string
	encoded string
	program string
	err     error
	delay   time.Duration
	release chan struct{}
}

func (a *fakeApplier) Apply(_ context.Context, target, encoded, program string) error {
	a.mu.Lock()
	a.target, a.encoded, a.program = target, encoded, program
	a.mu.Unlock()
	if a.delay > 0 {
		time.Sleep(a.delay)
	}
	if a.release != nil {
		<-a.release
	}
	return a.err
}

type captureSink struct {
	mu      sync.Mutex
	results []metrics.SubmissionResult
}

func (c *captureSink) RecordSubmission(res metrics.SubmissionResult) error {
	c.mu.Lock()
	c.results = append(c.results, res)
	c.mu.Unlock()
	return nil
}

func TestSubmitSuccess(t *testing.T) {
	applier := &fakeApplier{}
	statuses := newMapStatuses()
	sink := &captureSink{}
	ctrl, err := NewController(applier, statuses, time.Second, nil, sink, nil)
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}

	g := schedule.NewGrid()
	g.Set(0, 0, 'A')
	if err := ctrl.Submit(context.Background(), entity, g, "B"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if applier.target != entity || applier.program != "B" {
		t.Errorf("applier saw %q / %q", applier.target, applier.program)
	}
	if len(applier.encoded) != schedule.EncodedLen {
		t.Errorf("encoded length = %d", len(applier.encoded))
	}
	if applier.encoded[:3] != "00A" {
		t.Errorf("first command = %q, want 00A", applier.encoded[:3])
	}

	st := statuses.Status(entity)
	if st.Loading || !st.OK || st.Message == "" {
		t.Errorf("terminal status = %+v", st)
	}
	if ctrl.InFlight(entity) {
		t.Errorf("still marked in flight after settlement")
	}
	if len(sink.results) != 1 || !sink.results[0].OK || sink.results[0].TimedOut {
		t.Errorf("recorded = %+v", sink.results)
	}
	if sink.results[0].SubmissionID == "" {
		t.Errorf("missing submission id")
	}
}

func TestSubmitFailure(t *testing.T) {
	applier := &fakeApplier{err: errors.New("device unreachable")}
	statuses := newMapStatuses()
	ctrl, err := NewController(applier, statuses, time.Second, nil, nil, nil)
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}

	err = ctrl.Submit(context.Background(), entity, schedule.NewGrid(), "A")
	if err == nil || !strings.Contains(err.Error(), "device unreachable") {
		t.Fatalf("submit err = %v", err)
	}
	st := statuses.Status(entity)
	if st.Loading || st.OK || !strings.Contains(st.Message, "device unreachable") {
		t.Errorf("terminal status = %+v", st)
	}
}

func TestSubmitTimeout(t *testing.T) {
	applier := &fakeApplier{delay: 500 * time.Millisecond}
	statuses := newMapStatuses()
	sink := &captureSink{}
	ctrl, err := NewController(applier, statuses, 50*time.Millisecond, nil, sink, nil)
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}

	start := time.Now()
	err = ctrl.Submit(context.Background(), entity, schedule.NewGrid(), "A")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("submit err = %v, want timeout", err)
	}
	if elapsed := time.Since(start); elapsed >= 400*time.Millisecond {
		t.Errorf("submit waited %s, should abandon at the timeout", elapsed)
	}
	st := statuses.Status(entity)
	if st.Loading || st.OK {
		t.Errorf("terminal status = %+v", st)
	}
	if len(sink.results) != 1 || !sink.results[0].TimedOut {
		t.Errorf("recorded = %+v", sink.results)
	}
}

func TestSubmitRejectsConcurrentAttempt(t *testing.T) {
	applier := &fakeApplier{release: make(chan struct{})}
	statuses := newMapStatuses()
	ctrl, err := NewController(applier, statuses, time.Second, nil, nil, nil)
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}

	first := make(chan error, 1)
	go func() {
		first <- ctrl.Submit(context.Background(), entity, schedule.NewGrid(), "A")
	}()

	deadline := time.Now().Add(time.Second)
	for !ctrl.InFlight(entity) {
		if time.Now().After(deadline) {
			t.Fatalf("first submission never became in flight")
		}
		time.Sleep(time.Millisecond)
	}

	if err := ctrl.Submit(context.Background(), entity, schedule.NewGrid(), "A"); !errors.Is(err, ErrSubmitInFlight) {
		t.Errorf("second submit err = %v, want ErrSubmitInFlight", err)
	}
	// A different entity is not blocked by the first one.
	if ctrl.InFlight("text.aldes_1_planning_heating_prog_b") {
		t.Errorf("unrelated entity marked in flight")
	}

	close(applier.release)
	if err := <-first; err != nil {
		t.Errorf("first submit err = %v", err)
	}
	if statuses.Status(entity).Loading {
		t.Errorf("status still loading after settlement")
	}
}

func TestSubmitPublishesStatusEvents(t *testing.T) {
	applier := &fakeApplier{}
	statuses := newMapStatuses()
	bus := eventbus.New()
	defer bus.Close()
	events := bus.Subscribe()

	ctrl, err := NewController(applier, statuses, time.Second, nil, nil, bus)
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	if err := ctrl.Submit(context.Background(), entity, schedule.NewGrid(), "A"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	var got []StatusEvent
	for len(got) < 2 {
		select {
		case e := <-events:
			if ev, ok := e.(StatusEvent); ok {
				got = append(got, ev)
			}
		case <-time.After(time.Second):
			t.Fatalf("received %d status events, want 2", len(got))
		}
	}
	if !got[0].Status.Loading {
		t.Errorf("first event = %+v, want loading", got[0])
	}
	if got[1].Status.Loading || !got[1].Status.OK {
		t.Errorf("second event = %+v, want settled ok", got[1])
	}
}

func TestReserveRejectsBeforeSubmissionRuns(t *testing.T) {
	applier := &fakeApplier{}
	statuses := newMapStatuses()
	ctrl, err := NewController(applier, statuses, time.Second, nil, nil, nil)
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}

	if err := ctrl.Reserve(entity); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	// The reservation alone must already reject concurrent attempts, even
	// though no submission has started yet.
	if err := ctrl.Reserve(entity); !errors.Is(err, ErrSubmitInFlight) {
		t.Errorf("second reserve err = %v, want ErrSubmitInFlight", err)
	}
	if err := ctrl.Submit(context.Background(), entity, schedule.NewGrid(), "A"); !errors.Is(err, ErrSubmitInFlight) {
		t.Errorf("submit during reservation err = %v, want ErrSubmitInFlight", err)
	}
	if applier.encoded != "" {
		t.Errorf("rejected submit reached the applier")
	}
	if !ctrl.InFlight(entity) {
		t.Errorf("reservation not visible via InFlight")
	}

	// Running the reserved submission settles it and releases the entity.
	if err := ctrl.SubmitReserved(context.Background(), entity, schedule.NewGrid(), "A"); err != nil {
		t.Fatalf("submit reserved: %v", err)
	}
	if ctrl.InFlight(entity) {
		t.Errorf("still in flight after settlement")
	}
	if err := ctrl.Reserve(entity); err != nil {
		t.Errorf("reserve after settlement: %v", err)
	}
}

func TestNewControllerValidation(t *testing.T) {
	if _, err := NewController(nil, newMapStatuses(), 0, nil, nil, nil); err == nil {
		t.Errorf("nil applier accepted")
	}
	if _, err := NewController(&fakeApplier{}, nil, 0, nil, nil, nil); err == nil {
		t.Errorf("nil status store accepted")
	}
	ctrl, err := NewController(&fakeApplier{}, newMapStatuses(), -1, nil, nil, nil)
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	if ctrl.timeout != DefaultTimeout {
		t.Errorf("timeout = %s, want default", ctrl.timeout)
	}
}
