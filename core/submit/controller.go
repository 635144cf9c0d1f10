package submit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lmichel/tonectl/core/logger"
	"github.com/lmichel/tonectl/core/metrics"
	"github.com/lmichel/tonectl/core/schedule"
	"github.com/lmichel/tonectl/internal/eventbus"
)

// DefaultTimeout bounds how long a submission waits for the device command
// to settle before it is reported as failed.
const DefaultTimeout = 12 * time.Second

// ErrSubmitInFlight is returned when a submission is requested for an entity
// that already has one in the Submitting state.
var ErrSubmitInFlight = errors.New("submit: submission already in flight for entity")

// ErrTimeout marks a submission abandoned after the configured timeout. The
// device command itself is not cancelled; a late settlement has no further
// observable effect.
var ErrTimeout = errors.New("submit: timed out waiting for device")

// Applier pushes an encoded weekly schedule to the external system. It is the
// only integration point the controller knows about.
type Applier interface {
	// Apply replaces the program slot of the target entity with the encoded
	// 504-character schedule.
	Apply(ctx context.Context, target, encoded, program string) error
}

// StatusEvent is published on the event bus whenever a submission status
// changes.
type StatusEvent struct {
	EntityID string
	Status   Status
	Time     time.Time
}

// Controller drives the per-entity submission state machine:
// Idle -> Submitting -> Succeeded | Failed, with the terminal state held
// until the next attempt. One submission per entity may be in flight at a
// time; concurrent attempts for the same entity are rejected.
type Controller struct {
	applier  Applier
	statuses StatusStore
	timeout  time.Duration
	log      logger.Logger
	sink     metrics.MetricsSink
	bus      eventbus.EventBus

	mu       sync.Mutex
	inflight map[string]bool
}

// NewController creates a Controller. If timeout is zero or negative the
// default of twelve seconds is used. The bus and sink may be nil.
func NewController(applier Applier, statuses StatusStore, timeout time.Duration, log logger.Logger, sink metrics.MetricsSink, bus eventbus.EventBus) (*Controller, error) {
	if applier == nil || statuses == nil {
		return nil, fmt.Errorf("submit: nil parameter provided to NewController")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = nopLogger{}
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Controller{
		applier:  applier,
		statuses: statuses,
		timeout:  timeout,
		log:      log,
		sink:     sink,
		bus:      bus,
		inflight: make(map[string]bool),
	}, nil
}

// Reserve marks the entity as Submitting before the submission itself runs.
// It lets a caller reject a concurrent attempt synchronously and then run
// the submission asynchronously via SubmitReserved. A successful Reserve
// must be followed by SubmitReserved, which releases the reservation when
// the submission settles.
func (c *Controller) Reserve(entityID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight[entityID] {
		return ErrSubmitInFlight
	}
	c.inflight[entityID] = true
	return nil
}

// Submit encodes the grid and pushes it to the entity's program slot. The
// grid is serialized at call time, so edits made while the submission is in
// flight do not leak into it. Submit blocks until the device command settles
// or the timeout elapses and returns the terminal error, which is also
// captured in the entity's status. A timeout only abandons the wait; the
// device command keeps running and may still take effect.
func (c *Controller) Submit(ctx context.Context, entityID string, grid schedule.Grid, prog string) error {
	if err := c.Reserve(entityID); err != nil {
		return err
	}
	return c.SubmitReserved(ctx, entityID, grid, prog)
}

// SubmitReserved runs a submission whose entity was reserved with Reserve.
// It behaves like Submit and releases the reservation on settlement.
func (c *Controller) SubmitReserved(ctx context.Context, entityID string, grid schedule.Grid, prog string) error {
	encoded := schedule.Encode(grid)
	defer func() {
		c.mu.Lock()
		delete(c.inflight, entityID)
		c.mu.Unlock()
	}()

	subID := uuid.NewString()
	c.setStatus(entityID, Status{Loading: true, Message: "", OK: true})
	c.log.Infof("submitting schedule %s for %s (program %s)", subID, entityID, prog)

	start := time.Now()
	done := make(chan error, 1)
	go func() {
		// The apply call deliberately outlives the timeout: abandoning the
		// wait must not cancel a command the device may already be applying.
		done <- c.applier.Apply(context.WithoutCancel(ctx), entityID, encoded, prog)
	}()

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	var err error
	timedOut := false
	select {
	case err = <-done:
	case <-timer.C:
		err = ErrTimeout
		timedOut = true
	}
	latency := time.Since(start)

	if err != nil {
		c.setStatus(entityID, Status{Loading: false, Message: err.Error(), OK: false})
		c.log.Errorf("submission %s for %s failed: %v", subID, entityID, err)
	} else {
		c.setStatus(entityID, Status{Loading: false, Message: fmt.Sprintf("schedule applied to program %s", prog), OK: true})
		c.log.Infof("submission %s for %s acknowledged in %s", subID, entityID, latency)
	}

	if serr := c.sink.RecordSubmission(metrics.SubmissionResult{
		SubmissionID: subID,
		EntityID:     entityID,
		Program:      prog,
		OK:           err == nil,
		TimedOut:     timedOut,
		Latency:      latency,
		Time:         start,
	}); serr != nil {
		c.log.Errorf("metrics error: %v", serr)
	}
	return err
}

// InFlight reports whether the entity currently has a submission in the
// Submitting state.
func (c *Controller) InFlight(entityID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inflight[entityID]
}

func (c *Controller) setStatus(entityID string, st Status) {
	c.statuses.SetStatus(entityID, st)
	if c.bus != nil {
		c.bus.Publish(StatusEvent{EntityID: entityID, Status: st, Time: time.Now()})
	}
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any)         {}
func (nopLogger) Debugw(string, map[string]any) {}
func (nopLogger) Infof(string, ...any)          {}
func (nopLogger) Warnf(string, ...any)          {}
func (nopLogger) Errorf(string, ...any)         {}
