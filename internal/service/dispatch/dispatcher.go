package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Temutjin2k/grid-dispatch/internal/domain/models"
	"github.com/Temutjin2k/grid-dispatch/internal/domain/types"
	"github.com/Temutjin2k/grid-dispatch/pkg/logger"
	wrap "github.com/Temutjin2k/grid-dispatch/pkg/logger/wrapper"
	"github.com/Temutjin2k/grid-dispatch/pkg/metrics"
)

type Config struct {
	Grid            models.Grid
	MaxSearchRadius int
	DriverLockTTL   time.Duration
	ProposalTimeout time.Duration
	ErrorBackoff    time.Duration
}

// Dispatcher consumes ride events one at a time and turns each into at most one
// driver proposal. An event is acknowledged only after its proposal is registered,
// or when it can never be dispatched.
type Dispatcher struct {
	events    EventLog
	search    *Searcher
	claims    ClaimStore
	proposals ProposalStore
	sink      NotificationSink
	recorder  OutcomeRecorder
	cfg       Config
	l         logger.Logger

	now func() time.Time
}

func NewDispatcher(
	events EventLog,
	geo GeoReader,
	claims ClaimStore,
	proposals ProposalStore,
	sink NotificationSink,
	recorder OutcomeRecorder,
	cfg Config,
	l logger.Logger,
) *Dispatcher {
	return &Dispatcher{
		events:    events,
		search:    NewSearcher(geo, claims, cfg.Grid, cfg.MaxSearchRadius, cfg.DriverLockTTL, l),
		claims:    claims,
		proposals: proposals,
		sink:      sink,
		recorder:  recorder,
		cfg:       cfg,
		l:         l,
		now:       time.Now,
	}
}

// Run reads and handles events until ctx is cancelled. Store failures are logged
// and retried after ErrorBackoff; they never stop the loop.
func (d *Dispatcher) Run(ctx context.Context) error {
	ctx = wrap.WithAction(ctx, types.ActionDispatchRide)

	for {
		err := d.events.Ensure(ctx)
		if err == nil {
			break
		}
		d.l.Error(wrap.ErrorCtx(ctx, err), "failed to ensure event log", err)
		if !sleep(ctx, d.cfg.ErrorBackoff) {
			return nil
		}
	}

	d.l.Info(ctx, "dispatcher started")

	for {
		if ctx.Err() != nil {
			d.l.Info(ctx, "dispatcher stopped")
			return nil
		}

		delivery, err := d.events.Read(ctx)
		if err != nil {
			if errors.Is(err, types.ErrNoEvent) || ctx.Err() != nil {
				continue
			}
			d.l.Error(wrap.ErrorCtx(ctx, err), "failed to read ride event", err)
			sleep(ctx, d.cfg.ErrorBackoff)
			continue
		}

		if err := d.Handle(ctx, delivery); err != nil {
			metrics.RecordRideEvent(delivery.Event.Event.String(), "retry")
			d.l.Error(wrap.ErrorCtx(ctx, err), "ride event left unacknowledged for redelivery", err, "delivery", delivery.ID)
			sleep(ctx, d.cfg.ErrorBackoff)
			continue
		}

		if err := d.events.Ack(ctx, delivery); err != nil {
			d.l.Error(wrap.ErrorCtx(ctx, err), "failed to acknowledge ride event", err, "delivery", delivery.ID)
		}
	}
}

// Handle processes one delivery. A nil error means the delivery must be
// acknowledged; an error means a transient failure and the delivery must be
// redelivered. No claim is left behind when an error is returned.
func (d *Dispatcher) Handle(ctx context.Context, delivery models.Delivery) error {
	const op = "Dispatcher.Handle"

	event := delivery.Event
	eventType := event.Event.String()

	if delivery.Err != nil {
		metrics.RecordRideEvent(eventType, "dropped")
		d.l.Warn(ctx, "dropping undecodable ride event", "delivery", delivery.ID, "error", delivery.Err.Error())
		return nil
	}

	ctx = wrap.WithRideID(ctx, event.RideID)

	if !event.Event.Dispatchable() {
		metrics.RecordRideEvent(eventType, "skipped")
		d.l.Debug(ctx, "skipping ride event", "event", eventType)
		return nil
	}

	if err := event.Validate(d.cfg.Grid); err != nil {
		metrics.RecordRideEvent(eventType, "dropped")
		d.l.Warn(ctx, "dropping invalid ride event", "delivery", delivery.ID, "error", err.Error())
		return nil
	}

	driverID, radius, err := d.search.FindAndClaim(ctx, event.Start(), event.RideID, event.Excludes)
	if errors.Is(err, types.ErrNoDriverAvailable) {
		metrics.RecordSearch("exhausted", -1)
		metrics.RecordRideEvent(eventType, "no_driver")
		d.l.Warn(ctx, "no driver available", "radius", d.cfg.MaxSearchRadius, "attempt", event.Attempt, "excluded", len(event.Excluded))

		d.record(ctx, models.DispatchOutcome{
			RideID:  event.RideID,
			Type:    types.OutcomeNoDriverFound,
			Attempt: event.Attempt,
			Event:   &event,
		})
		if err := d.proposals.Forget(ctx, event.RideID); err != nil {
			d.l.Warn(ctx, "failed to drop ride snapshot", "error", err.Error())
		}
		return nil
	}
	if err != nil {
		metrics.RecordSearch("error", -1)
		return wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}
	metrics.RecordSearch("claimed", radius)

	ctx = wrap.WithDriverID(ctx, driverID)

	proposal := models.Proposal{
		RideID:   event.RideID,
		DriverID: driverID,
		Deadline: d.now().Add(d.cfg.ProposalTimeout),
	}
	if err := d.proposals.Register(ctx, proposal, event); err != nil {
		if _, relErr := d.claims.ReleaseIfOwnedBy(ctx, driverID, event.RideID); relErr != nil {
			d.l.Error(wrap.ErrorCtx(ctx, relErr), "failed to release claim after proposal failure", relErr)
		}
		return wrap.Error(ctx, fmt.Errorf("%s: register proposal: %w", op, err))
	}

	d.notify(ctx, driverID, event)

	d.record(ctx, models.DispatchOutcome{
		RideID:   event.RideID,
		Type:     types.OutcomeDriverProposed,
		DriverID: &driverID,
		Attempt:  event.Attempt,
		Event:    &event,
	})

	metrics.RecordRideEvent(eventType, "proposed")
	d.l.Info(ctx, "driver proposed", "radius", radius, "deadline", proposal.Deadline, "attempt", event.Attempt)
	return nil
}

// notify is at most once: a lost notification is recovered by the proposal timeout.
func (d *Dispatcher) notify(ctx context.Context, driverID int64, event models.RideEvent) {
	ctx = wrap.WithAction(ctx, types.ActionDeliverProposal)

	delivered, err := d.sink.Send(ctx, driverID, models.NewProposalNotification(driverID, event))
	switch {
	case err != nil:
		metrics.NotificationsTotal.WithLabelValues("error").Inc()
		d.l.Error(wrap.ErrorCtx(ctx, err), "failed to publish proposal notification", err)
	case !delivered:
		metrics.NotificationsTotal.WithLabelValues("undelivered").Inc()
		d.l.Warn(ctx, "proposal notification had no receivers")
	default:
		metrics.NotificationsTotal.WithLabelValues("delivered").Inc()
	}
}

func (d *Dispatcher) record(ctx context.Context, o models.DispatchOutcome) {
	recordOutcome(ctx, d.recorder, d.l, o, d.now())
}

// recordOutcome writes o and only logs a failure; dispatch never waits on the status store.
func recordOutcome(ctx context.Context, r OutcomeRecorder, l logger.Logger, o models.DispatchOutcome, at time.Time) {
	if o.At.IsZero() {
		o.At = at
	}

	ctx = wrap.WithAction(ctx, types.ActionRecordOutcome)
	if err := r.Record(ctx, o); err != nil {
		l.Error(wrap.ErrorCtx(ctx, err), "failed to record dispatch outcome", err, "outcome", o.Type.String())
	}
}

// sleep waits for t or until ctx is done. It reports whether ctx is still live.
func sleep(ctx context.Context, t time.Duration) bool {
	timer := time.NewTimer(t)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
