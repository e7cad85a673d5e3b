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

type SweeperConfig struct {
	IdleInterval time.Duration
	ErrorBackoff time.Duration
	BatchSize    int
	MaxRetries   int
}

// Sweeper reaps expired proposals. For each one whose claim is still held for the
// ride it releases the claim and publishes a RetrySearch event that excludes the
// driver who did not answer.
type Sweeper struct {
	proposals ProposalStore
	claims    ClaimStore
	events    Publisher
	recorder  OutcomeRecorder
	cfg       SweeperConfig
	l         logger.Logger

	now func() time.Time
}

func NewSweeper(proposals ProposalStore, claims ClaimStore, events Publisher, recorder OutcomeRecorder, cfg SweeperConfig, l logger.Logger) *Sweeper {
	return &Sweeper{
		proposals: proposals,
		claims:    claims,
		events:    events,
		recorder:  recorder,
		cfg:       cfg,
		l:         l,
		now:       time.Now,
	}
}

// Run sweeps until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ctx = wrap.WithAction(ctx, types.ActionSweepProposals)
	s.l.Info(ctx, "timeout sweeper started")

	for {
		n, err := s.SweepOnce(ctx)

		wait := time.Duration(0)
		switch {
		case err != nil:
			s.l.Error(wrap.ErrorCtx(ctx, err), "sweep iteration failed", err)
			wait = s.cfg.ErrorBackoff
		case n == 0:
			wait = s.cfg.IdleInterval
		}

		if (wait > 0 && !sleep(ctx, wait)) || ctx.Err() != nil {
			s.l.Info(ctx, "timeout sweeper stopped")
			return nil
		}
	}
}

// SweepOnce first publishes retries parked by earlier sweeps, then pops one batch
// of expired proposals and handles them. Proposals that hit a store error are put
// back for the next iteration. The count covers both.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	const op = "Sweeper.SweepOnce"

	var errs []error

	flushed, err := s.flushParked(ctx)
	if err != nil {
		errs = append(errs, err)
	}

	expired, err := s.proposals.PopExpired(ctx, s.now(), s.cfg.BatchSize)
	if err != nil {
		errs = append(errs, err)
		return flushed, wrap.Error(ctx, fmt.Errorf("%s: %w", op, errors.Join(errs...)))
	}

	for _, p := range expired {
		pctx := wrap.WithDriverID(wrap.WithRideID(ctx, p.RideID), p.DriverID)

		if err := s.expire(pctx, p); err != nil {
			metrics.ProposalsExpired.WithLabelValues("error").Inc()
			errs = append(errs, err)

			if rqErr := s.proposals.Requeue(pctx, p); rqErr != nil {
				s.l.Error(wrap.ErrorCtx(pctx, rqErr), "failed to requeue expired proposal", rqErr)
			}
		}
	}

	if len(errs) > 0 {
		return flushed + len(expired), wrap.Error(ctx, fmt.Errorf("%s: %w", op, errors.Join(errs...)))
	}
	return flushed + len(expired), nil
}

// flushParked publishes parked retries in order and parks the rest again at the
// first failure.
func (s *Sweeper) flushParked(ctx context.Context) (int, error) {
	const op = "Sweeper.flushParked"

	parked, popErr := s.proposals.PopParked(ctx, s.cfg.BatchSize)
	if popErr != nil && len(parked) == 0 {
		return 0, wrap.Error(ctx, fmt.Errorf("%s: %w", op, popErr))
	}

	for i, e := range parked {
		ectx := wrap.WithRideID(ctx, e.RideID)

		if err := s.events.Publish(ectx, e); err != nil {
			for _, rest := range parked[i:] {
				if parkErr := s.proposals.Park(ctx, rest); parkErr != nil {
					metrics.ProposalsExpired.WithLabelValues("lost").Inc()
					s.l.Error(wrap.ErrorCtx(wrap.WithRideID(ctx, rest.RideID), parkErr), "failed to park retry event, ride dropped from dispatch", parkErr)
				}
			}
			return i, wrap.Error(ectx, fmt.Errorf("%s: %w", op, errors.Join(err, popErr)))
		}

		metrics.ProposalsExpired.WithLabelValues("retried_late").Inc()
		s.l.Info(ectx, "parked retry event published", "attempt", e.Attempt)
	}

	if popErr != nil {
		return len(parked), wrap.Error(ctx, fmt.Errorf("%s: %w", op, popErr))
	}
	return len(parked), nil
}

func (s *Sweeper) expire(ctx context.Context, p models.Proposal) error {
	snapshot, found, err := s.proposals.Snapshot(ctx, p.RideID)
	if err != nil {
		return err
	}

	released, err := s.claims.ReleaseIfOwnedBy(ctx, p.DriverID, p.RideID)
	if err != nil {
		return err
	}
	if !released {
		// Accepted, or the lock already expired and belongs to someone else.
		metrics.ProposalsExpired.WithLabelValues("stale").Inc()
		s.l.Debug(ctx, "expired proposal no longer owns the driver")
		return nil
	}

	s.l.Warn(ctx, "proposal timed out, driver released")

	if !found {
		metrics.ProposalsExpired.WithLabelValues("no_snapshot").Inc()
		s.l.Warn(ctx, "ride snapshot missing, retry cannot be built")
		s.record(ctx, models.DispatchOutcome{RideID: p.RideID, Type: types.OutcomeProposalExpired, DriverID: &p.DriverID})
		return nil
	}

	retry := snapshot.Retry(p.DriverID)
	if retry.Attempt > s.cfg.MaxRetries {
		metrics.ProposalsExpired.WithLabelValues("retry_limit").Inc()
		s.l.Warn(ctx, "retry limit reached", "attempt", retry.Attempt, "max_retries", s.cfg.MaxRetries)

		s.record(ctx, models.DispatchOutcome{
			RideID:   p.RideID,
			Type:     types.OutcomeRetryLimitReached,
			DriverID: &p.DriverID,
			Attempt:  retry.Attempt,
			Event:    &retry,
		})
		if err := s.proposals.Forget(ctx, p.RideID); err != nil {
			s.l.Warn(ctx, "failed to drop ride snapshot", "error", err.Error())
		}
		return nil
	}

	result := "retried"
	if err := s.publish(ctx, retry); err != nil {
		// The claim is gone, so the proposal cannot be requeued; the retry waits in
		// the outbox for the next sweep instead.
		if parkErr := s.proposals.Park(ctx, retry); parkErr != nil {
			metrics.ProposalsExpired.WithLabelValues("lost").Inc()
			s.l.Error(wrap.ErrorCtx(ctx, parkErr), "failed to park retry event, ride dropped from dispatch", parkErr, "publish_error", err.Error())
			return nil
		}
		result = "parked"
		s.l.Warn(ctx, "retry event parked until the event log accepts it", "error", err.Error())
	}

	metrics.ProposalsExpired.WithLabelValues(result).Inc()
	s.record(ctx, models.DispatchOutcome{
		RideID:   p.RideID,
		Type:     types.OutcomeProposalExpired,
		DriverID: &p.DriverID,
		Attempt:  retry.Attempt,
		Event:    &retry,
	})
	return nil
}

func (s *Sweeper) publish(ctx context.Context, e models.RideEvent) error {
	var err error
	for attempt := range 3 {
		if err = s.events.Publish(ctx, e); err == nil {
			return nil
		}
		if !sleep(ctx, time.Duration(attempt+1)*100*time.Millisecond) {
			return ctx.Err()
		}
	}
	return err
}

func (s *Sweeper) record(ctx context.Context, o models.DispatchOutcome) {
	recordOutcome(ctx, s.recorder, s.l, o, s.now())
}
