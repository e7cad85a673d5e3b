package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Temutjin2k/grid-dispatch/internal/domain/models"
	"github.com/Temutjin2k/grid-dispatch/internal/domain/types"
	wrap "github.com/Temutjin2k/grid-dispatch/pkg/logger/wrapper"
	"github.com/Temutjin2k/grid-dispatch/pkg/trm"
)

// OutcomeRepo stores dispatch outcomes: an append-only event history per ride
// plus the latest status.
type OutcomeRepo struct {
	db  *pgxpool.Pool
	trm trm.TxManager
}

func NewOutcomeRepo(db *pgxpool.Pool, trm trm.TxManager) *OutcomeRepo {
	return &OutcomeRepo{db: db, trm: trm}
}

// Record appends the outcome and updates the ride status in one transaction.
func (r *OutcomeRepo) Record(ctx context.Context, o models.DispatchOutcome) error {
	const op = "OutcomeRepo.Record"

	var eventData []byte
	if o.Event != nil {
		data, err := json.Marshal(o.Event)
		if err != nil {
			return wrap.Error(ctx, fmt.Errorf("%s: marshal event: %w", op, err))
		}
		eventData = data
	}

	err := r.trm.Do(ctx, func(ctx context.Context) error {
		q := TxorDB(ctx, r.db)

		insert := `INSERT INTO ride_dispatch_events (ride_id, event_type, driver_id, attempt, event_data, created_at)
				   VALUES ($1, $2, $3, $4, $5, $6);`
		if _, err := q.Exec(ctx, insert, o.RideID, o.Type.String(), o.DriverID, o.Attempt, eventData, o.At); err != nil {
			return fmt.Errorf("insert event: %w", err)
		}

		upsert := `INSERT INTO ride_dispatch_status (ride_id, status, driver_id, attempt, updated_at)
				   VALUES ($1, $2, $3, $4, $5)
				   ON CONFLICT (ride_id) DO UPDATE
				   SET status = EXCLUDED.status,
				       driver_id = EXCLUDED.driver_id,
				       attempt = EXCLUDED.attempt,
				       updated_at = EXCLUDED.updated_at
				   WHERE ride_dispatch_status.updated_at <= EXCLUDED.updated_at;`
		if _, err := q.Exec(ctx, upsert, o.RideID, o.Type.String(), o.DriverID, o.Attempt, o.At); err != nil {
			return fmt.Errorf("upsert status: %w", err)
		}
		return nil
	})
	if err != nil {
		return wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}
	return nil
}

// Status returns the latest dispatch status of a ride.
func (r *OutcomeRepo) Status(ctx context.Context, rideID string) (models.DispatchStatus, error) {
	const op = "OutcomeRepo.Status"

	q := TxorDB(ctx, r.db)

	var s models.DispatchStatus
	var status string
	err := q.QueryRow(ctx,
		`SELECT ride_id, status, driver_id, attempt, updated_at FROM ride_dispatch_status WHERE ride_id = $1;`,
		rideID,
	).Scan(&s.RideID, &status, &s.DriverID, &s.Attempt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.DispatchStatus{}, wrap.Error(ctx, fmt.Errorf("%s: %w", op, types.ErrRideNotFound))
	}
	if err != nil {
		return models.DispatchStatus{}, wrap.Error(ctx, fmt.Errorf("%s: %w", op, err))
	}

	s.Status = types.OutcomeType(status)
	return s, nil
}
