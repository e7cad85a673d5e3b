//go:build integration

package postgres

import (
	"context"
	"fmt"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Temutjin2k/grid-dispatch/internal/domain/models"
	"github.com/Temutjin2k/grid-dispatch/internal/domain/types"
	"github.com/Temutjin2k/grid-dispatch/migrations"
	pg "github.com/Temutjin2k/grid-dispatch/pkg/postgres"
	"github.com/Temutjin2k/grid-dispatch/pkg/trm"
)

type dsn string

func (d dsn) GetDSN() string { return string(d) }

func startPostgres(ctx context.Context, t *testing.T) dsn {
	t.Helper()

	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("docker not installed")
	}

	req := tc.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "dispatch",
			"POSTGRES_PASSWORD": "dispatch",
			"POSTGRES_DB":       "dispatch",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(90 * time.Second),
	}
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	require.NoError(t, err, "container start")
	t.Cleanup(func() { _ = cont.Terminate(context.Background()) })

	host, err := cont.Host(ctx)
	require.NoError(t, err)
	port, err := cont.MappedPort(ctx, "5432")
	require.NoError(t, err)

	return dsn(fmt.Sprintf("postgres://dispatch:dispatch@%s:%s/dispatch?sslmode=disable", host, port.Port()))
}

func TestOutcomeRepo_Integration(t *testing.T) {
	ctx := context.Background()
	d := startPostgres(ctx, t)

	require.NoError(t, pg.Migrate(migrations.FS, d.GetDSN(), pg.Up))
	require.NoError(t, pg.Migrate(migrations.FS, d.GetDSN(), pg.Up), "no change is not an error")

	db, err := pg.New(ctx, d)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	repo := NewOutcomeRepo(db.Pool, trm.New(db.Pool))

	_, err = repo.Status(ctx, "ride-1")
	assert.ErrorIs(t, err, types.ErrRideNotFound)

	driverID := int64(7)
	at := time.Now().UTC().Truncate(time.Millisecond)
	event := models.RideEvent{Event: types.EventOrderCreated, RideID: "ride-1", StartX: 5, StartY: 9}

	require.NoError(t, repo.Record(ctx, models.DispatchOutcome{
		RideID: "ride-1", Type: types.OutcomeDriverProposed, DriverID: &driverID, Event: &event, At: at,
	}))
	require.NoError(t, repo.Record(ctx, models.DispatchOutcome{
		RideID: "ride-1", Type: types.OutcomeProposalExpired, DriverID: &driverID, Attempt: 1, At: at.Add(time.Second),
	}))
	// An older outcome arriving late does not overwrite the status.
	require.NoError(t, repo.Record(ctx, models.DispatchOutcome{
		RideID: "ride-1", Type: types.OutcomeNoDriverFound, At: at.Add(-time.Second),
	}))

	status, err := repo.Status(ctx, "ride-1")
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeProposalExpired, status.Status)
	assert.Equal(t, 1, status.Attempt)
	require.NotNil(t, status.DriverID)
	assert.Equal(t, driverID, *status.DriverID)

	var events int
	require.NoError(t, db.Pool.QueryRow(ctx, `SELECT count(*) FROM ride_dispatch_events WHERE ride_id = $1`, "ride-1").Scan(&events))
	assert.Equal(t, 3, events)

	require.NoError(t, pg.Migrate(migrations.FS, d.GetDSN(), pg.Down))
}
