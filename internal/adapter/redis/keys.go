package redis

import (
	"fmt"
	"strings"

	"github.com/Temutjin2k/grid-dispatch/internal/domain/models"
)

const (
	cellKeyPrefix     = "cell:"
	locationKeyPrefix = "driver_location:"
	lockKeyPrefix     = "driver_lock:"
	snapshotKeyPrefix = "dispatch:ride:"
	acceptedPrefix    = "accepted:"

	onlineDriversKey = "drivers:online"
	retryOutboxKey   = "dispatch:retry_outbox"
)

func cellKey(c models.Cell) string {
	return fmt.Sprintf("%s%d:%d", cellKeyPrefix, c.X, c.Y)
}

func locationKey(driverID int64) string {
	return fmt.Sprintf("%s%d", locationKeyPrefix, driverID)
}

func lockKey(driverID int64) string {
	return fmt.Sprintf("%s%d", lockKeyPrefix, driverID)
}

func snapshotKey(rideID string) string {
	return snapshotKeyPrefix + rideID
}

// acceptedHold is the lock value of a driver who accepted rideID.
func acceptedHold(rideID string) string {
	return acceptedPrefix + rideID
}

// isRedisError reports whether err is a server reply starting with the given error code,
// e.g. NOGROUP or BUSYGROUP.
func isRedisError(err error, code string) bool {
	return err != nil && strings.HasPrefix(err.Error(), code)
}
