package rabbit

import (
	"context"
	"time"
)

// retry calls fn up to n times, sleeping between failed attempts.
func retry(ctx context.Context, n int, sleep time.Duration, fn func() error) error {
	var err error
	for range n {
		if err = fn(); err == nil {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
	}
	return err
}
