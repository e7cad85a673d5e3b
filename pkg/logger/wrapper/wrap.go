package wrap

import (
	"context"
	"errors"
)

// Error wraps an error with the current LogCtx from the context.
// Fields already captured deeper in the chain are kept when ctx does not set them.
func Error(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}

	c, _ := ctx.Value(LogCtxKey).(LogCtx)

	var inner *errorWithLogCtx
	if errors.As(err, &inner) {
		c = merge(c, inner.logCtx)
	}

	return &errorWithLogCtx{
		err:    err,
		logCtx: c,
	}
}

func merge(outer, inner LogCtx) LogCtx {
	if outer.Action == "" {
		outer.Action = inner.Action
	}
	if outer.RequestID == "" {
		outer.RequestID = inner.RequestID
	}
	if outer.RideID == "" {
		outer.RideID = inner.RideID
	}
	if outer.DriverID == "" {
		outer.DriverID = inner.DriverID
	}
	if outer.Consumer == "" {
		outer.Consumer = inner.Consumer
	}
	return outer
}
