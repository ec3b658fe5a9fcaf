package hostfunc

import (
	"context"
	"errors"
	"time"
)

// MaxSleep caps a single time.sleep call.
const MaxSleep = time.Minute

// TimeLibrary provides wall-clock access and a sleep that returns as soon as
// the run is cancelled. Long-running loops should sleep through it so that a
// stop takes effect between iterations.
func TimeLibrary() Library {
	return Library{
		Name: LibTime,
		Funcs: map[string]Func{
			"now":   timeNow,
			"sleep": timeSleep,
		},
	}
}

// timeNow returns seconds since the Unix epoch.
func timeNow(ctx context.Context, args map[string]any) (any, error) {
	return float64(time.Now().UnixNano()) / 1e9, nil
}

// timeSleep pauses for ms milliseconds.
func timeSleep(ctx context.Context, args map[string]any) (any, error) {
	ms, ok := numberArg(args, "ms", 0)
	if !ok {
		return nil, errors.New("ms required")
	}
	if ms < 0 {
		return nil, errors.New("ms must not be negative")
	}
	d := min(time.Duration(ms*float64(time.Millisecond)), MaxSleep)

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
