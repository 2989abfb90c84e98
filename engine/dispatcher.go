package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Dispatcher is the "auto" engine. It races its engines with staged starts:
// engines[i] starts delays[i] after the race begins, or as soon as
// engines[i-1] finishes without a 200. The first 200 wins and cancels the
// others. When nobody answers 200, the last response received is returned
// as a value, and only when no engine got a response at all is the last
// error returned.
type Dispatcher struct {
	engines []Engine
	delays  []time.Duration
	memory  *DomainMemory
}

// NewDispatcher creates a Dispatcher. Missing delays are treated as zero.
func NewDispatcher(engines []Engine, delays []time.Duration, memory *DomainMemory) *Dispatcher {
	d := make([]time.Duration, len(engines))
	copy(d, delays)
	return &Dispatcher{engines: engines, delays: d, memory: memory}
}

func (d *Dispatcher) Name() string { return "auto" }

// Fetch tries the engine remembered for the URL's host first, then falls
// back to the full race.
func (d *Dispatcher) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	host := hostOf(req.URL)

	if name := d.memory.Get(host); name != "" {
		if eng := d.engine(name); eng != nil {
			res, err := eng.Fetch(ctx, req)
			if won(res, err) {
				return res, nil
			}
			slog.Info("remembered engine failed, racing all engines", "host", host, "engine", name, "error", err)
			d.memory.Forget(host)
		}
	}

	return d.race(ctx, req, host)
}

func (d *Dispatcher) engine(name string) Engine {
	for _, e := range d.engines {
		if e.Name() == name {
			return e
		}
	}
	return nil
}

func won(res *FetchResult, err error) bool {
	return err == nil && res != nil && res.StatusCode == http.StatusOK
}

func (d *Dispatcher) race(ctx context.Context, req *FetchRequest, host string) (*FetchResult, error) {
	type outcome struct {
		result *FetchResult
		err    error
	}

	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// escalate[i] is closed when engine i-1 is done without winning.
	escalate := make([]chan struct{}, len(d.engines)+1)
	for i := range escalate {
		escalate[i] = make(chan struct{})
	}

	outcomes := make(chan outcome, len(d.engines))
	for i, eng := range d.engines {
		go func(i int, e Engine, delay time.Duration) {
			if i > 0 && delay > 0 {
				timer := time.NewTimer(delay)
				select {
				case <-raceCtx.Done():
					timer.Stop()
					close(escalate[i+1])
					outcomes <- outcome{err: raceCtx.Err()}
					return
				case <-escalate[i]:
					timer.Stop()
				case <-timer.C:
				}
			}
			if err := raceCtx.Err(); err != nil {
				close(escalate[i+1])
				outcomes <- outcome{err: err}
				return
			}

			slog.Debug("engine starting", "engine", e.Name(), "url", req.URL)
			res, err := e.Fetch(raceCtx, req)
			if err != nil {
				slog.Debug("engine failed", "engine", e.Name(), "url", req.URL, "error", err)
			}
			// A winner never wakes the next engine; the race is cancelled instead.
			if !won(res, err) {
				close(escalate[i+1])
			}
			outcomes <- outcome{result: res, err: err}
		}(i, eng, d.delays[i])
	}

	var (
		fallback *FetchResult
		lastErr  error
	)
	for range d.engines {
		o := <-outcomes
		if won(o.result, o.err) {
			cancel()
			slog.Info("engine won race", "engine", o.result.EngineName, "url", req.URL)
			d.memory.Set(host, o.result.EngineName)
			return o.result, nil
		}
		if o.err == nil && o.result != nil {
			fallback = o.result
		} else if o.err != nil && !errors.Is(o.err, context.Canceled) {
			lastErr = o.err
		}
	}

	if fallback != nil {
		return fallback, nil
	}
	if lastErr == nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		lastErr = fmt.Errorf("dispatcher: all engines failed for %s", req.URL)
	}
	return nil, lastErr
}

// Close closes every engine that holds resources.
func (d *Dispatcher) Close() error {
	var errs []error
	for _, e := range d.engines {
		if c, ok := e.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", e.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}
