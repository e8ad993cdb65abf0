package framework

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/seantiz/agentflow/internal/engine"
	"github.com/seantiz/agentflow/internal/errors"
	"github.com/seantiz/agentflow/internal/workflow"
)

// Simulator turns structural units of a payload into bounded simulated work.
//
// A unit object may carry a "simulate" block to pin its duration or make it
// fail:
//
//	{"id": "n1", "simulate": {"delayMs": 10, "error": "rate limited"}}
type Simulator struct {
	Scale float64
}

// maxDelay caps simulated durations.
const maxDelay = time.Duration(math.MaxInt64)

// Duration scales d by the simulator's time scale.
func (s Simulator) Duration(d time.Duration) time.Duration {
	if s.Scale <= 0 {
		return d
	}
	scaled := float64(d) * s.Scale
	if scaled >= float64(maxDelay) {
		return maxDelay
	}
	return time.Duration(scaled)
}

// millis converts a delayMs override to a duration, saturating at maxDelay.
func millis(ms int64) time.Duration {
	if ms > int64(maxDelay/time.Millisecond) {
		return maxDelay
	}
	return time.Duration(ms) * time.Millisecond
}

// Unit returns work that waits the scaled duration d and yields output,
// unless unit overrides the delay or injects a failure.
func (s Simulator) Unit(unit workflow.Document, d time.Duration, output any) engine.Unit {
	delay := s.Duration(d)
	var failure string
	if sim, ok := unit.Object("simulate"); ok {
		if ms, ok := sim.Int("delayMs"); ok && ms >= 0 {
			delay = millis(ms)
		}
		failure = sim.String("error")
	}

	return func(ctx context.Context) (any, error) {
		if err := engine.Sleep(ctx, delay); err != nil {
			return nil, err
		}
		if failure != "" {
			return nil, errors.New(failure)
		}
		return output, nil
	}
}

// Between returns a random duration in [lo, hi).
func Between(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + rand.N(hi-lo)
}
