package engine

import (
	"context"
	"time"
)

// Unit is one bounded piece of work. It must return promptly once ctx is
// done; a Runner abandons units that do not.
type Unit func(ctx context.Context) (any, error)

// PlanStep is one entry of an ordered plan.
type PlanStep struct {
	ID   string
	Name string
	Run  Unit
}

// Plan is the ordered list of steps derived from a workflow payload.
type Plan []PlanStep

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Simulated returns a Unit that sleeps for d and then yields output.
func Simulated(d time.Duration, output any) Unit {
	return func(ctx context.Context) (any, error) {
		if err := Sleep(ctx, d); err != nil {
			return nil, err
		}
		return output, nil
	}
}
