package window

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidWindow is returned when size and overlap cannot produce an advancing plan.
var ErrInvalidWindow = errors.New("window: size must be >= 1 and greater than overlap")

// Window is an inclusive range of calendar months covered by one fetch.
type Window struct {
	Start Month
	End   Month
	// Terminal marks the final window of a plan; its fine series loses its last day.
	Terminal bool
}

func (w Window) String() string {
	return fmt.Sprintf("%s..%s", w.Start, w.End)
}

// PlanRequest holds the scheduling parameters shared by Plan and Audit.
type PlanRequest struct {
	Start   Month
	End     Month
	Size    int
	Overlap int
	// Today caps every window; only its month is used.
	Today time.Time
}

// Validate checks the size/overlap precondition.
func (r PlanRequest) Validate() error {
	if r.Size < 1 || r.Overlap < 0 || r.Size <= r.Overlap {
		return fmt.Errorf("%w (size=%d overlap=%d)", ErrInvalidWindow, r.Size, r.Overlap)
	}
	return nil
}

// Step is the distance in months between consecutive window starts.
func (r PlanRequest) Step() int {
	return r.Size - r.Overlap
}

// Plan generates the overlapping window sequence for the request.
func Plan(req PlanRequest) ([]Window, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ceiling := minMonth(req.End, MonthOf(req.Today.UTC()))
	plan := make([]Window, 0)

	for start := req.Start; !start.After(ceiling); start = start.AddMonths(req.Step()) {
		end := start.AddMonths(req.Size - 1)
		terminal := false
		if !end.Before(ceiling) {
			end = ceiling
			terminal = true
		}

		plan = append(plan, Window{Start: start, End: end, Terminal: terminal})
		if terminal {
			break
		}
	}
	return plan, nil
}
