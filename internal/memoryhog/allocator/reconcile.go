package allocator

import (
	"errors"

	"github.com/container-resource-predictor/memory-hog/internal/cgroup"
)

// Outcome classifies what Reconcile did.
type Outcome int

const (
	// OutcomeUnchanged means the limit matched the previous reading.
	OutcomeUnchanged Outcome = iota
	// OutcomeResized means the region was resized and refilled.
	OutcomeResized
	// OutcomeDegraded means the reading could not be sized against; the
	// region was left as it was.
	OutcomeDegraded
)

func (o Outcome) String() string {
	switch o {
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeResized:
		return "resized"
	case OutcomeDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// Reason explains an OutcomeDegraded.
type Reason string

const (
	ReasonNone           Reason = ""
	ReasonUnbounded      Reason = "unbounded"
	ReasonReadFailed     Reason = "read-failed"
	ReasonTargetTooSmall Reason = "target-too-small"
)

// Change describes the result of one Reconcile call.
type Change struct {
	Outcome  Outcome
	Reason   Reason
	FromSize int
	ToSize   int
}

// Reconcile brings the region in line with newLimit. previous is the last
// limit observed by the caller. A bounded newLimit that differs from previous
// resizes the region in place, keeping the common prefix, and refills all of
// it. An unbounded newLimit leaves the region untouched. A resize failure is
// returned as *AllocationError and the region is not rolled back.
func (a *Allocation) Reconcile(newLimit, previous cgroup.Limit) (Change, error) {
	size := a.Size()
	change := Change{Outcome: OutcomeUnchanged, FromSize: size, ToSize: size}

	if newLimit == previous {
		return change, nil
	}
	if newLimit.IsUnbounded() {
		change.Outcome = OutcomeDegraded
		change.Reason = ReasonUnbounded
		return change, nil
	}

	target, err := TargetSize(newLimit)
	if err != nil {
		if errors.Is(err, ErrZeroLimit) || errors.Is(err, ErrZeroTarget) {
			change.Outcome = OutcomeDegraded
			change.Reason = ReasonTargetTooSmall
			return change, nil
		}
		return change, err
	}
	n, err := toInt(target)
	if err != nil {
		return change, &AllocationError{Op: "resize", Size: target, Err: err}
	}

	if err := a.region.Resize(n); err != nil {
		return change, &AllocationError{Op: "resize", Size: target, Err: err}
	}
	a.limit = newLimit

	fill(a.region.Bytes())
	a.notify()

	change.Outcome = OutcomeResized
	change.ToSize = a.Size()
	return change, nil
}
