package pbs

import (
	"fmt"
	"strconv"
	"strings"
)

// Directive is a single "#PBS <flag> <options>" header line.
type Directive struct {
	Flag    string
	Options string
}

func (d Directive) String() string {
	return fmt.Sprintf("#PBS %s %s", d.Flag, d.Options)
}

// ArrayRange describes a job array "-J start-end[:step]". End is inclusive.
type ArrayRange struct {
	Start int
	End   int
	Step  int
}

func (r ArrayRange) validate() error {
	if r.Start < 0 || r.End < r.Start || r.Step < 0 {
		return fmt.Errorf("%w: %s", ErrInvalidArrayRange, r)
	}
	return nil
}

func (r ArrayRange) String() string {
	if r.Step > 0 {
		return fmt.Sprintf("%d-%d:%d", r.Start, r.End, r.Step)
	}
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// Indices expands the range, including End when the step lands on it.
func (r ArrayRange) Indices() []int {
	step := r.Step
	if step <= 0 {
		step = 1
	}

	var indices []int
	for i := r.Start; i <= r.End; i += step {
		indices = append(indices, i)
	}
	return indices
}

// ParseArrayRange parses "start-end" or "start-end:step".
func ParseArrayRange(s string) (ArrayRange, error) {
	invalid := fmt.Errorf("%w: %q", ErrInvalidArrayRange, s)

	bounds, step, hasStep := strings.Cut(strings.TrimSpace(s), ":")
	start, end, ok := strings.Cut(bounds, "-")
	if !ok {
		return ArrayRange{}, invalid
	}

	var (
		r   ArrayRange
		err error
	)
	if r.Start, err = strconv.Atoi(start); err != nil {
		return ArrayRange{}, invalid
	}
	if r.End, err = strconv.Atoi(end); err != nil {
		return ArrayRange{}, invalid
	}
	if hasStep {
		if r.Step, err = strconv.Atoi(step); err != nil || r.Step < 1 {
			return ArrayRange{}, invalid
		}
	}

	if err := r.validate(); err != nil {
		return ArrayRange{}, err
	}
	return r, nil
}
