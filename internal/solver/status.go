package solver

// Status classifies a solve outcome.
type Status int

const (
	StatusUnknown Status = iota
	StatusOptimal
	StatusSuboptimal
	StatusInfeasible
	StatusUnbounded
	StatusInfeasibleOrUnbounded
)

var statusNames = map[Status]string{
	StatusUnknown:               "unknown",
	StatusOptimal:               "optimal",
	StatusSuboptimal:            "suboptimal",
	StatusInfeasible:            "infeasible",
	StatusUnbounded:             "unbounded",
	StatusInfeasibleOrUnbounded: "infeasible or unbounded",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "invalid status"
}

// IsFatal reports whether the status carries no usable primal point.
func (s Status) IsFatal() bool {
	switch s {
	case StatusOptimal, StatusSuboptimal:
		return false
	}
	return true
}

// HasSolution reports whether a primal point accompanies the status.
func (s Status) HasSolution() bool {
	return !s.IsFatal()
}
