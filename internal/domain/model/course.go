package model

// Interval is a half-open time span [Start, End) in fractional days
// relative to a shared reference instant.
type Interval struct {
	Start float64
	End   float64
}

// Overlaps reports whether two half-open intervals intersect.
func (a Interval) Overlaps(b Interval) bool {
	return a.Start < b.End && b.Start < a.End
}

// Schedule is an unordered collection of meeting intervals.
type Schedule []Interval

// Conflicts reports whether any interval of s intersects any interval of o.
func (s Schedule) Conflicts(o Schedule) bool {
	for _, a := range s {
		for _, b := range o {
			if a.Overlaps(b) {
				return true
			}
		}
	}
	return false
}

// Course is an offering with limited seats.
type Course struct {
	ID              int
	Name            string
	MaxParticipants int
	Schedule        Schedule
}

// Applicant asks for seats in courses, in descending preference.
type Applicant struct {
	ID        int
	UUID      string
	Requested []int // course ids, most preferred first
	Score     float64

	// Informational counters carried through from the input.
	Skipped  int
	Denied   int
	Accepted int

	// Assigned is filled in by the assignment engine.
	Assigned []int
}

// Requests reports whether the applicant asked for course id.
func (a *Applicant) Requests(courseID int) bool {
	for _, id := range a.Requested {
		if id == courseID {
			return true
		}
	}
	return false
}

// IsAssigned reports whether course id is already assigned.
func (a *Applicant) IsAssigned(courseID int) bool {
	for _, id := range a.Assigned {
		if id == courseID {
			return true
		}
	}
	return false
}
