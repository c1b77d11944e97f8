package ingest

import (
	"time"

	"github.com/okian/matchflow/internal/domain/model"
)

// Courses validates records and returns courses with dense ids. Schedule
// times become fractional days after reference; a zero reference uses the
// earliest slot start.
func Courses(records []CourseRecord, reference time.Time) ([]model.Course, error) {
	const kind = "course"
	seen := make(map[string]struct{}, len(records))
	for i, rec := range records {
		if rec.Name == nil || *rec.Name == "" {
			return nil, missing(kind, i, "name")
		}
		if _, dup := seen[*rec.Name]; dup {
			return nil, invalid(kind, i, "name", "duplicate "+*rec.Name)
		}
		seen[*rec.Name] = struct{}{}
		if rec.MaxParticipants == nil {
			return nil, missing(kind, i, "maxParticipants")
		}
		if *rec.MaxParticipants < 0 {
			return nil, invalid(kind, i, "maxParticipants", "negative")
		}
		for _, slot := range rec.Schedule {
			if slot.Start == nil {
				return nil, missing(kind, i, "schedule.start")
			}
			if slot.DurationMinutes == nil {
				return nil, missing(kind, i, "schedule.durationMinutes")
			}
			if *slot.DurationMinutes < 0 {
				return nil, invalid(kind, i, "schedule.durationMinutes", "negative")
			}
		}
	}

	if reference.IsZero() {
		reference = earliest(records)
	}
	out := make([]model.Course, len(records))
	for i, rec := range records {
		c := model.Course{ID: i, Name: *rec.Name, MaxParticipants: *rec.MaxParticipants}
		for _, slot := range rec.Schedule {
			start := slot.Start.Sub(reference).Hours() / hoursPerDay
			c.Schedule = append(c.Schedule, model.Interval{
				Start: start,
				End:   start + *slot.DurationMinutes/minutesPerDay,
			})
		}
		out[i] = c
	}
	return out, nil
}

// earliest returns the first slot start over all records, zero if none.
func earliest(records []CourseRecord) time.Time {
	var first time.Time
	for _, rec := range records {
		for _, slot := range rec.Schedule {
			if slot.Start != nil && (first.IsZero() || slot.Start.Before(first)) {
				first = *slot.Start
			}
		}
	}
	return first
}

// Applicants validates records and resolves requested course names against
// courses by exact match. Unknown names and repeats are dropped, keeping the
// first occurrence.
func Applicants(records []ApplicantRecord, courses []model.Course) ([]model.Applicant, error) {
	const kind = "applicant"
	byName := make(map[string]int, len(courses))
	for _, c := range courses {
		byName[c.Name] = c.ID
	}

	out := make([]model.Applicant, len(records))
	seen := make(map[string]struct{}, len(records))
	for i, rec := range records {
		if rec.UUID == nil || *rec.UUID == "" {
			return nil, missing(kind, i, "uuid")
		}
		if _, dup := seen[*rec.UUID]; dup {
			return nil, invalid(kind, i, "uuid", "duplicate "+*rec.UUID)
		}
		seen[*rec.UUID] = struct{}{}
		if rec.RequestedCourses == nil {
			return nil, missing(kind, i, "requestedCourses")
		}

		a := model.Applicant{
			ID:       i,
			UUID:     *rec.UUID,
			Score:    rec.Score,
			Skipped:  rec.SkippedCourses,
			Denied:   rec.DeniedCourses,
			Accepted: rec.AcceptedCourses,
		}
		for _, name := range rec.RequestedCourses {
			id, ok := byName[name]
			if !ok || a.Requests(id) {
				continue
			}
			a.Requested = append(a.Requested, id)
		}
		out[i] = a
	}
	return out, nil
}
