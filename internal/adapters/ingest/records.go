// Package ingest decodes JSON input records into domain entities.
//
// Required fields are pointers (or nil-able slices) so that a missing field
// can be told apart from its zero value.
package ingest

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// UUIDRef references another participant by uuid.
type UUIDRef struct {
	UUID string `json:"uuid"`
}

// RequestedSubjectRecord is a subject asked for by a requester.
type RequestedSubjectRecord struct {
	Name      *string `json:"name"`
	Mandatory bool    `json:"mandatory,omitempty"`
}

// GradeRecord bounds an offered subject to a grade range, both inclusive.
type GradeRecord struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// OfferedSubjectRecord is a subject offered by a provider.
type OfferedSubjectRecord struct {
	Name  *string      `json:"name"`
	Grade *GradeRecord `json:"grade,omitempty"`
}

// RequesterRecord is the wire form of a requester (pupil).
type RequesterRecord struct {
	ID                      *int64                   `json:"id"`
	UUID                    *string                  `json:"uuid"`
	State                   string                   `json:"state,omitempty"`
	Grade                   *int                     `json:"grade"`
	MatchingPriority        float64                  `json:"matchingPriority,omitempty"`
	CreatedAt               *time.Time               `json:"createdAt,omitempty"`
	HasDissolvedMatchesWith []UUIDRef                `json:"hasDissolvedMatchesWith,omitempty"`
	Subjects                []RequestedSubjectRecord `json:"subjects"`
}

// ProviderRecord is the wire form of a provider (tutor).
type ProviderRecord struct {
	ID                        *int64                 `json:"id"`
	UUID                      *string                `json:"uuid"`
	State                     string                 `json:"state,omitempty"`
	CreatedAt                 *time.Time             `json:"createdAt,omitempty"`
	NumberOfOpenMatchRequests *int                   `json:"numberOfOpenMatchRequests"`
	HasDissolvedMatchesWith   []UUIDRef              `json:"hasDissolvedMatchesWith,omitempty"`
	Subjects                  []OfferedSubjectRecord `json:"subjects"`
}

// SlotRecord is one meeting of a course.
type SlotRecord struct {
	Start           *time.Time `json:"start"`
	DurationMinutes *float64   `json:"durationMinutes"`
}

// CourseRecord is the wire form of a course.
type CourseRecord struct {
	Name            *string      `json:"name"`
	MaxParticipants *int         `json:"maxParticipants"`
	Schedule        []SlotRecord `json:"schedule,omitempty"`
}

// ApplicantRecord is the wire form of a course applicant. Requested courses
// are course names, most preferred first.
type ApplicantRecord struct {
	UUID             *string  `json:"uuid"`
	Score            float64  `json:"score,omitempty"`
	SkippedCourses   int      `json:"skippedCourses,omitempty"`
	DeniedCourses    int      `json:"deniedCourses,omitempty"`
	AcceptedCourses  int      `json:"acceptedCourses,omitempty"`
	RequestedCourses []string `json:"requestedCourses"`
}

// Decode reads a JSON array of records.
func Decode[T any](r io.Reader) ([]T, error) {
	var out []T
	dec := json.NewDecoder(r)
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedInput, err)
	}
	return out, nil
}

// DecodeBalancing reads a JSON object of component name to target share.
func DecodeBalancing(r io.Reader) (map[string]float64, error) {
	var out map[string]float64
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: balancing: %w", ErrMalformedInput, err)
	}
	return out, nil
}

func missing(kind string, index int, field string) error {
	return fmt.Errorf("%w: %s %d: missing %s", ErrMalformedInput, kind, index, field)
}

func invalid(kind string, index int, field, reason string) error {
	return fmt.Errorf("%w: %s %d: invalid %s: %s", ErrMalformedInput, kind, index, field, reason)
}
