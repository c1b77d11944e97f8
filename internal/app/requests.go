package service

import (
	"fmt"
	"time"

	"github.com/okian/matchflow/internal/adapters/ingest"
	"github.com/okian/matchflow/internal/domain/matching"
)

// MatchingRequest is a submitted matching problem in wire form.
type MatchingRequest struct {
	RequestID  string                   `json:"request_id,omitempty"`
	Algorithm  string                   `json:"algorithm,omitempty"`
	Requesters []ingest.RequesterRecord `json:"requesters"`
	Providers  []ingest.ProviderRecord  `json:"providers"`
	// Balancing maps component names to target shares. Absent uses the
	// configured defaults; an empty object disables balancing.
	Balancing      map[string]float64 `json:"balancing,omitempty"`
	RequesterUUIDs []string           `json:"requester_uuids,omitempty"`
	ProviderUUIDs  []string           `json:"provider_uuids,omitempty"`
}

// CourseRequest is a submitted course-assignment problem in wire form.
type CourseRequest struct {
	RequestID  string                   `json:"request_id,omitempty"`
	Reference  *time.Time               `json:"reference,omitempty"`
	Courses    []ingest.CourseRecord    `json:"courses"`
	Applicants []ingest.ApplicantRecord `json:"applicants"`
}

// Defaults fill in what a request leaves out.
type Defaults struct {
	Algorithm matching.Algorithm
	Balancing map[string]float64
	Now       func() time.Time
}

// Decode validates the request and converts it to entities.
func (r *MatchingRequest) Decode(d Defaults) (MatchingInput, error) {
	algorithm := d.Algorithm
	if r.Algorithm != "" {
		a, err := matching.ParseAlgorithm(r.Algorithm)
		if err != nil {
			return MatchingInput{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		algorithm = a
	}

	dec := ingest.NewDecoder(
		ingest.WithClock(d.Now),
		ingest.WithRequesterFilter(r.RequesterUUIDs),
		ingest.WithProviderFilter(r.ProviderUUIDs),
	)
	requesters, err := dec.Requesters(r.Requesters)
	if err != nil {
		return MatchingInput{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	providers, err := dec.Providers(r.Providers)
	if err != nil {
		return MatchingInput{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	balancing := r.Balancing
	if balancing == nil {
		balancing = d.Balancing
	}
	targets, ignored, err := ingest.Balancing(balancing)
	if err != nil {
		return MatchingInput{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	return MatchingInput{
		Requesters: requesters,
		Providers:  providers,
		Targets:    targets,
		Ignored:    ignored,
		Algorithm:  algorithm,
	}, nil
}

// Decode validates the request and converts it to entities.
func (r *CourseRequest) Decode() (CourseInput, error) {
	var reference time.Time
	if r.Reference != nil {
		reference = *r.Reference
	}
	courses, err := ingest.Courses(r.Courses, reference)
	if err != nil {
		return CourseInput{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	applicants, err := ingest.Applicants(r.Applicants, courses)
	if err != nil {
		return CourseInput{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return CourseInput{Courses: courses, Applicants: applicants}, nil
}
