package ingest

import (
	"fmt"
	"strings"
	"time"

	"github.com/okian/matchflow/internal/domain/cost"
	"github.com/okian/matchflow/internal/domain/model"
)

const (
	defaultPreference = 1.0
	hoursPerDay       = 24
	minutesPerDay     = 24 * 60
)

// Decoder converts records into entities.
type Decoder struct {
	now        func() time.Time
	requesters map[string]struct{}
	providers  map[string]struct{}
}

// Option applies a configuration option to the Decoder.
type Option func(*Decoder)

// WithClock sets the clock waiting days are measured against.
func WithClock(now func() time.Time) Option {
	return func(d *Decoder) {
		if now != nil {
			d.now = now
		}
	}
}

// WithRequesterFilter restricts decoding to the listed requester uuids.
// An empty list disables the filter.
func WithRequesterFilter(uuids []string) Option {
	return func(d *Decoder) {
		d.requesters = model.DissolvedSet(uuids...)
	}
}

// WithProviderFilter restricts decoding to the listed provider uuids.
// An empty list disables the filter.
func WithProviderFilter(uuids []string) Option {
	return func(d *Decoder) {
		d.providers = model.DissolvedSet(uuids...)
	}
}

// NewDecoder creates a Decoder using the wall clock.
func NewDecoder(opts ...Option) *Decoder {
	d := &Decoder{now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Requesters validates records and returns requesters with dense ids, in
// input order. Every record is validated; records excluded by the requester
// filter are dropped afterwards.
func (d *Decoder) Requesters(records []RequesterRecord) ([]model.Requester, error) {
	const kind = "requester"
	now := d.now()
	out := make([]model.Requester, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for i, rec := range records {
		if rec.ID == nil {
			return nil, missing(kind, i, "id")
		}
		if rec.UUID == nil || *rec.UUID == "" {
			return nil, missing(kind, i, "uuid")
		}
		if _, dup := seen[*rec.UUID]; dup {
			return nil, invalid(kind, i, "uuid", "duplicate "+*rec.UUID)
		}
		seen[*rec.UUID] = struct{}{}
		if rec.Grade == nil {
			return nil, missing(kind, i, "grade")
		}
		if *rec.Grade < model.MinGrade || *rec.Grade > model.MaxGrade {
			return nil, invalid(kind, i, "grade", fmt.Sprintf("%d outside %d..%d", *rec.Grade, model.MinGrade, model.MaxGrade))
		}
		if len(rec.Subjects) == 0 {
			return nil, missing(kind, i, "subjects")
		}
		if rec.MatchingPriority < 0 {
			return nil, invalid(kind, i, "matchingPriority", "negative")
		}

		r := model.Requester{
			Identity: model.Identity{
				ID:          len(out),
				ExternalID:  *rec.ID,
				UUID:        *rec.UUID,
				Region:      strings.TrimSpace(rec.State),
				WaitingDays: waitingDays(now, rec.CreatedAt),
				Dissolved:   dissolved(rec.HasDissolvedMatchesWith),
			},
			Grade:    *rec.Grade,
			Priority: rec.MatchingPriority,
			Requests: make([]model.SubjectRequest, 0, len(rec.Subjects)),
		}
		for _, s := range rec.Subjects {
			if s.Name == nil || *s.Name == "" {
				return nil, missing(kind, i, "subjects.name")
			}
			r.Requests = append(r.Requests, model.SubjectRequest{
				Subject:    *s.Name,
				Preference: defaultPreference,
				Mandatory:  s.Mandatory,
			})
		}
		if !admitted(d.requesters, r.UUID) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// Providers validates records and returns providers with dense ids, in input
// order. A subject without a grade range covers every grade. As with
// requesters, the filter applies only to records that passed validation.
func (d *Decoder) Providers(records []ProviderRecord) ([]model.Provider, error) {
	const kind = "provider"
	now := d.now()
	out := make([]model.Provider, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for i, rec := range records {
		if rec.ID == nil {
			return nil, missing(kind, i, "id")
		}
		if rec.UUID == nil || *rec.UUID == "" {
			return nil, missing(kind, i, "uuid")
		}
		if _, dup := seen[*rec.UUID]; dup {
			return nil, invalid(kind, i, "uuid", "duplicate "+*rec.UUID)
		}
		seen[*rec.UUID] = struct{}{}
		if rec.NumberOfOpenMatchRequests == nil {
			return nil, missing(kind, i, "numberOfOpenMatchRequests")
		}
		if *rec.NumberOfOpenMatchRequests < 0 {
			return nil, invalid(kind, i, "numberOfOpenMatchRequests", "negative")
		}
		if rec.Subjects == nil {
			return nil, missing(kind, i, "subjects")
		}

		p := model.Provider{
			Identity: model.Identity{
				ID:          len(out),
				ExternalID:  *rec.ID,
				UUID:        *rec.UUID,
				Region:      strings.TrimSpace(rec.State),
				WaitingDays: waitingDays(now, rec.CreatedAt),
				Dissolved:   dissolved(rec.HasDissolvedMatchesWith),
			},
			Capacity: *rec.NumberOfOpenMatchRequests,
			Offers:   make([]model.SubjectOffer, 0, len(rec.Subjects)),
		}
		for _, s := range rec.Subjects {
			if s.Name == nil || *s.Name == "" {
				return nil, missing(kind, i, "subjects.name")
			}
			grades := model.AllGrades()
			if s.Grade != nil {
				if s.Grade.Min > s.Grade.Max {
					return nil, invalid(kind, i, "subjects.grade", fmt.Sprintf("min %d above max %d", s.Grade.Min, s.Grade.Max))
				}
				grades = model.GradeRange(s.Grade.Min, s.Grade.Max)
			}
			p.Offers = append(p.Offers, model.SubjectOffer{
				Subject:    *s.Name,
				Preference: defaultPreference,
				Grades:     grades,
			})
		}
		if !admitted(d.providers, p.UUID) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// Balancing resolves target shares by component name. Unknown names are
// returned sorted rather than rejected; negative shares are malformed.
func Balancing(raw map[string]float64) (map[cost.Component]float64, []string, error) {
	for name, share := range raw {
		if share < 0 {
			return nil, nil, fmt.Errorf("%w: balancing %q: negative share %v", ErrMalformedInput, name, share)
		}
	}
	targets, unknown := cost.ParseTargets(raw)
	return targets, unknown, nil
}

func admitted(filter map[string]struct{}, uuid string) bool {
	if len(filter) == 0 {
		return true
	}
	_, ok := filter[uuid]
	return ok
}

func dissolved(refs []UUIDRef) map[string]struct{} {
	uuids := make([]string, 0, len(refs))
	for _, ref := range refs {
		if ref.UUID != "" {
			uuids = append(uuids, ref.UUID)
		}
	}
	return model.DissolvedSet(uuids...)
}

// waitingDays is the fractional number of days since createdAt, never
// negative. A missing timestamp waits zero days.
func waitingDays(now time.Time, createdAt *time.Time) float64 {
	if createdAt == nil {
		return 0
	}
	return max(0, now.Sub(*createdAt).Hours()/hoursPerDay)
}
