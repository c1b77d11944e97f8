// Package model contains domain models passed between layers.
package model

import (
	"strings"
)

// Legal grade span.
const (
	MinGrade = 1
	MaxGrade = 13
)

// UnspecifiedRegion is how inputs mark a participant without a region.
const UnspecifiedRegion = "other"

// Identity is the block shared by requesters and providers.
type Identity struct {
	ID          int     // dense index within its side, 0..n-1
	Region      string  // empty or "other" when unspecified
	ExternalID  int64   // id carried through from the input
	UUID        string  // external uuid
	WaitingDays float64 // fractional days since registration
	Dissolved   map[string]struct{}
}

// HasRegion reports whether the region is specified.
func (i Identity) HasRegion() bool {
	r := strings.TrimSpace(i.Region)
	return r != "" && !strings.EqualFold(r, UnspecifiedRegion)
}

// SameRegion reports whether both identities name the same, specified region.
func (i Identity) SameRegion(o Identity) bool {
	return i.HasRegion() && o.HasRegion() && i.Region == o.Region
}

// HasDissolvedWith reports whether a previous pairing with uuid was dissolved.
func (i Identity) HasDissolvedWith(uuid string) bool {
	_, ok := i.Dissolved[uuid]
	return ok
}

// DissolvedSet builds a dissolved-match set from a list of uuids.
func DissolvedSet(uuids ...string) map[string]struct{} {
	if len(uuids) == 0 {
		return nil
	}
	s := make(map[string]struct{}, len(uuids))
	for _, u := range uuids {
		s[u] = struct{}{}
	}
	return s
}

// SubjectRequest is a subject asked for by a requester.
type SubjectRequest struct {
	Subject    string
	Preference float64
	Mandatory  bool
}

// Requester is the side of the market that asks for help (a pupil).
type Requester struct {
	Identity
	Grade    int
	Requests []SubjectRequest
	Priority float64
}

// GradeSet is a set of grades in [MinGrade, MaxGrade]. Gaps are allowed.
type GradeSet uint16

// GradeRange returns the set {min..max}, clamped to the legal span.
func GradeRange(minGrade, maxGrade int) GradeSet {
	var g GradeSet
	for grade := max(minGrade, MinGrade); grade <= min(maxGrade, MaxGrade); grade++ {
		g = g.Add(grade)
	}
	return g
}

// AllGrades is the full legal span.
func AllGrades() GradeSet { return GradeRange(MinGrade, MaxGrade) }

// Add returns g with grade included. Out-of-span grades are ignored.
func (g GradeSet) Add(grade int) GradeSet {
	if grade < MinGrade || grade > MaxGrade {
		return g
	}
	return g | 1<<uint(grade)
}

// Contains reports whether grade is in the set.
func (g GradeSet) Contains(grade int) bool {
	if grade < MinGrade || grade > MaxGrade {
		return false
	}
	return g&(1<<uint(grade)) != 0
}

// Grades lists the members in ascending order.
func (g GradeSet) Grades() []int {
	var out []int
	for grade := MinGrade; grade <= MaxGrade; grade++ {
		if g.Contains(grade) {
			out = append(out, grade)
		}
	}
	return out
}

// SubjectOffer is a subject a provider can teach, restricted to some grades.
type SubjectOffer struct {
	Subject    string
	Preference float64
	Grades     GradeSet
}

// Provider is the side of the market that offers help (a tutor).
type Provider struct {
	Identity
	Offers   []SubjectOffer
	Capacity int
}

// OffersSubject reports whether subject appears among the offers, for any grade.
func (p *Provider) OffersSubject(subject string) bool {
	for _, o := range p.Offers {
		if o.Subject == subject {
			return true
		}
	}
	return false
}

// TotalCapacity sums the capacities of all providers.
func TotalCapacity(providers []Provider) int {
	total := 0
	for i := range providers {
		total += providers[i].Capacity
	}
	return total
}
