package graph

import (
	"github.com/okian/matchflow/internal/domain/model"
)

// Eligible reports whether p and r may be paired:
//  1. neither side dissolved a previous match with the other;
//  2. every mandatory requested subject is offered, regardless of grade;
//  3. at least one requested subject is offered for the requester's grade.
func Eligible(p *model.Provider, r *model.Requester) bool {
	if r.HasDissolvedWith(p.UUID) || p.HasDissolvedWith(r.UUID) {
		return false
	}
	for _, q := range r.Requests {
		if q.Mandatory && !p.OffersSubject(q.Subject) {
			return false
		}
	}
	for _, o := range p.Offers {
		if !o.Grades.Contains(r.Grade) {
			continue
		}
		for _, q := range r.Requests {
			if q.Subject == o.Subject {
				return true
			}
		}
	}
	return false
}
