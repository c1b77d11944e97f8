// Package stats summarizes a matching for reporting.
package stats

import (
	"github.com/okian/matchflow/internal/domain/graph"
	"github.com/okian/matchflow/internal/domain/model"
	"github.com/okian/matchflow/internal/domain/types"
)

// Compute derives the statistics of matches over g. matches must already be
// valid for g; matchingCost is the value reported by the matcher.
func Compute(g *graph.Graph, matches []graph.Edge, matchingCost float64) types.MatchingStats {
	requesters, providers := g.Requesters(), g.Providers()
	s := types.MatchingStats{
		Requesters:    len(requesters),
		Providers:     len(providers),
		Edges:         g.Len(),
		Matches:       len(matches),
		MatchingCost:  matchingCost,
		Subjects:      make(map[string]types.SubjectStats),
		CostBreakdown: make(map[string]float64),
		Coefficients:  make(map[string]float64),
	}

	for i := range providers {
		for _, subject := range offeredSubjects(&providers[i]) {
			st := s.Subjects[subject]
			st.Offered++
			s.Subjects[subject] = st
			s.OfferedSubjects++
		}
	}
	for i := range requesters {
		for _, req := range requesters[i].Requests {
			st := s.Subjects[req.Subject]
			st.Requested++
			s.Subjects[req.Subject] = st
		}
	}

	costs := g.Costs()
	for _, c := range costs.Registered() {
		s.Coefficients[c.String()] = costs.Coefficient(c)
		s.CostBreakdown[c.String()] = 0
	}

	matched := make([]bool, len(requesters))
	var waiting float64
	for _, e := range matches {
		r, p := &requesters[e.Requester], &providers[e.Provider]
		matched[e.Requester] = true
		waiting += r.WaitingDays
		if p.SameRegion(r.Identity) {
			s.RegionMatches++
		}
		for _, c := range costs.Registered() {
			s.CostBreakdown[c.String()] += costs.Component(p, r, c)
		}
		for _, req := range r.Requests {
			if !p.OffersSubject(req.Subject) {
				s.UncoveredSubjects++
				continue
			}
			s.CoveredSubjects++
			st := s.Subjects[req.Subject]
			st.Fulfilled++
			s.Subjects[req.Subject] = st
		}
	}
	if len(matches) > 0 {
		s.AvgWaitingDaysMatched = waiting / float64(len(matches))
	}

	for i := range requesters {
		if matched[i] {
			continue
		}
		s.MaxWaitingDaysLeft = max(s.MaxWaitingDaysLeft, requesters[i].WaitingDays)
		s.UncoveredSubjects += len(requesters[i].Requests)
	}
	return s
}

// offeredSubjects returns the distinct subject names of p in offer order.
func offeredSubjects(p *model.Provider) []string {
	var out []string
	seen := make(map[string]struct{}, len(p.Offers))
	for _, o := range p.Offers {
		if _, ok := seen[o.Subject]; ok {
			continue
		}
		seen[o.Subject] = struct{}{}
		out = append(out, o.Subject)
	}
	return out
}
