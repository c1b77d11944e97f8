// Package courses assigns applicants to scheduled courses: an optimal flow
// over preference ranks followed by a greedy, conflict-aware post-pass.
//
// Network layout: applicants occupy nodes [0,A), courses [A,A+C), followed
// by the source and the sink.
package courses

import (
	"context"
	"fmt"
	"math"

	"github.com/okian/matchflow/internal/domain/flow"
	"github.com/okian/matchflow/internal/domain/model"
)

const (
	// diversityDecay shrinks the score bonus after every preference arc so
	// that later arcs become relatively cheaper.
	diversityDecay = 0.9

	fixedPointScale = 1_000_000
)

// Result summarizes the flow stage.
type Result struct {
	Assigned      int     // applicant/course pairs chosen by the flow
	Cost          float64 // cost of the min-cost flow, shift included
	Augmentations int
}

// Assign computes the flow-optimal assignment and stores it in each
// applicant's Assigned list, in the applicant's preference order. Previous
// assignments are discarded. Ids must be dense indices.
func Assign(ctx context.Context, courses []model.Course, applicants []model.Applicant) (Result, error) {
	if err := checkIDs(courses, applicants); err != nil {
		return Result{}, err
	}

	na, nc := len(applicants), len(courses)
	source, sink := na+nc, na+nc+1
	n := flow.NewNetwork(na + nc + 2)

	var maxScore float64
	arcs := 0
	for i := range applicants {
		maxScore = max(maxScore, applicants[i].Score)
		arcs += 2 * len(applicants[i].Requested)
	}
	n.Grow(arcs + nc)
	additional := 2 * maxScore

	// choice[i][k] is the applicant->course arc of the k-th requested course,
	// -1 for a repeated request.
	choice := make([][]int, na)
	diversity := 1.0
	for i := range applicants {
		a := &applicants[i]
		choice[i] = make([]int, len(a.Requested))
		seen := make(map[int]struct{}, len(a.Requested))
		for k, c := range a.Requested {
			choice[i][k] = -1
			if _, dup := seen[c]; dup {
				continue
			}
			seen[c] = struct{}{}

			if _, err := n.AddArc(source, i, 1, toFixed(additional-diversity*a.Score)); err != nil {
				return Result{}, err
			}
			e, err := n.AddArc(i, na+c, 1, toFixed(float64(k+1)))
			if err != nil {
				return Result{}, err
			}
			choice[i][k] = e
			diversity *= diversityDecay
		}
	}
	for j := range courses {
		if courses[j].MaxParticipants < 0 {
			return Result{}, fmt.Errorf("%w: course %q has capacity %d", ErrCapacity, courses[j].Name, courses[j].MaxParticipants)
		}
		if _, err := n.AddArc(na+j, sink, int64(courses[j].MaxParticipants), 0); err != nil {
			return Result{}, err
		}
	}

	res, err := flow.SuccessiveShortestPaths(ctx, n, source, sink)
	if err != nil {
		return Result{}, err
	}

	out := Result{Cost: float64(n.Cost()) / fixedPointScale, Augmentations: res.Augmentations}
	for i := range applicants {
		a := &applicants[i]
		a.Assigned = a.Assigned[:0]
		for k, e := range choice[i] {
			if e >= 0 && n.Residual(e) == 0 {
				a.Assigned = append(a.Assigned, a.Requested[k])
				out.Assigned++
			}
		}
	}
	return out, nil
}

func checkIDs(courses []model.Course, applicants []model.Applicant) error {
	for j := range courses {
		if courses[j].ID != j {
			return fmt.Errorf("%w: course at index %d has id %d", ErrInvalidReference, j, courses[j].ID)
		}
	}
	for i := range applicants {
		if applicants[i].ID != i {
			return fmt.Errorf("%w: applicant at index %d has id %d", ErrInvalidReference, i, applicants[i].ID)
		}
		for _, c := range applicants[i].Requested {
			if c < 0 || c >= len(courses) {
				return fmt.Errorf("%w: applicant %s requests course %d of %d", ErrInvalidReference, applicants[i].UUID, c, len(courses))
			}
		}
		for _, c := range applicants[i].Assigned {
			if c < 0 || c >= len(courses) {
				return fmt.Errorf("%w: applicant %s holds course %d of %d", ErrInvalidReference, applicants[i].UUID, c, len(courses))
			}
		}
	}
	return nil
}

func toFixed(v float64) int64 {
	return int64(math.Round(v * fixedPointScale))
}
