package courses

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/okian/matchflow/internal/domain/model"
)

// RemoveConflicts walks each applicant's assignments in order and drops
// course i as soon as a later course j conflicts with it. It returns the
// number of removed assignments. Running it twice changes nothing.
func RemoveConflicts(courses []model.Course, applicants []model.Applicant) int {
	removed := 0
	for i := range applicants {
		a := &applicants[i]
		kept := a.Assigned[:0]
		for x, c := range a.Assigned {
			conflict := false
			for _, later := range a.Assigned[x+1:] {
				if courses[c].Schedule.Conflicts(courses[later].Schedule) {
					conflict = true
					break
				}
			}
			if conflict {
				removed++
				continue
			}
			kept = append(kept, c)
		}
		a.Assigned = kept
	}
	return removed
}

// Backfill hands out remaining seats. Courses are visited in id order; for
// each, applicants are visited by descending score (ties keep input order) and
// receive the course when they requested it, do not hold it yet and have no
// schedule conflict with what they hold. It returns the number of added
// assignments.
func Backfill(courses []model.Course, applicants []model.Applicant) int {
	free := make([]int, len(courses))
	for j := range courses {
		free[j] = courses[j].MaxParticipants
	}
	for i := range applicants {
		for _, c := range applicants[i].Assigned {
			free[c]--
		}
	}

	order := make([]int, len(applicants))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(x, y int) int {
		return cmp.Compare(applicants[y].Score, applicants[x].Score)
	})

	added := 0
	for c := range courses {
		for _, i := range order {
			if free[c] <= 0 {
				break
			}
			a := &applicants[i]
			if !a.Requests(c) || a.IsAssigned(c) || conflictsWithAssigned(courses, a, c) {
				continue
			}
			a.Assigned = append(a.Assigned, c)
			free[c]--
			added++
		}
	}
	return added
}

// PostOptimize runs RemoveConflicts followed by Backfill.
func PostOptimize(courses []model.Course, applicants []model.Applicant) (removed, added int) {
	removed = RemoveConflicts(courses, applicants)
	added = Backfill(courses, applicants)
	return removed, added
}

func conflictsWithAssigned(courses []model.Course, a *model.Applicant, c int) bool {
	for _, held := range a.Assigned {
		if courses[c].Schedule.Conflicts(courses[held].Schedule) {
			return true
		}
	}
	return false
}

// Validate checks a final assignment: references are in range, no course
// exceeds its seats, every assignment was requested and no applicant holds
// two conflicting courses.
func Validate(courses []model.Course, applicants []model.Applicant) error {
	if err := checkIDs(courses, applicants); err != nil {
		return err
	}
	taken := make([]int, len(courses))
	for i := range applicants {
		a := &applicants[i]
		for x, c := range a.Assigned {
			if !a.Requests(c) {
				return fmt.Errorf("%w: applicant %s holds unrequested course %q", ErrInvalidReference, a.UUID, courses[c].Name)
			}
			for _, other := range a.Assigned[x+1:] {
				if other == c || courses[c].Schedule.Conflicts(courses[other].Schedule) {
					return fmt.Errorf("%w: applicant %s holds %q and %q", ErrConflict, a.UUID, courses[c].Name, courses[other].Name)
				}
			}
			taken[c]++
		}
	}
	for j := range courses {
		if taken[j] > courses[j].MaxParticipants {
			return fmt.Errorf("%w: course %q has %d of %d seats taken", ErrCapacity, courses[j].Name, taken[j], courses[j].MaxParticipants)
		}
	}
	return nil
}
