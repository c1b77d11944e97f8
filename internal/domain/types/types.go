// Package types contains the result shapes shared by the engine, the store
// and the transports.
package types

import (
	"encoding/json"
	"time"
)

// Match is one requester/provider pair of a matching.
type Match struct {
	RequesterUUID string `json:"requester_uuid"`
	ProviderUUID  string `json:"provider_uuid"`
}

// Assignment lists the courses given to one applicant, by name.
type Assignment struct {
	ApplicantUUID string   `json:"applicant_uuid"`
	Courses       []string `json:"courses"`
}

// SubjectStats counts a single subject across both sides of a matching.
type SubjectStats struct {
	Offered   int `json:"offered"`
	Requested int `json:"requested"`
	Fulfilled int `json:"fulfilled"`
}

// MatchingStats describes a finished matching.
type MatchingStats struct {
	Requesters            int                     `json:"requesters"`
	Providers             int                     `json:"providers"`
	Edges                 int                     `json:"edges"`
	Matches               int                     `json:"matches"`
	MatchingCost          float64                 `json:"matching_cost"`
	AvgWaitingDaysMatched float64                 `json:"avg_waiting_days_matched"`
	MaxWaitingDaysLeft    float64                 `json:"max_waiting_days_unmatched"`
	RegionMatches         int                     `json:"region_matches"`
	CoveredSubjects       int                     `json:"covered_subjects"`
	UncoveredSubjects     int                     `json:"uncovered_subjects"`
	OfferedSubjects       int                     `json:"offered_subjects"`
	Subjects              map[string]SubjectStats `json:"subjects"`
	CostBreakdown         map[string]float64      `json:"cost_breakdown"`
	Coefficients          map[string]float64      `json:"coefficients"`
}

// MatchingResult is the outcome of a matching run.
type MatchingResult struct {
	Algorithm       string        `json:"algorithm"`
	Matches         []Match       `json:"matches"`
	Stats           MatchingStats `json:"stats"`
	IgnoredBalances []string      `json:"ignored_balancing,omitempty"`
}

// CourseResult is the outcome of a course-assignment run.
type CourseResult struct {
	Assignments      []Assignment `json:"assignments"`
	FlowAssigned     int          `json:"flow_assigned"`
	ConflictsRemoved int          `json:"conflicts_removed"`
	Backfilled       int          `json:"backfilled"`
	Cost             float64      `json:"cost"`
}

// RunKind names the problem a run solves.
type RunKind string

// Run kinds.
const (
	KindMatching RunKind = "matching"
	KindCourses  RunKind = "courses"
)

// RunStatus is the lifecycle state of a run.
type RunStatus string

// Run statuses.
const (
	StatusQueued    RunStatus = "queued"
	StatusRunning   RunStatus = "running"
	StatusSucceeded RunStatus = "succeeded"
	StatusFailed    RunStatus = "failed"
)

// Done reports whether the status is terminal.
func (s RunStatus) Done() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Run is a submitted job and, once finished, its result. Result holds a
// MatchingResult or a CourseResult encoded as JSON depending on Kind.
type Run struct {
	ID         string          `json:"run_id"`
	RequestID  string          `json:"request_id,omitempty"`
	Kind       RunKind         `json:"kind"`
	Status     RunStatus       `json:"status"`
	Error      string          `json:"error,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	StartedAt  *time.Time      `json:"started_at,omitempty"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
}

// Job is a queued run. Payload carries the decoded input for Kind.
type Job struct {
	RunID   string
	Kind    RunKind
	Payload any
}
