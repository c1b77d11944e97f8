package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/okian/matchflow/internal/adapters/mq/queue"
	"github.com/okian/matchflow/internal/domain/cost"
	"github.com/okian/matchflow/internal/domain/courses"
	"github.com/okian/matchflow/internal/domain/graph"
	"github.com/okian/matchflow/internal/domain/matching"
	"github.com/okian/matchflow/internal/domain/model"
	"github.com/okian/matchflow/internal/domain/stats"
	"github.com/okian/matchflow/internal/domain/types"
	"github.com/okian/matchflow/pkg/logger"
	"github.com/okian/matchflow/pkg/metrics"
)

// MatchingInput is a decoded matching problem.
type MatchingInput struct {
	Requesters []model.Requester
	Providers  []model.Provider
	Targets    map[cost.Component]float64 // empty disables balancing
	Ignored    []string                   // balancing names that matched no component
	Algorithm  matching.Algorithm
}

// CourseInput is a decoded course-assignment problem.
type CourseInput struct {
	Courses    []model.Course
	Applicants []model.Applicant
}

// Engine solves problems synchronously. It is safe for concurrent use; every
// call owns its graph and network.
type Engine struct {
	log logger.Logger
}

// NewEngine creates an Engine. A nil logger discards output.
func NewEngine(l logger.Logger) *Engine {
	if l == nil {
		l = logger.Nop()
	}
	return &Engine{log: l}
}

// Matching builds the graph, balances its cost model, solves and validates
// the matching and derives its statistics.
func (e *Engine) Matching(ctx context.Context, in MatchingInput) (types.MatchingResult, error) {
	start := time.Now()
	algorithm := in.Algorithm.String()

	costs, err := cost.NewStandardModel()
	if err != nil {
		return types.MatchingResult{}, err
	}
	g, err := graph.Build(in.Requesters, in.Providers, costs)
	if err != nil {
		return types.MatchingResult{}, fmt.Errorf("build graph: %w", err)
	}
	metrics.RecordEdgesBuilt(g.Len())
	e.log.Info(ctx, "graph built",
		logger.Int("requesters", len(in.Requesters)),
		logger.Int("providers", len(in.Providers)),
		logger.Int("edges", g.Len()),
	)

	if len(in.Ignored) > 0 {
		e.log.Warn(ctx, "ignoring unknown balancing components", logger.Any("names", in.Ignored))
	}
	for _, adj := range g.Balance(in.Targets) {
		e.log.Debug(ctx, "coefficient balanced",
			logger.String("component", adj.Component.String()),
			logger.Float64("target", adj.Target),
			logger.Float64("share", adj.Share),
			logger.Float64("coverage", adj.Coverage),
			logger.Float64("before", adj.Before),
			logger.Float64("after", adj.After),
		)
	}

	res, err := matching.New(matching.WithAlgorithm(in.Algorithm), matching.WithLogger(e.log)).Match(ctx, g)
	if err != nil {
		if errors.Is(err, graph.ErrIntegrity) {
			metrics.RecordIntegrityViolation()
		}
		return types.MatchingResult{}, fmt.Errorf("match: %w", err)
	}

	out := types.MatchingResult{
		Algorithm:       algorithm,
		Matches:         make([]types.Match, 0, len(res.Edges)),
		Stats:           stats.Compute(g, res.Edges, res.Cost),
		IgnoredBalances: in.Ignored,
	}
	for _, edge := range res.Edges {
		out.Matches = append(out.Matches, types.Match{
			RequesterUUID: in.Requesters[edge.Requester].UUID,
			ProviderUUID:  in.Providers[edge.Provider].UUID,
		})
	}

	elapsed := time.Since(start)
	metrics.RecordMatches(string(types.KindMatching), len(out.Matches))
	metrics.RecordMatchingCost(res.Cost)
	metrics.RecordCyclesCanceled(res.CyclesCanceled)
	metrics.RecordAugmentations(res.Augmentations)
	metrics.RecordSolveLatency(string(types.KindMatching), algorithm, float64(elapsed.Milliseconds()))
	e.log.Info(ctx, "matching done",
		logger.String("algorithm", algorithm),
		logger.Int("matches", len(out.Matches)),
		logger.Float64("cost", res.Cost),
		logger.Duration("elapsed", elapsed),
	)
	return out, nil
}

// Courses assigns applicants with the flow engine, post-optimizes the result
// and validates it. Applicants' Assigned lists are overwritten.
func (e *Engine) Courses(ctx context.Context, in CourseInput) (types.CourseResult, error) {
	start := time.Now()

	res, err := courses.Assign(ctx, in.Courses, in.Applicants)
	if err != nil {
		return types.CourseResult{}, fmt.Errorf("assign courses: %w", err)
	}
	removed, added := courses.PostOptimize(in.Courses, in.Applicants)
	if err := courses.Validate(in.Courses, in.Applicants); err != nil {
		metrics.RecordIntegrityViolation()
		return types.CourseResult{}, fmt.Errorf("validate assignment: %w", err)
	}

	out := types.CourseResult{
		Assignments:      make([]types.Assignment, 0, len(in.Applicants)),
		FlowAssigned:     res.Assigned,
		ConflictsRemoved: removed,
		Backfilled:       added,
		Cost:             res.Cost,
	}
	total := 0
	for i := range in.Applicants {
		a := &in.Applicants[i]
		names := make([]string, 0, len(a.Assigned))
		for _, c := range a.Assigned {
			names = append(names, in.Courses[c].Name)
		}
		total += len(names)
		out.Assignments = append(out.Assignments, types.Assignment{ApplicantUUID: a.UUID, Courses: names})
	}

	elapsed := time.Since(start)
	metrics.RecordMatches(string(types.KindCourses), total)
	metrics.RecordAugmentations(res.Augmentations)
	metrics.RecordSolveLatency(string(types.KindCourses), matching.SuccessiveShortestPaths.String(), float64(elapsed.Milliseconds()))
	e.log.Info(ctx, "course assignment done",
		logger.Int("courses", len(in.Courses)),
		logger.Int("applicants", len(in.Applicants)),
		logger.Int("flow_assigned", res.Assigned),
		logger.Int("conflicts_removed", removed),
		logger.Int("backfilled", added),
		logger.Duration("elapsed", elapsed),
	)
	return out, nil
}

// Execute implements worker.Executor.
func (e *Engine) Execute(ctx context.Context, j queue.Job) (json.RawMessage, error) {
	var (
		result any
		err    error
	)
	switch in := j.Payload.(type) {
	case MatchingInput:
		result, err = e.Matching(ctx, in)
	case CourseInput:
		result, err = e.Courses(ctx, in)
	default:
		return nil, fmt.Errorf("%w: run %s carries %T", ErrUnknownPayload, j.RunID, j.Payload)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(result)
}
