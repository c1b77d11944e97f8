package matching

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/okian/matchflow/internal/domain/cost"
	"github.com/okian/matchflow/internal/domain/graph"
	"github.com/okian/matchflow/internal/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var algorithms = []Algorithm{SuccessiveShortestPaths, CycleCanceling}

func buildGraph(t *testing.T, rs []model.Requester, ps []model.Provider) *graph.Graph {
	t.Helper()
	m, err := cost.NewStandardModel()
	require.NoError(t, err)
	g, err := graph.Build(rs, ps, m)
	require.NoError(t, err)
	return g
}

func req(id int, grade int, subjects ...string) model.Requester {
	r := model.Requester{Identity: model.Identity{ID: id, UUID: fmt.Sprintf("r%d", id)}, Grade: grade}
	for _, s := range subjects {
		r.Requests = append(r.Requests, model.SubjectRequest{Subject: s, Preference: 1})
	}
	return r
}

func prov(id, capacity int, subjects ...string) model.Provider {
	p := model.Provider{Identity: model.Identity{ID: id, UUID: fmt.Sprintf("p%d", id)}, Capacity: capacity}
	for _, s := range subjects {
		p.Offers = append(p.Offers, model.SubjectOffer{Subject: s, Preference: 1, Grades: model.GradeRange(1, 6)})
	}
	return p
}

func TestParseAlgorithm(t *testing.T) {
	for in, want := range map[string]Algorithm{
		"":                          SuccessiveShortestPaths,
		"SSP":                       SuccessiveShortestPaths,
		"successive-shortest-paths": SuccessiveShortestPaths,
		"cycle-canceling":           CycleCanceling,
		"Cycle-Cancelling":          CycleCanceling,
	} {
		got, err := ParseAlgorithm(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseAlgorithm("simplex")
	assert.ErrorIs(t, err, ErrUnknownAlgorithm)

	var a Algorithm
	require.NoError(t, a.UnmarshalText([]byte("cc")))
	assert.Equal(t, CycleCanceling, a)
	b, err := a.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "cycle-canceling", string(b))
	assert.Equal(t, "algorithm(7)", Algorithm(7).String())
}

func TestPrefersHigherSubjectOverlap(t *testing.T) {
	rs := []model.Requester{req(0, 5, "math"), req(1, 5, "art")}
	ps := []model.Provider{prov(0, 1, "math", "art")}
	// Give R1 a second, also offered subject so its overlap is higher.
	rs[0].Requests = append(rs[0].Requests, model.SubjectRequest{Subject: "art", Preference: 1})

	for _, a := range algorithms {
		t.Run(a.String(), func(t *testing.T) {
			g := buildGraph(t, rs, ps)
			require.Len(t, g.Edges(), 2)

			res, err := Match(context.Background(), g, a)
			require.NoError(t, err)
			require.Len(t, res.Edges, 1)
			assert.Equal(t, 0, res.Edges[0].Requester)
			assert.Equal(t, 4.0, res.Cost)
			assert.Equal(t, a, res.Algorithm)
		})
	}
}

func TestCapacityTwoThreeEqualRequesters(t *testing.T) {
	rs := []model.Requester{req(0, 3, "math"), req(1, 3, "math"), req(2, 3, "math")}
	ps := []model.Provider{prov(0, 2, "math")}

	for _, a := range algorithms {
		t.Run(a.String(), func(t *testing.T) {
			res, err := Match(context.Background(), buildGraph(t, rs, ps), a)
			require.NoError(t, err)
			assert.Len(t, res.Edges, 2)
			assert.Equal(t, 4.0, res.Cost)
		})
	}
}

func TestZeroCostEdgesAreMatched(t *testing.T) {
	rs := []model.Requester{req(0, 3, "math"), req(1, 3, "math"), req(2, 3, "math")}
	ps := []model.Provider{prov(0, 2, "math")}
	m, err := cost.NewStandardModel(cost.WithCoefficients(map[cost.Component]float64{cost.SubjectOverlap: 0}))
	require.NoError(t, err)
	g, err := graph.Build(rs, ps, m)
	require.NoError(t, err)
	require.Len(t, g.Edges(), 3)
	assert.Zero(t, g.MaxEdgeCost())

	for _, a := range algorithms {
		t.Run(a.String(), func(t *testing.T) {
			res, err := Match(context.Background(), g, a)
			require.NoError(t, err)
			assert.Len(t, res.Edges, g.MaxFlowValue())
			assert.Zero(t, res.Cost)
		})
	}
}

func TestEmptyAndDegenerateGraphs(t *testing.T) {
	cases := map[string]struct {
		rs []model.Requester
		ps []model.Provider
	}{
		"no requesters":  {nil, []model.Provider{prov(0, 3, "math")}},
		"no providers":   {[]model.Requester{req(0, 3, "math")}, nil},
		"zero capacity":  {[]model.Requester{req(0, 3, "math")}, []model.Provider{prov(0, 0, "math")}},
		"no eligibility": {[]model.Requester{req(0, 3, "art")}, []model.Provider{prov(0, 1, "math")}},
		"grade too high": {[]model.Requester{req(0, 9, "math")}, []model.Provider{prov(0, 1, "math")}},
		"nothing at all": {nil, nil},
	}
	for name, c := range cases {
		for _, a := range algorithms {
			t.Run(name+"/"+a.String(), func(t *testing.T) {
				res, err := Match(context.Background(), buildGraph(t, c.rs, c.ps), a)
				require.NoError(t, err)
				assert.Empty(t, res.Edges)
				assert.Zero(t, res.Cost)
			})
		}
	}
}

func TestWarmStartIsCapacityAware(t *testing.T) {
	rs := []model.Requester{req(0, 3, "math"), req(1, 3, "math"), req(2, 3, "math")}
	ps := []model.Provider{prov(0, 3, "math")}
	g := buildGraph(t, rs, ps)

	fixed, _ := fixedCosts(g)
	assert.Len(t, greedy(g, fixed), 3)

	res, err := Match(context.Background(), g, CycleCanceling)
	require.NoError(t, err)
	assert.Equal(t, 3, res.WarmStart)
	assert.Zero(t, res.CyclesCanceled)
	assert.Len(t, res.Edges, 3)
}

func TestUnknownAlgorithm(t *testing.T) {
	g := buildGraph(t, nil, nil)
	_, err := New(WithAlgorithm(Algorithm(9)), WithLogger(nil)).Match(context.Background(), g)
	assert.ErrorIs(t, err, ErrUnknownAlgorithm)
}

func TestMatchHonorsCancellation(t *testing.T) {
	rs := []model.Requester{req(0, 3, "math")}
	ps := []model.Provider{prov(0, 1, "math")}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, a := range algorithms {
		_, err := Match(ctx, buildGraph(t, rs, ps), a)
		assert.ErrorIs(t, err, context.Canceled, a.String())
	}
}

// randomInstance builds a small market with random subjects, grades,
// capacities, regions, waiting times and a few dissolved pairs.
func randomInstance(rng *rand.Rand, maxSide int) ([]model.Requester, []model.Provider) {
	subjects := []string{"math", "german", "english", "physics"}
	regions := []string{"", "other", "BE", "HH"}

	nr, np := 1+rng.Intn(maxSide), 1+rng.Intn(maxSide)
	rs := make([]model.Requester, nr)
	for i := range rs {
		rs[i] = model.Requester{
			Identity: model.Identity{
				ID: i, UUID: fmt.Sprintf("r%d", i),
				Region:      regions[rng.Intn(len(regions))],
				WaitingDays: float64(rng.Intn(4000)) / 100,
			},
			Grade:    1 + rng.Intn(13),
			Priority: float64(rng.Intn(3)),
		}
		for _, s := range subjects {
			if rng.Intn(3) == 0 {
				rs[i].Requests = append(rs[i].Requests, model.SubjectRequest{Subject: s, Preference: 1, Mandatory: rng.Intn(8) == 0})
			}
		}
	}
	ps := make([]model.Provider, np)
	for j := range ps {
		ps[j] = model.Provider{
			Identity: model.Identity{
				ID: j, UUID: fmt.Sprintf("p%d", j),
				Region:      regions[rng.Intn(len(regions))],
				WaitingDays: float64(rng.Intn(2000)) / 100,
			},
			Capacity: rng.Intn(3),
		}
		for _, s := range subjects {
			if rng.Intn(2) == 0 {
				lo := 1 + rng.Intn(13)
				ps[j].Offers = append(ps[j].Offers, model.SubjectOffer{Subject: s, Preference: 1, Grades: model.GradeRange(lo, lo+rng.Intn(8))})
			}
		}
		if nr > 0 && rng.Intn(4) == 0 {
			ps[j].Dissolved = model.DissolvedSet(fmt.Sprintf("r%d", rng.Intn(nr)))
		}
	}
	return rs, ps
}

// bruteForce enumerates every feasible matching.
func bruteForce(g *graph.Graph) float64 {
	byRequester := make([][]graph.Edge, len(g.Requesters()))
	for _, e := range g.Edges() {
		byRequester[e.Requester] = append(byRequester[e.Requester], e)
	}
	load := make([]int, len(g.Providers()))
	var best float64
	var walk func(r int, acc float64)
	walk = func(r int, acc float64) {
		if r == len(byRequester) {
			best = max(best, acc)
			return
		}
		walk(r+1, acc)
		for _, e := range byRequester[r] {
			if load[e.Provider] < g.Providers()[e.Provider].Capacity {
				load[e.Provider]++
				walk(r+1, acc+e.Cost)
				load[e.Provider]--
			}
		}
	}
	walk(0, 0)
	return best
}

func TestAlgorithmsAgreeOnRandomGraphs(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 60; i++ {
		rs, ps := randomInstance(rng, 15)
		g := buildGraph(t, rs, ps)
		g.Balance(map[cost.Component]float64{
			cost.SubjectOverlap: 0.65, cost.RegionBonus: 0.05, cost.WaitingTimeBonus: 0.2, cost.PriorityBonus: 0.1,
		})

		ssp, err := Match(context.Background(), g, SuccessiveShortestPaths)
		require.NoError(t, err)
		cc, err := Match(context.Background(), g, CycleCanceling)
		require.NoError(t, err)

		assert.Equal(t, ssp.Cost, cc.Cost, "instance %d", i)
		require.NoError(t, g.Validate(ssp.Edges))
		require.NoError(t, g.Validate(cc.Edges))

		for _, res := range []Result{ssp, cc} {
			var sum float64
			for _, e := range res.Edges {
				sum += e.Cost
			}
			assert.InDelta(t, res.Cost, sum, 1e-4, "instance %d", i)
		}
	}
}

func TestAlgorithmsAreOptimalOnSmallGraphs(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 60; i++ {
		rs, ps := randomInstance(rng, 6)
		g := buildGraph(t, rs, ps)
		want := bruteForce(g)

		for _, a := range algorithms {
			res, err := Match(context.Background(), g, a)
			require.NoError(t, err)
			assert.InDelta(t, want, res.Cost, 1e-4, "instance %d %v", i, a)
		}
	}
}
