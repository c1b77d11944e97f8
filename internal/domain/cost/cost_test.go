package cost

import (
	"errors"
	"testing"

	"github.com/okian/matchflow/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

type pairList []struct {
	p *model.Provider
	r *model.Requester
}

func (l pairList) Len() int { return len(l) }
func (l pairList) Pair(i int) (*model.Provider, *model.Requester) {
	return l[i].p, l[i].r
}

func TestParseComponent(t *testing.T) {
	Convey("Given component names from several sources", t, func() {
		cases := map[string]Component{
			"region_bonus":          RegionBonus,
			"BundeslandBonus":       RegionBonus,
			"state":                 RegionBonus,
			"FachUebereinstimmung":  SubjectOverlap,
			"subject-overlap":       SubjectOverlap,
			"subjectMatching":       SubjectOverlap,
			"WARTEZEITBONUS":        WaitingTimeBonus,
			"waitingTime":           WaitingTimeBonus,
			"MatchingPriorityBonus": PriorityBonus,
			" priority_bonus ":      PriorityBonus,
		}
		for name, want := range cases {
			got, err := ParseComponent(name)
			So(err, ShouldBeNil)
			So(got, ShouldEqual, want)
		}

		Convey("Then unknown names are rejected", func() {
			_, err := ParseComponent("charisma")
			So(errors.Is(err, ErrUnknownComponent), ShouldBeTrue)
		})

		Convey("Then ParseTargets separates unknown names", func() {
			targets, unknown := ParseTargets(map[string]float64{
				"bundeslandbonus":      0.05,
				"fachuebereinstimmung": 0.65,
				"zeta":                 0.1,
				"alpha":                0.2,
			})
			So(targets, ShouldResemble, map[Component]float64{RegionBonus: 0.05, SubjectOverlap: 0.65})
			So(unknown, ShouldResemble, []string{"alpha", "zeta"})
		})

		Convey("Then every component has a stable name", func() {
			for _, c := range Components() {
				parsed, err := ParseComponent(c.String())
				So(err, ShouldBeNil)
				So(parsed, ShouldEqual, c)
			}
			So(Component(42).String(), ShouldEqual, "component(42)")
		})
	})
}

func TestStandardComponents(t *testing.T) {
	Convey("Given a provider and a requester", t, func() {
		p := &model.Provider{
			Identity: model.Identity{Region: "HH", WaitingDays: 2.5},
			Offers: []model.SubjectOffer{
				{Subject: "math", Preference: 1, Grades: model.GradeRange(1, 6)},
				{Subject: "math", Preference: 1, Grades: model.GradeRange(7, 13)},
				{Subject: "art", Preference: 1, Grades: model.AllGrades()},
			},
		}
		r := &model.Requester{
			Identity: model.Identity{Region: "HH", WaitingDays: 4},
			Grade:    5,
			Requests: []model.SubjectRequest{{Subject: "math", Preference: 1}},
			Priority: 3,
		}

		Convey("Then region bonus requires a specified matching region", func() {
			So(RegionCost(p, r), ShouldEqual, 1)
			r.Region = "other"
			So(RegionCost(p, r), ShouldEqual, 0)
		})

		Convey("Then subject overlap counts once per offering entry", func() {
			So(SubjectOverlapCost(p, r), ShouldEqual, 4)
		})

		Convey("Then waiting time is the sum of both sides", func() {
			So(WaitingTimeCost(p, r), ShouldEqual, 6.5)
		})

		Convey("Then priority is the requester's", func() {
			So(PriorityCost(p, r), ShouldEqual, 3)
		})

		Convey("Then the standard model weights them with coefficient one", func() {
			m, err := NewStandardModel()
			So(err, ShouldBeNil)
			So(m.Total(p, r), ShouldEqual, 1+4+6.5+3)
			So(m.Component(p, r, SubjectOverlap), ShouldEqual, 4)
			So(m.Registered(), ShouldResemble, Components())
		})

		Convey("Then coefficient overrides apply", func() {
			m, err := NewStandardModel(WithCoefficients(map[Component]float64{WaitingTimeBonus: 0, PriorityBonus: 2}))
			So(err, ShouldBeNil)
			So(m.Total(p, r), ShouldEqual, 1+4+0+6)
		})

		Convey("Then StandardFunc rejects unknown components", func() {
			_, err := StandardFunc(Component(9))
			So(errors.Is(err, ErrUnknownComponent), ShouldBeTrue)
		})
	})
}

func TestModelRegistry(t *testing.T) {
	Convey("Given an empty model", t, func() {
		m := NewModel()
		one := func(*model.Provider, *model.Requester) float64 { return 1 }
		p, r := &model.Provider{}, &model.Requester{}

		Convey("When registering a component twice", func() {
			So(m.Register(RegionBonus, 2, one), ShouldBeNil)
			err := m.Register(RegionBonus, 3, one)
			So(errors.Is(err, ErrAlreadyRegistered), ShouldBeTrue)
			So(m.Coefficient(RegionBonus), ShouldEqual, 2)
		})

		Convey("When touching an unregistered component", func() {
			So(m.Component(p, r, PriorityBonus), ShouldEqual, 0)
			So(m.Coefficient(PriorityBonus), ShouldEqual, 0)
			So(errors.Is(m.SetCoefficient(PriorityBonus, 1), ErrNotRegistered), ShouldBeTrue)
		})

		Convey("When using negative coefficients", func() {
			So(errors.Is(m.Register(RegionBonus, -1, one), ErrNegativeWeight), ShouldBeTrue)
			So(m.Register(RegionBonus, 1, one), ShouldBeNil)
			So(errors.Is(m.SetCoefficient(RegionBonus, -0.5), ErrNegativeWeight), ShouldBeTrue)
		})

		Convey("When an override names an unregistered component", func() {
			_, err := NewStandardModel(WithCoefficients(map[Component]float64{Component(7): 1}))
			So(errors.Is(err, ErrNotRegistered), ShouldBeTrue)
		})
	})
}

func TestBalance(t *testing.T) {
	Convey("Given a model with two components over two pairs", t, func() {
		m := NewModel()
		So(m.Register(RegionBonus, 1, RegionCost), ShouldBeNil)
		So(m.Register(WaitingTimeBonus, 1, WaitingTimeCost), ShouldBeNil)

		same := model.Identity{Region: "BY"}
		p1 := &model.Provider{Identity: model.Identity{Region: "BY", WaitingDays: 3}}
		p2 := &model.Provider{Identity: model.Identity{Region: "NW", WaitingDays: 5}}
		r := &model.Requester{Identity: same}
		pairs := pairList{{p1, r}, {p2, r}}

		Convey("When balancing toward equal shares", func() {
			// region: total 1, coverage 1/2; waiting: total 8, coverage 1.
			adj := m.Balance(map[Component]float64{RegionBonus: 0.5, WaitingTimeBonus: 0.5}, pairs)

			Convey("Then coefficients move by share and coverage", func() {
				So(len(adj), ShouldEqual, 2)
				So(m.Coefficient(RegionBonus), ShouldAlmostEqual, (0.5/(1.0/9))*0.5, 1e-9)
				So(m.Coefficient(WaitingTimeBonus), ShouldAlmostEqual, 0.5/(8.0/9), 1e-9)
				So(adj[0].Component, ShouldEqual, RegionBonus)
				So(adj[0].Coverage, ShouldEqual, 0.5)
				So(adj[0].Before, ShouldEqual, 1)
			})
		})

		Convey("When a targeted component is absent from the model", func() {
			adj := m.Balance(map[Component]float64{PriorityBonus: 1, WaitingTimeBonus: 1}, pairs)

			Convey("Then it is skipped without error", func() {
				So(len(adj), ShouldEqual, 1)
				So(m.Coefficient(PriorityBonus), ShouldEqual, 0)
			})
		})

		Convey("When every pair costs nothing", func() {
			zero := pairList{{&model.Provider{}, &model.Requester{}}}
			adj := m.Balance(map[Component]float64{RegionBonus: 0.3, WaitingTimeBonus: 0.7}, zero)

			Convey("Then balancing is a no-op", func() {
				So(adj, ShouldBeNil)
				So(m.Coefficient(RegionBonus), ShouldEqual, 1)
				So(m.Coefficient(WaitingTimeBonus), ShouldEqual, 1)
			})
		})

		Convey("When there are no pairs", func() {
			So(m.Balance(map[Component]float64{RegionBonus: 1}, pairList{}), ShouldBeNil)
			So(m.Coefficient(RegionBonus), ShouldEqual, 1)
		})
	})
}
