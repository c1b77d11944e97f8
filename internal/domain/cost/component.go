package cost

import (
	"fmt"
	"sort"
	"strings"

	"github.com/okian/matchflow/internal/domain/model"
)

// Component names one term of the edge cost. The set is closed.
type Component int

// Known components.
const (
	RegionBonus Component = iota
	SubjectOverlap
	WaitingTimeBonus
	PriorityBonus
)

var componentNames = [...]string{
	RegionBonus:      "region_bonus",
	SubjectOverlap:   "subject_overlap",
	WaitingTimeBonus: "waiting_time_bonus",
	PriorityBonus:    "priority_bonus",
}

// Aliases accepted by ParseComponent after normalization. The German names are
// the ones used by existing balancing files.
var componentAliases = map[string]Component{
	"regionbonus":           RegionBonus,
	"region":                RegionBonus,
	"state":                 RegionBonus,
	"bundeslandbonus":       RegionBonus,
	"subjectoverlap":        SubjectOverlap,
	"subjectmatching":       SubjectOverlap,
	"subjects":              SubjectOverlap,
	"fachuebereinstimmung":  SubjectOverlap,
	"waitingtimebonus":      WaitingTimeBonus,
	"waitingtime":           WaitingTimeBonus,
	"wartezeitbonus":        WaitingTimeBonus,
	"prioritybonus":         PriorityBonus,
	"priority":              PriorityBonus,
	"matchingpriority":      PriorityBonus,
	"matchingprioritybonus": PriorityBonus,
}

// Components lists every known component in declaration order.
func Components() []Component {
	return []Component{RegionBonus, SubjectOverlap, WaitingTimeBonus, PriorityBonus}
}

func (c Component) String() string {
	if c < 0 || int(c) >= len(componentNames) {
		return fmt.Sprintf("component(%d)", int(c))
	}
	return componentNames[c]
}

// ParseComponent resolves a component name case-insensitively, ignoring
// separators ("Region_Bonus", "region-bonus" and "BundeslandBonus" all work).
func ParseComponent(s string) (Component, error) {
	key := strings.Map(func(r rune) rune {
		switch r {
		case '_', '-', ' ':
			return -1
		}
		return r
	}, strings.ToLower(strings.TrimSpace(s)))
	if c, ok := componentAliases[key]; ok {
		return c, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownComponent, s)
}

// ParseTargets converts a name-keyed map into component targets. Names that do
// not resolve are returned sorted in unknown; they are otherwise ignored.
func ParseTargets(raw map[string]float64) (targets map[Component]float64, unknown []string) {
	targets = make(map[Component]float64, len(raw))
	for name, v := range raw {
		c, err := ParseComponent(name)
		if err != nil {
			unknown = append(unknown, name)
			continue
		}
		targets[c] = v
	}
	sort.Strings(unknown)
	return targets, unknown
}

// Func computes the raw, unweighted cost of pairing p with r. Results are >= 0.
type Func func(p *model.Provider, r *model.Requester) float64

// RegionCost is 1 when both sides name the same, specified region.
func RegionCost(p *model.Provider, r *model.Requester) float64 {
	if p.SameRegion(r.Identity) {
		return 1
	}
	return 0
}

// SubjectOverlapCost sums both preference values over every offered/requested
// pair sharing a subject. An offering listed twice counts twice.
func SubjectOverlapCost(p *model.Provider, r *model.Requester) float64 {
	var total float64
	for _, o := range p.Offers {
		for _, q := range r.Requests {
			if o.Subject == q.Subject {
				total += o.Preference + q.Preference
			}
		}
	}
	return total
}

// WaitingTimeCost is the combined waiting time of both sides in days.
func WaitingTimeCost(p *model.Provider, r *model.Requester) float64 {
	return p.WaitingDays + r.WaitingDays
}

// PriorityCost is the requester's matching priority.
func PriorityCost(_ *model.Provider, r *model.Requester) float64 {
	return r.Priority
}

// StandardFunc returns the raw cost function of a known component.
func StandardFunc(c Component) (Func, error) {
	switch c {
	case RegionBonus:
		return RegionCost, nil
	case SubjectOverlap:
		return SubjectOverlapCost, nil
	case WaitingTimeBonus:
		return WaitingTimeCost, nil
	case PriorityBonus:
		return PriorityCost, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrUnknownComponent, c)
}
