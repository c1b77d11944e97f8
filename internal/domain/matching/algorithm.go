package matching

import (
	"fmt"
	"strings"
)

// Algorithm selects the min-cost flow strategy.
type Algorithm int

// Supported algorithms.
const (
	SuccessiveShortestPaths Algorithm = iota
	CycleCanceling
)

func (a Algorithm) String() string {
	switch a {
	case SuccessiveShortestPaths:
		return "successive-shortest-paths"
	case CycleCanceling:
		return "cycle-canceling"
	}
	return fmt.Sprintf("algorithm(%d)", int(a))
}

// ParseAlgorithm resolves an algorithm name. The empty string selects the default.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "successive-shortest-paths", "ssp", "shortest-paths":
		return SuccessiveShortestPaths, nil
	case "cycle-canceling", "cycle-cancelling", "cc":
		return CycleCanceling, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, s)
}

// MarshalText implements encoding.TextMarshaler.
func (a Algorithm) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Algorithm) UnmarshalText(b []byte) error {
	v, err := ParseAlgorithm(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}
