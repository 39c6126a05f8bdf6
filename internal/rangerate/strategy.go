package rangerate

import (
	"fmt"
	"strings"
	"time"
)

// Kind selects how range-rate is obtained.
type Kind int

const (
	// Analytic projects the Earth-fixed relative velocity on the line of sight.
	// Needs velocity from the propagator.
	Analytic Kind = iota
	// FiniteDifference differences two ranges DT apart. Needs position only.
	FiniteDifference
)

// Strategy is a range-rate method plus its parameters.
type Strategy struct {
	Kind Kind
	DT   time.Duration // FiniteDifference only
}

// AnalyticStrategy returns the analytic strategy.
func AnalyticStrategy() Strategy { return Strategy{Kind: Analytic} }

// FiniteDifferenceStrategy returns a forward difference over dt.
func FiniteDifferenceStrategy(dt time.Duration) Strategy {
	return Strategy{Kind: FiniteDifference, DT: dt}
}

func (s Strategy) String() string {
	switch s.Kind {
	case Analytic:
		return "analytic"
	case FiniteDifference:
		return fmt.Sprintf("finite-difference(%s)", s.DT)
	default:
		return fmt.Sprintf("Strategy(%d)", int(s.Kind))
	}
}

// Label is a short metric-friendly name.
func (s Strategy) Label() string {
	if s.Kind == FiniteDifference {
		return "finite_difference"
	}
	return "analytic"
}

// ParseStrategy accepts "analytic", "fd" or "finite-difference"; dt applies to the latter.
func ParseStrategy(name string, dt time.Duration) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "analytic", "":
		return AnalyticStrategy(), nil
	case "fd", "finite-difference", "finite_difference":
		if dt <= 0 {
			return Strategy{}, fmt.Errorf("finite difference step %s: %w", dt, ErrInvalidStep)
		}
		return FiniteDifferenceStrategy(dt), nil
	default:
		return Strategy{}, fmt.Errorf("unknown range-rate strategy %q", name)
	}
}
