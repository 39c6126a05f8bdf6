package propagation

import (
	"fmt"
	"math"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
	"github.com/star/dopplertrack/internal/tle"
	"github.com/star/dopplertrack/internal/transform"
)

// SGP4 library: github.com/joshuaferrara/go-satellite (pure Go, TEME output).
//
// satellite.Propagate takes the Satellite by value, so SGP4 error codes never reach
// the caller. Failures are detected from the output instead: NaN/Inf, or a radius
// outside the envelope of Earth orbits. The library resolves time to whole
// seconds, so queries are truncated to Resolution and the state carries the
// truncated instant.

// DefaultValidity bounds how far from the element epoch a query may be before
// the propagator refuses it.
const DefaultValidity = 30 * 24 * time.Hour

// SGP4Propagator propagates one satellite from its TLE. Safe for concurrent use.
type SGP4Propagator struct {
	sat      satellite.Satellite
	noradID  int
	epoch    time.Time
	validity time.Duration
}

// NewSGP4Propagator initializes SGP4 for entry. Queries further than validity
// from the element epoch fail with ErrUnavailable; validity <= 0 disables the check.
//
// TLE lines are pre-validated because go-satellite calls log.Fatal on malformed input.
func NewSGP4Propagator(entry tle.TLEEntry, validity time.Duration) (*SGP4Propagator, error) {
	if err := validateTLELines(entry.Line1, entry.Line2); err != nil {
		return nil, fmt.Errorf("invalid TLE for NORAD %d: %w", entry.NORADID, err)
	}

	sat := satellite.TLEToSat(strings.TrimSpace(entry.Line1), strings.TrimSpace(entry.Line2), satellite.GravityWGS84)
	if sat.Error != 0 {
		return nil, fmt.Errorf("sgp4 init failed for NORAD %d: code=%d %s", entry.NORADID, sat.Error, sat.ErrorStr)
	}

	return &SGP4Propagator{
		sat:      sat,
		noradID:  entry.NORADID,
		epoch:    entry.Epoch,
		validity: validity,
	}, nil
}

func validateTLELines(line1, line2 string) error {
	line1 = strings.TrimSpace(line1)
	line2 = strings.TrimSpace(line2)

	if len(line1) != 69 {
		return fmt.Errorf("line1 length %d, expected 69", len(line1))
	}
	if len(line2) != 69 {
		return fmt.Errorf("line2 length %d, expected 69", len(line2))
	}
	if line1[0] != '1' {
		return fmt.Errorf("line1 must start with '1', got '%c'", line1[0])
	}
	if line2[0] != '2' {
		return fmt.Errorf("line2 must start with '2', got '%c'", line2[0])
	}
	if line1[2:7] != line2[2:7] {
		return fmt.Errorf("catalog number mismatch: %q vs %q", line1[2:7], line2[2:7])
	}
	return nil
}

// NORADID returns the catalog number of the propagated satellite.
func (p *SGP4Propagator) NORADID() int { return p.noradID }

// Epoch returns the element set epoch, or the zero time if unknown.
func (p *SGP4Propagator) Epoch() time.Time { return p.epoch }

// Propagate returns the TEME state (km, km/s) at t truncated to Resolution.
func (p *SGP4Propagator) Propagate(t time.Time) (State, error) {
	t = t.UTC().Truncate(Resolution)

	if p.validity > 0 && !p.epoch.IsZero() {
		if age := t.Sub(p.epoch).Abs(); age > p.validity {
			return State{}, fmt.Errorf("NORAD %d: %s is %s from epoch %s: %w",
				p.noradID, t.Format(time.RFC3339), age.Round(time.Hour), p.epoch.Format(time.RFC3339), ErrUnavailable)
		}
	}

	pos, vel := satellite.Propagate(p.sat, t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())
	teme := transform.PositionTEME{
		X: pos.X, Y: pos.Y, Z: pos.Z,
		VX: vel.X, VY: vel.Y, VZ: vel.Z,
	}

	for _, v := range [...]float64{vel.X, vel.Y, vel.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return State{}, fmt.Errorf("NORAD %d: sgp4 velocity is NaN/Inf: %w", p.noradID, ErrUnavailable)
		}
	}
	if ecef := transform.TEMEToECEF(teme, t); !transform.ValidateECEF(ecef) {
		return State{}, fmt.Errorf("NORAD %d: position %.1f km outside Earth-orbit envelope: %w",
			p.noradID, ecef.Magnitude()/1e3, ErrUnavailable)
	}

	return State{Time: t, TEME: teme, HasVelocity: true}, nil
}
