package propagation

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/star/dopplertrack/internal/tle"
	"github.com/star/dopplertrack/internal/transform"
)

// Real ISS elements, epoch 2025-02-14.
var issEntry = tle.TLEEntry{
	NORADID: 25544,
	Name:    "ISS (ZARYA)",
	Line1:   "1 25544U 98067A   25045.18032407  .00016717  00000+0  30099-3 0  9993",
	Line2:   "2 25544  51.6412 193.5765 0003457 126.2851 233.8519 15.49874301495058",
	Epoch:   time.Date(2025, 2, 14, 4, 19, 40, 0, time.UTC),
}

func TestSGP4Propagate(t *testing.T) {
	prop, err := NewSGP4Propagator(issEntry, DefaultValidity)
	if err != nil {
		t.Fatalf("NewSGP4Propagator: %v", err)
	}
	if prop.NORADID() != 25544 {
		t.Errorf("NORADID = %d, want 25544", prop.NORADID())
	}

	target := time.Date(2025, 2, 14, 12, 0, 0, 0, time.UTC)
	st, err := prop.Propagate(target)
	if err != nil {
		t.Fatalf("Propagate: %v", err)
	}
	if !st.HasVelocity {
		t.Error("SGP4 state should carry velocity")
	}

	// ISS orbits ~420 km up: radius ≈ 6790 km, speed ≈ 7.66 km/s.
	r := math.Sqrt(st.TEME.X*st.TEME.X + st.TEME.Y*st.TEME.Y + st.TEME.Z*st.TEME.Z)
	if r < 6600 || r > 6900 {
		t.Errorf("radius = %.1f km, want ISS-like", r)
	}
	v := math.Sqrt(st.TEME.VX*st.TEME.VX + st.TEME.VY*st.TEME.VY + st.TEME.VZ*st.TEME.VZ)
	if v < 7.4 || v > 7.9 {
		t.Errorf("speed = %.3f km/s, want ~7.66", v)
	}

	if !transform.ValidateECEF(transform.TEMEToECEF(st.TEME, target)) {
		t.Error("ECEF position failed validation")
	}
}

func TestSGP4StateTimeTruncated(t *testing.T) {
	prop, err := NewSGP4Propagator(issEntry, DefaultValidity)
	if err != nil {
		t.Fatal(err)
	}
	whole := time.Date(2025, 2, 14, 12, 0, 0, 0, time.UTC)

	base, err := prop.Propagate(whole)
	if err != nil {
		t.Fatal(err)
	}
	for _, off := range []time.Duration{time.Nanosecond, 500 * time.Millisecond, 999 * time.Millisecond} {
		st, err := prop.Propagate(whole.Add(off))
		if err != nil {
			t.Fatalf("+%s: %v", off, err)
		}
		if !st.Time.Equal(whole) {
			t.Errorf("+%s: state time %s, want %s", off, st.Time.Format(time.RFC3339Nano), whole.Format(time.RFC3339))
		}
		if st.TEME != base.TEME {
			t.Errorf("+%s: state differs from the whole second", off)
		}
	}

	next, err := prop.Propagate(whole.Add(time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if !next.Time.Equal(whole.Add(time.Second)) || next.TEME == base.TEME {
		t.Errorf("next second: time %s, want a new state at %s", next.Time, whole.Add(time.Second))
	}
}

func TestSGP4LocalTimeMatchesUTC(t *testing.T) {
	prop, err := NewSGP4Propagator(issEntry, 0)
	if err != nil {
		t.Fatal(err)
	}
	utc := time.Date(2025, 2, 14, 12, 0, 0, 0, time.UTC)
	local := utc.In(time.FixedZone("ART", -3*3600))

	a, _ := prop.Propagate(utc)
	b, _ := prop.Propagate(local)
	if a.TEME != b.TEME {
		t.Errorf("state depends on time zone: %+v vs %+v", a.TEME, b.TEME)
	}
}

func TestSGP4OutsideValidity(t *testing.T) {
	prop, err := NewSGP4Propagator(issEntry, 7*24*time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	_, err = prop.Propagate(issEntry.Epoch.Add(30 * 24 * time.Hour))
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestNewSGP4PropagatorInvalid(t *testing.T) {
	tests := []struct {
		name  string
		entry tle.TLEEntry
	}{
		{"garbage", tle.TLEEntry{NORADID: 99999, Line1: "invalid line 1", Line2: "invalid line 2"}},
		{"swapped lines", tle.TLEEntry{NORADID: 25544, Line1: issEntry.Line2, Line2: issEntry.Line1}},
		{"catalog mismatch", tle.TLEEntry{
			NORADID: 25544,
			Line1:   issEntry.Line1,
			Line2:   "2 25545  51.6412 193.5765 0003457 126.2851 233.8519 15.49874301495058",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewSGP4Propagator(tt.entry, 0); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestSGP4ConcurrentUse(t *testing.T) {
	prop, err := NewSGP4Propagator(issEntry, 0)
	if err != nil {
		t.Fatal(err)
	}
	start := time.Date(2025, 2, 14, 12, 0, 0, 0, time.UTC)
	want, _ := prop.Propagate(start)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			prop.Propagate(start.Add(time.Duration(i) * time.Minute))
			got, err := prop.Propagate(start)
			if err != nil || got.TEME != want.TEME {
				t.Errorf("goroutine %d: concurrent propagation diverged", i)
			}
		}(i)
	}
	wg.Wait()
}

func TestPositionOnly(t *testing.T) {
	orbit := Circular{RadiusKm: 6778, InclinationRad: 0.9, Epoch: time.Unix(0, 0)}
	p := PositionOnly(orbit)

	st, err := p.Propagate(time.Unix(600, 0))
	if err != nil {
		t.Fatal(err)
	}
	if st.HasVelocity || st.TEME.VX != 0 || st.TEME.VY != 0 || st.TEME.VZ != 0 {
		t.Errorf("velocity not stripped: %+v", st)
	}
	full, _ := orbit.Propagate(time.Unix(600, 0))
	if st.TEME.X != full.TEME.X || st.TEME.Y != full.TEME.Y || st.TEME.Z != full.TEME.Z {
		t.Error("position altered")
	}
}

func TestPositionOnlyPassesErrors(t *testing.T) {
	failing := Func(func(time.Time) (State, error) {
		return State{}, ErrUnavailable
	})
	if _, err := PositionOnly(failing).Propagate(time.Now()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestCircularOrbit(t *testing.T) {
	orbit := Circular{RadiusKm: 6778, InclinationRad: 51.6 * math.Pi / 180, RAANRad: 1.2, PhaseRad: 0.3, Epoch: time.Unix(1_700_000_000, 0)}

	at := orbit.Epoch.Add(17 * time.Minute)
	st, _ := orbit.Propagate(at)
	r := math.Sqrt(st.TEME.X*st.TEME.X + st.TEME.Y*st.TEME.Y + st.TEME.Z*st.TEME.Z)
	if math.Abs(r-6778) > 1e-9 {
		t.Errorf("radius = %.12f, want 6778", r)
	}

	// Velocity matches a centered difference of position.
	const h = 0.5
	before, _ := orbit.Propagate(at.Add(-h * 1e9))
	after, _ := orbit.Propagate(at.Add(h * 1e9))
	approx := [3]float64{
		(after.TEME.X - before.TEME.X) / (2 * h),
		(after.TEME.Y - before.TEME.Y) / (2 * h),
		(after.TEME.Z - before.TEME.Z) / (2 * h),
	}
	got := [3]float64{st.TEME.VX, st.TEME.VY, st.TEME.VZ}
	for i := range got {
		if math.Abs(got[i]-approx[i]) > 1e-5 {
			t.Errorf("velocity[%d] = %.8f, centered difference %.8f", i, got[i], approx[i])
		}
	}

	// Orbital speed for a 400 km orbit is ~7.67 km/s.
	if v := orbit.RadiusKm * orbit.MeanMotion(); math.Abs(v-7.669) > 0.01 {
		t.Errorf("circular speed = %.4f km/s, want ~7.669", v)
	}
}
