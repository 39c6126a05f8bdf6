package api

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/star/dopplertrack/internal/catalog"
	"github.com/star/dopplertrack/internal/frequency"
	"github.com/star/dopplertrack/internal/passes"
	"github.com/star/dopplertrack/internal/rangerate"
)

const (
	// maxHorizon bounds one pass search; a 72 h sweep at one-minute steps is ~4300 samples.
	maxHorizon = 72 * time.Hour
	// maxSearchSamples bounds horizon/step for a single request.
	maxSearchSamples = 20000
)

// Satellite identifies the tracked object.
type Satellite struct {
	Name    string    `json:"name"`
	NORADID int       `json:"norad_id"`
	Epoch   time.Time `json:"tle_epoch"`
}

// Service is everything the handlers compute with: one station, one satellite.
type Service struct {
	Estimator *rangerate.Estimator
	Satellite Satellite
	CarrierHz float64
	DefaultDT time.Duration
	Passes    passes.Config
	Catalog   *catalog.Catalog
	Resolver  *frequency.Resolver
	Logger    *slog.Logger

	// Validity is how far from the TLE epoch observations are served.
	Validity time.Duration
	Now      func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Ready reports whether the element set still covers the present.
func (s *Service) Ready() error {
	if s.Estimator == nil {
		return fmt.Errorf("no estimator configured")
	}
	if s.Validity > 0 && !s.Satellite.Epoch.IsZero() {
		if age := s.now().Sub(s.Satellite.Epoch); age > s.Validity || -age > s.Validity {
			return fmt.Errorf("TLE epoch %s outside %s validity", s.Satellite.Epoch.Format(time.RFC3339), s.Validity)
		}
	}
	return nil
}

func (s *Service) detector(horizon time.Duration) (*passes.Detector, error) {
	cfg := s.Passes
	if horizon > 0 {
		cfg.Horizon = horizon
	}
	if cfg.Horizon > maxHorizon {
		return nil, fmt.Errorf("horizon %s exceeds %s", cfg.Horizon, maxHorizon)
	}
	if cfg.Step > 0 && int64(cfg.Horizon/cfg.Step) > maxSearchSamples {
		return nil, fmt.Errorf("horizon %s at step %s exceeds %d samples", cfg.Horizon, cfg.Step, maxSearchSamples)
	}
	return passes.NewDetector(s.Estimator, cfg, s.Logger)
}
