package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/star/dopplertrack/internal/catalog"
	"github.com/star/dopplertrack/internal/frequency"
	"github.com/star/dopplertrack/internal/propagation"
	"github.com/star/dopplertrack/internal/rangerate"
	"github.com/star/dopplertrack/internal/tle"
	"github.com/star/dopplertrack/internal/transform"
)

// session is one resolved station/satellite pair.
type session struct {
	station   transform.Station
	entry     tle.TLEEntry
	prop      *propagation.SGP4Propagator
	est       *rangerate.Estimator
	strategy  rangerate.Strategy
	catalog   *catalog.Catalog
	resolver  *frequency.Resolver
	freq      frequency.Info
	tleConfig tleConfig
}

// resolveSatellite maps a name, alias or NORAD id to a NORAD id. Ids outside
// the catalog are accepted as is.
func resolveSatellite(cat *catalog.Catalog, s string) (int, error) {
	if sat, err := cat.Resolve(s); err == nil {
		return sat.NORADID, nil
	}
	id, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("satellite %q: %w", s, catalog.ErrUnknownSatellite)
	}
	return id, nil
}

// open resolves station, element set, propagator, strategy and carrier.
func (a *app) open(ctx context.Context) (*session, error) {
	st, err := loadStation(a.v, a.logger)
	if err != nil {
		return nil, err
	}
	strategy, err := loadStrategy(a.v, a.logger)
	if err != nil {
		return nil, err
	}

	cat := catalog.Default()
	id, err := resolveSatellite(cat, a.v.GetString("satellite"))
	if err != nil {
		return nil, err
	}

	tcfg := loadTLEConfig(a.v, a.logger)
	entry, err := a.loadTLE(ctx, tcfg, id)
	if err != nil {
		return nil, err
	}
	if age := entry.Age(a.now()); age > tcfg.Validity || -age > tcfg.Validity {
		a.logger.Warn("element set far from epoch; propagation will fail", "norad_id", id, "age", age.String(), "validity", tcfg.Validity.String())
	}

	prop, err := propagation.NewSGP4Propagator(entry, tcfg.Validity)
	if err != nil {
		return nil, fmt.Errorf("NORAD %d: %w", id, err)
	}

	var client *frequency.Client
	if a.v.GetBool("frequency.lookup") {
		client = frequency.NewClient(a.v.GetString("frequency.satnogs_url"), a.logger)
	}
	s := &session{
		station:   st,
		entry:     entry,
		prop:      prop,
		est:       rangerate.New(st, prop),
		strategy:  strategy,
		catalog:   cat,
		resolver:  frequency.NewResolver(client, cat, a.logger),
		tleConfig: tcfg,
	}
	s.freq = a.carrier(ctx, s.resolver, entry)
	return s, nil
}

func (a *app) loadTLE(ctx context.Context, cfg tleConfig, id int) (tle.TLEEntry, error) {
	if cfg.File != "" {
		entry, err := tle.LoadFile(cfg.File, a.logger)
		if err != nil {
			return tle.TLEEntry{}, err
		}
		if entry.NORADID != id {
			a.logger.Warn("TLE file is for a different satellite", "file", cfg.File, "file_norad_id", entry.NORADID, "requested", id)
		}
		return entry, nil
	}

	var fetcher *tle.Fetcher
	if cfg.Fetch {
		fetcher = tle.NewFetcher(cfg.URL, a.logger)
	}
	var cache *tle.Cache
	if cfg.CacheDir != "" {
		cache = tle.NewCache(cfg.CacheDir, cfg.CacheMaxFiles)
	}
	return tle.NewSource(fetcher, cache, a.logger).Get(ctx, id)
}

// carrier picks the downlink: explicit config, then SatNOGS/catalog lookup,
// then defaultCarrierHz.
func (a *app) carrier(ctx context.Context, r *frequency.Resolver, entry tle.TLEEntry) frequency.Info {
	info := frequency.Info{
		Name:       entry.Name,
		NORADID:    entry.NORADID,
		DownlinkHz: a.v.GetFloat64("frequency.carrier_hz"),
		UplinkHz:   a.v.GetFloat64("frequency.uplink_hz"),
		Source:     "config",
	}
	if info.DownlinkHz <= 0 {
		found, err := r.Lookup(ctx, strconv.Itoa(entry.NORADID))
		if err != nil {
			a.logger.Warn("no downlink known, using default carrier", "norad_id", entry.NORADID, "carrier_hz", defaultCarrierHz, "error", err)
			info.DownlinkHz = defaultCarrierHz
			info.Source = "default"
		} else {
			uplink := info.UplinkHz
			info = found
			if uplink > 0 {
				info.UplinkHz = uplink
			}
		}
	}
	a.logger.Info("carrier config",
		"downlink_hz", info.DownlinkHz,
		"uplink_hz", info.UplinkHz,
		"mode", info.Mode,
		"source", info.Source,
	)
	return info
}
