package tle

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Source resolves an element set for a catalog number: network first, then
// the on-disk cache. A nil fetcher or cache disables that tier.
type Source struct {
	fetcher *Fetcher
	cache   *Cache
	logger  *slog.Logger
	now     func() time.Time
}

// NewSource creates a Source.
func NewSource(fetcher *Fetcher, cache *Cache, logger *slog.Logger) *Source {
	return &Source{fetcher: fetcher, cache: cache, logger: logger, now: time.Now}
}

// Get returns the freshest available element set for noradID.
func (s *Source) Get(ctx context.Context, noradID int) (TLEEntry, error) {
	var fetchErr error
	if s.fetcher != nil {
		data, err := s.fetcher.FetchRaw(ctx, noradID)
		if err == nil {
			entries, perr := Parse(bytes.NewReader(data), s.logger)
			if entry, ok := Find(entries, noradID); perr == nil && ok {
				if s.cache != nil {
					if werr := s.cache.Write(noradID, data, s.now()); werr != nil {
						s.logger.Warn("failed to cache TLE", "norad_id", noradID, "error", werr)
					}
				}
				s.logger.Info("tle loaded", "source", "network", "norad_id", noradID, "name", entry.Name, "epoch", entry.Epoch.Format(time.RFC3339))
				return entry, nil
			}
			err = fmt.Errorf("NORAD %d: %w", noradID, ErrNoEntries)
		}
		fetchErr = err
		s.logger.Warn("tle fetch failed, trying cache", "norad_id", noradID, "error", err)
	}

	if s.cache == nil {
		if fetchErr == nil {
			fetchErr = fmt.Errorf("no TLE source configured")
		}
		return TLEEntry{}, fetchErr
	}

	data, ts, err := s.cache.LoadLatest(noradID)
	if err != nil {
		if fetchErr != nil {
			return TLEEntry{}, fmt.Errorf("fetch: %v; cache: %w", fetchErr, err)
		}
		return TLEEntry{}, err
	}
	entries, err := Parse(bytes.NewReader(data), s.logger)
	if err != nil {
		return TLEEntry{}, err
	}
	entry, ok := Find(entries, noradID)
	if !ok {
		return TLEEntry{}, fmt.Errorf("cached NORAD %d: %w", noradID, ErrNoEntries)
	}
	s.logger.Info("tle loaded", "source", "cache", "norad_id", noradID, "cached_at", ts.Format(time.RFC3339))
	return entry, nil
}
