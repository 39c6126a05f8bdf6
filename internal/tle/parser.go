package tle

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrNoEntries is returned when input holds no parseable element set.
var ErrNoEntries = errors.New("no TLE entries found")

// Parse reads 3-line NORAD TLE format from r. Malformed entries are skipped
// with a warning.
func Parse(r io.Reader, logger *slog.Logger) ([]TLEEntry, error) {
	scanner := bufio.NewScanner(r)
	var lines []string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading TLE data: %w", err)
	}

	var entries []TLEEntry
	for i := 0; i+2 < len(lines); {
		entry, err := parseEntry(lines[i], lines[i+1], lines[i+2])
		if err != nil {
			logger.Warn("skipping malformed TLE entry", "line_index", i, "name", strings.TrimSpace(lines[i]), "error", err)
			if errors.Is(err, errBadPrefix) {
				// Resynchronize on the next line.
				i++
			} else {
				i += 3
			}
			continue
		}
		entries = append(entries, entry)
		i += 3
	}

	return entries, nil
}

var errBadPrefix = errors.New("line prefixes are not '1 ' and '2 '")

func parseEntry(name, line1, line2 string) (TLEEntry, error) {
	if !strings.HasPrefix(line1, "1 ") || !strings.HasPrefix(line2, "2 ") {
		return TLEEntry{}, errBadPrefix
	}
	if len(line1) < 32 {
		return TLEEntry{}, fmt.Errorf("line1 too short (%d chars)", len(line1))
	}

	noradStr := strings.TrimSpace(line1[2:7])
	noradID, err := strconv.Atoi(noradStr)
	if err != nil {
		return TLEEntry{}, fmt.Errorf("invalid NORAD ID %q: %w", noradStr, err)
	}

	epoch, err := parseEpoch(strings.TrimSpace(line1[18:32]))
	if err != nil {
		return TLEEntry{}, err
	}

	return TLEEntry{
		NORADID: noradID,
		Name:    strings.TrimSpace(name),
		Epoch:   epoch,
		Line1:   line1,
		Line2:   line2,
	}, nil
}

// parseEpoch converts a YYDDD.DDDDDDDD epoch to UTC. Years 57-99 are 19xx.
func parseEpoch(s string) (time.Time, error) {
	if len(s) < 5 {
		return time.Time{}, fmt.Errorf("epoch string too short: %q", s)
	}

	year, err := strconv.Atoi(s[:2])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch year %q: %w", s[:2], err)
	}
	if year >= 57 {
		year += 1900
	} else {
		year += 2000
	}

	dayOfYear, err := strconv.ParseFloat(s[2:], 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch day %q: %w", s[2:], err)
	}

	// Day 1 is Jan 1; round to the microsecond to absorb float noise.
	t := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	return t.Add(time.Duration((dayOfYear - 1) * float64(24*time.Hour))).Round(time.Microsecond), nil
}

// LoadFile reads the first element set in path.
func LoadFile(path string, logger *slog.Logger) (TLEEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return TLEEntry{}, fmt.Errorf("reading TLE file: %w", err)
	}
	entries, err := Parse(bytes.NewReader(data), logger)
	if err != nil {
		return TLEEntry{}, err
	}
	if len(entries) == 0 {
		return TLEEntry{}, fmt.Errorf("%s: %w", path, ErrNoEntries)
	}
	return entries[0], nil
}

// Find returns the entry with the given catalog number.
func Find(entries []TLEEntry, noradID int) (TLEEntry, bool) {
	for _, e := range entries {
		if e.NORADID == noradID {
			return e, true
		}
	}
	return TLEEntry{}, false
}
