package validation

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/star/dopplertrack/internal/doppler"
	"github.com/star/dopplertrack/internal/rangerate"
)

// CSVOptions selects what goes into the exported trace. Consumers of the file
// do not see which strategy produced the range-rate column.
type CSVOptions struct {
	CarrierHz float64
	Strategy  rangerate.Kind
	Elevation bool // append elevation_deg
}

// Header returns the CSV header row.
func (o CSVOptions) Header() []string {
	h := []string{
		"timestamp",
		"range_m",
		"range_rate_m_s",
		"doppler_" + carrierMHz(o.CarrierHz) + "MHz_Hz",
	}
	if o.Elevation {
		h = append(h, "elevation_deg")
	}
	return h
}

// carrierMHz formats hz in MHz with every significant digit and at least one
// decimal, so 145.935 MHz and 145.9 MHz stay distinct.
func carrierMHz(hz float64) string {
	s := strconv.FormatFloat(hz/1e6, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// WriteCSV writes rows in time order. Invalid rows, and rows lacking the
// selected strategy, are left out. It returns the number of data rows written.
func WriteCSV(w io.Writer, rows []Row, opts CSVOptions) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(opts.Header()); err != nil {
		return 0, fmt.Errorf("write csv header: %w", err)
	}

	n := 0
	for _, r := range rows {
		rate, ok := r.RangeRate(opts.Strategy)
		if !ok {
			continue
		}
		rec := []string{
			r.Time.UTC().Format(time.RFC3339),
			strconv.FormatFloat(r.RangeM, 'f', 0, 64),
			strconv.FormatFloat(rate, 'f', 2, 64),
			strconv.FormatFloat(doppler.Shift(opts.CarrierHz, rate), 'f', 0, 64),
		}
		if opts.Elevation {
			rec = append(rec, strconv.FormatFloat(r.ElevationDeg, 'f', 2, 64))
		}
		if err := cw.Write(rec); err != nil {
			return n, fmt.Errorf("write csv row %s: %w", r.Time.Format(time.RFC3339), err)
		}
		n++
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return n, fmt.Errorf("flush csv: %w", err)
	}
	return n, nil
}
