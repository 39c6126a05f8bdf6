// Package doppler maps range-rate to frequency shift with the classical
// (non-relativistic) Doppler formula. At LEO range-rates (≤ 8 km/s) the
// relativistic term is below 1e-9 of the carrier and is not applied.
//
// Sign convention: positive range-rate (receding) gives a negative shift.
package doppler

import "math"

// SpeedOfLight in m/s (exact, SI).
const SpeedOfLight = 299792458.0

// MaxRangeRate bounds |range-rate| in m/s for an Earth-orbiting satellite seen
// from the ground; anything larger means a unit or frame error upstream.
const MaxRangeRate = 8000.0

// Shift returns the Doppler shift in Hz of a carrier freqHz for a range-rate in m/s.
func Shift(freqHz, rangeRate float64) float64 {
	return -freqHz * rangeRate / SpeedOfLight
}

// Downlink returns the frequency the ground receiver must tune to when the
// satellite transmits at freqTx.
func Downlink(freqTx, rangeRate float64) float64 {
	return freqTx + Shift(freqTx, rangeRate)
}

// Uplink returns the frequency the ground must transmit so the satellite
// receives freqAtSat: high while it recedes, low while it approaches.
func Uplink(freqAtSat, rangeRate float64) float64 {
	return freqAtSat - Shift(freqAtSat, rangeRate)
}

// Result is the Doppler outcome for one carrier at one instant.
type Result struct {
	TransmitHz float64 // nominal carrier
	ShiftedHz  float64 // what the receiver sees
	ShiftHz    float64 // ShiftedHz − TransmitHz
}

// Compute returns the downlink Result for carrier freqHz at rangeRate.
func Compute(freqHz, rangeRate float64) Result {
	shift := Shift(freqHz, rangeRate)
	return Result{
		TransmitHz: freqHz,
		ShiftedHz:  freqHz + shift,
		ShiftHz:    shift,
	}
}

// MaxShift returns the largest plausible |shift| in Hz for carrier freqHz.
func MaxShift(freqHz float64) float64 {
	return math.Abs(freqHz) * MaxRangeRate / SpeedOfLight
}

// Plausible reports whether shiftHz is within what a LEO pass can produce on freqHz.
func Plausible(freqHz, shiftHz float64) bool {
	return math.Abs(shiftHz) <= MaxShift(freqHz)
}
