package audio

import (
	"math"
)

const (
	// MinDB is the minimum displayable level in decibels. Level queries
	// return this floor instead of negative infinity for silent signals.
	MinDB = -120.0

	// rmsEpsilon floors RMS values before the log conversion so that a
	// silent frame converts to MinDB rather than -Inf.
	rmsEpsilon = 1e-9

	// fullScale is the magnitude of a full-scale 16-bit PCM sample.
	fullScale = 32768.0
)

// RMS computes the root-mean-square level of a PCM frame, normalized so
// that a full-scale square wave yields 1.0. An empty frame yields 0.
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}

	var sum float64
	for _, s := range samples {
		v := float64(s) / fullScale
		sum += v * v
	}

	return math.Sqrt(sum / float64(len(samples)))
}

// LinearToDB converts a linear amplitude to decibels using 20*log10(v).
// Values at or below zero are floored to MinDB.
func LinearToDB(v float64) float64 {
	if v < rmsEpsilon {
		v = rmsEpsilon
	}

	db := 20.0 * math.Log10(v)
	if db < MinDB {
		return MinDB
	}
	return db
}

// DBToLinear converts a decibel value to a linear gain via 10^(db/20).
func DBToLinear(db float64) float64 {
	return math.Pow(10.0, db/20.0)
}

// clampSample converts a float sample back to int16 range, clipping at
// the extremes to prevent wraparound distortion.
func clampSample(v float64) int16 {
	if v > 32767.0 {
		return 32767
	}
	if v < -32768.0 {
		return -32768
	}
	return int16(v)
}
