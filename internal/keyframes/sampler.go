// Package keyframes picks the timestamps at which still frames are pulled
// from a video for thumbnails and visual analysis.
package keyframes

import "math"

const (
	DefaultCount = 8

	// SafetyMargin keeps samples away from the trailing edge, where the
	// store refuses to render thumbnails.
	SafetyMargin = 0.5

	MinTimestamp = 0.1

	shortVideoMax  = 10.0
	mediumVideoMax = 60.0
)

var fallbackTimestamps = []float64{1, 5, 10, 20, 30, 45, 60, 90}

var longVideoRatios = []float64{0.02, 0.10, 0.20, 0.35, 0.50, 0.65, 0.80, 0.95}

// Sample returns count non-decreasing timestamps (in seconds) for a video of
// the given duration. A duration that is zero, negative or NaN means the
// length is not yet known and yields the fixed fallback set.
func Sample(duration float64, count int) []float64 {
	if count <= 0 {
		count = DefaultCount
	}

	if math.IsNaN(duration) || math.IsInf(duration, 0) || duration <= 0 {
		return fallback(count)
	}

	var samples []float64
	switch {
	case duration <= shortVideoMax:
		samples = spread(duration-SafetyMargin, count, roundTenth)
	case duration <= mediumVideoMax:
		samples = spread(duration-SafetyMargin, count, math.Round)
	default:
		samples = relative(duration, count)
	}

	return clamp(samples, duration)
}

// Fallback returns the fixed timestamp set used when duration is unknown.
func Fallback() []float64 {
	return fallback(len(fallbackTimestamps))
}

func fallback(count int) []float64 {
	n := count
	if n > len(fallbackTimestamps) {
		n = len(fallbackTimestamps)
	}
	out := make([]float64, n)
	copy(out, fallbackTimestamps[:n])
	return out
}

func spread(span float64, count int, round func(float64) float64) []float64 {
	if span < 0 {
		span = 0
	}
	out := make([]float64, count)
	if count == 1 {
		out[0] = round(span / 2)
		return out
	}
	step := span / float64(count-1)
	for i := range out {
		out[i] = round(step * float64(i))
	}
	return out
}

func relative(duration float64, count int) []float64 {
	ratios := longVideoRatios
	if count != len(longVideoRatios) {
		ratios = interpolate(longVideoRatios[0], longVideoRatios[len(longVideoRatios)-1], count)
	}
	out := make([]float64, len(ratios))
	for i, r := range ratios {
		out[i] = roundTenth(duration * r)
	}
	return out
}

func interpolate(from, to float64, count int) []float64 {
	out := make([]float64, count)
	if count == 1 {
		out[0] = (from + to) / 2
		return out
	}
	step := (to - from) / float64(count-1)
	for i := range out {
		out[i] = from + step*float64(i)
	}
	return out
}

// clamp bounds every sample to [MinTimestamp, floor(duration-SafetyMargin)].
// Clamping is monotonic, so ordering survives.
func clamp(samples []float64, duration float64) []float64 {
	upper := math.Floor(duration - SafetyMargin)
	if upper < MinTimestamp {
		upper = MinTimestamp
	}
	for i, s := range samples {
		if s < MinTimestamp {
			s = MinTimestamp
		}
		if s > upper {
			s = upper
		}
		samples[i] = s
	}
	return samples
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
