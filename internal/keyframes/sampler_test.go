package keyframes

import (
	"math"
	"reflect"
	"testing"
)

func TestSample_Tiers(t *testing.T) {
	tests := []struct {
		name     string
		duration float64
		count    int
		want     []float64
	}{
		{"unknown duration", 0, 8, []float64{1, 5, 10, 20, 30, 45, 60, 90}},
		{"negative duration", -1, 8, []float64{1, 5, 10, 20, 30, 45, 60, 90}},
		{"fallback truncated", 0, 3, []float64{1, 5, 10}},
		{"short video", 10, 8, []float64{0.1, 1.4, 2.7, 4.1, 5.4, 6.8, 8.1, 9}},
		{"medium video", 30, 8, []float64{0.1, 4, 8, 13, 17, 21, 25, 29}},
		{"long video", 100, 8, []float64{2, 10, 20, 35, 50, 65, 80, 95}},
		{"zero count uses default", 100, 0, []float64{2, 10, 20, 35, 50, 65, 80, 95}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sample(tt.duration, tt.count)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Sample(%v, %d) = %v, want %v", tt.duration, tt.count, got, tt.want)
			}
		})
	}
}

func TestSample_NaNFallsBack(t *testing.T) {
	got := Sample(math.NaN(), 8)
	if !reflect.DeepEqual(got, Fallback()) {
		t.Fatalf("Sample(NaN) = %v, want fallback %v", got, Fallback())
	}
}

func TestSample_Idempotent(t *testing.T) {
	for _, d := range []float64{0, 3.7, 10, 42, 61, 3600} {
		a := Sample(d, 8)
		b := Sample(d, 8)
		if !reflect.DeepEqual(a, b) {
			t.Errorf("Sample(%v) not deterministic: %v vs %v", d, a, b)
		}
	}
}

func TestSample_ReturnsFreshSlice(t *testing.T) {
	a := Sample(0, 8)
	a[0] = 999
	if Sample(0, 8)[0] != 1 {
		t.Fatal("mutating a result must not affect later calls")
	}
}

func TestSample_BoundsAndMonotonic(t *testing.T) {
	durations := []float64{0.3, 0.6, 1, 1.5, 2, 5.5, 9.9, 10, 10.1, 15, 33.3, 59.9, 60, 60.1, 75, 600, 7200}
	for _, d := range durations {
		for _, count := range []int{1, 2, 5, 8, 12} {
			got := Sample(d, count)
			if len(got) != count {
				t.Errorf("Sample(%v, %d) len = %d", d, count, len(got))
			}
			upper := math.Max(math.Floor(d-SafetyMargin), MinTimestamp)
			for i, ts := range got {
				if ts < MinTimestamp || ts > upper {
					t.Errorf("Sample(%v, %d)[%d] = %v outside [%v, %v]", d, count, i, ts, MinTimestamp, upper)
				}
				if i > 0 && ts < got[i-1] {
					t.Errorf("Sample(%v, %d) not monotonic at %d: %v", d, count, i, got)
				}
			}
		}
	}
}

func TestSample_TenSecondBoundary(t *testing.T) {
	for _, ts := range Sample(10, 8) {
		if ts < 0.1 || ts > 9.5 {
			t.Errorf("timestamp %v outside [0.1, 9.5]", ts)
		}
	}
}

func TestSample_ShortVideoOneDecimal(t *testing.T) {
	for _, ts := range Sample(7.3, 8) {
		if math.Abs(ts*10-math.Round(ts*10)) > 1e-9 {
			t.Errorf("timestamp %v has more than one decimal", ts)
		}
	}
}

func TestSample_MediumVideoIntegers(t *testing.T) {
	got := Sample(45, 8)
	for i, ts := range got {
		if i == 0 {
			continue // first sample is lifted to MinTimestamp
		}
		if ts != math.Trunc(ts) {
			t.Errorf("timestamp %v is not an integer", ts)
		}
	}
}
