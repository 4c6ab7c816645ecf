package pitch

import (
	"math"
	"testing"

	"github.com/walked/fretflow/internal/theory"
)

// sine produces amp*sin(2*pi*freq*t) sampled at sampleRate.
func sine(freq, amp float64, sampleRate, n int) []float64 {
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return samples
}

const (
	testRate  = 22050
	testBlock = 2205 // 0.1 s
)

func TestDetectSine(t *testing.T) {
	d := New(DefaultConfig())

	freq, mag := d.Detect(sine(440.0, 0.5, testRate, testBlock), testRate)
	if mag < DefaultConfig().MagnitudeThreshold {
		t.Fatalf("magnitude %.4f below threshold for a loud sine", mag)
	}
	if math.Abs(freq-440.0) > 5.0 {
		t.Fatalf("detected %.2f Hz, want ~440", freq)
	}
	note, ok := theory.FrequencyToNote(freq)
	if !ok || note != theory.A {
		t.Errorf("resolved to %s, want A", note)
	}
}

func TestDetectSineMidRange(t *testing.T) {
	d := New(DefaultConfig())

	freq, _ := d.Detect(sine(523.25, 0.6, testRate, testBlock), testRate)
	note, ok := theory.FrequencyToNote(freq)
	if !ok || note != theory.C {
		t.Errorf("523.25 Hz resolved to %s (%.2f Hz), want C", note, freq)
	}
}

func TestDetectSilence(t *testing.T) {
	d := New(DefaultConfig())

	freq, mag := d.Detect(make([]float64, testBlock), testRate)
	if freq != 0 {
		t.Errorf("silence detected as %.2f Hz", freq)
	}
	if mag >= DefaultConfig().MagnitudeThreshold {
		t.Errorf("silence magnitude %.4f above threshold", mag)
	}
}

func TestDetectQuietSignalBelowThreshold(t *testing.T) {
	d := New(DefaultConfig())

	freq, _ := d.Detect(sine(440.0, 0.01, testRate, testBlock), testRate)
	if freq != 0 {
		t.Errorf("0.01-amplitude sine reported %.2f Hz, want no pitch", freq)
	}
}

func TestDetectEmptyBlockDegrades(t *testing.T) {
	d := New(DefaultConfig())

	freq, mag := d.Detect(nil, testRate)
	if freq != 0 || mag != 0 {
		t.Errorf("empty block returned (%.2f, %.4f), want (0, 0)", freq, mag)
	}
}

func TestDetectBadSampleRateDegrades(t *testing.T) {
	d := New(DefaultConfig())

	freq, mag := d.Detect(sine(440.0, 0.5, testRate, testBlock), 0)
	if freq != 0 || mag != 0 {
		t.Errorf("bad sample rate returned (%.2f, %.4f), want (0, 0)", freq, mag)
	}
}

func TestDetectShortBlockZeroPadded(t *testing.T) {
	d := New(DefaultConfig())

	// Shorter than one analysis window; detector pads instead of failing.
	freq, _ := d.Detect(sine(440.0, 0.8, testRate, 512), testRate)
	if freq == 0 {
		t.Fatal("short block produced no pitch")
	}
	note, ok := theory.FrequencyToNote(freq)
	if !ok || note != theory.A {
		t.Errorf("short block resolved to %s (%.2f Hz), want A", note, freq)
	}
}

func TestDetectSmoothsAcrossCalls(t *testing.T) {
	d := New(DefaultConfig())

	first, _ := d.Detect(sine(440.0, 0.5, testRate, testBlock), testRate)
	second, _ := d.Detect(sine(494.0, 0.5, testRate, testBlock), testRate)

	// The second output is the mean of the two raw estimates, so it must sit
	// between them rather than at the new tone.
	if second <= first || second >= 490.0 {
		t.Errorf("smoothed estimate %.2f not between %.2f and 490", second, first)
	}

	// A third call on the new tone pushes the old estimate out of the window.
	third, _ := d.Detect(sine(494.0, 0.5, testRate, testBlock), testRate)
	if math.Abs(third-494.0) > 6.0 {
		t.Errorf("window did not self-correct: %.2f Hz, want ~494", third)
	}
}

func TestDetectSilenceKeepsSmoothingWindow(t *testing.T) {
	d := New(DefaultConfig())

	d.Detect(sine(440.0, 0.5, testRate, testBlock), testRate)
	// No-pitch blocks are not admitted into the smoothing window.
	d.Detect(make([]float64, testBlock), testRate)
	freq, _ := d.Detect(sine(440.0, 0.5, testRate, testBlock), testRate)
	if math.Abs(freq-440.0) > 5.0 {
		t.Errorf("estimate drifted to %.2f Hz after a silent block", freq)
	}
}
