package pitch

import (
	"errors"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"

	"github.com/walked/fretflow/pkg/logger"
)

var (
	ErrEmptyBlock     = errors.New("empty audio block")
	ErrBadSampleRate  = errors.New("sample rate must be positive")
	ErrBandUnresolved = errors.New("frequency band resolves to no FFT bins")
)

// Config holds the detector tunables. Zero values fall back to defaults that
// suit a 22050 Hz, 0.1 s interactive block.
type Config struct {
	WindowSize         int     // analysis frame length in samples
	HopLength          int     // samples to advance between frames
	MinFreq            float64 // lowest candidate frequency in Hz
	MaxFreq            float64 // highest candidate frequency in Hz
	MagnitudeThreshold float64 // minimum normalized peak magnitude
}

func DefaultConfig() Config {
	return Config{
		WindowSize:         1024,
		HopLength:          32,
		MinFreq:            50.0,   // about G1
		MaxFreq:            1000.0, // about B5
		MagnitudeThreshold: 0.1,
	}
}

// smoothingDepth is the number of recent estimates averaged together.
const smoothingDepth = 2

// Detector estimates the dominant fundamental frequency of audio blocks.
// The smoothing window over recent estimates is an explicit field, created
// empty at construction and carried across calls; it is never reset, since it
// only ever holds the most recent estimates. Not safe for concurrent use.
type Detector struct {
	cfg    Config
	window []float64 // precomputed Hamming coefficients
	recent []float64 // last nonzero frequency estimates, oldest first
	log    *logger.Logger
}

func New(cfg Config) *Detector {
	def := DefaultConfig()
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = def.WindowSize
	}
	if cfg.HopLength <= 0 {
		cfg.HopLength = def.HopLength
	}
	if cfg.MinFreq <= 0 {
		cfg.MinFreq = def.MinFreq
	}
	if cfg.MaxFreq <= cfg.MinFreq {
		cfg.MaxFreq = def.MaxFreq
	}
	if cfg.MagnitudeThreshold <= 0 {
		cfg.MagnitudeThreshold = def.MagnitudeThreshold
	}
	return &Detector{
		cfg:    cfg,
		window: hamming(cfg.WindowSize),
		recent: make([]float64, 0, smoothingDepth),
		log:    logger.GetLogger(),
	}
}

// hamming returns a Hamming window of length n.
func hamming(n int) []float64 {
	w := make([]float64, n)
	for i := 0; i < n; i++ {
		w[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

// Detect estimates the fundamental frequency of one block and the normalized
// magnitude of the winning spectral peak. A magnitude below the configured
// threshold, or any internal fault, yields frequency 0; faults are logged and
// never propagate. The returned frequency is the mean of the last two nonzero
// estimates, which smooths single-frame jitter.
func (d *Detector) Detect(samples []float64, sampleRate int) (freq, magnitude float64) {
	raw, mag, err := d.analyze(samples, sampleRate)
	if err != nil {
		d.log.Warnf("pitch: detection fault: %v", err)
		return 0, 0
	}
	if raw == 0 || mag < d.cfg.MagnitudeThreshold {
		return 0, mag
	}

	d.recent = append(d.recent, raw)
	if len(d.recent) > smoothingDepth {
		d.recent = d.recent[1:]
	}
	var sum float64
	for _, f := range d.recent {
		sum += f
	}
	return sum / float64(len(d.recent)), mag
}

// analyze runs the short-time spectral scan over the block and returns the
// global maximum-magnitude candidate across all frames.
func (d *Detector) analyze(samples []float64, sampleRate int) (freq, magnitude float64, err error) {
	if len(samples) == 0 {
		return 0, 0, ErrEmptyBlock
	}
	if sampleRate <= 0 {
		return 0, 0, ErrBadSampleRate
	}

	n := d.cfg.WindowSize
	binHz := float64(sampleRate) / float64(n)
	minBin := int(d.cfg.MinFreq / binHz)
	if minBin < 1 {
		minBin = 1 // skip the DC component
	}
	maxBin := int(d.cfg.MaxFreq / binHz)
	if maxBin > n/2-1 {
		maxBin = n/2 - 1
	}
	if minBin > maxBin {
		return 0, 0, ErrBandUnresolved
	}

	// Normalizer so a sine of amplitude a reports magnitude close to a.
	var windowSum float64
	for _, w := range d.window {
		windowSum += w
	}

	frame := make([]float64, n)
	var bestFreq, bestMag float64

	for start := 0; start == 0 || start+n <= len(samples); start += d.cfg.HopLength {
		end := start + n
		if end > len(samples) {
			// Block shorter than one window: analyze a single
			// zero-padded frame.
			end = len(samples)
		}
		copy(frame, samples[start:end])
		for i := end - start; i < n; i++ {
			frame[i] = 0
		}
		for i := 0; i < n; i++ {
			frame[i] *= d.window[i]
		}

		spectrum := fft.FFTReal(frame)
		f, m := peakCandidate(spectrum, minBin, maxBin, binHz, windowSum)
		if m > bestMag {
			bestMag = m
			bestFreq = f
		}
	}

	if math.IsNaN(bestFreq) || math.IsInf(bestFreq, 0) ||
		math.IsNaN(bestMag) || math.IsInf(bestMag, 0) {
		return 0, 0, errors.New("non-finite spectral estimate")
	}
	return bestFreq, bestMag, nil
}

// peakCandidate finds the strongest bin within [minBin, maxBin] and refines
// its frequency by parabolic interpolation over the neighboring bins.
func peakCandidate(spectrum []complex128, minBin, maxBin int, binHz, windowSum float64) (freq, magnitude float64) {
	peakBin := -1
	var peakMag float64
	for k := minBin; k <= maxBin; k++ {
		if m := cmplx.Abs(spectrum[k]); m > peakMag {
			peakMag = m
			peakBin = k
		}
	}
	if peakBin < 0 {
		return 0, 0
	}

	left := cmplx.Abs(spectrum[peakBin-1])
	right := peakMag
	if peakBin+1 < len(spectrum) {
		right = cmplx.Abs(spectrum[peakBin+1])
	}

	// Quadratic fit through the peak and its neighbors. The shift is
	// limited to plus/minus half a bin.
	shift := 0.0
	denom := 2*peakMag - left - right
	if denom != 0 {
		shift = 0.5 * (right - left) / denom
		if shift < -0.5 {
			shift = -0.5
		} else if shift > 0.5 {
			shift = 0.5
		}
	}

	freq = (float64(peakBin) + shift) * binHz
	magnitude = 2 * peakMag / windowSum
	return freq, magnitude
}
