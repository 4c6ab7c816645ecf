package audio

import "math"

// Block is one fixed-duration chunk of mono samples together with the RMS
// volume computed by the capture source.
type Block struct {
	Samples    []float64
	SampleRate int
	RMS        float64
}

// NewBlock wraps samples into a Block with its RMS precomputed.
func NewBlock(samples []float64, sampleRate int) Block {
	return Block{
		Samples:    samples,
		SampleRate: sampleRate,
		RMS:        ComputeRMS(samples),
	}
}

// ComputeRMS returns the root mean square amplitude. Empty input is 0.
func ComputeRMS(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(samples)))
}
