package audio

import (
	"math"
	"testing"
)

func TestComputeRMSEmpty(t *testing.T) {
	if got := ComputeRMS(nil); got != 0 {
		t.Errorf("ComputeRMS(nil) = %f, want 0", got)
	}
	if got := ComputeRMS([]float64{}); got != 0 {
		t.Errorf("ComputeRMS(empty) = %f, want 0", got)
	}
}

func TestComputeRMSSine(t *testing.T) {
	// RMS of a full-cycle sine of amplitude a is a/sqrt(2).
	const amp = 0.5
	n := 22050
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = amp * math.Sin(2*math.Pi*100*float64(i)/float64(n))
	}
	want := amp / math.Sqrt2
	if got := ComputeRMS(samples); math.Abs(got-want) > 0.001 {
		t.Errorf("ComputeRMS = %f, want %f", got, want)
	}
}

func TestComputeRMSConstant(t *testing.T) {
	samples := []float64{0.25, -0.25, 0.25, -0.25}
	if got := ComputeRMS(samples); math.Abs(got-0.25) > 1e-12 {
		t.Errorf("ComputeRMS = %f, want 0.25", got)
	}
}

func TestNewBlock(t *testing.T) {
	b := NewBlock([]float64{0.1, -0.1}, 22050)
	if b.SampleRate != 22050 {
		t.Errorf("SampleRate = %d", b.SampleRate)
	}
	if math.Abs(b.RMS-0.1) > 1e-12 {
		t.Errorf("RMS = %f, want 0.1", b.RMS)
	}
}

func TestChunkBlocks(t *testing.T) {
	samples := make([]float64, 10)
	blocks := chunkBlocks(samples, 22050, 4)
	if len(blocks) != 3 {
		t.Fatalf("got %d blocks, want 3", len(blocks))
	}
	if len(blocks[0].Samples) != 4 || len(blocks[2].Samples) != 2 {
		t.Errorf("block sizes %d/%d, want 4 and trailing 2",
			len(blocks[0].Samples), len(blocks[2].Samples))
	}
	if blocks[1].SampleRate != 22050 {
		t.Errorf("SampleRate = %d", blocks[1].SampleRate)
	}
}

func TestChunkBlocksDegenerate(t *testing.T) {
	if blocks := chunkBlocks(nil, 22050, 4); blocks != nil {
		t.Errorf("chunkBlocks(nil) = %v, want nil", blocks)
	}
	if blocks := chunkBlocks(make([]float64, 8), 22050, 0); blocks != nil {
		t.Errorf("chunkBlocks with zero block size = %v, want nil", blocks)
	}
}
