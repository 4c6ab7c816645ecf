package audio

import (
	"errors"
	"fmt"
	"os"
	"time"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// BatchBlockDuration is the block length used when replaying recorded audio
// through the pipeline. Larger than the interactive 0.1 s block; not used on
// the live path.
const BatchBlockDuration = 500 * time.Millisecond

// ReadBlocks decodes a PCM WAV file, folds it to mono float64 samples in
// [-1, 1], and chunks it into Blocks of blockDur with per-block RMS. A
// trailing partial block is kept. blockDur <= 0 falls back to
// BatchBlockDuration.
func ReadBlocks(path string, blockDur time.Duration) ([]Block, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening wav file: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decoding wav data: %w", err)
	}
	if !dec.IsValidFile() {
		return nil, errors.New("not a valid WAV file")
	}

	bitDepth := int(dec.BitDepth)
	if bitDepth == 0 {
		bitDepth = 16
	}
	samples, sampleRate, err := monoFloat(buf, bitDepth)
	if err != nil {
		return nil, err
	}

	if blockDur <= 0 {
		blockDur = BatchBlockDuration
	}
	blockSize := int(float64(sampleRate) * blockDur.Seconds())
	return chunkBlocks(samples, sampleRate, blockSize), nil
}

// monoFloat averages the channels of an integer PCM buffer into mono float64
// samples scaled to [-1, 1].
func monoFloat(buf *gaudio.IntBuffer, bitDepth int) ([]float64, int, error) {
	if buf == nil || buf.Format == nil {
		return nil, 0, errors.New("wav decoder returned no format")
	}
	numCh := buf.Format.NumChannels
	if numCh <= 0 {
		return nil, 0, fmt.Errorf("invalid channel count %d", numCh)
	}

	scale := float64(int(1) << (bitDepth - 1))
	frames := len(buf.Data) / numCh
	samples := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for ch := 0; ch < numCh; ch++ {
			sum += float64(buf.Data[i*numCh+ch])
		}
		samples[i] = sum / float64(numCh) / scale
	}
	return samples, buf.Format.SampleRate, nil
}

// chunkBlocks splits samples into consecutive Blocks of blockSize samples.
func chunkBlocks(samples []float64, sampleRate, blockSize int) []Block {
	if blockSize <= 0 || len(samples) == 0 {
		return nil
	}
	blocks := make([]Block, 0, len(samples)/blockSize+1)
	for start := 0; start < len(samples); start += blockSize {
		end := start + blockSize
		if end > len(samples) {
			end = len(samples)
		}
		blocks = append(blocks, NewBlock(samples[start:end], sampleRate))
	}
	return blocks
}
