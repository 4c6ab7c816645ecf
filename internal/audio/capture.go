package audio

import (
	"fmt"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/walked/fretflow/pkg/logger"
)

// CaptureConfig configures the microphone source.
type CaptureConfig struct {
	SampleRate    int           // default 22050 Hz
	BlockDuration time.Duration // default 100 ms
	QueueSize     int           // default 8 blocks
}

func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{
		SampleRate:    22050,
		BlockDuration: 100 * time.Millisecond,
		QueueSize:     8,
	}
}

// Capture turns the default input device into a stream of Blocks. The queue
// between the portaudio callback thread and the consumer is bounded; when the
// consumer falls behind, the oldest queued block is dropped so delivered
// blocks stay current. Delivery order is capture order.
//
// portaudio.Initialize must have been called before NewCapture.
type Capture struct {
	cfg     CaptureConfig
	stream  *portaudio.Stream
	blocks  chan Block
	dropped uint64
	log     *logger.Logger
}

func NewCapture(cfg CaptureConfig) (*Capture, error) {
	def := DefaultCaptureConfig()
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = def.SampleRate
	}
	if cfg.BlockDuration <= 0 {
		cfg.BlockDuration = def.BlockDuration
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}

	c := &Capture{
		cfg:    cfg,
		blocks: make(chan Block, cfg.QueueSize),
		log:    logger.GetLogger(),
	}

	blockSize := int(float64(cfg.SampleRate) * cfg.BlockDuration.Seconds())
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(cfg.SampleRate), blockSize, c.push)
	if err != nil {
		return nil, fmt.Errorf("opening input stream: %w", err)
	}
	c.stream = stream
	return c, nil
}

// push runs on the portaudio callback thread. It must not block.
func (c *Capture) push(in []float32) {
	samples := make([]float64, len(in))
	for i, v := range in {
		samples[i] = float64(v)
	}
	b := NewBlock(samples, c.cfg.SampleRate)

	for {
		select {
		case c.blocks <- b:
			return
		default:
		}
		select {
		case <-c.blocks:
			c.dropped++
			c.log.Debugf("audio: consumer behind, dropped oldest block (%d total)", c.dropped)
		default:
		}
	}
}

// Blocks returns the capture output. Blocks arrive in capture order.
func (c *Capture) Blocks() <-chan Block {
	return c.blocks
}

// Dropped reports how many blocks were discarded under backpressure.
func (c *Capture) Dropped() uint64 {
	return c.dropped
}

func (c *Capture) Start() error {
	if err := c.stream.Start(); err != nil {
		return fmt.Errorf("starting input stream: %w", err)
	}
	c.log.Infof("audio: capturing at %d Hz, %s blocks", c.cfg.SampleRate, c.cfg.BlockDuration)
	return nil
}

func (c *Capture) Stop() error {
	return c.stream.Stop()
}

func (c *Capture) Close() error {
	return c.stream.Close()
}
