package engine

import (
	"context"
	"math"
	"time"

	"github.com/walked/fretflow/internal/audio"
	"github.com/walked/fretflow/internal/theory"
	"github.com/walked/fretflow/pkg/logger"
)

// EventKind classifies what the engine observed on a processed block.
type EventKind int

const (
	// EventSilence: the input has been below the volume floor long enough
	// to reset the stability streak. The challenge stays active.
	EventSilence EventKind = iota
	// EventNoPitch: the detection gate passed but no usable pitch came out.
	EventNoPitch
	// EventWrongNote: a note was detected that is not the target.
	EventWrongNote
	// EventNoteConfirmed: the target was heard on enough consecutive blocks.
	EventNoteConfirmed
)

func (k EventKind) String() string {
	switch k {
	case EventSilence:
		return "silence"
	case EventNoPitch:
		return "no-pitch"
	case EventWrongNote:
		return "wrong-note"
	case EventNoteConfirmed:
		return "confirmed"
	default:
		return "unknown"
	}
}

// Event is what the engine reports to the session controller. Note is set
// for wrong-note (the note heard) and confirmed (the target) events; Elapsed
// only for confirmations.
type Event struct {
	Kind    EventKind
	Note    theory.Note
	Elapsed time.Duration
}

// State of the engine with respect to the current challenge.
type State int

const (
	StateIdle State = iota
	StateListening
	StateConfirmed
)

// FrequencyDetector estimates the dominant frequency and peak magnitude of
// one audio block. A frequency of 0 means no pitch.
type FrequencyDetector interface {
	Detect(samples []float64, sampleRate int) (freq, magnitude float64)
}

// Config holds the matching tunables.
type Config struct {
	// VolumeThreshold is the RMS floor below which a block counts as silence.
	VolumeThreshold float64
	// DeltaRatio scales VolumeThreshold into the minimum block-to-block RMS
	// change required to run detection. Gating on the change favors the
	// attack of a fresh pluck over sustained background noise.
	DeltaRatio float64
	// SilenceFrames is how many consecutive quiet blocks reset the streak.
	SilenceFrames int
	// StableFrames is how many consecutive matching blocks confirm a note.
	StableFrames int
}

func DefaultConfig() Config {
	return Config{
		VolumeThreshold: 0.02,
		DeltaRatio:      0.15,
		SilenceFrames:   2,
		StableFrames:    3,
	}
}

// Engine is the per-challenge matching state machine. It consumes blocks in
// capture order and decides when a detected note counts as the answer.
// All match state is owned here and touched only inside ProcessBlock, so no
// locking is needed as long as a single goroutine feeds it.
type Engine struct {
	cfg Config
	det FrequencyDetector
	log *logger.Logger
	now func() time.Time

	state        State
	target       theory.Note
	targetString theory.GuitarString
	stableCount  int
	lastNote     theory.Note
	hasLastNote  bool
	lastVolume   float64
	silenceRun   int
	startedAt    time.Time
}

func New(det FrequencyDetector, cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.VolumeThreshold <= 0 {
		cfg.VolumeThreshold = def.VolumeThreshold
	}
	if cfg.DeltaRatio <= 0 {
		cfg.DeltaRatio = def.DeltaRatio
	}
	if cfg.SilenceFrames <= 0 {
		cfg.SilenceFrames = def.SilenceFrames
	}
	if cfg.StableFrames <= 0 {
		cfg.StableFrames = def.StableFrames
	}
	return &Engine{
		cfg:   cfg,
		det:   det,
		log:   logger.GetLogger(),
		now:   time.Now,
		state: StateIdle,
	}
}

// State returns the engine's challenge state.
func (e *Engine) State() State {
	return e.state
}

// Start arms the engine for a new challenge, discarding any previous match
// state and timestamping the challenge for elapsed-time reporting.
func (e *Engine) Start(target theory.Note, s theory.GuitarString) {
	e.target = target
	e.targetString = s
	e.state = StateListening
	e.stableCount = 0
	e.hasLastNote = false
	e.lastVolume = 0
	e.silenceRun = 0
	e.startedAt = e.now()
	e.log.Debugf("engine: listening for %s on %s string", target, s)
}

// Reset returns the engine to idle, abandoning the current challenge.
func (e *Engine) Reset() {
	e.state = StateIdle
	e.stableCount = 0
	e.hasLastNote = false
	e.silenceRun = 0
}

// ProcessBlock applies one captured block to the match state. The returned
// bool reports whether an event was emitted. Blocks are ignored unless a
// challenge is active; after a confirmation, further blocks are ignored until
// the next Start.
func (e *Engine) ProcessBlock(b audio.Block) (Event, bool) {
	if e.state != StateListening {
		return Event{}, false
	}

	delta := math.Abs(b.RMS - e.lastVolume)
	e.lastVolume = b.RMS

	if b.RMS < e.cfg.VolumeThreshold {
		e.silenceRun++
		if e.silenceRun >= e.cfg.SilenceFrames {
			e.stableCount = 0
			e.hasLastNote = false
			return Event{Kind: EventSilence}, true
		}
		return Event{}, false
	}
	e.silenceRun = 0

	// Detection gate: loud enough, and a real transient.
	if delta <= e.cfg.VolumeThreshold*e.cfg.DeltaRatio {
		return Event{}, false
	}

	freq, _ := e.det.Detect(b.Samples, b.SampleRate)
	note, ok := theory.FrequencyToNote(freq)
	if !ok {
		return Event{Kind: EventNoPitch}, true
	}

	if theory.SameNote(note, e.target) {
		if e.hasLastNote && note == e.lastNote {
			e.stableCount++
		} else {
			e.stableCount = 1
		}
		e.lastNote = note
		e.hasLastNote = true

		// Confirmation is checked on the increment that reaches the
		// threshold, never polled separately.
		if e.stableCount >= e.cfg.StableFrames {
			e.state = StateConfirmed
			elapsed := e.now().Sub(e.startedAt)
			e.log.Infof("engine: confirmed %s on %s string in %.2fs",
				e.target, e.targetString, elapsed.Seconds())
			return Event{Kind: EventNoteConfirmed, Note: e.target, Elapsed: elapsed}, true
		}
		return Event{}, false
	}

	e.stableCount = 0
	return Event{Kind: EventWrongNote, Note: note}, true
}

// Run consumes blocks until the challenge is confirmed, the channel closes,
// or ctx is cancelled (checked once per block). Emitted events are forwarded
// to the events channel. Blocks are processed strictly in arrival order.
func (e *Engine) Run(ctx context.Context, blocks <-chan audio.Block, events chan<- Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case b, ok := <-blocks:
			if !ok {
				return
			}
			ev, emitted := e.ProcessBlock(b)
			if !emitted {
				continue
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
			if ev.Kind == EventNoteConfirmed {
				return
			}
		}
	}
}
