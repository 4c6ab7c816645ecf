package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/walked/fretflow/internal/audio"
	"github.com/walked/fretflow/internal/engine"
	"github.com/walked/fretflow/internal/pitch"
	"github.com/walked/fretflow/internal/storage"
	"github.com/walked/fretflow/internal/theory"
	"github.com/walked/fretflow/pkg/logger"
)

// Difficulty restricts which notes challenges draw from.
type Difficulty int

const (
	NaturalOnly Difficulty = iota
	AllNotes
)

func (d Difficulty) String() string {
	switch d {
	case NaturalOnly:
		return "natural"
	case AllNotes:
		return "all"
	default:
		return "unknown"
	}
}

func ParseDifficulty(s string) (Difficulty, error) {
	switch s {
	case "natural":
		return NaturalOnly, nil
	case "all":
		return AllNotes, nil
	default:
		return 0, fmt.Errorf("unknown difficulty %q (want natural or all)", s)
	}
}

// Challenge is one target to find: a note on a specific string.
type Challenge struct {
	Note   theory.Note
	String theory.GuitarString
}

var (
	// ErrNoStrings: the caller enabled zero strings. This is a
	// configuration error above the matching core, which simply has
	// nothing to listen for.
	ErrNoStrings = errors.New("no strings selected")
	// ErrNoChallenge: RunChallenge was called without an active challenge.
	ErrNoChallenge = errors.New("no active challenge")
)

// Config for a practice session.
type Config struct {
	Strings    []theory.GuitarString // nil defaults to E and A
	Difficulty Difficulty
	Engine     engine.Config
	Detector   pitch.Config
	Store      *storage.Client // optional persistence; nil disables it
	Seed       int64           // rng seed; 0 seeds from the clock

	// Detect overrides the pitch detector, mainly for tests.
	Detect engine.FrequencyDetector
}

// Controller owns challenge selection, elapsed-time bookkeeping, and the
// hand-off of engine events to storage. One controller is one session.
type Controller struct {
	cfg       Config
	rng       *rand.Rand
	eng       *engine.Engine
	log       *logger.Logger
	store     *storage.Client
	sessionID string

	current Challenge
	active  bool
	prev    theory.Note
	hasPrev bool
	times   []time.Duration
}

func New(cfg Config) (*Controller, error) {
	if cfg.Strings == nil {
		cfg.Strings = []theory.GuitarString{theory.LowE, theory.AString}
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	det := cfg.Detect
	if det == nil {
		det = pitch.New(cfg.Detector)
	}

	c := &Controller{
		cfg:   cfg,
		rng:   rand.New(rand.NewSource(seed)),
		eng:   engine.New(det, cfg.Engine),
		log:   logger.GetLogger(),
		store: cfg.Store,
	}

	if c.store != nil {
		names := make([]string, len(cfg.Strings))
		for i, s := range cfg.Strings {
			names[i] = s.String()
		}
		id, err := c.store.CreateSession(cfg.Difficulty.String(), names)
		if err != nil {
			return nil, fmt.Errorf("registering session: %w", err)
		}
		c.sessionID = id
	}

	return c, nil
}

// SessionID is empty when persistence is disabled.
func (c *Controller) SessionID() string {
	return c.sessionID
}

// Current returns the active challenge.
func (c *Controller) Current() (Challenge, bool) {
	return c.current, c.active
}

// availableNotes returns the note pool for the configured difficulty.
func (c *Controller) availableNotes() []theory.Note {
	if c.cfg.Difficulty == NaturalOnly {
		return theory.NaturalNotes[:]
	}
	return theory.AllNotes[:]
}

// NextChallenge picks a random enabled string and a random note from the
// difficulty pool, never repeating the previous note, and arms the engine.
func (c *Controller) NextChallenge() (Challenge, error) {
	if len(c.cfg.Strings) == 0 {
		return Challenge{}, ErrNoStrings
	}

	s := c.cfg.Strings[c.rng.Intn(len(c.cfg.Strings))]
	notes := c.availableNotes()
	note := notes[c.rng.Intn(len(notes))]
	for len(notes) > 1 && c.hasPrev && note == c.prev {
		note = notes[c.rng.Intn(len(notes))]
	}

	ch := Challenge{Note: note, String: s}
	c.StartChallenge(ch)
	return ch, nil
}

// StartChallenge arms the engine for an explicit target, discarding any
// challenge already in flight.
func (c *Controller) StartChallenge(ch Challenge) {
	c.current = ch
	c.active = true
	c.prev = ch.Note
	c.hasPrev = true
	c.eng.Start(ch.Note, ch.String)
}

// Hint describes where the current target sits on the fretboard.
func (c *Controller) Hint() (string, error) {
	if !c.active {
		return "", ErrNoChallenge
	}
	fret := theory.FretOf(c.current.String, c.current.Note)
	if fret == 0 {
		return fmt.Sprintf("%s is the open %s string", c.current.Note, c.current.String), nil
	}
	return fmt.Sprintf("%s on the %s string is at fret %d", c.current.Note, c.current.String, fret), nil
}

// RunChallenge processes blocks for the current challenge until it is
// confirmed, the block stream ends, or ctx is cancelled. Every emitted engine
// event is forwarded to onEvent (which may be nil) after the controller's own
// bookkeeping. Cancelling ctx is how an externally triggered reset stops the
// worker; a subsequent StartChallenge supersedes the abandoned one.
func (c *Controller) RunChallenge(ctx context.Context, blocks <-chan audio.Block, onEvent func(engine.Event)) error {
	if !c.active {
		return ErrNoChallenge
	}

	events := make(chan engine.Event, 8)
	go func() {
		defer close(events)
		c.eng.Run(ctx, blocks, events)
	}()

	for ev := range events {
		c.handleEvent(ev)
		if onEvent != nil {
			onEvent(ev)
		}
	}
	return ctx.Err()
}

func (c *Controller) handleEvent(ev engine.Event) {
	if ev.Kind != engine.EventNoteConfirmed {
		return
	}

	c.times = append(c.times, ev.Elapsed)
	c.active = false

	if c.store != nil {
		fret := theory.FretOf(c.current.String, c.current.Note)
		err := c.store.RecordAttempt(c.sessionID, c.current.Note.String(),
			c.current.String.String(), int(fret), ev.Elapsed)
		if err != nil {
			c.log.Warnf("session: failed to persist attempt: %v", err)
		}
	}
}

// Times returns the elapsed time of every confirmed challenge, in order.
func (c *Controller) Times() []time.Duration {
	return c.times
}

// AverageTime over all confirmed challenges; 0 when none.
func (c *Controller) AverageTime() time.Duration {
	if len(c.times) == 0 {
		return 0
	}
	var sum time.Duration
	for _, d := range c.times {
		sum += d
	}
	return sum / time.Duration(len(c.times))
}
