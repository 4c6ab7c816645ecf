package theory

import (
	"fmt"
	"math"
)

// Note is a pitch class on the equal-tempered chromatic scale, 0 = C.
// Equality is by semitone; the display name comes from the canonical
// sharp-spelled table (semitone 1 is always "C#", never "Db").
type Note int

const (
	C Note = iota
	CSharp
	D
	DSharp
	E
	F
	FSharp
	G
	GSharp
	A
	ASharp
	B
)

// noteNames is the single canonical source of note spellings.
var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// NaturalNotes are the seven unaltered notes, in the order challenges draw
// from when difficulty is restricted to naturals.
var NaturalNotes = [7]Note{A, B, C, D, E, F, G}

// AllNotes lists every pitch class in chromatic order.
var AllNotes = [12]Note{C, CSharp, D, DSharp, E, F, FSharp, G, GSharp, A, ASharp, B}

// referenceFrequency is A4.
const referenceFrequency = 440.0

func (n Note) String() string {
	if !n.Valid() {
		return fmt.Sprintf("Note(%d)", int(n))
	}
	return noteNames[n]
}

// Valid reports whether n is within the 12-semitone range.
func (n Note) Valid() bool {
	return n >= 0 && n < 12
}

// ParseNote converts a spelled note name ("C", "F#") to a Note. Only the
// canonical sharp spellings are accepted.
func ParseNote(s string) (Note, error) {
	for i, name := range noteNames {
		if name == s {
			return Note(i), nil
		}
	}
	return 0, fmt.Errorf("unknown note %q", s)
}

// SameNote reports whether a and b are the same pitch class. Octaves are not
// modeled, so this is semitone equality.
func SameNote(a, b Note) bool {
	return a == b
}

// FrequencyToNote maps a frequency in Hz to the nearest pitch class.
// Returns false for non-positive, NaN or infinite input. The semitone
// distance from A4 is rounded half away from zero, then shifted by 9 so the
// C-anchored table resolves 440 Hz to A.
func FrequencyToNote(freq float64) (Note, bool) {
	if freq <= 0 || math.IsNaN(freq) || math.IsInf(freq, 0) {
		return 0, false
	}
	n := int(math.Round(12 * math.Log2(freq/referenceFrequency)))
	idx := (n + 9) % 12
	if idx < 0 {
		idx += 12
	}
	note := Note(idx)
	if !note.Valid() {
		return 0, false
	}
	return note, true
}

// Intervals returns the major third and perfect fifth above root.
func Intervals(root Note) (third, fifth Note) {
	third = (root + 4) % 12
	fifth = (root + 7) % 12
	return third, fifth
}
