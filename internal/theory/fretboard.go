package theory

import "fmt"

// GuitarString identifies one of the six strings in standard tuning.
// The low and high E strings are distinct even though they share a pitch
// class; their canonical names are "E" and "e".
type GuitarString int

const (
	LowE GuitarString = iota
	AString
	DString
	GString
	BString
	HighE
)

var stringNames = [6]string{"E", "A", "D", "G", "B", "e"}

// openNotes is the pitch class of each open string.
var openNotes = [6]Note{E, A, D, G, B, E}

// Strings lists all six strings from low to high.
var Strings = [6]GuitarString{LowE, AString, DString, GString, BString, HighE}

func (s GuitarString) String() string {
	if !s.Valid() {
		return fmt.Sprintf("GuitarString(%d)", int(s))
	}
	return stringNames[s]
}

// Valid reports whether s is one of the six strings.
func (s GuitarString) Valid() bool {
	return s >= 0 && s < 6
}

// OpenNote returns the pitch class of the open string.
func (s GuitarString) OpenNote() Note {
	return openNotes[s]
}

// ParseString converts a string name to a GuitarString. Names are case
// sensitive: "E" is the low string, "e" the high one.
func ParseString(name string) (GuitarString, error) {
	for i, n := range stringNames {
		if n == name {
			return GuitarString(i), nil
		}
	}
	return 0, fmt.Errorf("unknown guitar string %q", name)
}

// Fret is a position along a string. The per-octave map covers 0 (open)
// through 11; NearestFret may additionally report 12 after an octave shift.
type Fret int

// FretOf returns the fret where note sounds on s within the first octave.
// Total and deterministic for all 72 (string, note) pairs.
func FretOf(s GuitarString, n Note) Fret {
	d := (int(n) - int(openNotes[s])) % 12
	if d < 0 {
		d += 12
	}
	return Fret(d)
}

// PositionsOf returns every fret on s matching note by semitone. The
// per-octave map yields exactly one, but callers treat it as a list.
func PositionsOf(n Note, s GuitarString) []Fret {
	return []Fret{FretOf(s, n)}
}

// NearestFret picks the fret for note on s closest to reference. Ties go to
// the lowest fret. When the best candidate is still more than 4 frets away,
// it is shifted one octave toward the reference, but only if the shifted
// value stays within [0, 12]; otherwise the unshifted candidate stands.
func NearestFret(n Note, s GuitarString, reference Fret) (Fret, bool) {
	positions := PositionsOf(n, s)
	if len(positions) == 0 {
		return 0, false
	}

	best := positions[0]
	for _, f := range positions[1:] {
		df := absInt(int(f) - int(reference))
		db := absInt(int(best) - int(reference))
		if df < db || (df == db && f < best) {
			best = f
		}
	}

	if absInt(int(best)-int(reference)) > 4 {
		if best > reference && int(best)-12 >= 0 {
			best -= 12
		} else if best < reference && int(best)+12 <= 12 {
			best += 12
		}
	}

	return best, true
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
