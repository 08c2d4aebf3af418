package timestamps

import (
	"regexp"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

const (
	// DefaultMarker is the hour glyph a recognised segment must contain.
	DefaultMarker = "시"
	minuteGlyph   = "분"
	// DefaultEpochCorrection is the offset, in seconds, between the on-screen
	// clock and the start of the recording (nine hours).
	DefaultEpochCorrection = 9 * 3600
)

// Offset is a position in seconds relative to the start of the broadcast.
type Offset int

// Parser turns recognised clock text into offsets.
type Parser struct {
	marker     string
	correction int
	pattern    *regexp.Regexp
}

// NewParser builds a parser for the given hour glyph and epoch correction.
func NewParser(marker string, correction int) Parser {
	if marker == "" {
		marker = DefaultMarker
	}
	return Parser{
		marker:     marker,
		correction: correction,
		pattern:    regexp.MustCompile(`(?:^|\D)(\d{1,2})` + regexp.QuoteMeta(marker) + `\s+(\d{1,2})` + minuteGlyph),
	}
}

var defaultParser = NewParser(DefaultMarker, DefaultEpochCorrection)

// ParseOffset parses segment with the default glyph and correction.
func ParseOffset(segment string) (Offset, bool) {
	return defaultParser.Parse(segment)
}

// Normalize folds full-width digits and composes Hangul so OCR output matches
// the ASCII digit pattern.
func Normalize(segment string) string {
	return width.Fold.String(norm.NFC.String(segment))
}

// Keep reports whether segment contains the hour glyph. The minute glyph is
// not required here.
func (p Parser) Keep(segment string) bool {
	return strings.Contains(Normalize(segment), p.marker)
}

// Parse extracts the first strict "H시 M분" clock in segment. Segments without
// a strict match, or with an impossible clock, yield ok=false.
func (p Parser) Parse(segment string) (Offset, bool) {
	match := p.pattern.FindStringSubmatch(Normalize(segment))
	if match == nil {
		return 0, false
	}
	hour, err := strconv.Atoi(match[1])
	if err != nil || hour > 23 {
		return 0, false
	}
	minute, err := strconv.Atoi(match[2])
	if err != nil || minute > 59 {
		return 0, false
	}
	return Offset(hour*3600 + minute*60 - p.correction), true
}

// Set is an ascending, duplicate-free list of offsets.
type Set struct {
	offsets []Offset
}

// NewSet sorts and deduplicates values.
func NewSet(values ...Offset) Set {
	offsets := slices.Clone(values)
	slices.Sort(offsets)
	return Set{offsets: slices.Compact(offsets)}
}

// Len returns the number of offsets.
func (s Set) Len() int { return len(s.offsets) }

// Offsets returns a copy of the ordered offsets.
func (s Set) Offsets() []Offset { return slices.Clone(s.offsets) }

// Seconds returns the offsets as plain ints.
func (s Set) Seconds() []int {
	out := make([]int, len(s.offsets))
	for i, o := range s.offsets {
		out[i] = int(o)
	}
	return out
}
