package timestamps

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseOffset(t *testing.T) {
	tests := []struct {
		name    string
		segment string
		want    Offset
		ok      bool
	}{
		{"nine thirty", "9시 30분", 1800, true},
		{"two digit hour", "조선중앙TV 20시 05분 방송", 11*3600 + 5*60, true},
		{"multiple spaces", "10시   0분", 3600, true},
		{"full width digits", "９시 ３０분", 1800, true},
		{"midnight is negative", "0시 0분", -32400, true},
		{"no space", "9시30분", 0, false},
		{"minute glyph missing", "9시 30", 0, false},
		{"hour glyph only", "오후 9시", 0, false},
		{"loose digits", "9 30", 0, false},
		{"impossible hour", "25시 10분", 0, false},
		{"impossible minute", "9시 75분", 0, false},
		{"three digit hour", "123시 30분", 0, false},
		{"three digit minute", "9시 130분", 0, false},
		{"glyph directly before hour", "방송09시 30분", 1800, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseOffset(tt.segment)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestParserKeepNeedsHourGlyphOnly(t *testing.T) {
	p := NewParser("", DefaultEpochCorrection)
	assert.True(t, p.Keep("9시"))
	assert.True(t, p.Keep("9시 30분"))
	assert.False(t, p.Keep("30분"))
	assert.False(t, p.Keep("KCTV"))
}

func TestParserCustomCorrection(t *testing.T) {
	p := NewParser(DefaultMarker, 0)
	got, ok := p.Parse("9시 30분")
	assert.True(t, ok)
	assert.Equal(t, Offset(9*3600+1800), got)
}

func TestNewSetSortsAndDeduplicates(t *testing.T) {
	s := NewSet(3600, 1800, 3600, 0, 1800)
	assert.Equal(t, []Offset{0, 1800, 3600}, s.Offsets())
	assert.Equal(t, []int{0, 1800, 3600}, s.Seconds())
	assert.Equal(t, 3, s.Len())
	assert.Zero(t, NewSet().Len())
}

func TestSetIsStrictlyIncreasing(t *testing.T) {
	inputs := [][]string{
		{"9시 30분", "9시 30분", "9시 15분"},
		{"12시 0분", "10시 0분", "11시 59분", "10시 0분"},
		{"garbage", "9시"},
	}
	for _, segments := range inputs {
		var offsets []Offset
		for _, seg := range segments {
			if o, ok := ParseOffset(seg); ok {
				offsets = append(offsets, o)
			}
		}
		got := NewSet(offsets...).Offsets()
		for i := 1; i < len(got); i++ {
			assert.Less(t, got[i-1], got[i])
		}
	}
}

func TestSetOffsetsReturnsCopy(t *testing.T) {
	s := NewSet(1, 2)
	out := s.Offsets()
	out[0] = 99
	assert.Equal(t, []Offset{1, 2}, s.Offsets())
}
