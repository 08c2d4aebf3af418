package broadcast_test

import (
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kctvfetch/internal/broadcast"
)

func TestFileNames(t *testing.T) {
	d := broadcast.NewDate(2024, time.May, 1)
	assert.Equal(t, "dl-2024-05-01.mp4", d.TempFileName())
	assert.Equal(t, "Full Broadcast 2024 05 01.mp4", d.FinalFileName())
	assert.Equal(t, "2024-05-01", d.String())
}

func TestParseDate(t *testing.T) {
	d, err := broadcast.ParseDate(" 2024-02-29 ")
	require.NoError(t, err)
	assert.Equal(t, broadcast.NewDate(2024, time.February, 29), d)

	_, err = broadcast.ParseDate("01-05-2024")
	require.Error(t, err)
}

func TestYesterdayUsesLocalCalendar(t *testing.T) {
	loc := time.FixedZone("KST", 9*3600)
	now := time.Date(2024, time.March, 1, 0, 30, 0, 0, loc)
	assert.Equal(t, broadcast.NewDate(2024, time.February, 29), broadcast.Yesterday(now))
}

func TestRangeIteratesInclusive(t *testing.T) {
	r, err := broadcast.NewRange(broadcast.NewDate(2024, time.February, 28), broadcast.NewDate(2024, time.March, 1))
	require.NoError(t, err)
	assert.Equal(t, 3, r.Days())

	var got []string
	for d := range r.All() {
		got = append(got, d.String())
	}
	assert.Equal(t, []string{"2024-02-28", "2024-02-29", "2024-03-01"}, got)
}

func TestRangeDefaultsEndToStart(t *testing.T) {
	start := broadcast.NewDate(2024, time.May, 1)
	r, err := broadcast.NewRange(start, broadcast.Date{})
	require.NoError(t, err)
	assert.Equal(t, start, r.End)
	assert.Equal(t, []broadcast.Date{start}, slices.Collect(r.All()))
}

func TestRangeRejectsInverted(t *testing.T) {
	_, err := broadcast.NewRange(broadcast.NewDate(2024, time.May, 2), broadcast.NewDate(2024, time.May, 1))
	require.Error(t, err)
	_, err = broadcast.NewRange(broadcast.Date{}, broadcast.Date{})
	require.Error(t, err)
}
