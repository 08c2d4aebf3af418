package logging

import (
	"errors"
	"log/slog"
	"testing"
	"time"
)

func TestFormatValue(t *testing.T) {
	cases := []struct {
		value slog.Value
		want  string
	}{
		{slog.StringValue("plain"), "plain"},
		{slog.StringValue(""), `""`},
		{slog.StringValue("two words"), `"two words"`},
		{slog.StringValue("a=b"), `"a=b"`},
		{slog.IntValue(42), "42"},
		{slog.BoolValue(true), "true"},
		{slog.DurationValue(90 * time.Second), "1m30s"},
		{slog.AnyValue(errors.New("boom")), "boom"},
		{slog.AnyValue(errors.New("player timed out")), `"player timed out"`},
	}
	for _, tc := range cases {
		if got := formatValue(tc.value); got != tc.want {
			t.Errorf("formatValue(%v) = %s, want %s", tc.value, got, tc.want)
		}
	}
}
