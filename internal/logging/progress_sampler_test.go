package logging

import "testing"

func TestNewProgressSamplerStep(t *testing.T) {
	for _, tc := range []struct {
		step, want float64
	}{
		{0, 10},
		{-1, 10},
		{5, 5},
	} {
		if got := NewProgressSampler(tc.step).step; got != tc.want {
			t.Errorf("NewProgressSampler(%v).step = %v, want %v", tc.step, got, tc.want)
		}
	}
}

func TestProgressSamplerNil(t *testing.T) {
	var s *ProgressSampler
	if !s.ShouldLog(50) {
		t.Error("nil sampler should log everything")
	}
	s.Reset()
}

func TestProgressSamplerSteps(t *testing.T) {
	s := NewProgressSampler(10)
	steps := []struct {
		percent float64
		want    bool
	}{
		{0, true},
		{3, false},
		{9.9, false},
		{10, true},
		{15, false},
		{42, true},
		{-1, false},
		{100, true},
		{100, false},
	}
	for _, step := range steps {
		if got := s.ShouldLog(step.percent); got != step.want {
			t.Fatalf("ShouldLog(%v) = %v, want %v", step.percent, got, step.want)
		}
	}
	s.Reset()
	if !s.ShouldLog(5) {
		t.Fatal("expected first sample after reset to log")
	}
}

func TestProgressSamplerFinalStepAlwaysLogs(t *testing.T) {
	s := NewProgressSampler(30)
	if !s.ShouldLog(95) {
		t.Fatal("expected 95% to log")
	}
	if !s.ShouldLog(100) {
		t.Fatal("expected completion to log even inside the current step")
	}
}
