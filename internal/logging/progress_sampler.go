package logging

import "math"

// ProgressSampler thins progress events down to one per step percent, plus
// the final 100%.
type ProgressSampler struct {
	step float64
	next float64
	done bool
}

// NewProgressSampler returns a sampler emitting every step percent; a
// non-positive step means 10.
func NewProgressSampler(step float64) *ProgressSampler {
	if step <= 0 {
		step = 10
	}
	return &ProgressSampler{step: step}
}

// ShouldLog reports whether percent crosses into a new step. Negative values
// mean the total is unknown and never log. A nil sampler logs everything.
func (s *ProgressSampler) ShouldLog(percent float64) bool {
	switch {
	case s == nil:
		return true
	case percent < 0:
		return false
	case percent >= 100:
		if s.done {
			return false
		}
		s.done = true
		return true
	case percent < s.next:
		return false
	}
	s.next = (math.Floor(percent/s.step) + 1) * s.step
	return true
}

// Reset starts over, for a fresh download attempt.
func (s *ProgressSampler) Reset() {
	if s != nil {
		*s = ProgressSampler{step: s.step}
	}
}
