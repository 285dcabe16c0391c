package lifecycle

import "time"

// Brightness maps a presence's activity to a glow level in [0, 1].
// Online presences never decay; offline ones fade linearly to zero over
// DecayWindow.
func Brightness(lastActiveAt time.Time, isOnline bool, now time.Time) float64 {
	return brightnessOver(lastActiveAt, isOnline, now, DecayWindow)
}

func brightnessOver(lastActiveAt time.Time, isOnline bool, now time.Time, window time.Duration) float64 {
	if isOnline {
		return 1
	}
	age := now.Sub(lastActiveAt)
	if age <= 0 {
		return 1
	}
	return clamp01(1 - age.Hours()/window.Hours())
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
