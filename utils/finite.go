package utils

import "math"

func IsFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Clamp はvを[lo, hi]に収める
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// NormalRelativeAngle はラジアン角を[-π, π)に正規化する
func NormalRelativeAngle(angle float64) float64 {
	angle = math.Mod(angle+math.Pi, 2*math.Pi)
	if angle < 0 {
		angle += 2 * math.Pi
	}
	return angle - math.Pi
}

// NormalAbsoluteAngle はラジアン角を[0, 2π)に正規化する
func NormalAbsoluteAngle(angle float64) float64 {
	angle = math.Mod(angle, 2*math.Pi)
	if angle < 0 {
		angle += 2 * math.Pi
	}
	return angle
}
