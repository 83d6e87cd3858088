package logic

// LightsOn reports whether the lights should be on for a brightness reading.
// There is no hysteresis: readings hovering at the threshold will flicker.
func LightsOn(brightness, threshold int) bool {
	return brightness < threshold
}

// BrightnessPercent scales a raw ADC reading to a percentage in [0,100].
// Integer division truncates, matching the photodiode calibration.
func BrightnessPercent(raw, fullScale int) int {
	if fullScale <= 0 || raw <= 0 {
		return 0
	}
	if raw >= fullScale {
		return 100
	}
	return raw * 100 / fullScale
}
