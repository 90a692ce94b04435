// ABOUTME: Software volume helpers shared by all backends
// ABOUTME: Maps 0-100 volume and mute to a gain multiplier
package output

// clampVolume limits volume to 0-100
func clampVolume(volume int) int {
	if volume < 0 {
		return 0
	}
	if volume > 100 {
		return 100
	}
	return volume
}

// getVolumeMultiplier calculates volume multiplier
func getVolumeMultiplier(volume int, muted bool) float32 {
	if muted {
		return 0.0
	}
	return float32(clampVolume(volume)) / 100.0
}
