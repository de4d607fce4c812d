package facematch

// RelativeBBox converts a pixel box [x1, y1, x2, y2] of a width x height frame
// to [0, 1] coordinates so clients can draw it over the video at any scale.
// Detectors report boxes that reach past the frame edge; those are clamped.
// Returns nil for a malformed box or frame size.
func RelativeBBox(bbox []float64, width, height int) []float64 {
	if len(bbox) != 4 || width <= 0 || height <= 0 {
		return nil
	}
	w, h := float64(width), float64(height)
	return []float64{
		clamp01(bbox[0] / w),
		clamp01(bbox[1] / h),
		clamp01(bbox[2] / w),
		clamp01(bbox[3] / h),
	}
}

func clamp01(v float64) float64 {
	return min(max(v, 0), 1)
}
