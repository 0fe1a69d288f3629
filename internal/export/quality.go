package export

// Pixel-count thresholds for OptimalQuality.
const (
	largeImagePixels  = 1_000_000
	mediumImagePixels = 500_000
)

// OptimalQuality picks a lossy quality for a width x height image: larger images
// get a lower quality to keep encoded size in check.
func OptimalQuality(width, height int) float64 {
	pixels := float64(width) * float64(height)
	switch {
	case pixels > largeImagePixels:
		return 0.85
	case pixels > mediumImagePixels:
		return 0.9
	default:
		return 0.95
	}
}
