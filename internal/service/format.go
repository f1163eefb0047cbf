package service

import (
	"fmt"

	"github.com/tejashwikalptaru/tunelib/internal/domain"
)

// FormatTime renders milliseconds as m:ss. Minutes are not padded and
// negative input renders as 0:00.
func FormatTime(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	seconds := ms / 1000
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// VolumeFromPercent converts a 0-100 scale into an engine volume.
func VolumeFromPercent(percent int) (float64, error) {
	if percent < 0 || percent > 100 {
		return 0, domain.ErrInvalidVolume
	}
	return float64(percent) / 100, nil
}

// PercentFromVolume is the inverse of VolumeFromPercent, rounded to the nearest step.
func PercentFromVolume(volume float64) int {
	return int(volume*100 + 0.5)
}
