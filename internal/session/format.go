package session

import "fmt"

// FormatRemaining renders a whole-second countdown as mm:ss with the
// seconds zero-padded. Negative values clamp to 00:00.
func FormatRemaining(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
