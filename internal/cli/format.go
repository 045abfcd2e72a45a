package cli

import (
	"fmt"
	"time"
)

// FormatDurationShort formats an elapsed time as M:SS, or H:MM:SS from one
// hour up. Rounds to the nearest second.
func FormatDurationShort(d time.Duration) string {
	s := int(d.Round(time.Second) / time.Second)
	if s >= 3600 {
		return fmt.Sprintf("%d:%02d:%02d", s/3600, s%3600/60, s%60)
	}
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}
